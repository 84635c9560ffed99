package wal

// ============================================================================
// Journal Lifecycle
// Purpose: Own one physical journal file and the in-memory bookkeeping its
// lifecycle stage requires (spec.md §4.4)
//
// Lifecycle:
//   ┌─────────┐  rotate/load   ┌─────────┐  quiesce   ┌──────┐
//   │ Working │ ─────────────► │ Archive │ ─────────► │ Cold │
//   └─────────┘                └─────────┘            └──────┘
//        ▲ StartJournal              ▲ LoadArchive          ▲ LoadCold
//
//   - Working: open append handle + BatchBuilder; AddEntry/Flush/rotate.
//   - Archive: closed for writing; Index list + last state, served for
//     reads and seqno bookkeeping.
//   - Cold: path only, used during pre-create purge.
// ============================================================================

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// journalKind is the lifecycle stage a Journal occupies. A fresh WAL starts
// its one journal as Working; rotation seals the old journal into Archive
// and starts a new Working one; a journal loaded from disk by LoadArchive
// starts as Archive. A Cold journal (from LoadCold, or an Archive demoted
// by IntoCold) is never promoted back to Archive.
type journalKind int

const (
	kindWorking journalKind = iota
	kindArchive
	kindCold
)

// Journal is one physical file in the WAL's journal set, together with
// whatever in-memory bookkeeping its lifecycle stage requires.
type Journal struct {
	name string
	num  int
	path string
	kind journalKind

	// Working-only.
	file    *os.File
	builder *BatchBuilder

	// Populated once a journal has been read (Working or Archive): every
	// batch flushed to it so far, used to serve range reads without
	// re-scanning the whole file.
	indexes []Index

	// Archive/Cold: the most recent state snapshot (recovered from the file
	// by LoadArchive, or taken from the builder by IntoArchive), used to
	// resume the next Working journal.
	archiveState State

	// Set by LoadArchive when the batch stream stops decoding before the
	// end of the file (a truncated or otherwise corrupt trailing batch).
	// Surfaced once by RdJournal after the journal's valid batches are
	// exhausted, and used by Load to leave a seqno gap rather than risk
	// reassigning a seqno that may have belonged to the lost batch.
	tailCorrupt error
}

// StartJournal creates a brand-new, empty Working journal file num for WAL
// name in dir. Any stale file at that path is removed first, matching a
// fresh journal always starting from zero bytes.
func StartJournal(name, dir string, num int, state State) (*Journal, error) {
	path := JournalPath(dir, name, num)
	_ = os.Remove(path)

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return nil, &IOError{Op: "create", Path: path, Err: err}
	}

	return &Journal{
		name:    name,
		num:     num,
		path:    path,
		kind:    kindWorking,
		file:    file,
		builder: NewBatchBuilder(state),
	}, nil
}

// LoadArchive opens an existing journal file read-only and replays its
// batch stream to recover the Index list and the final State snapshot.
// A journal with zero decodable batches, or whose batches are not strictly
// ordered and non-overlapping, is reported as corrupt: the caller decides
// whether to skip it (see handle.go's Load).
func LoadArchive(name, path string, decodeState DecodeStateFunc) (*Journal, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}

	r := bytes.NewReader(raw)
	var indexes []Index
	var lastStateBytes []byte
	var tailCorrupt error
	fpos := int64(0)

	for r.Len() > 0 {
		batch, consumed, err := decodeBatchStream(r)
		if err != nil {
			if err == io.EOF {
				break
			}
			slog.Debug("wal: journal decode stopped early", "path", path, "error", err)
			tailCorrupt = &CorruptionError{Path: path, Reason: "truncated or undecodable trailing batch", Err: err}
			break
		}
		if consumed == 0 {
			break
		}

		ix, err := NewIndex(fpos, consumed, batch.ToFirstSeqno(), batch.ToLastSeqno())
		if err != nil {
			return nil, &CorruptionError{Path: path, Reason: "invalid index bounds", Err: err}
		}
		if n := len(indexes); n > 0 {
			prev := indexes[n-1]
			if !prev.Before(ix) {
				return nil, &CorruptionError{Path: path, Reason: fmt.Sprintf("batch %v overlaps or precedes %v", ix, prev)}
			}
		}

		indexes = append(indexes, ix)
		if len(batch.StateBytes) > 0 {
			lastStateBytes = batch.StateBytes
		}
		fpos += consumed
	}

	if len(indexes) == 0 {
		return nil, &CorruptionError{Path: path, Reason: "no decodable batches"}
	}

	var state State
	if decodeState != nil {
		state, err = decodeState(lastStateBytes)
		if err != nil {
			return nil, &CorruptionError{Path: path, Reason: "state snapshot decode failed", Err: err}
		}
	}

	_, num, ok := DecodeJournalName(filepath.Base(path))
	if !ok {
		return nil, &CorruptionError{Path: path, Reason: "unrecognized journal file name"}
	}
	return &Journal{
		name:         name,
		num:          num,
		path:         path,
		kind:         kindArchive,
		indexes:      indexes,
		archiveState: state,
		tailCorrupt:  tailCorrupt,
	}, nil
}

// LoadCold recognizes a sibling journal file purely from its name, without
// touching its contents.
func LoadCold(name, path string, num int) *Journal {
	return &Journal{name: name, num: num, path: path, kind: kindCold}
}

// IntoArchive seals a Working journal: the builder must have no pending
// entries (every add must have been followed by a flush before rotation),
// otherwise this is a Fatal invariant violation, not a recoverable error.
func (j *Journal) IntoArchive() error {
	if j.kind != kindWorking {
		return fmt.Errorf("wal: IntoArchive on non-working journal %d: %w", j.num, ErrFatal)
	}
	if j.builder.Len() != 0 {
		return fmt.Errorf("wal: rotate with unflushed entries in journal %d: %w", j.num, ErrFatal)
	}
	j.archiveState = j.builder.state
	j.kind = kindArchive
	if j.file != nil {
		_ = j.file.Close()
		j.file = nil
	}
	j.builder = nil
	return nil
}

// IntoCold demotes an Archive journal to Cold, releasing its in-memory
// index so long-lived WALs don't retain indexes for every journal forever.
func (j *Journal) IntoCold() error {
	if j.kind != kindArchive {
		return fmt.Errorf("wal: IntoCold on non-archive journal %d: %w", j.num, ErrFatal)
	}
	j.kind = kindCold
	j.indexes = nil
	return nil
}

// Purge removes the journal's backing file. Safe to call in any lifecycle
// stage; the file handle, if any, is closed first.
func (j *Journal) Purge() error {
	if j.file != nil {
		_ = j.file.Close()
		j.file = nil
	}
	if err := os.Remove(j.path); err != nil && !os.IsNotExist(err) {
		return &IOError{Op: "remove", Path: j.path, Err: err}
	}
	return nil
}

// AddEntry appends entry to the Working journal's builder.
func (j *Journal) AddEntry(entry Entry) error {
	if j.kind != kindWorking {
		return fmt.Errorf("wal: AddEntry on non-working journal %d: %w", j.num, ErrFatal)
	}
	return j.builder.AddEntry(entry)
}

// Flush seals the Working journal's pending entries into one Batch on
// disk, recording the resulting Index for later range reads. A no-op flush
// (no pending entries) returns a nil Index and no error.
func (j *Journal) Flush(fsync bool) (*Index, error) {
	if j.kind != kindWorking {
		return nil, fmt.Errorf("wal: Flush on non-working journal %d: %w", j.num, ErrFatal)
	}
	ix, err := j.builder.Flush(j.file, fsync)
	if err != nil {
		return nil, err
	}
	if ix == nil {
		return nil, nil
	}
	j.indexes = append(j.indexes, *ix)
	return ix, nil
}

// PendingEntries returns a copy of the Working journal's unflushed entries.
// Returns nil for an Archive/Cold journal.
func (j *Journal) PendingEntries() []Entry {
	if j.kind != kindWorking {
		return nil
	}
	out := make([]Entry, j.builder.Len())
	copy(out, j.builder.entries)
	return out
}

// PendingLen returns the number of entries accumulated but not yet flushed.
func (j *Journal) PendingLen() int {
	if j.kind != kindWorking {
		return 0
	}
	return j.builder.Len()
}

func (j *Journal) ToJournalNumber() int { return j.num }

func (j *Journal) LenBatches() int { return len(j.indexes) }

func (j *Journal) Indexes() []Index { return j.indexes }

// TailCorrupt returns the error recorded for this journal's truncated or
// undecodable trailing batch, or nil if none was detected at load time.
func (j *Journal) TailCorrupt() error { return j.tailCorrupt }

// ToLastSeqno returns the highest seqno this journal has flushed, or 0 if
// it has flushed nothing yet.
func (j *Journal) ToLastSeqno() uint64 {
	if n := len(j.indexes); n > 0 {
		return j.indexes[n-1].LastSeqno
	}
	return 0
}

// ToFirstSeqno returns the lowest seqno this journal has flushed, or 0 if
// it has flushed nothing yet.
func (j *Journal) ToFirstSeqno() uint64 {
	if n := len(j.indexes); n > 0 {
		return j.indexes[0].FirstSeqno
	}
	return 0
}

// SeqnoRange returns an Index spanning every batch this journal holds,
// fpos/length zeroed since only the seqno bounds matter to the caller. Used
// to compare one journal's range against another with Index.Overlaps/
// Index.Before. ok is false for a journal with no indexes.
func (j *Journal) SeqnoRange() (rng Index, ok bool) {
	if len(j.indexes) == 0 {
		return Index{}, false
	}
	rng, err := NewIndex(0, 0, j.ToFirstSeqno(), j.ToLastSeqno())
	if err != nil {
		return Index{}, false
	}
	return rng, true
}

// FileSize returns the current on-disk size of the journal file. Only
// valid for a Working journal.
func (j *Journal) FileSize() (int64, error) {
	if j.kind != kindWorking {
		return 0, fmt.Errorf("wal: FileSize on non-working journal %d: %w", j.num, ErrFatal)
	}
	info, err := j.file.Stat()
	if err != nil {
		return 0, &IOError{Op: "stat", Path: j.path, Err: err}
	}
	return info.Size(), nil
}

// ToState returns the journal's current resumption state: the builder's
// live state if Working, or the last decoded snapshot if Archive/Cold.
func (j *Journal) ToState() State {
	if j.kind == kindWorking {
		return j.builder.state
	}
	return j.archiveState
}

// Path returns the journal's backing file path.
func (j *Journal) Path() string { return j.path }

// ReadBatchAt reads and decodes the batch stored at ix within this
// journal's file, for use by RdJournal's on-demand reads.
func (j *Journal) ReadBatchAt(ix Index) (Batch, error) {
	f, err := os.Open(j.path)
	if err != nil {
		return Batch{}, &IOError{Op: "open", Path: j.path, Err: err}
	}
	defer f.Close()

	buf := make([]byte, ix.Length)
	if _, err := f.ReadAt(buf, ix.Fpos); err != nil {
		return Batch{}, &IOError{Op: "readat", Path: j.path, Err: err}
	}

	batch, consumed, err := decodeBatchStream(bytes.NewReader(buf))
	if err != nil {
		return Batch{}, &CorruptionError{Path: j.path, Reason: "indexed batch failed to decode", Err: err}
	}
	if consumed != ix.Length {
		return Batch{}, &CorruptionError{Path: j.path, Reason: fmt.Sprintf("index length %d does not match %d bytes consumed", ix.Length, consumed)}
	}
	return batch, nil
}
