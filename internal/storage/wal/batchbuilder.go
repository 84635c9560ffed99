package wal

// ============================================================================
// Batch Builder
// Purpose: Accumulate Entries for the journal currently being written and
// seal them into one Batch per flush cycle
//
// Flush Sequencing:
//   1. Stat the file to record fpos
//   2. Seal (first, last, encode(state), drained entries) into a Batch
//   3. Encode the Batch to CBOR bytes
//   4. Write the bytes in a single Write call (error unless fully consumed)
//   5. fsync iff configured
//   6. Record and return the Index describing where the batch landed
// ============================================================================

import (
	"fmt"
	"os"
)

// BatchBuilder accumulates entries for the journal currently being written
// and seals them into a Batch on flush. It holds no file handle of its own;
// the caller supplies the journal file to flush against.
type BatchBuilder struct {
	entries []Entry
	state   State
}

// NewBatchBuilder starts an empty builder carrying state as its resumption
// capability.
func NewBatchBuilder(state State) *BatchBuilder {
	return &BatchBuilder{state: state}
}

// AddEntry appends entry after invoking state.OnAddEntry on it. An error
// from OnAddEntry aborts the add and is returned unchanged.
func (w *BatchBuilder) AddEntry(entry Entry) error {
	if err := w.state.OnAddEntry(&entry); err != nil {
		return err
	}
	w.entries = append(w.entries, entry)
	return nil
}

// Len returns the number of entries accumulated since the last flush.
func (w *BatchBuilder) Len() int {
	return len(w.entries)
}

// ToFirstSeqno returns the seqno of the oldest unflushed entry, or 0 if
// there are none.
func (w *BatchBuilder) ToFirstSeqno() uint64 {
	if len(w.entries) == 0 {
		return 0
	}
	return w.entries[0].Seqno
}

// ToLastSeqno returns the seqno of the newest unflushed entry, or 0 if
// there are none.
func (w *BatchBuilder) ToLastSeqno() uint64 {
	if len(w.entries) == 0 {
		return 0
	}
	return w.entries[len(w.entries)-1].Seqno
}

// Flush seals the accumulated entries into a Batch, encodes it as CBOR,
// writes it to file with a single Write call, optionally fsyncs, and
// returns an Index describing where the batch landed. Flush on zero pending
// entries is a no-op: it returns a nil Index and no error. The batch carries
// state's MarshalState encoding as of this flush. On success the builder is
// left empty; on error its pending entries are kept.
func (w *BatchBuilder) Flush(file *os.File, fsync bool) (*Index, error) {
	if len(w.entries) == 0 {
		return nil, nil
	}

	info, err := file.Stat()
	if err != nil {
		return nil, &IOError{Op: "stat", Path: file.Name(), Err: err}
	}
	fpos := info.Size()

	stateBytes, err := w.state.MarshalState()
	if err != nil {
		return nil, fmt.Errorf("wal: marshal state: %w", err)
	}

	batch := &Batch{
		FirstSeqno: w.ToFirstSeqno(),
		LastSeqno:  w.ToLastSeqno(),
		StateBytes: stateBytes,
		Entries:    w.entries,
	}

	buf, err := encodeBatch(batch)
	if err != nil {
		return nil, err
	}

	if err := syncWrite(file, buf); err != nil {
		return nil, err
	}
	if fsync {
		if err := file.Sync(); err != nil {
			return nil, &IOError{Op: "fsync", Path: file.Name(), Err: err}
		}
	}

	ix, err := NewIndex(fpos, int64(len(buf)), batch.FirstSeqno, batch.LastSeqno)
	if err != nil {
		return nil, err
	}
	w.entries = nil
	return &ix, nil
}

// syncWrite writes buf to file in a single Write call, returning an error
// if the kernel accepted fewer bytes than were handed to it.
func syncWrite(file *os.File, buf []byte) error {
	n, err := file.Write(buf)
	if err != nil {
		return &IOError{Op: "write", Path: file.Name(), Err: err}
	}
	if n != len(buf) {
		return &IOError{Op: "write", Path: file.Name(), Err: fmt.Errorf("short write: %d of %d bytes", n, len(buf))}
	}
	return nil
}
