package wal

// ============================================================================
// Wal Handle
// Purpose: Caller-facing, cheaply-clonable façade over the writer
// coordinator (spec.md §4.7): Create/Load, AddOp, Iter/Range, Close/Purge
//
// Sharing Model:
//   Clones share one coordinator goroutine through an atomic refcount.
//   Close/Purge are "last one out": earlier clones report ok=false and the
//   coordinator keeps serving the remaining clones.
// ============================================================================

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
)

// Config holds the fields a caller supplies to Create/Load: the WAL's
// logical name, the directory it lives in, the byte size at which an
// active journal rotates, and whether every flush should fsync.
type Config struct {
	Name         string
	Dir          string
	JournalLimit int64
	Fsync        bool
}

// DefaultJournalLimit is applied when a caller leaves JournalLimit unset.
const DefaultJournalLimit int64 = 1 << 30 // 1 GiB

func (cfg Config) withDefaults() Config {
	if cfg.JournalLimit <= 0 {
		cfg.JournalLimit = DefaultJournalLimit
	}
	return cfg
}

// Wal is the caller-facing handle to a write-ahead log. It is cheap to
// Clone: clones share one writer coordinator goroutine and are
// reference-counted so that only the last clone standing actually tears
// the coordinator down on Close/Purge.
type Wal struct {
	name  string
	dir   string
	coord *writerCoordinator
	refs  *int32
}

// Create starts a fresh WAL named cfg.Name in cfg.Dir. Any sibling journal
// files already present for this name are purged first — Create always
// begins from journal number 0 — exactly as wral.rs's Wal::create purges
// stale Cold journals before starting.
func Create(cfg Config, state State, mc *Collector) (*Wal, error) {
	cfg = cfg.withDefaults()
	if cfg.Name == "" {
		return nil, fmt.Errorf("wal: Create with empty name: %w", ErrInvalid)
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, &IOError{Op: "mkdir", Path: cfg.Dir, Err: err}
	}

	entries, err := os.ReadDir(cfg.Dir)
	if err != nil {
		return nil, &IOError{Op: "readdir", Path: cfg.Dir, Err: err}
	}
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		name, num, ok := DecodeJournalName(de.Name())
		if !ok || name != cfg.Name {
			continue
		}
		stale := LoadCold(cfg.Name, filepath.Join(cfg.Dir, de.Name()), num)
		if err := stale.Purge(); err != nil {
			slog.Debug("wal: failed to purge stale journal", "path", stale.Path(), "error", err)
		}
	}

	active, err := StartJournal(cfg.Name, cfg.Dir, 0, state)
	if err != nil {
		return nil, err
	}

	coord := startCoordinator(cfg.Name, cfg.Dir, cfg.JournalLimit, cfg.Fsync, active, nil, 1, mc)
	refs := new(int32)
	*refs = 1
	return &Wal{name: cfg.Name, dir: cfg.Dir, coord: coord, refs: refs}, nil
}

// Load recovers a WAL from an existing directory: every sibling journal
// file is opened as Archive and replayed to recover its Index list and
// state snapshot. Per the batch-ordering invariant, a journal that fails to
// load (no decodable batch, batches out of order) or whose range overlaps
// an earlier kept journal is skipped with a logged warning rather than
// aborting the whole load; a journal whose trailing batch alone is corrupt
// is kept with its valid prefix. The highest-numbered kept journal supplies
// the resumption state; a fresh Working journal is started one number past
// it, replacing any skipped journal file at that number.
func Load(cfg Config, decodeState DecodeStateFunc, mc *Collector) (*Wal, error) {
	cfg = cfg.withDefaults()
	if cfg.Name == "" {
		return nil, fmt.Errorf("wal: Load with empty name: %w", ErrInvalid)
	}

	entries, err := os.ReadDir(cfg.Dir)
	if err != nil {
		return nil, &IOError{Op: "readdir", Path: cfg.Dir, Err: err}
	}

	var archives []*Journal
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		name, _, ok := DecodeJournalName(de.Name())
		if !ok || name != cfg.Name {
			continue
		}
		path := filepath.Join(cfg.Dir, de.Name())
		j, err := LoadArchive(cfg.Name, path, decodeState)
		if err != nil {
			slog.Warn("wal: skipping unreadable journal", "path", path, "error", err)
			continue
		}
		archives = append(archives, j)
	}

	sort.Slice(archives, func(i, j int) bool { return archives[i].ToJournalNumber() < archives[j].ToJournalNumber() })
	archives = rejectOverlappingArchives(cfg.Name, archives)

	nextSeqno := uint64(1)
	nextNum := 0
	var resumeState State
	if len(archives) > 0 {
		last := archives[len(archives)-1]
		nextSeqno = last.ToLastSeqno() + 1
		if last.TailCorrupt() != nil {
			// The trailing batch didn't decode, so its seqno range is
			// unknown; leave a one-seqno gap rather than risk handing out
			// a seqno that batch may already have claimed.
			nextSeqno++
		}
		nextNum = last.ToJournalNumber() + 1
		resumeState = last.ToState()
	}
	if resumeState == nil {
		resumeState, err = decodeState(nil)
		if err != nil {
			return nil, fmt.Errorf("wal: build default state: %w", err)
		}
	}

	active, err := StartJournal(cfg.Name, cfg.Dir, nextNum, resumeState)
	if err != nil {
		return nil, err
	}

	coord := startCoordinator(cfg.Name, cfg.Dir, cfg.JournalLimit, cfg.Fsync, active, archives, nextSeqno, mc)
	refs := new(int32)
	*refs = 1
	return &Wal{name: cfg.Name, dir: cfg.Dir, coord: coord, refs: refs}, nil
}

// rejectOverlappingArchives enforces spec.md §3's WalSet invariant: archive
// journals' seqno ranges must be strictly ordered and non-overlapping, per
// §9 Open Question 1's resolution that a violation is corruption evidence,
// not a panic. archives must already be sorted by journal number. A journal
// whose range overlaps or is out of order relative to the last accepted
// journal is skipped with a logged warning; it never aborts the load.
func rejectOverlappingArchives(name string, archives []*Journal) []*Journal {
	kept := make([]*Journal, 0, len(archives))
	for _, j := range archives {
		rng, ok := j.SeqnoRange()
		if !ok {
			continue
		}
		if n := len(kept); n > 0 {
			prevRng, _ := kept[n-1].SeqnoRange()
			if prevRng.Overlaps(rng) {
				slog.Warn("wal: skipping journal overlapping a prior journal", "name", name,
					"journal", j.ToJournalNumber(), "prior_journal", kept[n-1].ToJournalNumber())
				continue
			}
			if !prevRng.Before(rng) {
				slog.Warn("wal: skipping journal out of seqno order with a prior journal", "name", name,
					"journal", j.ToJournalNumber(), "prior_journal", kept[n-1].ToJournalNumber())
				continue
			}
		}
		kept = append(kept, j)
	}
	return kept
}

// Clone returns a handle sharing the same coordinator goroutine, bumping
// the reference count so Close/Purge know another owner is alive.
func (w *Wal) Clone() *Wal {
	atomic.AddInt32(w.refs, 1)
	return &Wal{name: w.name, dir: w.dir, coord: w.coord, refs: w.refs}
}

// AddOp submits op to the WAL and returns the seqno it was assigned.
func (w *Wal) AddOp(op []byte) (uint64, error) {
	return w.coord.addOp(op)
}

// Iter returns an RdJournal over every entry currently in the WAL.
func (w *Wal) Iter() (*RdJournal, error) {
	return w.Range(Unbounded(), Unbounded())
}

// Range returns an RdJournal over the entries whose seqno falls within
// [lo, hi], each bound independently inclusive, exclusive, or unbounded.
func (w *Wal) Range(lo, hi Bound) (*RdJournal, error) {
	return w.coord.newRange(lo, hi)
}

// Close releases this handle's reference. If it is the last live clone,
// the coordinator goroutine is shut down (without removing any files) and
// the last seqno assigned is returned; otherwise ok is false and the
// coordinator keeps running for the remaining clones.
func (w *Wal) Close() (lastSeqno uint64, ok bool, err error) {
	if atomic.AddInt32(w.refs, -1) != 0 {
		return 0, false, nil
	}
	lastSeqno, err = w.coord.close()
	return lastSeqno, true, err
}

// Purge behaves like Close, but additionally removes every journal file
// the WAL owns when this is the last live clone.
func (w *Wal) Purge() (lastSeqno uint64, ok bool, err error) {
	if atomic.AddInt32(w.refs, -1) != 0 {
		return 0, false, nil
	}
	lastSeqno, err = w.coord.purge()
	return lastSeqno, true, err
}
