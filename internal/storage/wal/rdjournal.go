package wal

// ============================================================================
// Range Reader
// Purpose: Lazily iterate a point-in-time snapshot of the WAL's journal set
// over a closed seqno range (spec.md §4.7.1/§4.7.2)
//
// Read Order:
//   1. Each Index's Batch is read from disk on demand, one at a time,
//      archives in journal order and then the active journal.
//   2. A journal's corrupt trailing batch surfaces as exactly one Err after
//      that journal's valid batches; reading then goes on to the next
//      journal.
//   3. Not-yet-flushed active-journal entries captured at construction,
//      filtered by range, come last.
// ============================================================================

import (
	"fmt"
	"io"
	"math"
	"sort"
)

// BoundKind distinguishes the three ways a range endpoint can be specified.
type BoundKind int

const (
	BoundUnbounded BoundKind = iota
	BoundIncluded
	BoundExcluded
)

// Bound is one endpoint of a seqno range, mirroring a standard
// lower/upper-bound triple: unbounded, inclusive, or exclusive.
type Bound struct {
	Kind  BoundKind
	Value uint64
}

// Unbounded returns a Bound with no constraint.
func Unbounded() Bound { return Bound{Kind: BoundUnbounded} }

// Included returns an inclusive Bound at v.
func Included(v uint64) Bound { return Bound{Kind: BoundIncluded, Value: v} }

// Excluded returns an exclusive Bound at v.
func Excluded(v uint64) Bound { return Bound{Kind: BoundExcluded, Value: v} }

// normalizeRange collapses a (lo, hi) bound pair into a closed [lo, hi]
// range over uint64. empty is true when the range contains no seqnos at
// all, which can happen both from an explicitly empty bound pair and from
// saturation at the uint64 edges (Excluded(MaxUint64) as a lower bound,
// Excluded(0) as an upper bound).
func normalizeRange(lo, hi Bound) (normLo, normHi uint64, empty bool, err error) {
	switch lo.Kind {
	case BoundUnbounded:
		normLo = 0
	case BoundIncluded:
		normLo = lo.Value
	case BoundExcluded:
		if lo.Value == math.MaxUint64 {
			return 0, 0, true, nil
		}
		normLo = lo.Value + 1
	default:
		return 0, 0, false, fmt.Errorf("wal: unknown lower bound kind %d: %w", lo.Kind, ErrInvalid)
	}

	switch hi.Kind {
	case BoundUnbounded:
		normHi = math.MaxUint64
	case BoundIncluded:
		normHi = hi.Value
	case BoundExcluded:
		if hi.Value == 0 {
			return 0, 0, true, nil
		}
		normHi = hi.Value - 1
	default:
		return 0, 0, false, fmt.Errorf("wal: unknown upper bound kind %d: %w", hi.Kind, ErrInvalid)
	}

	if normLo > normHi {
		return 0, 0, true, nil
	}
	return normLo, normHi, false, nil
}

// segment is one on-disk batch worth reading lazily while iterating, or a
// terminal error standing in for a journal's undecodable trailing batch.
type segment struct {
	journal *Journal
	index   Index
	err     error
}

// RdJournal is a lazy, range-constrained reader over a point-in-time
// snapshot of a WAL's journal set. Construction takes a snapshot of which
// batches exist and which entries are still unflushed; batch bodies
// themselves are read from disk on demand, one at a time, as Next is
// called, so an RdJournal never holds the whole range in memory at once.
type RdJournal struct {
	lo, hi uint64

	segments []segment
	segIdx   int

	curBatch []Entry
	curPos   int

	pending       []Entry
	pendingServed bool
}

// newRdJournal snapshots active and archives and builds an RdJournal over
// the normalized [lo, hi] range. Journals whose index range does not
// intersect [lo, hi] are skipped entirely without being opened.
func newRdJournal(active *Journal, archives []*Journal, loB, hiB Bound) (*RdJournal, error) {
	lo, hi, empty, err := normalizeRange(loB, hiB)
	if err != nil {
		return nil, err
	}
	r := &RdJournal{lo: lo, hi: hi}
	if empty {
		return r, nil
	}

	ordered := make([]*Journal, 0, len(archives)+1)
	ordered = append(ordered, archives...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ToJournalNumber() < ordered[j].ToJournalNumber() })
	ordered = append(ordered, active)

	for _, j := range ordered {
		for _, ix := range j.Indexes() {
			if ix.LastSeqno < lo || ix.FirstSeqno > hi {
				continue
			}
			r.segments = append(r.segments, segment{journal: j, index: ix})
		}
		if err := j.TailCorrupt(); err != nil {
			r.segments = append(r.segments, segment{journal: j, err: err})
		}
	}

	for _, e := range active.PendingEntries() {
		if e.Seqno >= lo && e.Seqno <= hi {
			r.pending = append(r.pending, e)
		}
	}

	return r, nil
}

// Next returns the next entry in seqno order, or io.EOF once the range is
// exhausted.
func (r *RdJournal) Next() (Entry, error) {
	for {
		if r.curPos < len(r.curBatch) {
			e := r.curBatch[r.curPos]
			r.curPos++
			return e, nil
		}

		if r.segIdx < len(r.segments) {
			seg := r.segments[r.segIdx]
			r.segIdx++
			if seg.err != nil {
				return Entry{}, seg.err
			}
			batch, err := seg.journal.ReadBatchAt(seg.index)
			if err != nil {
				return Entry{}, err
			}
			r.curBatch = batch.ScanRange(r.lo, r.hi)
			r.curPos = 0
			continue
		}

		if !r.pendingServed {
			r.pendingServed = true
			r.curBatch = r.pending
			r.curPos = 0
			continue
		}

		return Entry{}, io.EOF
	}
}
