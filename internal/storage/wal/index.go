package wal

// ============================================================================
// Batch Index
// Responsibility: Locate a flushed Batch within its journal file without
// re-reading the file, and order/overlap-check journals during Load
// ============================================================================

import "fmt"

// Index is a file pointer to one flushed Batch: its byte offset and length
// within a journal file, plus the seqno range it covers. Index values are
// kept in memory for an Archive journal so range queries can seek straight
// to the batch(es) that matter without re-reading the whole file.
type Index struct {
	Fpos       int64
	Length     int64
	FirstSeqno uint64
	LastSeqno  uint64
}

// NewIndex builds an Index for a batch occupying [fpos, fpos+length) in its
// journal file, covering seqnos [first, last]. Enforces first <= last.
func NewIndex(fpos, length int64, first, last uint64) (Index, error) {
	if first > last {
		return Index{}, fmt.Errorf("wal: index with first_seqno %d > last_seqno %d: %w", first, last, ErrFatal)
	}
	return Index{Fpos: fpos, Length: length, FirstSeqno: first, LastSeqno: last}, nil
}

// Overlaps reports whether the two indexes' seqno ranges intersect.
func (ix Index) Overlaps(other Index) bool {
	return ix.FirstSeqno <= other.LastSeqno && other.FirstSeqno <= ix.LastSeqno
}

// Before reports whether ix's range ends strictly before other's begins,
// the ordering batches within a journal are required to maintain.
func (ix Index) Before(other Index) bool {
	return ix.LastSeqno < other.FirstSeqno
}
