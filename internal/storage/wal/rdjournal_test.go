package wal

import (
	"math"
	"testing"
)

func TestNormalizeRangeUnbounded(t *testing.T) {
	lo, hi, empty, err := normalizeRange(Unbounded(), Unbounded())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if empty {
		t.Fatalf("expected non-empty range")
	}
	if lo != 0 || hi != math.MaxUint64 {
		t.Errorf("got [%d,%d], want [0,MaxUint64]", lo, hi)
	}
}

func TestNormalizeRangeIncluded(t *testing.T) {
	lo, hi, empty, err := normalizeRange(Included(5), Included(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if empty {
		t.Fatalf("expected non-empty range")
	}
	if lo != 5 || hi != 10 {
		t.Errorf("got [%d,%d], want [5,10]", lo, hi)
	}
}

func TestNormalizeRangeExcluded(t *testing.T) {
	lo, hi, empty, err := normalizeRange(Excluded(5), Excluded(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if empty {
		t.Fatalf("expected non-empty range")
	}
	if lo != 6 || hi != 9 {
		t.Errorf("got [%d,%d], want [6,9]", lo, hi)
	}
}

func TestNormalizeRangeEmptyWhenCrossed(t *testing.T) {
	_, _, empty, err := normalizeRange(Included(10), Included(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !empty {
		t.Errorf("expected empty range when lo > hi")
	}
}

func TestNormalizeRangeSaturatingEdges(t *testing.T) {
	_, _, empty, err := normalizeRange(Excluded(math.MaxUint64), Unbounded())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !empty {
		t.Errorf("expected empty range from Excluded(MaxUint64) lower bound")
	}

	_, _, empty, err = normalizeRange(Unbounded(), Excluded(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !empty {
		t.Errorf("expected empty range from Excluded(0) upper bound")
	}
}
