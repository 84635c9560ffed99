package wal

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJournalFlushAndLoadArchiveRoundTrip(t *testing.T) {
	dir := t.TempDir()

	j, err := StartJournal("round", dir, 0, NoState{})
	require.NoError(t, err)

	require.NoError(t, j.AddEntry(NewEntry(1, []byte("a"))))
	require.NoError(t, j.AddEntry(NewEntry(2, []byte("b"))))
	_, err = j.Flush(true)
	require.NoError(t, err)

	require.NoError(t, j.AddEntry(NewEntry(3, []byte("c"))))
	_, err = j.Flush(true)
	require.NoError(t, err)

	path := j.Path()
	require.NoError(t, j.IntoArchive())

	archived, err := LoadArchive("round", path, DecodeNoState)
	require.NoError(t, err)
	require.Equal(t, 2, archived.LenBatches())
	require.Equal(t, uint64(3), archived.ToLastSeqno())
}

func TestJournalIntoArchiveRejectsUnflushedEntries(t *testing.T) {
	dir := t.TempDir()

	j, err := StartJournal("pending", dir, 0, NoState{})
	require.NoError(t, err)

	require.NoError(t, j.AddEntry(NewEntry(1, []byte("a"))))
	err = j.IntoArchive()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrFatal)
}

func TestLoadArchiveRejectsEmptyFile(t *testing.T) {
	dir := t.TempDir()

	j, err := StartJournal("empty", dir, 0, NoState{})
	require.NoError(t, err)
	path := j.Path()
	require.NoError(t, j.IntoArchive())

	_, err = LoadArchive("empty", path, DecodeNoState)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrCorrupt)
}

// TestReadBatchAtRejectsLengthMismatch covers spec.md §4.2's second Corrupt
// trigger for Batch::read: decoding succeeds but consumes a different byte
// count than the Index promised. It appends trailing bytes after a valid
// batch and hands ReadBatchAt an Index whose Length covers the trailer too,
// so the decoder stops short of the promised length.
func TestReadBatchAtRejectsLengthMismatch(t *testing.T) {
	dir := t.TempDir()

	j, err := StartJournal("mismatch", dir, 0, NoState{})
	require.NoError(t, err)
	require.NoError(t, j.AddEntry(NewEntry(1, []byte("a"))))
	ix, err := j.Flush(true)
	require.NoError(t, err)
	require.NotNil(t, ix)

	f, err := os.OpenFile(j.Path(), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte("trailing-garbage"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	bad := *ix
	bad.Length += int64(len("trailing-garbage"))

	_, err = j.ReadBatchAt(bad)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrCorrupt)
}
