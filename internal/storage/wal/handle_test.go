package wal

import (
	"fmt"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateAddOpAndIter(t *testing.T) {
	dir := t.TempDir()

	w, err := Create(Config{Name: "t1", Dir: dir, Fsync: true}, NoState{}, nil)
	require.NoError(t, err)

	var seqnos []uint64
	for i := 0; i < 10; i++ {
		seqno, err := w.AddOp([]byte(fmt.Sprintf("op-%d", i)))
		require.NoError(t, err)
		seqnos = append(seqnos, seqno)
	}
	require.Equal(t, []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, seqnos)

	it, err := w.Iter()
	require.NoError(t, err)

	var got []uint64
	for {
		e, err := it.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, e.Seqno)
	}
	require.Equal(t, seqnos, got)

	_, ok, err := w.Close()
	require.NoError(t, err)
	require.True(t, ok)
}

func TestConcurrentWriters(t *testing.T) {
	dir := t.TempDir()

	w, err := Create(Config{Name: "concurrent", Dir: dir, Fsync: false}, NoState{}, nil)
	require.NoError(t, err)

	const goroutines = 8
	const perGoroutine = 200

	var wg sync.WaitGroup
	seqnoCh := make(chan uint64, goroutines*perGoroutine)

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				seqno, err := w.AddOp([]byte(fmt.Sprintf("g%d-%d", g, i)))
				require.NoError(t, err)
				seqnoCh <- seqno
			}
		}(g)
	}
	wg.Wait()
	close(seqnoCh)

	seen := make(map[uint64]bool)
	for seqno := range seqnoCh {
		require.False(t, seen[seqno], "seqno %d assigned more than once", seqno)
		seen[seqno] = true
	}
	require.Len(t, seen, goroutines*perGoroutine)

	_, ok, err := w.Close()
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCloneSharesCoordinatorAndRefcounts(t *testing.T) {
	dir := t.TempDir()

	w, err := Create(Config{Name: "clone", Dir: dir}, NoState{}, nil)
	require.NoError(t, err)

	clone := w.Clone()

	_, ok, err := w.Close()
	require.NoError(t, err)
	require.False(t, ok, "closing one of two clones should not be the last owner")

	seqno, err := clone.AddOp([]byte("still alive"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), seqno)

	_, ok, err = clone.Close()
	require.NoError(t, err)
	require.True(t, ok, "closing the last clone should report last owner")
}

func TestAddOpAfterCloseFails(t *testing.T) {
	dir := t.TempDir()

	w, err := Create(Config{Name: "afterclose", Dir: dir}, NoState{}, nil)
	require.NoError(t, err)

	_, ok, err := w.Close()
	require.NoError(t, err)
	require.True(t, ok)

	_, err = w.AddOp([]byte("too late"))
	require.Error(t, err)
	require.ErrorIs(t, err, ErrIPC)
}

func TestLoadRecoversAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	w, err := Create(Config{Name: "reopen", Dir: dir, Fsync: true}, NoState{}, nil)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := w.AddOp([]byte(fmt.Sprintf("op-%d", i)))
		require.NoError(t, err)
	}
	_, ok, err := w.Close()
	require.NoError(t, err)
	require.True(t, ok)

	reloaded, err := Load(Config{Name: "reopen", Dir: dir, Fsync: true}, DecodeNoState, nil)
	require.NoError(t, err)

	seqno, err := reloaded.AddOp([]byte("op-5"))
	require.NoError(t, err)
	require.Equal(t, uint64(6), seqno)

	it, err := reloaded.Iter()
	require.NoError(t, err)
	var count int
	for {
		_, err := it.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		count++
	}
	require.Equal(t, 6, count)

	_, ok, err = reloaded.Close()
	require.NoError(t, err)
	require.True(t, ok)
}

// TestLoadRecoversFromCorruptTail covers spec scenario 5: truncating the
// last byte of the active journal still loads the valid prefix, surfaces
// exactly one error for the lost trailing batch, and resumes writing at a
// seqno that leaves a gap rather than risk reusing the lost batch's seqno.
func TestLoadRecoversFromCorruptTail(t *testing.T) {
	dir := t.TempDir()

	w, err := Create(Config{Name: "corrupt", Dir: dir, Fsync: true}, NoState{}, nil)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		_, err := w.AddOp([]byte(fmt.Sprintf("op-%d", i)))
		require.NoError(t, err)
	}
	_, ok, err := w.Close()
	require.NoError(t, err)
	require.True(t, ok)

	path := JournalPath(dir, "corrupt", 0)
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-1))

	reloaded, err := Load(Config{Name: "corrupt", Dir: dir, Fsync: true}, DecodeNoState, nil)
	require.NoError(t, err, "load should succeed from the recoverable prefix")

	it, err := reloaded.Iter()
	require.NoError(t, err)

	var prefix []uint64
	for {
		e, err := it.Next()
		if err != nil {
			require.NotEqual(t, io.EOF, err, "expected a corruption error before EOF")
			break
		}
		prefix = append(prefix, e.Seqno)
	}
	require.Equal(t, []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9}, prefix)

	_, err = it.Next()
	require.ErrorIs(t, err, io.EOF, "iteration should end after the one corruption error")

	seqno, err := reloaded.AddOp([]byte("op-10"))
	require.NoError(t, err)
	require.GreaterOrEqual(t, seqno, uint64(11))

	path1 := JournalPath(dir, "corrupt", 1)
	_, err = os.Stat(path1)
	require.NoError(t, err, "resumed writes should land in a fresh journal file")

	_, ok, err = reloaded.Close()
	require.NoError(t, err)
	require.True(t, ok)
}

// TestCreateTwiceIsIdempotent covers spec scenario 6: creating a WAL twice
// with the same name leaves exactly one empty journal file behind, with no
// residue from the first instance.
func TestCreateTwiceIsIdempotent(t *testing.T) {
	dir := t.TempDir()

	w1, err := Create(Config{Name: "t6", Dir: dir}, NoState{}, nil)
	require.NoError(t, err)
	_, ok, err := w1.Close()
	require.NoError(t, err)
	require.True(t, ok)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "t6-journal-000.dat", entries[0].Name())

	w2, err := Create(Config{Name: "t6", Dir: dir}, NoState{}, nil)
	require.NoError(t, err)

	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "a second create should leave exactly one journal file")
	require.Equal(t, "t6-journal-000.dat", entries[0].Name())

	info, err := os.Stat(JournalPath(dir, "t6", 0))
	require.NoError(t, err)
	require.Zero(t, info.Size(), "a freshly created journal with no ops has zero batches")

	seqno, err := w2.AddOp([]byte("first op after recreate"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), seqno, "create always restarts seqnos from 1")

	_, ok, err = w2.Close()
	require.NoError(t, err)
	require.True(t, ok)
}

// TestLoadRejectsOverlappingArchives covers spec.md §3's WalSet invariant
// and §9 Open Question 1: two on-disk journals whose seqno ranges overlap
// are corruption evidence, not a valid WalSet. Load keeps the
// lower-numbered journal and skips the later, overlapping one with a
// logged warning rather than aborting.
func TestLoadRejectsOverlappingArchives(t *testing.T) {
	dir := t.TempDir()

	j0, err := StartJournal("ovl", dir, 0, NoState{})
	require.NoError(t, err)
	require.NoError(t, j0.AddEntry(NewEntry(1, []byte("a"))))
	require.NoError(t, j0.AddEntry(NewEntry(2, []byte("b"))))
	_, err = j0.Flush(true)
	require.NoError(t, err)
	require.NoError(t, j0.IntoArchive())

	j1, err := StartJournal("ovl", dir, 1, NoState{})
	require.NoError(t, err)
	require.NoError(t, j1.AddEntry(NewEntry(2, []byte("overlap-b"))))
	require.NoError(t, j1.AddEntry(NewEntry(3, []byte("c"))))
	_, err = j1.Flush(true)
	require.NoError(t, err)
	require.NoError(t, j1.IntoArchive())

	w, err := Load(Config{Name: "ovl", Dir: dir, Fsync: true}, DecodeNoState, nil)
	require.NoError(t, err)

	it, err := w.Iter()
	require.NoError(t, err)
	var got []uint64
	for {
		e, err := it.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, e.Seqno)
	}
	require.Equal(t, []uint64{1, 2}, got, "the overlapping later journal should be skipped entirely")

	seqno, err := w.AddOp([]byte("next"))
	require.NoError(t, err)
	require.Equal(t, uint64(3), seqno, "resumption should continue from the kept journal, not the rejected one")

	_, ok, err := w.Close()
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPurgeRemovesJournalFiles(t *testing.T) {
	dir := t.TempDir()

	w, err := Create(Config{Name: "purged", Dir: dir}, NoState{}, nil)
	require.NoError(t, err)
	_, err = w.AddOp([]byte("op"))
	require.NoError(t, err)

	_, ok, err := w.Purge()
	require.NoError(t, err)
	require.True(t, ok)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}
