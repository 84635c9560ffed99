package wal

// ============================================================================
// Writer Coordinator
// Purpose: Serialize every write to every journal through one goroutine,
// batching concurrent AddOp requests into a single flush per drain cycle
//
// Main Loop (spec.md §4.6.2):
//   1. Block for one request
//   2. Drain every further immediately-available request (non-blocking)
//   3. Take the active journal's write lock
//   4. Assign seqnos and AddEntry each request in the drained batch
//   5. Flush exactly once for the whole batch (one encode, one fsync)
//   6. Reply to every request with its seqno
//   7. Rotate if the active journal now exceeds the size limit
//
// The defining optimization: N concurrent callers pay for one write+fsync,
// not N.
// ============================================================================

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// addOpRequest is the single message kind the coordinator's request channel
// carries: "append this op, tell me the seqno it landed at".
type addOpRequest struct {
	op    []byte
	reply chan addOpResponse
}

type addOpResponse struct {
	seqno uint64
	err   error
}

// writerCoordinator owns the single goroutine allowed to mutate the active
// journal. Every AddOp call is a request sent over reqCh; the coordinator
// blocks for the first request in a cycle, then drains every request that
// is immediately available without blocking, assigns seqnos, appends all of
// them to the active journal, and performs exactly one flush (one CBOR
// encode, one optional fsync) for the whole drained batch before replying
// and checking whether the journal needs to rotate.
type writerCoordinator struct {
	name         string
	dir          string
	journalLimit int64
	fsync        bool

	seqno uint64 // next seqno to assign; accessed only via atomic ops

	reqCh chan addOpRequest
	done  chan struct{}
	wg    sync.WaitGroup

	mu       sync.RWMutex
	active   *Journal
	archives []*Journal

	metrics *Collector
}

// startCoordinator spawns the writer goroutine and returns a handle to it.
// nextSeqno is the seqno the very next AddOp should receive.
func startCoordinator(name, dir string, journalLimit int64, fsync bool, active *Journal, archives []*Journal, nextSeqno uint64, mc *Collector) *writerCoordinator {
	c := &writerCoordinator{
		name:         name,
		dir:          dir,
		journalLimit: journalLimit,
		fsync:        fsync,
		seqno:        nextSeqno,
		reqCh:        make(chan addOpRequest, 256),
		done:         make(chan struct{}),
		active:       active,
		archives:     archives,
		metrics:      mc,
	}
	c.wg.Add(1)
	go c.run()
	return c
}

// addOp submits op to the coordinator and blocks for its assigned seqno.
func (c *writerCoordinator) addOp(op []byte) (uint64, error) {
	reply := make(chan addOpResponse, 1)
	select {
	case c.reqCh <- addOpRequest{op: op, reply: reply}:
	case <-c.done:
		return 0, fmt.Errorf("wal: add_op after close: %w", ErrIPC)
	}
	select {
	case res := <-reply:
		return res.seqno, res.err
	case <-c.done:
		return 0, fmt.Errorf("wal: coordinator shut down before reply: %w", ErrIPC)
	}
}

// run is the coordinator's main loop: block for one request, drain the
// rest, batch-append, single flush, reply, maybe rotate.
func (c *writerCoordinator) run() {
	defer c.wg.Done()

	for {
		select {
		case req := <-c.reqCh:
			batch := []addOpRequest{req}
		drain:
			for {
				select {
				case r := <-c.reqCh:
					batch = append(batch, r)
				default:
					break drain
				}
			}
			c.processBatch(batch)
		case <-c.done:
			return
		}
	}
}

func (c *writerCoordinator) processBatch(batch []addOpRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	type pending struct {
		seqno uint64
		reply chan addOpResponse
	}
	assigned := make([]pending, 0, len(batch))

	for _, r := range batch {
		seqno := atomic.AddUint64(&c.seqno, 1) - 1
		if err := c.active.AddEntry(NewEntry(seqno, r.op)); err != nil {
			r.reply <- addOpResponse{err: fmt.Errorf("wal: add entry: %w", err)}
			continue
		}
		assigned = append(assigned, pending{seqno: seqno, reply: r.reply})
	}

	if len(assigned) == 0 {
		return
	}

	ix, err := c.active.Flush(c.fsync)
	if err != nil {
		err = fmt.Errorf("wal: flush: %w", err)
		for _, p := range assigned {
			p.reply <- addOpResponse{err: err}
		}
		return
	}

	if c.metrics != nil {
		c.metrics.RecordBatch(len(assigned), c.fsync)
		if ix != nil {
			c.metrics.RecordBytesWritten(ix.Length)
		}
	}

	for _, p := range assigned {
		p.reply <- addOpResponse{seqno: p.seqno}
	}

	size, err := c.active.FileSize()
	if err != nil {
		slog.Error("wal: stat active journal failed", "path", c.active.Path(), "error", err)
		return
	}
	if size > c.journalLimit {
		if err := c.rotate(); err != nil {
			slog.Error("wal: rotation failed", "error", err)
		}
	}
}

// rotate seals the active journal and starts a fresh one inheriting the
// sealed journal's state snapshot, exactly as it stood right after the
// flush that triggered rotation. Called with c.mu held.
func (c *writerCoordinator) rotate() error {
	state := c.active.ToState().Clone()
	num := c.active.ToJournalNumber() + 1

	next, err := StartJournal(c.name, c.dir, num, state)
	if err != nil {
		return err
	}

	sealed := c.active
	if err := sealed.IntoArchive(); err != nil {
		_ = next.Purge()
		return err
	}

	c.archives = append(c.archives, sealed)
	c.active = next
	if c.metrics != nil {
		c.metrics.RecordRotation()
	}
	slog.Debug("wal: rotated journal", "name", c.name, "sealed", sealed.ToJournalNumber(), "active", next.ToJournalNumber())
	return nil
}

// newRange builds an RdJournal over [lo, hi] while holding the coordinator's
// read lock, so the index lists it copies out of the active journal and
// every archive can't be mutated underneath it by a concurrent flush or
// rotation.
func (c *writerCoordinator) newRange(lo, hi Bound) (*RdJournal, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return newRdJournal(c.active, c.archives, lo, hi)
}

// close shuts the coordinator down: no further requests are accepted, the
// goroutine finishes the batch it is processing and exits, and the journal
// set is left as-is (not purged). Requests still queued in reqCh are not
// processed; their callers receive ErrIPC. Returns the last seqno
// assigned, i.e. the next seqno minus one.
func (c *writerCoordinator) close() (uint64, error) {
	close(c.done)
	c.wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active.file != nil {
		_ = c.active.file.Close()
		c.active.file = nil
	}
	return atomic.LoadUint64(&c.seqno) - 1, nil
}

// purge shuts the coordinator down and removes every journal file it owns.
func (c *writerCoordinator) purge() (uint64, error) {
	lastSeqno, err := c.close()
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.active.Purge(); err != nil {
		return lastSeqno, err
	}
	for _, j := range c.archives {
		if err := j.Purge(); err != nil {
			return lastSeqno, err
		}
	}
	return lastSeqno, nil
}
