// File: workqueue/queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package workqueue

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/eapache/queue"
	"github.com/jacobsa/syncutil"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/momentics/hioload-dispatch/api"
	"github.com/momentics/hioload-dispatch/pool"
)

var (
	ErrAlreadyInitialized = errors.New("workqueue: already initialized")
	ErrAllocFailed        = errors.New("workqueue: work item allocation failed")
	ErrClosed             = errors.New("workqueue: closed")
)

const (
	stateNew int32 = iota
	stateInit
	stateReady
	stateFailed
	stateClosed
)

type workItem struct {
	fn   api.WorkFunc
	arg0 any
	arg1 any

	// Slab slot holding this item.
	idx int32
}

// WorkQueue hands callbacks from any goroutine to the reactor thread that
// polls its wakeup channel. The zero value is ready for Init.
type WorkQueue struct {
	/////////////////////////
	// Constant data
	/////////////////////////

	name    string
	logger  *zap.Logger
	reactor api.Reactor
	waker   api.Waker

	state atomic.Int32

	/////////////////////////
	// Mutable state
	/////////////////////////

	// Guards everything below except released. Never held while a callback
	// runs.
	mu syncutil.InvariantMutex

	// Items linked by Send and not yet detached, in link order.
	//
	// INVARIANT: Each element is of type *workItem
	//
	// GUARDED_BY(mu)
	pending *queue.Queue

	// Ring handed back by the previous drain pass, swapped in for pending at
	// the next detach.
	//
	// GUARDED_BY(mu)
	spare *queue.Queue

	// Backing storage for every linked item.
	//
	// INVARIANT: items.Len() == queued
	//
	// GUARDED_BY(mu)
	items *pool.Slab[workItem]

	// Items detached by a drain pass whose slots are not yet released.
	//
	// GUARDED_BY(mu)
	inFlight int

	// INVARIANT: queued == pending.Length() + inFlight
	// INVARIANT: queued == sends - recvs - dropped
	//
	// GUARDED_BY(mu)
	queued int

	// GUARDED_BY(mu)
	sends, recvs, sendFailures, panics, dropped uint64

	// GUARDED_BY(mu)
	closed bool

	// Slot indices finished during the current drain pass. Owned by the
	// reactor thread.
	released []int32
}

// New allocates a WorkQueue and initialises it against r.
func New(r api.Reactor, opts ...Option) (*WorkQueue, error) {
	q := &WorkQueue{}
	if err := q.Init(r, opts...); err != nil {
		return nil, err
	}
	return q, nil
}

// Init creates the wakeup channel and registers its receive end with r for
// read readiness, with the drain pass as callback. It must be called exactly
// once before Send; a queue whose Init failed must not be used.
func (q *WorkQueue) Init(r api.Reactor, opts ...Option) error {
	if r == nil {
		panic(fmt.Errorf("%w: workqueue init with nil reactor", api.ErrContractViolation))
	}
	if !q.state.CompareAndSwap(stateNew, stateInit) {
		return ErrAlreadyInitialized
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	q.name = o.name
	q.logger = o.logger.Named("workqueue").With(zap.String("queue", o.name))

	w, err := o.wakers()
	if err != nil {
		q.state.Store(stateFailed)
		return fmt.Errorf("workqueue: create wakeup channel: %w", err)
	}

	q.pending = queue.New()
	q.items = pool.NewSlab[workItem](o.slabLimit)
	// The mutex checks invariants on construction when checking is enabled.
	q.mu = syncutil.NewInvariantMutex(q.checkInvariants)
	q.waker = w
	q.reactor = r

	if err := r.Register(w.Fd(), api.EventRead, q.drain); err != nil {
		_ = w.Close()
		q.state.Store(stateFailed)
		return fmt.Errorf("workqueue: register wakeup channel: %w", err)
	}

	q.state.Store(stateReady)
	q.logger.Debug("work queue ready",
		zap.Uintptr("fd", w.Fd()),
		zap.Int("slab_limit", o.slabLimit))
	return nil
}

// Send queues fn(arg0, arg1) for execution on the reactor thread. It reports
// true only when the item was linked and the reactor was signalled; on false
// nothing was queued.
//
// LOCKS_EXCLUDED(q.mu)
func (q *WorkQueue) Send(fn api.WorkFunc, arg0, arg1 any) bool {
	return q.SendErr(fn, arg0, arg1) == nil
}

// SendErr is Send with the failure cause: ErrAllocFailed, ErrClosed, or the
// wakeup channel's notify error (api.ErrWouldBlock when its buffer is full).
//
// LOCKS_EXCLUDED(q.mu)
func (q *WorkQueue) SendErr(fn api.WorkFunc, arg0, arg1 any) error {
	if fn == nil {
		panic(fmt.Errorf("%w: nil work callback", api.ErrContractViolation))
	}
	switch q.state.Load() {
	case stateReady:
	case stateClosed:
		return ErrClosed
	default:
		panic(fmt.Errorf("%w: send on uninitialized work queue", api.ErrContractViolation))
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}

	idx, it, ok := q.items.Alloc()
	if !ok {
		q.sendFailures++
		return ErrAllocFailed
	}

	// The marker goes out before the item is linked so that a failed notify
	// leaves nothing behind. The drain pass takes mu before consuming, so it
	// cannot observe the marker without the item.
	if err := q.waker.Notify(); err != nil {
		q.items.Free(idx)
		q.sendFailures++
		return fmt.Errorf("workqueue: notify: %w", err)
	}

	it.fn, it.arg0, it.arg1, it.idx = fn, arg0, arg1, idx
	q.pending.Add(it)
	q.queued++
	q.sends++
	return nil
}

// Wake signals the reactor thread without queuing work. The resulting drain
// pass finds nothing new unless Send raced with it.
//
// LOCKS_EXCLUDED(q.mu)
func (q *WorkQueue) Wake() error {
	if q.state.Load() != stateReady {
		return ErrClosed
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	return q.waker.Notify()
}

// Stats returns a snapshot of the monitoring counters.
//
// LOCKS_EXCLUDED(q.mu)
func (q *WorkQueue) Stats() Stats {
	if q.state.Load() < stateReady || q.items == nil {
		return Stats{Name: q.name}
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	sl := q.items.Stats()
	return Stats{
		Name:         q.name,
		Queued:       q.queued,
		Sends:        q.sends,
		Recvs:        q.recvs,
		SendFailures: q.sendFailures,
		Panics:       q.panics,
		Dropped:      q.dropped,
		SlabInUse:    sl.InUse,
		SlabCapacity: sl.Capacity,
	}
}

// Name returns the label given with WithName.
func (q *WorkQueue) Name() string { return q.name }

// Close unregisters the wakeup channel from the reactor and closes it.
// Items still pending are dropped without running. Closing twice is a no-op.
//
// LOCKS_EXCLUDED(q.mu)
func (q *WorkQueue) Close() error {
	if !q.state.CompareAndSwap(stateReady, stateClosed) {
		return nil
	}

	q.mu.Lock()
	q.closed = true
	n := q.pending.Length()
	for q.pending.Length() > 0 {
		it := q.pending.Remove().(*workItem)
		q.items.Free(it.idx)
	}
	q.queued -= n
	q.dropped += uint64(n)
	q.mu.Unlock()

	if n > 0 {
		q.logger.Warn("dropped pending work on close", zap.Int("items", n))
	}
	return multierr.Combine(
		q.reactor.Unregister(q.waker.Fd()),
		q.waker.Close(),
	)
}

// drain is the reactor callback for the wakeup channel. It consumes one
// marker, detaches every pending item and runs them in link order with mu
// released.
//
// LOCKS_EXCLUDED(q.mu)
func (q *WorkQueue) drain(_ uintptr, _ api.FDEventType) {
	q.mu.Lock()
	if err := q.waker.Consume(); err != nil && !errors.Is(err, api.ErrWouldBlock) {
		q.logger.Warn("consume wakeup marker", zap.Error(err))
	}
	n := q.pending.Length()
	if n == 0 {
		q.mu.Unlock()
		return
	}
	batch := q.pending
	if q.spare != nil {
		q.pending, q.spare = q.spare, nil
	} else {
		q.pending = queue.New()
	}
	q.inFlight += n
	q.mu.Unlock()

	var ran, panicked int
	released := q.released[:0]
	defer func() {
		q.finishDrain(batch, released, n, ran, panicked)
	}()

	for batch.Length() > 0 {
		it := batch.Remove().(*workItem)
		released = append(released, it.idx)
		ran++
		if !q.run(it) {
			panicked++
		}
		it.fn, it.arg0, it.arg1 = nil, nil, nil
	}
}

// finishDrain releases the slots of a drain pass. Items left in batch were
// never run because a callback aborted the pass; they are dropped.
//
// LOCKS_EXCLUDED(q.mu)
func (q *WorkQueue) finishDrain(batch *queue.Queue, released []int32, n, ran, panicked int) {
	q.mu.Lock()
	for _, idx := range released {
		q.items.Free(idx)
	}
	lost := 0
	for batch.Length() > 0 {
		it := batch.Remove().(*workItem)
		q.items.Free(it.idx)
		lost++
	}
	q.inFlight -= n
	q.queued -= n
	q.recvs += uint64(ran)
	q.panics += uint64(panicked)
	q.dropped += uint64(lost)
	q.spare = batch
	q.mu.Unlock()

	q.released = released[:0]
	if lost > 0 {
		q.logger.Error("drain pass aborted", zap.Int("ran", ran), zap.Int("dropped", lost))
	}
}

// run invokes one callback. A panic is logged and swallowed unless it is a
// contract violation, which keeps unwinding.
func (q *WorkQueue) run(it *workItem) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if api.IsContractViolation(r) {
				panic(r)
			}
			ok = false
			q.logger.Error("work callback panicked",
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()
	it.fn(it.arg0, it.arg1)
	return true
}

// LOCKS_REQUIRED(q.mu)
func (q *WorkQueue) checkInvariants() {
	if q.queued < 0 || q.inFlight < 0 {
		panic(fmt.Sprintf("negative counters: queued=%d inFlight=%d", q.queued, q.inFlight))
	}
	if got := q.pending.Length() + q.inFlight; got != q.queued {
		panic(fmt.Sprintf("queued=%d, pending+inFlight=%d", q.queued, got))
	}
	if got := q.items.Len(); got != q.queued {
		panic(fmt.Sprintf("queued=%d, live slab slots=%d", q.queued, got))
	}
	if want := q.sends - q.recvs - q.dropped; uint64(q.queued) != want {
		panic(fmt.Sprintf("queued=%d, sends-recvs-dropped=%d", q.queued, want))
	}
}
