// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-dispatch/api"
)

var nextFd atomic.Uintptr

func init() { nextFd.Store(1 << 16) }

// Waker is a bounded, channel-backed api.Waker with failure injection.
type Waker struct {
	fd      uintptr
	markers chan struct{}

	mu        sync.Mutex
	notifyErr error
	closed    bool
}

// NewWaker returns a waker that buffers up to capacity markers.
func NewWaker(capacity int) *Waker {
	return &Waker{
		fd:      nextFd.Add(1),
		markers: make(chan struct{}, capacity),
	}
}

func (w *Waker) Fd() uintptr { return w.fd }

func (w *Waker) Notify() error {
	w.mu.Lock()
	err := w.notifyErr
	w.mu.Unlock()
	if err != nil {
		return err
	}
	select {
	case w.markers <- struct{}{}:
		return nil
	default:
		return api.ErrWouldBlock
	}
}

func (w *Waker) Consume() error {
	select {
	case <-w.markers:
		return nil
	default:
		return api.ErrWouldBlock
	}
}

// FailNotify makes every Notify return err until cleared with nil.
func (w *Waker) FailNotify(err error) {
	w.mu.Lock()
	w.notifyErr = err
	w.mu.Unlock()
}

// Pending returns the number of unconsumed markers.
func (w *Waker) Pending() int { return len(w.markers) }

// Closed reports whether Close was called.
func (w *Waker) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *Waker) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return nil
}

// Factory always hands out w.
func (w *Waker) Factory() api.WakerFactory {
	return func() (api.Waker, error) { return w, nil }
}

// FailingWakerFactory simulates a wakeup channel that cannot be created.
func FailingWakerFactory(err error) api.WakerFactory {
	return func() (api.Waker, error) { return nil, err }
}

var _ api.Waker = (*Waker)(nil)
