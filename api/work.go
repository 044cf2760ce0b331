// File: api/work.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// WorkFunc is a unit of work dispatched onto the reactor thread. Both
// arguments are opaque to the queue: it never inspects or retains them past
// the call.
type WorkFunc func(arg0, arg1 any)

// Waker is a cross-thread wakeup channel: any goroutine may Notify, and the
// reactor watches Fd for read readiness until every marker is consumed.
type Waker interface {
	// Fd is the receive endpoint registered with the reactor.
	Fd() uintptr

	// Notify writes one marker without blocking. It fails with ErrWouldBlock
	// when the channel buffer is full.
	Notify() error

	// Consume reads exactly one marker. It returns ErrWouldBlock if none is
	// buffered.
	Consume() error

	// Close releases both endpoints.
	Close() error
}

// WakerFactory creates the wakeup channel for a queue.
type WakerFactory func() (Waker, error)
