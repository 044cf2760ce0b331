// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Defines the abstract interface for the event-driven reactor that owns the
// dispatch thread. Backends (epoll, poll(2)) live in package reactor.

package api

// FDEventType is a readiness mask reported by a Reactor.
type FDEventType uint32

const (
	EventRead FDEventType = 1 << iota
	EventWrite
	EventError
)

// FDCallback is invoked on the reactor thread when fd becomes ready.
type FDCallback func(fd uintptr, events FDEventType)

// Reactor waits on readiness of registered descriptors and dispatches their
// callbacks from the goroutine that calls Poll.
type Reactor interface {
	// Register adds fd with persistent interest in events. The callback stays
	// armed until Unregister.
	Register(fd uintptr, events FDEventType, cb FDCallback) error

	// Unregister removes fd from the interest set.
	Unregister(fd uintptr) error

	// Poll blocks up to timeoutMs (negative blocks indefinitely) and runs the
	// callbacks of every ready descriptor before returning.
	Poll(timeoutMs int) error

	// Close releases the poller backend.
	Close() error
}
