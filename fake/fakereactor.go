// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"sync"

	"github.com/momentics/hioload-dispatch/api"
)

// Reactor is a manual api.Reactor for tests. Poll treats every registered
// descriptor as readable and runs each callback once on the calling
// goroutine, which lets a test drive drain passes deterministically.
type Reactor struct {
	mu        sync.Mutex
	callbacks map[uintptr]api.FDCallback
	order     []uintptr
	closed    bool

	// RegisterErr, when set, is returned by Register.
	RegisterErr error
	Polls       int
}

func NewReactor() *Reactor {
	return &Reactor{callbacks: make(map[uintptr]api.FDCallback)}
}

func (r *Reactor) Register(fd uintptr, _ api.FDEventType, cb api.FDCallback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.RegisterErr != nil {
		return r.RegisterErr
	}
	if r.closed {
		return api.ErrReactorClosed
	}
	if _, ok := r.callbacks[fd]; ok {
		return api.ErrAlreadyExists
	}
	r.callbacks[fd] = cb
	r.order = append(r.order, fd)
	return nil
}

func (r *Reactor) Unregister(fd uintptr) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.callbacks[fd]; !ok {
		return api.ErrNotFound
	}
	delete(r.callbacks, fd)
	for i, f := range r.order {
		if f == fd {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *Reactor) Poll(int) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return api.ErrReactorClosed
	}
	r.Polls++
	fds := append([]uintptr(nil), r.order...)
	cbs := make([]api.FDCallback, len(fds))
	for i, fd := range fds {
		cbs[i] = r.callbacks[fd]
	}
	r.mu.Unlock()

	for i, cb := range cbs {
		cb(fds[i], api.EventRead)
	}
	return nil
}

// Registered reports whether fd currently has a callback.
func (r *Reactor) Registered(fd uintptr) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.callbacks[fd]
	return ok
}

func (r *Reactor) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

var _ api.Reactor = (*Reactor)(nil)
