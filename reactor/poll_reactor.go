//go:build unix && !linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor - poll(2) implementation for non-Linux unix platforms.

package reactor

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-dispatch/api"
)

type pollEntry struct {
	events int16
	cb     api.FDCallback
}

// pollReactor rebuilds its pollfd set from the registration table on every
// Poll. Suitable for the handful of descriptors a dispatch thread watches.
type pollReactor struct {
	mu      sync.Mutex
	entries map[uintptr]pollEntry
	fds     []unix.PollFd
	closed  atomic.Bool
	logger  *zap.Logger
}

func newPlatformReactor(logger *zap.Logger) (api.Reactor, error) {
	return &pollReactor{
		entries: make(map[uintptr]pollEntry),
		logger:  logger,
	}, nil
}

func (r *pollReactor) Register(fd uintptr, events api.FDEventType, cb api.FDCallback) error {
	if r.closed.Load() {
		return api.ErrReactorClosed
	}
	if cb == nil {
		return fmt.Errorf("poll register fd %d: nil callback: %w", fd, api.ErrInvalidArgument)
	}
	var pev int16
	if events&api.EventRead != 0 {
		pev |= unix.POLLIN
	}
	if events&api.EventWrite != 0 {
		pev |= unix.POLLOUT
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[fd]; ok {
		return fmt.Errorf("poll register fd %d: %w", fd, api.ErrAlreadyExists)
	}
	r.entries[fd] = pollEntry{events: pev, cb: cb}
	return nil
}

func (r *pollReactor) Unregister(fd uintptr) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[fd]; !ok {
		return fmt.Errorf("poll unregister fd %d: %w", fd, api.ErrNotFound)
	}
	delete(r.entries, fd)
	return nil
}

func (r *pollReactor) Poll(timeoutMs int) error {
	if r.closed.Load() {
		return api.ErrReactorClosed
	}
	if timeoutMs < 0 {
		timeoutMs = -1
	}

	r.mu.Lock()
	r.fds = r.fds[:0]
	for fd, e := range r.entries {
		r.fds = append(r.fds, unix.PollFd{Fd: int32(fd), Events: e.events})
	}
	r.mu.Unlock()

	n, err := unix.Poll(r.fds, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return fmt.Errorf("poll: %w", err)
	}
	if n == 0 {
		return nil
	}

	for _, pfd := range r.fds {
		if pfd.Revents == 0 {
			continue
		}
		fd := uintptr(pfd.Fd)
		r.mu.Lock()
		e, ok := r.entries[fd]
		r.mu.Unlock()
		if !ok {
			continue
		}
		var eventType api.FDEventType
		if pfd.Revents&unix.POLLIN != 0 {
			eventType |= api.EventRead
		}
		if pfd.Revents&unix.POLLOUT != 0 {
			eventType |= api.EventWrite
		}
		if pfd.Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			eventType |= api.EventError
		}
		invoke(r.logger, e.cb, fd, eventType)
	}
	return nil
}

func (r *pollReactor) Close() error {
	r.closed.Store(true)
	return nil
}
