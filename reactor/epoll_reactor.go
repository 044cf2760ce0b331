//go:build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor - Linux epoll implementation.

package reactor

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-dispatch/api"
)

const maxEvents = 128

// epollReactor implements api.Reactor using level-triggered epoll.
type epollReactor struct {
	epfd      int
	callbacks sync.Map // map[uintptr]api.FDCallback
	events    []unix.EpollEvent
	closed    atomic.Bool
	logger    *zap.Logger
}

func newPlatformReactor(logger *zap.Logger) (api.Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	return &epollReactor{
		epfd:   epfd,
		events: make([]unix.EpollEvent, maxEvents),
		logger: logger,
	}, nil
}

// Register adds a file descriptor to the epoll watch list.
func (r *epollReactor) Register(fd uintptr, events api.FDEventType, cb api.FDCallback) error {
	if r.closed.Load() {
		return api.ErrReactorClosed
	}
	if cb == nil {
		return fmt.Errorf("epoll register fd %d: nil callback: %w", fd, api.ErrInvalidArgument)
	}
	var ev unix.EpollEvent
	if events&api.EventRead != 0 {
		ev.Events |= unix.EPOLLIN
	}
	if events&api.EventWrite != 0 {
		ev.Events |= unix.EPOLLOUT
	}
	ev.Fd = int32(fd)

	// Store first: the descriptor may already be ready when EpollCtl returns.
	if _, loaded := r.callbacks.LoadOrStore(fd, cb); loaded {
		return fmt.Errorf("epoll register fd %d: %w", fd, api.ErrAlreadyExists)
	}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, int(fd), &ev); err != nil {
		r.callbacks.Delete(fd)
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	r.logger.Debug("registered", zap.Uintptr("fd", fd))
	return nil
}

// Unregister removes a file descriptor from the epoll watch list.
func (r *epollReactor) Unregister(fd uintptr) error {
	if _, ok := r.callbacks.LoadAndDelete(fd); !ok {
		return fmt.Errorf("epoll unregister fd %d: %w", fd, api.ErrNotFound)
	}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, int(fd), nil); err != nil {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

// Poll blocks and waits for events on registered file descriptors.
// timeoutMs < 0 means block infinitely.
func (r *epollReactor) Poll(timeoutMs int) error {
	if r.closed.Load() {
		return api.ErrReactorClosed
	}
	if timeoutMs < 0 {
		timeoutMs = -1
	}
	n, err := unix.EpollWait(r.epfd, r.events, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return fmt.Errorf("epoll wait: %w", err)
	}

	for i := 0; i < n; i++ {
		ev := r.events[i]
		fd := uintptr(ev.Fd)

		val, ok := r.callbacks.Load(fd)
		if !ok {
			continue
		}

		var eventType api.FDEventType
		if ev.Events&unix.EPOLLIN != 0 {
			eventType |= api.EventRead
		}
		if ev.Events&unix.EPOLLOUT != 0 {
			eventType |= api.EventWrite
		}
		if ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			eventType |= api.EventError
		}
		invoke(r.logger, val.(api.FDCallback), fd, eventType)
	}
	return nil
}

// Close releases the epoll file descriptor.
func (r *epollReactor) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	return unix.Close(r.epfd)
}
