//go:build linux

// File: internal/wakeup/eventfd_linux.go
// Author: momentics <momentics@gmail.com>
//
// eventfd wakeup in semaphore mode: each Notify adds one to the counter and
// each Consume takes exactly one back off, matching the self-pipe contract
// with a single descriptor.

package wakeup

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-dispatch/api"
)

type eventfdWaker struct {
	fd int
}

func newEventfd() (api.Waker, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC|unix.EFD_SEMAPHORE)
	if err != nil {
		return nil, fmt.Errorf("wakeup: eventfd: %w", err)
	}
	return &eventfdWaker{fd: fd}, nil
}

func (e *eventfdWaker) Fd() uintptr { return uintptr(e.fd) }

func (e *eventfdWaker) Notify() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	for {
		_, err := unix.Write(e.fd, buf[:])
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return api.ErrWouldBlock
		case err != nil:
			return fmt.Errorf("wakeup: eventfd write: %w", err)
		}
		return nil
	}
}

func (e *eventfdWaker) Consume() error {
	var buf [8]byte
	for {
		_, err := unix.Read(e.fd, buf[:])
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return api.ErrWouldBlock
		case err != nil:
			return fmt.Errorf("wakeup: eventfd read: %w", err)
		}
		return nil
	}
}

func (e *eventfdWaker) Close() error { return unix.Close(e.fd) }
