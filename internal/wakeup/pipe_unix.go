//go:build unix

// File: internal/wakeup/pipe_unix.go
// Author: momentics <momentics@gmail.com>
//
// Self-pipe wakeup. Both ends are non-blocking, so Notify fails once the
// kernel pipe buffer is full instead of stalling the producer.

package wakeup

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-dispatch/api"
)

type pipeWaker struct {
	r, w int
}

func newPipe() (api.Waker, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return nil, fmt.Errorf("wakeup: pipe: %w", err)
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fds[0])
			unix.Close(fds[1])
			return nil, fmt.Errorf("wakeup: set nonblock: %w", err)
		}
	}
	return &pipeWaker{r: fds[0], w: fds[1]}, nil
}

func (p *pipeWaker) Fd() uintptr { return uintptr(p.r) }

func (p *pipeWaker) Notify() error {
	var marker [1]byte
	for {
		n, err := unix.Write(p.w, marker[:])
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return api.ErrWouldBlock
		case err != nil:
			return fmt.Errorf("wakeup: pipe write: %w", err)
		case n != 1:
			return io.ErrShortWrite
		}
		return nil
	}
}

func (p *pipeWaker) Consume() error {
	var buf [1]byte
	for {
		n, err := unix.Read(p.r, buf[:])
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return api.ErrWouldBlock
		case err != nil:
			return fmt.Errorf("wakeup: pipe read: %w", err)
		case n == 0:
			return io.EOF
		}
		return nil
	}
}

func (p *pipeWaker) Close() error {
	return errors.Join(unix.Close(p.r), unix.Close(p.w))
}
