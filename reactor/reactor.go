// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral constructor and loop driver for api.Reactor backends.

package reactor

import (
	"context"

	"go.uber.org/zap"

	"github.com/momentics/hioload-dispatch/api"
)

// NewReactor constructs the platform reactor. A nil logger discards output.
func NewReactor(logger *zap.Logger) (api.Reactor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return newPlatformReactor(logger.Named("reactor"))
}

// Run polls r until ctx is done or Poll fails. The context is checked between
// polls, so timeoutMs bounds how long cancellation can go unnoticed when
// nothing wakes the reactor.
func Run(ctx context.Context, r api.Reactor, timeoutMs int) error {
	for ctx.Err() == nil {
		if err := r.Poll(timeoutMs); err != nil {
			return err
		}
	}
	return nil
}

// invoke runs one readiness callback. Ordinary panics are logged so the loop
// survives; contract violations propagate.
func invoke(logger *zap.Logger, cb api.FDCallback, fd uintptr, ev api.FDEventType) {
	defer func() {
		if p := recover(); p != nil {
			if api.IsContractViolation(p) {
				panic(p)
			}
			logger.Error("callback panicked", zap.Uintptr("fd", fd), zap.Any("panic", p))
		}
	}()
	cb(fd, ev)
}
