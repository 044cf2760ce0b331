// File: workqueue/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package workqueue

import (
	"go.uber.org/zap"

	"github.com/momentics/hioload-dispatch/api"
	"github.com/momentics/hioload-dispatch/internal/wakeup"
)

type options struct {
	name      string
	wakers    api.WakerFactory
	slabLimit int
	logger    *zap.Logger
}

func defaultOptions() options {
	return options{
		name:   "default",
		wakers: wakeup.Factory(wakeup.KindPipe),
		logger: zap.NewNop(),
	}
}

// Option tunes a WorkQueue at Init time.
type Option func(*options)

// WithWaker supplies the factory used to create the wakeup channel.
func WithWaker(f api.WakerFactory) Option {
	return func(o *options) {
		if f != nil {
			o.wakers = f
		}
	}
}

// WithWakerKind selects one of the built-in wakeup channels.
func WithWakerKind(k wakeup.Kind) Option {
	return func(o *options) { o.wakers = wakeup.Factory(k) }
}

// WithSlabLimit caps the number of queued plus in-flight items. Sends past the
// cap fail with ErrAllocFailed. Zero means unbounded.
func WithSlabLimit(n int) Option {
	return func(o *options) { o.slabLimit = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithName labels the queue in logs and stats.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}
