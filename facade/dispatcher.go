// File: facade/dispatcher.go
// Unified facade over a reactor thread and its work queue.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A Dispatcher owns one reactor, runs its event loop on a dedicated OS thread
// and exposes the thread's WorkQueue to the rest of the process. Work sent
// through it runs inline on the reactor thread in FIFO order.

package facade

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/momentics/hioload-dispatch/adapters"
	"github.com/momentics/hioload-dispatch/affinity"
	"github.com/momentics/hioload-dispatch/api"
	"github.com/momentics/hioload-dispatch/collector"
	"github.com/momentics/hioload-dispatch/control"
	"github.com/momentics/hioload-dispatch/internal/wakeup"
	"github.com/momentics/hioload-dispatch/reactor"
	"github.com/momentics/hioload-dispatch/workqueue"
)

// ErrStopped is returned by Start after Stop.
var ErrStopped = errors.New("facade: dispatcher stopped")

type dispatcherOptions struct {
	reactor api.Reactor
	wakers  api.WakerFactory
}

// Option overrides a collaborator of the Dispatcher.
type Option func(*dispatcherOptions)

// WithReactor makes the Dispatcher drive r instead of a platform reactor. The
// Dispatcher takes ownership and closes r on Stop.
func WithReactor(r api.Reactor) Option {
	return func(o *dispatcherOptions) { o.reactor = r }
}

// WithWakerFactory replaces the wakeup channel selected by Config.Waker.
func WithWakerFactory(f api.WakerFactory) Option {
	return func(o *dispatcherOptions) { o.wakers = f }
}

// Dispatcher is the main facade type.
type Dispatcher struct {
	cfg     Config
	id      uuid.UUID
	logger  *zap.Logger
	reactor api.Reactor
	queue   *workqueue.WorkQueue
	control *adapters.ControlAdapter
	metrics *control.QueueCollector

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}

	// Written by the loop goroutine before done is closed.
	loopErr error
}

var _ api.GracefulShutdown = (*Dispatcher)(nil)

// New builds the reactor and work queue described by cfg. A nil cfg means
// DefaultConfig; a nil logger discards output.
func New(cfg *Config, logger *zap.Logger, opts ...Option) (*Dispatcher, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var o dispatcherOptions
	for _, opt := range opts {
		opt(&o)
	}

	d := &Dispatcher{
		cfg:  *cfg,
		id:   uuid.New(),
		done: make(chan struct{}),
	}
	d.logger = logger.Named("dispatcher").With(
		zap.String("name", cfg.Name),
		zap.Stringer("id", d.id))

	r := o.reactor
	if r == nil {
		var err error
		if r, err = reactor.NewReactor(logger); err != nil {
			return nil, fmt.Errorf("facade: reactor init: %w", err)
		}
	}
	d.reactor = r

	wakers := o.wakers
	if wakers == nil {
		kind, _ := wakeup.ParseKind(cfg.Waker)
		wakers = wakeup.Factory(kind)
	}
	q, err := workqueue.New(r,
		workqueue.WithName(cfg.Name),
		workqueue.WithWaker(wakers),
		workqueue.WithSlabLimit(cfg.SlabLimit),
		workqueue.WithLogger(logger))
	if err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("facade: work queue init: %w", err)
	}
	d.queue = q

	d.control = adapters.NewControlAdapter(cfg.toMap())
	d.control.RegisterDebugProbe("dispatcher.id", func() any { return d.id.String() })
	d.control.RegisterDebugProbe("dispatcher.running", func() any { return d.Running() })
	d.control.RegisterDebugProbe("queue.stats", func() any { return d.queue.Stats() })
	d.control.RegisterMetricsSource("queue.", func() map[string]any {
		return queueMetrics(d.queue.Stats())
	})
	d.metrics = control.NewQueueCollector(cfg.Name, d.id.String(), d.queue.Stats)

	d.logger.Debug("dispatcher created", zap.String("waker", cfg.Waker))
	return d, nil
}

// Start launches the reactor loop on its own locked OS thread, pinned to
// Config.CPU when set. Subsequent calls have no effect.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrStopped
	}
	if d.started {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.started = true
	go d.loop(ctx)
	d.logger.Info("dispatcher started")
	return nil
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer close(d.done)

	runtime.LockOSThread()
	pinned := false
	defer func() {
		// A pinned thread stays locked and is destroyed with the goroutine.
		if !pinned {
			runtime.UnlockOSThread()
		}
	}()

	if d.cfg.CPU >= 0 {
		if err := affinity.SetAffinity(d.cfg.CPU); err != nil {
			d.logger.Warn("cpu pinning failed", zap.Int("cpu", d.cfg.CPU), zap.Error(err))
		} else {
			pinned = true
		}
	}

	timeoutMs := int(d.cfg.PollTimeout / time.Millisecond)
	if timeoutMs < 1 {
		timeoutMs = 1
	}
	if err := reactor.Run(ctx, d.reactor, timeoutMs); err != nil {
		d.logger.Error("reactor loop failed", zap.Error(err))
		d.loopErr = err
	}
}

// Stop ends the reactor loop, then closes the work queue and the reactor.
// Work still pending is dropped. Stop must not be called from a work
// callback, since it waits for the reactor thread to exit.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	started, cancel := d.started, d.cancel
	d.mu.Unlock()

	var loopErr error
	if started {
		cancel()
		// Wake the reactor so cancellation is seen before the poll timeout.
		_ = d.queue.Wake()
		<-d.done
		loopErr = d.loopErr
	}

	st := d.queue.Stats()
	err := multierr.Combine(loopErr, d.queue.Close(), d.reactor.Close())
	d.logger.Info("dispatcher stopped",
		zap.Uint64("sends", st.Sends),
		zap.Uint64("recvs", st.Recvs),
		zap.Error(err))
	return err
}

// Shutdown implements api.GracefulShutdown by delegating to Stop.
func (d *Dispatcher) Shutdown() error {
	return d.Stop()
}

// Running reports whether the reactor loop is active.
func (d *Dispatcher) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started && !d.stopped
}

// Send queues fn(arg0, arg1) for the reactor thread. False means the work was
// not queued.
func (d *Dispatcher) Send(fn api.WorkFunc, arg0, arg1 any) bool {
	return d.queue.Send(fn, arg0, arg1)
}

// SendErr is Send with the failure cause.
func (d *Dispatcher) SendErr(fn api.WorkFunc, arg0, arg1 any) error {
	return d.queue.SendErr(fn, arg0, arg1)
}

// SendRetry retries Send with exponential backoff while the failure is
// transient: a full wakeup channel or an exhausted item slab. A failed Send
// leaves nothing queued, so a retry never duplicates work.
func (d *Dispatcher) SendRetry(ctx context.Context, fn api.WorkFunc, arg0, arg1 any) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.cfg.Retry.InitialInterval
	b.MaxInterval = d.cfg.Retry.MaxInterval

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := d.queue.SendErr(fn, arg0, arg1)
		if err != nil && !isTransient(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(d.cfg.Retry.MaxElapsed),
		backoff.WithNotify(func(err error, wait time.Duration) {
			d.logger.Debug("send retry", zap.Error(err), zap.Duration("wait", wait))
		}))
	if err != nil {
		return fmt.Errorf("facade: send failed after %d attempts: %w", attempts, err)
	}
	return nil
}

func isTransient(err error) bool {
	return errors.Is(err, api.ErrWouldBlock) || errors.Is(err, workqueue.ErrAllocFailed)
}

// Scatter sends n units of fn to the reactor thread and blocks until every
// unit that was queued has run. It returns how many ran. Units that fail to
// queue are skipped. Scatter must not be called from a work callback.
//
// Nothing drains the queue unless the reactor loop runs, so Scatter on a
// dispatcher that is not started, or already stopped, returns 0 without
// sending.
func (d *Dispatcher) Scatter(n int, fn func(i int)) int {
	if !d.Running() {
		d.logger.Warn("scatter on idle dispatcher", zap.Int("units", n))
		return 0
	}
	// The total is unknown until every send has been attempted, so the latch
	// starts at an in-flight sentinel and is settled afterwards.
	c := collector.New(-1, n)
	unit := func(a0, a1 any) {
		latch := a0.(*collector.Collector)
		defer latch.Decrement()
		fn(a1.(int))
	}

	sent := 0
	for i := range n {
		if d.queue.Send(unit, c, i) {
			sent++
		}
	}
	if sent < n {
		d.logger.Warn("scatter: some units not queued", zap.Int("units", n), zap.Int("queued", sent))
	}
	c.Settle(sent)
	c.Wait()
	return sent
}

// Stats returns the work queue counters.
func (d *Dispatcher) Stats() workqueue.Stats {
	return d.queue.Stats()
}

func queueMetrics(st workqueue.Stats) map[string]any {
	return map[string]any{
		"queued":        st.Queued,
		"sends":         st.Sends,
		"recvs":         st.Recvs,
		"send_failures": st.SendFailures,
		"panics":        st.Panics,
		"dropped":       st.Dropped,
		"slab_in_use":   st.SlabInUse,
		"slab_capacity": st.SlabCapacity,
	}
}

// ID returns the instance identifier used in logs and metric labels.
func (d *Dispatcher) ID() string {
	return d.id.String()
}

// Config returns a copy of the effective configuration.
func (d *Dispatcher) Config() Config {
	return d.cfg
}

// Control returns the runtime control surface.
func (d *Dispatcher) Control() api.Control {
	return d.control
}

// MetricsCollector exports the work queue counters to Prometheus.
func (d *Dispatcher) MetricsCollector() prometheus.Collector {
	return d.metrics
}
