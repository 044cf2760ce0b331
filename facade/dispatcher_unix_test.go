//go:build unix

package facade_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-dispatch/facade"
	"github.com/momentics/hioload-dispatch/workqueue"
)

func startDispatcher(t *testing.T, mutate func(*facade.Config)) *facade.Dispatcher {
	t.Helper()
	cfg := facade.DefaultConfig()
	cfg.PollTimeout = 10 * time.Millisecond
	if mutate != nil {
		mutate(cfg)
	}
	d, err := facade.New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, d.Start())
	t.Cleanup(func() { _ = d.Stop() })
	return d
}

// holdReactor parks the reactor thread inside a callback until the returned
// release func is called. The callback's slab slot stays in use meanwhile.
func holdReactor(t *testing.T, d *facade.Dispatcher) (release func()) {
	t.Helper()
	running := make(chan struct{})
	gate := make(chan struct{})
	require.True(t, d.Send(func(_, _ any) {
		close(running)
		<-gate
	}, nil, nil))
	<-running
	var once atomic.Bool
	release = func() {
		if once.CompareAndSwap(false, true) {
			close(gate)
		}
	}
	t.Cleanup(release)
	return release
}

func TestDispatcherFourProducers(t *testing.T) {
	d := startDispatcher(t, nil)
	assert.True(t, d.Running())

	var counter atomic.Int64
	inc := func(_, _ any) { counter.Add(1) }

	var g errgroup.Group
	for range 4 {
		g.Go(func() error {
			for range 100 {
				if err := d.SendErr(inc, nil, nil); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Eventually(t, func() bool { return counter.Load() == 400 }, 5*time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return d.Stats().Queued == 0 }, time.Second, time.Millisecond)

	stats := d.Control().Stats()
	assert.Equal(t, d.ID(), stats["debug.dispatcher.id"])
	assert.Equal(t, true, stats["debug.dispatcher.running"])
	qs, ok := stats["debug.queue.stats"].(workqueue.Stats)
	require.True(t, ok)
	assert.Equal(t, uint64(400), qs.Recvs)

	require.NoError(t, d.Stop())
	assert.False(t, d.Running())
	assert.NoError(t, d.Stop())
}

func TestDispatcherEventfdWaker(t *testing.T) {
	cfg := facade.DefaultConfig()
	cfg.Waker = "eventfd"
	d, err := facade.New(cfg, nil)
	if err != nil {
		t.Skipf("eventfd unavailable: %v", err)
	}
	require.NoError(t, d.Start())
	defer d.Stop()

	done := make(chan struct{})
	require.True(t, d.Send(func(_, _ any) { close(done) }, nil, nil))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("work never ran")
	}
}

func TestScatterWaitsForEveryUnit(t *testing.T) {
	d := startDispatcher(t, nil)

	var ran atomic.Int64
	var seen [64]atomic.Bool
	n := d.Scatter(len(seen), func(i int) {
		seen[i].Store(true)
		ran.Add(1)
	})
	assert.Equal(t, len(seen), n)
	assert.Equal(t, int64(len(seen)), ran.Load(), "Scatter returned before every unit ran")
	for i := range seen {
		assert.True(t, seen[i].Load(), "unit %d", i)
	}
}

func TestScatterCountsOnlyQueuedUnits(t *testing.T) {
	d := startDispatcher(t, func(c *facade.Config) { c.SlabLimit = 4 })
	release := holdReactor(t, d)

	// Release the reactor once every send has been attempted.
	go func() {
		for d.Stats().SendFailures < 7 {
			time.Sleep(time.Millisecond)
		}
		release()
	}()

	var ran atomic.Int64
	n := d.Scatter(10, func(int) { ran.Add(1) })
	assert.Equal(t, 3, n)
	assert.Equal(t, int64(3), ran.Load())
}

func TestScatterSurvivesPanickingUnit(t *testing.T) {
	d := startDispatcher(t, nil)
	n := d.Scatter(3, func(i int) {
		if i == 1 {
			panic("unit failed")
		}
	})
	assert.Equal(t, 3, n)
	// The panic counter lands when the drain pass finishes, after the latch.
	assert.Eventually(t, func() bool { return d.Stats().Panics == 1 }, time.Second, time.Millisecond)
}

func TestSendRetryWaitsForRoom(t *testing.T) {
	d := startDispatcher(t, func(c *facade.Config) {
		c.SlabLimit = 1
		c.Retry.MaxElapsed = 5 * time.Second
	})
	release := holdReactor(t, d)

	go func() {
		for d.Stats().SendFailures < 2 {
			time.Sleep(time.Millisecond)
		}
		release()
	}()

	done := make(chan struct{})
	require.NoError(t, d.SendRetry(context.Background(), func(_, _ any) { close(done) }, nil, nil))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("retried work never ran")
	}
}

func TestSendRetryGivesUp(t *testing.T) {
	d := startDispatcher(t, func(c *facade.Config) {
		c.SlabLimit = 1
		c.Retry.MaxElapsed = 30 * time.Millisecond
	})
	holdReactor(t, d)

	err := d.SendRetry(context.Background(), func(_, _ any) {}, nil, nil)
	assert.ErrorIs(t, err, workqueue.ErrAllocFailed)
}

func TestSendRetryHonoursContext(t *testing.T) {
	d := startDispatcher(t, func(c *facade.Config) { c.SlabLimit = 1 })
	holdReactor(t, d)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.SendRetry(ctx, func(_, _ any) {}, nil, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSendRetryStopsOnPermanentError(t *testing.T) {
	cfg := facade.DefaultConfig()
	d, err := facade.New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, d.Stop())

	start := time.Now()
	err = d.SendRetry(context.Background(), func(_, _ any) {}, nil, nil)
	assert.ErrorIs(t, err, workqueue.ErrClosed)
	assert.Less(t, time.Since(start), cfg.Retry.MaxElapsed)
}

func TestMetricsCollector(t *testing.T) {
	d := startDispatcher(t, nil)
	assert.Equal(t, 8, testutil.CollectAndCount(d.MetricsCollector()))
	assert.Equal(t, 8, testutil.CollectAndCount(d.MetricsCollector(), "hioload_dispatch_sends_total",
		"hioload_dispatch_recvs_total", "hioload_dispatch_send_failures_total",
		"hioload_dispatch_callback_panics_total", "hioload_dispatch_dropped_total",
		"hioload_dispatch_queued", "hioload_dispatch_slab_in_use", "hioload_dispatch_slab_capacity"))
}

func TestControlStatsCarryQueueMetrics(t *testing.T) {
	d := startDispatcher(t, nil)
	require.Equal(t, 5, d.Scatter(5, func(int) {}))

	// recvs lands when the drain pass finishes, just after the latch opens.
	require.Eventually(t, func() bool {
		return d.Control().Stats()["queue.recvs"] == uint64(5)
	}, time.Second, time.Millisecond)

	stats := d.Control().Stats()
	assert.Equal(t, uint64(5), stats["queue.sends"])
	assert.Equal(t, 0, stats["queue.queued"])
	assert.Equal(t, uint64(0), stats["queue.send_failures"])
	assert.Contains(t, stats, "queue.slab_capacity")
}
