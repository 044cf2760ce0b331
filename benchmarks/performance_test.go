// Package benchmarks
// Author: momentics <momentics@gmail.com>
//
// Performance benchmarks for hioload-dispatch components.

package benchmarks

import (
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/hioload-dispatch/collector"
	"github.com/momentics/hioload-dispatch/facade"
	"github.com/momentics/hioload-dispatch/fake"
	"github.com/momentics/hioload-dispatch/pool"
	"github.com/momentics/hioload-dispatch/workqueue"
)

type item struct {
	fn   func()
	a, b any
}

// BenchmarkSlabAllocFree measures slot reuse through the free list.
func BenchmarkSlabAllocFree(b *testing.B) {
	s := pool.NewSlab[item](0)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		idx, _, _ := s.Alloc()
		s.Free(idx)
	}
}

// BenchmarkQueueSendDrain sends batches of 64 and drains each with one pass,
// without any kernel wakeup channel.
func BenchmarkQueueSendDrain(b *testing.B) {
	const batch = 64
	r := fake.NewReactor()
	w := fake.NewWaker(batch)
	q, err := workqueue.New(r, workqueue.WithWaker(w.Factory()))
	if err != nil {
		b.Fatal(err)
	}
	noop := func(_, _ any) {}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q.Send(noop, nil, nil)
		if i%batch == batch-1 {
			_ = r.Poll(0)
			for w.Pending() > 0 {
				_ = w.Consume()
			}
		}
	}
}

// BenchmarkDispatcherParallelSend measures end-to-end throughput of many
// producers against one reactor thread.
func BenchmarkDispatcherParallelSend(b *testing.B) {
	cfg := facade.DefaultConfig()
	cfg.PollTimeout = 10 * time.Millisecond
	d, err := facade.New(cfg, nil)
	if err != nil {
		b.Skip(err)
	}
	if err := d.Start(); err != nil {
		b.Fatal(err)
	}
	defer d.Stop()

	var ran atomic.Int64
	inc := func(_, _ any) { ran.Add(1) }
	var sent atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			for !d.Send(inc, nil, nil) {
				runtime.Gosched()
			}
			sent.Add(1)
		}
	})
	for ran.Load() < sent.Load() {
		runtime.Gosched()
	}
}

// BenchmarkScatter measures a full fan-out and join through the latch.
func BenchmarkScatter(b *testing.B) {
	cfg := facade.DefaultConfig()
	cfg.PollTimeout = 10 * time.Millisecond
	d, err := facade.New(cfg, nil)
	if err != nil {
		b.Skip(err)
	}
	if err := d.Start(); err != nil {
		b.Fatal(err)
	}
	defer d.Stop()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d.Scatter(32, func(int) {})
	}
}

// BenchmarkCollectorDecrement measures uncontended latch traffic.
func BenchmarkCollectorDecrement(b *testing.B) {
	c := collector.New(b.N, nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Decrement()
	}
	c.Wait()
}
