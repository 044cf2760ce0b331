// control/queue_collector.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus export of work queue counters.

package control

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/hioload-dispatch/workqueue"
)

const metricsNamespace = "hioload_dispatch"

// QueueCollector reads a work queue's Stats on every scrape.
type QueueCollector struct {
	stats func() workqueue.Stats

	sends        *prometheus.Desc
	recvs        *prometheus.Desc
	sendFailures *prometheus.Desc
	panics       *prometheus.Desc
	dropped      *prometheus.Desc
	queued       *prometheus.Desc
	slabInUse    *prometheus.Desc
	slabCapacity *prometheus.Desc
}

// NewQueueCollector builds a collector whose series carry the queue name and
// dispatcher ID as constant labels.
func NewQueueCollector(queue, dispatcherID string, stats func() workqueue.Stats) *QueueCollector {
	labels := prometheus.Labels{"queue": queue, "dispatcher": dispatcherID}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", name), help, nil, labels)
	}
	return &QueueCollector{
		stats:        stats,
		sends:        desc("sends_total", "Work items linked into the queue."),
		recvs:        desc("recvs_total", "Work items run by the reactor thread."),
		sendFailures: desc("send_failures_total", "Sends rejected before linking."),
		panics:       desc("callback_panics_total", "Work callbacks that panicked."),
		dropped:      desc("dropped_total", "Work items discarded without running."),
		queued:       desc("queued", "Work items linked but not yet finished."),
		slabInUse:    desc("slab_in_use", "Live work item slots."),
		slabCapacity: desc("slab_capacity", "Work item slots backed by memory."),
	}
}

func (c *QueueCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.sends, c.recvs, c.sendFailures, c.panics, c.dropped,
		c.queued, c.slabInUse, c.slabCapacity,
	} {
		ch <- d
	}
}

func (c *QueueCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.stats()
	counter := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	gauge := func(d *prometheus.Desc, v int) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v))
	}
	counter(c.sends, st.Sends)
	counter(c.recvs, st.Recvs)
	counter(c.sendFailures, st.SendFailures)
	counter(c.panics, st.Panics)
	counter(c.dropped, st.Dropped)
	gauge(c.queued, st.Queued)
	gauge(c.slabInUse, st.SlabInUse)
	gauge(c.slabCapacity, st.SlabCapacity)
}

var _ prometheus.Collector = (*QueueCollector)(nil)
