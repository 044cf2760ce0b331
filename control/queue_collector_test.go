package control_test

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-dispatch/control"
	"github.com/momentics/hioload-dispatch/workqueue"
)

func TestQueueCollectorExportsStats(t *testing.T) {
	st := workqueue.Stats{Name: "main", Queued: 2, Sends: 7, Recvs: 5, SendFailures: 1}
	c := control.NewQueueCollector("main", "d-1", func() workqueue.Stats { return st })

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))
	assert.Equal(t, 8, testutil.CollectAndCount(c))

	const want = `
# HELP hioload_dispatch_queued Work items linked but not yet finished.
# TYPE hioload_dispatch_queued gauge
hioload_dispatch_queued{dispatcher="d-1",queue="main"} 2
# HELP hioload_dispatch_sends_total Work items linked into the queue.
# TYPE hioload_dispatch_sends_total counter
hioload_dispatch_sends_total{dispatcher="d-1",queue="main"} 7
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(want),
		"hioload_dispatch_queued", "hioload_dispatch_sends_total"))

	st.Sends = 9
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP hioload_dispatch_sends_total Work items linked into the queue.
# TYPE hioload_dispatch_sends_total counter
hioload_dispatch_sends_total{dispatcher="d-1",queue="main"} 9
`), "hioload_dispatch_sends_total"), "each scrape reads fresh stats")
}
