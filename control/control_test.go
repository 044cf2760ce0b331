package control_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-dispatch/control"
)

func TestConfigStoreMergesAndNotifies(t *testing.T) {
	cs := control.NewConfigStore(map[string]any{"name": "a"})

	var calls int
	cs.OnReload(func() {
		calls++
		v, ok := cs.Get("poll_timeout")
		require.True(t, ok, "listener must see the merged value")
		assert.Equal(t, "100ms", v)
	})
	cs.SetConfig(map[string]any{"poll_timeout": "100ms"})

	assert.Equal(t, 1, calls)
	assert.Equal(t, map[string]any{"name": "a", "poll_timeout": "100ms"}, cs.GetSnapshot())
}

func TestConfigSnapshotIsACopy(t *testing.T) {
	cs := control.NewConfigStore(nil)
	snap := cs.GetSnapshot()
	snap["x"] = 1
	_, ok := cs.Get("x")
	assert.False(t, ok)
}

func TestDebugProbes(t *testing.T) {
	dp := control.NewDebugProbes()
	dp.RegisterProbe("answer", func() any { return 42 })
	dp.RegisterProbe("broken", func() any { panic("no state") })
	dp.RegisterProbe("nested", func() any {
		dp.RegisterProbe("late", func() any { return true })
		return "ok"
	})

	state := dp.DumpState()
	assert.Equal(t, 42, state["answer"])
	assert.Equal(t, "probe panicked: no state", state["broken"])
	assert.Equal(t, "ok", state["nested"])

	dp.RegisterProbe("answer", nil)
	state = dp.DumpState()
	assert.NotContains(t, state, "answer")
	assert.Equal(t, true, state["late"])
}

func TestPlatformProbes(t *testing.T) {
	dp := control.NewDebugProbes()
	control.RegisterPlatformProbes(dp)
	state := dp.DumpState()
	assert.Positive(t, state["platform.cpus"])
	assert.Positive(t, state["platform.gomaxprocs"])
}

func TestMetricsRegistry(t *testing.T) {
	mr := control.NewMetricsRegistry()
	assert.True(t, mr.Updated().IsZero())

	mr.Set("uptime", 3)
	mr.SetAll("queue.", map[string]any{"sends": uint64(5)})
	assert.Equal(t, map[string]any{"uptime": 3, "queue.sends": uint64(5)}, mr.GetSnapshot())
	assert.False(t, mr.Updated().IsZero())
}
