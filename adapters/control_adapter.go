// Package adapters
// Author: momentics <momentics@gmail.com>
//
// Control adapter implementing api.Control using control package primitives.

package adapters

import (
	"maps"
	"sync"

	"github.com/momentics/hioload-dispatch/api"
	"github.com/momentics/hioload-dispatch/control"
)

type ControlAdapter struct {
	config  *control.ConfigStore
	metrics *control.MetricsRegistry
	debug   *control.DebugProbes

	mu sync.Mutex
	// Refreshed into metrics on every Stats call, keyed by prefix.
	//
	// GUARDED_BY(mu)
	sources map[string]func() map[string]any
}

// NewControlAdapter seeds the config store with initial and registers the
// platform probes.
func NewControlAdapter(initial map[string]any) *ControlAdapter {
	adapter := &ControlAdapter{
		config:  control.NewConfigStore(initial),
		metrics: control.NewMetricsRegistry(),
		debug:   control.NewDebugProbes(),
		sources: make(map[string]func() map[string]any),
	}
	control.RegisterPlatformProbes(adapter.debug)
	return adapter
}

func (c *ControlAdapter) GetConfig() map[string]any {
	return c.config.GetSnapshot()
}

func (c *ControlAdapter) SetConfig(cfg map[string]any) error {
	if cfg == nil {
		return api.ErrInvalidArgument
	}
	c.config.SetConfig(cfg)
	return nil
}

// Stats merges metrics with probe output; probe keys get a "debug." prefix.
func (c *ControlAdapter) Stats() map[string]any {
	c.mu.Lock()
	sources := maps.Clone(c.sources)
	c.mu.Unlock()
	for prefix, fn := range sources {
		c.PublishMetrics(prefix, fn())
	}

	combined := c.metrics.GetSnapshot()
	for k, v := range c.debug.DumpState() {
		combined["debug."+k] = v
	}
	return combined
}

func (c *ControlAdapter) OnReload(fn func()) {
	c.config.OnReload(fn)
}

func (c *ControlAdapter) SetMetric(key string, value any) {
	c.metrics.Set(key, value)
}

// PublishMetrics stores a batch of values under prefix.
func (c *ControlAdapter) PublishMetrics(prefix string, values map[string]any) {
	c.metrics.SetAll(prefix, maps.Clone(values))
}

// RegisterMetricsSource has fn's values published under prefix whenever
// Stats is read. A nil fn removes the source; values already published stay.
func (c *ControlAdapter) RegisterMetricsSource(prefix string, fn func() map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fn == nil {
		delete(c.sources, prefix)
		return
	}
	c.sources[prefix] = fn
}

func (c *ControlAdapter) RegisterDebugProbe(name string, fn func() any) {
	c.debug.RegisterProbe(name, fn)
}

var _ api.Control = (*ControlAdapter)(nil)
