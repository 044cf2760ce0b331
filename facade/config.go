// File: facade/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package facade

import (
	"fmt"
	"time"

	"github.com/creasty/defaults"

	"github.com/momentics/hioload-dispatch/api"
	"github.com/momentics/hioload-dispatch/internal/wakeup"
)

// Config holds parameters fixed for the lifetime of a Dispatcher.
type Config struct {
	// Name labels the work queue in logs and metrics.
	Name string `default:"dispatch" mapstructure:"name" yaml:"name"`

	// Waker selects the wakeup channel: "pipe" or "eventfd".
	Waker string `default:"pipe" mapstructure:"waker" yaml:"waker"`

	// SlabLimit caps queued plus in-flight work items. Zero is unbounded.
	SlabLimit int `default:"0" mapstructure:"slab_limit" yaml:"slab_limit"`

	// PollTimeout bounds a single reactor wait, and so how long a stop
	// request can go unnoticed.
	PollTimeout time.Duration `default:"100ms" mapstructure:"poll_timeout" yaml:"poll_timeout"`

	// CPU pins the reactor thread; -1 leaves it unpinned.
	CPU int `default:"-1" mapstructure:"cpu" yaml:"cpu"`

	Retry RetryConfig `mapstructure:"retry" yaml:"retry"`
}

// RetryConfig drives SendRetry's exponential backoff.
type RetryConfig struct {
	InitialInterval time.Duration `default:"1ms" mapstructure:"initial_interval" yaml:"initial_interval"`
	MaxInterval     time.Duration `default:"50ms" mapstructure:"max_interval" yaml:"max_interval"`
	MaxElapsed      time.Duration `default:"1s" mapstructure:"max_elapsed" yaml:"max_elapsed"`
}

// DefaultConfig returns a Config populated from the default tags.
func DefaultConfig() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("facade: default config: %v", err))
	}
	return cfg
}

// Validate checks field ranges and the waker kind.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("facade: empty name: %w", api.ErrInvalidArgument)
	}
	if _, err := wakeup.ParseKind(c.Waker); err != nil {
		return err
	}
	if c.SlabLimit < 0 {
		return fmt.Errorf("facade: slab limit %d: %w", c.SlabLimit, api.ErrInvalidArgument)
	}
	if c.PollTimeout <= 0 {
		return fmt.Errorf("facade: poll timeout %s: %w", c.PollTimeout, api.ErrInvalidArgument)
	}
	if c.CPU < -1 {
		return fmt.Errorf("facade: cpu %d: %w", c.CPU, api.ErrInvalidArgument)
	}
	if c.Retry.InitialInterval <= 0 || c.Retry.MaxInterval < c.Retry.InitialInterval {
		return fmt.Errorf("facade: retry intervals %s..%s: %w",
			c.Retry.InitialInterval, c.Retry.MaxInterval, api.ErrInvalidArgument)
	}
	if c.Retry.MaxElapsed <= 0 {
		return fmt.Errorf("facade: retry max elapsed %s: %w", c.Retry.MaxElapsed, api.ErrInvalidArgument)
	}
	return nil
}

// toMap flattens the config for the control store.
func (c *Config) toMap() map[string]any {
	return map[string]any{
		"name":                   c.Name,
		"waker":                  c.Waker,
		"slab_limit":             c.SlabLimit,
		"poll_timeout":           c.PollTimeout.String(),
		"cpu":                    c.CPU,
		"retry.initial_interval": c.Retry.InitialInterval.String(),
		"retry.max_interval":     c.Retry.MaxInterval.String(),
		"retry.max_elapsed":      c.Retry.MaxElapsed.String(),
	}
}
