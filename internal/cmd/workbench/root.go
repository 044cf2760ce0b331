// File: internal/cmd/workbench/root.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package workbench implements the workbench CLI: it drives a Dispatcher with
// configurable producer load and reports the resulting queue counters.
package workbench

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/momentics/hioload-dispatch/facade"
)

const envPrefix = "HIOLOAD_DISPATCH"

// app carries state shared by the subcommands.
type app struct {
	v       *viper.Viper
	cfgFile string
	logger  *zap.Logger
	closeFn func()
}

// NewRootCommand builds the workbench command tree.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "workbench",
		Short: "Drive a work dispatcher with synthetic load",
		Long: `workbench starts a reactor thread with a work queue, fans producers out
against it and reports the queue counters once every unit has run.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.closeFn != nil {
				a.closeFn()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "YAML config file")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-file", "", "write JSON logs to this file with rotation")
	pf.String("output", "text", "report format: text or yaml")
	pf.String("metrics-addr", "", "serve Prometheus metrics on this address while running")
	if err := bindDispatcherFlags(a.v, pf); err != nil {
		panic(err)
	}
	for _, name := range []string{"log-level", "log-file", "output", "metrics-addr"} {
		if err := a.v.BindPFlag(strings.ReplaceAll(name, "-", "_"), pf.Lookup(name)); err != nil {
			panic(err)
		}
	}

	root.AddCommand(newRunCommand(a), newScatterCommand(a))
	return root
}

// bindDispatcherFlags exposes facade.Config fields as flags bound to their
// config file keys.
func bindDispatcherFlags(v *viper.Viper, fs *flag.FlagSet) error {
	def := facade.DefaultConfig()
	fs.String("name", def.Name, "dispatcher name")
	fs.String("waker", def.Waker, "wakeup channel: pipe or eventfd")
	fs.Int("slab-limit", def.SlabLimit, "max queued work items, 0 for unbounded")
	fs.Duration("poll-timeout", def.PollTimeout, "reactor poll timeout")
	fs.Int("cpu", def.CPU, "pin the reactor thread to this CPU, -1 to disable")
	fs.Duration("retry-initial", def.Retry.InitialInterval, "first send retry delay")
	fs.Duration("retry-max", def.Retry.MaxInterval, "largest send retry delay")
	fs.Duration("retry-elapsed", def.Retry.MaxElapsed, "give up retrying a send after this long")

	keys := map[string]string{
		"name":          "name",
		"waker":         "waker",
		"slab-limit":    "slab_limit",
		"poll-timeout":  "poll_timeout",
		"cpu":           "cpu",
		"retry-initial": "retry.initial_interval",
		"retry-max":     "retry.max_interval",
		"retry-elapsed": "retry.max_elapsed",
	}
	for flagName, key := range keys {
		if err := v.BindPFlag(key, fs.Lookup(flagName)); err != nil {
			return fmt.Errorf("bind %s: %w", flagName, err)
		}
	}
	return nil
}

func (a *app) setup() error {
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
		a.v.SetConfigType("yaml")
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
	}

	logger, closeFn, err := newLogger(a.v.GetString("log_level"), a.v.GetString("log_file"))
	if err != nil {
		return err
	}
	a.logger, a.closeFn = logger, closeFn
	return nil
}

// dispatcherConfig merges defaults, file, env and flags, in rising priority.
func (a *app) dispatcherConfig() (*facade.Config, error) {
	cfg := facade.DefaultConfig()
	if err := a.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// startDispatcher builds and starts a Dispatcher and, when requested, a
// metrics endpoint for it. The returned stop func tears both down.
func (a *app) startDispatcher() (*facade.Dispatcher, func() error, error) {
	cfg, err := a.dispatcherConfig()
	if err != nil {
		return nil, nil, err
	}
	d, err := facade.New(cfg, a.logger)
	if err != nil {
		return nil, nil, err
	}
	if err := d.Start(); err != nil {
		_ = d.Stop()
		return nil, nil, err
	}

	stopMetrics := func() error { return nil }
	if addr := a.v.GetString("metrics_addr"); addr != "" {
		if stopMetrics, err = a.serveMetrics(addr, d.MetricsCollector()); err != nil {
			_ = d.Stop()
			return nil, nil, err
		}
	}
	return d, func() error {
		return multierr.Combine(stopMetrics(), d.Stop())
	}, nil
}

func (a *app) serveMetrics(addr string, c prometheus.Collector) (func() error, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server", zap.Error(err))
		}
	}()
	a.logger.Info("serving metrics", zap.Stringer("addr", ln.Addr()))

	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}, nil
}
