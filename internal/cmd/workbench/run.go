// File: internal/cmd/workbench/run.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package workbench

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/momentics/hioload-dispatch/api"
	"github.com/momentics/hioload-dispatch/collector"
)

type runOptions struct {
	producers int
	sends     int
	rate      float64
	retry     bool
}

func newRunCommand(a *app) *cobra.Command {
	var o runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fan producers out against one dispatcher and wait for every unit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if o.producers < 1 || o.sends < 0 || o.rate < 0 {
				return fmt.Errorf("producers must be >= 1, sends and rate >= 0: %w", api.ErrInvalidArgument)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rep, err := a.run(ctx, o)
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), a.v.GetString("output"), rep)
		},
	}
	f := cmd.Flags()
	f.IntVar(&o.producers, "producers", 4, "concurrent producer goroutines")
	f.IntVar(&o.sends, "sends", 100, "sends per producer")
	f.Float64Var(&o.rate, "rate", 0, "sends per second per producer, 0 for unlimited")
	f.BoolVar(&o.retry, "retry", false, "retry failed sends with backoff")
	return cmd
}

func (a *app) run(ctx context.Context, o runOptions) (*Report, error) {
	d, stop, err := a.startDispatcher()
	if err != nil {
		return nil, err
	}

	// Completions may land before the producers know how many sends
	// succeeded, so the latch starts at an in-flight sentinel.
	latch := collector.New(-1, nil)
	done := func(a0, _ any) { a0.(*collector.Collector).Decrement() }

	var queued, failed atomic.Int64
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for p := range o.producers {
		g.Go(func() error {
			var limiter *rate.Limiter
			if o.rate > 0 {
				limiter = rate.NewLimiter(rate.Limit(o.rate), 1)
			}
			for i := range o.sends {
				if limiter != nil {
					if err := limiter.Wait(gctx); err != nil {
						return err
					}
				}
				var err error
				if o.retry {
					err = d.SendRetry(gctx, done, latch, i)
				} else {
					err = d.SendErr(done, latch, i)
				}
				if err != nil {
					failed.Add(1)
					a.logger.Debug("send failed", zap.Int("producer", p), zap.Error(err))
					continue
				}
				queued.Add(1)
			}
			return nil
		})
	}
	prodErr := g.Wait()

	latch.Settle(int(queued.Load()))
	latch.Wait()
	elapsed := time.Since(start)

	// Stopping joins the reactor thread, so the counters below are final.
	if err := stop(); err != nil {
		a.logger.Warn("dispatcher shutdown", zap.Error(err))
	}
	if prodErr != nil {
		return nil, fmt.Errorf("producers: %w", prodErr)
	}

	rep := &Report{
		Config:    d.Config(),
		ID:        d.ID(),
		Producers: o.producers,
		Attempted: o.producers * o.sends,
		Queued:    int(queued.Load()),
		Failed:    int(failed.Load()),
		Elapsed:   elapsed,
		Stats:     d.Stats(),
	}
	if s := elapsed.Seconds(); s > 0 {
		rep.Throughput = float64(rep.Queued) / s
	}
	a.logger.Info("run complete",
		zap.Int("queued", rep.Queued),
		zap.Int("failed", rep.Failed),
		zap.Duration("elapsed", elapsed))
	return rep, nil
}

func newScatterCommand(a *app) *cobra.Command {
	var units int
	cmd := &cobra.Command{
		Use:   "scatter",
		Short: "Scatter units onto the reactor thread and wait for all of them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if units < 0 {
				return fmt.Errorf("units %d: %w", units, api.ErrInvalidArgument)
			}
			d, stop, err := a.startDispatcher()
			if err != nil {
				return err
			}
			var sum atomic.Int64
			start := time.Now()
			ran := d.Scatter(units, func(i int) { sum.Add(int64(i)) })
			elapsed := time.Since(start)
			if err := stop(); err != nil {
				return err
			}
			st := d.Stats()
			return writeReport(cmd.OutOrStdout(), a.v.GetString("output"), &Report{
				Config:    d.Config(),
				ID:        d.ID(),
				Producers: 1,
				Attempted: units,
				Queued:    ran,
				Failed:    units - ran,
				Elapsed:   elapsed,
				Checksum:  sum.Load(),
				Stats:     st,
			})
		},
	}
	cmd.Flags().IntVar(&units, "units", 1000, "units to scatter")
	return cmd
}
