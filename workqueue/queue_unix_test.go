//go:build unix

package workqueue_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-dispatch/internal/wakeup"
	"github.com/momentics/hioload-dispatch/reactor"
	"github.com/momentics/hioload-dispatch/workqueue"
)

func TestFourProducersOnRealReactor(t *testing.T) {
	for _, kind := range []wakeup.Kind{wakeup.KindPipe, wakeup.KindEventfd} {
		t.Run(string(kind), func(t *testing.T) {
			probe, err := wakeup.New(kind)
			if err != nil {
				t.Skipf("%s unavailable: %v", kind, err)
			}
			probe.Close()
			r, err := reactor.NewReactor(nil)
			require.NoError(t, err)
			defer r.Close()

			q, err := workqueue.New(r, workqueue.WithWakerKind(kind))
			require.NoError(t, err)
			defer q.Close()

			ctx, cancel := context.WithCancel(context.Background())
			loopDone := make(chan error, 1)
			go func() { loopDone <- reactor.Run(ctx, r, 10) }()

			var counter atomic.Int64
			inc := func(_, _ any) { counter.Add(1) }

			var g errgroup.Group
			for range 4 {
				g.Go(func() error {
					for range 100 {
						if err := q.SendErr(inc, nil, nil); err != nil {
							return err
						}
					}
					return nil
				})
			}
			require.NoError(t, g.Wait())

			require.Eventually(t, func() bool { return counter.Load() == 400 }, 5*time.Second, time.Millisecond)
			require.Eventually(t, func() bool { return q.Stats().Queued == 0 }, time.Second, time.Millisecond)

			cancel()
			require.NoError(t, <-loopDone)

			st := q.Stats()
			assert.Equal(t, uint64(400), st.Sends)
			assert.Equal(t, uint64(400), st.Recvs)
			assert.Zero(t, st.SendFailures)
		})
	}
}
