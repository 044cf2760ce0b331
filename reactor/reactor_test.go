//go:build unix

package reactor_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-dispatch/api"
	"github.com/momentics/hioload-dispatch/internal/wakeup"
	"github.com/momentics/hioload-dispatch/reactor"
)

func newPair(t *testing.T) (api.Reactor, api.Waker) {
	t.Helper()
	r, err := reactor.NewReactor(nil)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	w, err := wakeup.New(wakeup.KindPipe)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return r, w
}

func TestReactorLevelTriggered(t *testing.T) {
	r, w := newPair(t)

	var calls int
	var got api.FDEventType
	require.NoError(t, r.Register(w.Fd(), api.EventRead, func(fd uintptr, ev api.FDEventType) {
		calls++
		got = ev
	}))

	require.NoError(t, r.Poll(0))
	assert.Equal(t, 0, calls, "nothing buffered yet")

	require.NoError(t, w.Notify())
	require.NoError(t, w.Notify())
	require.NoError(t, r.Poll(100))
	assert.Equal(t, 1, calls)
	assert.NotZero(t, got&api.EventRead)

	// Still readable: one marker consumed, one left.
	require.NoError(t, w.Consume())
	require.NoError(t, r.Poll(100))
	assert.Equal(t, 2, calls)

	require.NoError(t, w.Consume())
	require.NoError(t, r.Poll(0))
	assert.Equal(t, 2, calls, "readiness must clear once drained")
}

func TestReactorRegisterTwiceAndUnregister(t *testing.T) {
	r, w := newPair(t)
	cb := func(uintptr, api.FDEventType) {}

	require.NoError(t, r.Register(w.Fd(), api.EventRead, cb))
	assert.ErrorIs(t, r.Register(w.Fd(), api.EventRead, cb), api.ErrAlreadyExists)

	require.NoError(t, r.Unregister(w.Fd()))
	assert.ErrorIs(t, r.Unregister(w.Fd()), api.ErrNotFound)
	assert.ErrorIs(t, r.Register(w.Fd(), api.EventRead, nil), api.ErrInvalidArgument)
}

func TestReactorSurvivesCallbackPanic(t *testing.T) {
	r, w := newPair(t)
	require.NoError(t, r.Register(w.Fd(), api.EventRead, func(uintptr, api.FDEventType) {
		panic("boom")
	}))
	require.NoError(t, w.Notify())
	assert.NotPanics(t, func() { _ = r.Poll(100) })
}

func TestReactorPropagatesContractViolation(t *testing.T) {
	r, w := newPair(t)
	require.NoError(t, r.Register(w.Fd(), api.EventRead, func(uintptr, api.FDEventType) {
		panic(fmt.Errorf("%w: test", api.ErrContractViolation))
	}))
	require.NoError(t, w.Notify())
	assert.Panics(t, func() { _ = r.Poll(100) })
}

func TestRunStopsOnCancel(t *testing.T) {
	r, _ := newPair(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reactor.Run(ctx, r, 10) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestClosedReactorRejectsPoll(t *testing.T) {
	r, _ := newPair(t)
	require.NoError(t, r.Close())
	assert.ErrorIs(t, r.Poll(0), api.ErrReactorClosed)
}
