//go:build linux

package facade_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-dispatch/affinity"
	"github.com/momentics/hioload-dispatch/facade"
)

func TestReactorThreadIsPinned(t *testing.T) {
	allowed, err := affinity.Current()
	require.NoError(t, err)
	require.NotEmpty(t, allowed)
	cpu := allowed[0]

	d := startDispatcher(t, func(c *facade.Config) { c.CPU = cpu })

	var onReactor []int
	var probeErr error
	d.Scatter(1, func(int) { onReactor, probeErr = affinity.Current() })
	require.NoError(t, probeErr)
	assert.Equal(t, []int{cpu}, onReactor)

	mine, err := affinity.Current()
	require.NoError(t, err)
	assert.Equal(t, allowed, mine, "caller thread keeps its mask")
}
