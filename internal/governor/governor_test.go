package governor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnboundedGovernorNeverBlocks(t *testing.T) {
	g := New(Config{})
	for i := 0; i < 10; i++ {
		require.NoError(t, g.Acquire(context.Background()))
	}
	assert.Equal(t, 0, g.InFlight())
}

func TestBoundedGovernorBlocksPastLimit(t *testing.T) {
	g := New(Config{MaxInFlight: 1})
	require.NoError(t, g.Acquire(context.Background()))
	assert.Equal(t, 1, g.InFlight())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := g.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	g.Release()
	require.NoError(t, g.Acquire(context.Background()))
}
