package backpressure

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledLimiterNeverBlocks(t *testing.T) {
	l := New(Config{})
	for i := 0; i < 20; i++ {
		_, err := l.Acquire(context.Background(), "sink")
		require.NoError(t, err)
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.FailureThreshold = 2
	cfg.OpenDuration = 50 * time.Millisecond
	l := New(cfg)

	_, err := l.Acquire(context.Background(), "sink")
	require.NoError(t, err)
	l.Feedback("sink", Feedback{Err: errors.New("boom")})
	l.Feedback("sink", Feedback{Err: errors.New("boom")})

	_, err = l.Acquire(context.Background(), "sink")
	assert.ErrorIs(t, err, ErrCircuitOpen)

	time.Sleep(60 * time.Millisecond)
	_, err = l.Acquire(context.Background(), "sink")
	assert.NoError(t, err, "breaker should allow a half-open probe after OpenDuration")
}

func TestOutputsAreIndependent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.FailureThreshold = 1
	cfg.OpenDuration = time.Minute
	l := New(cfg)

	_, _ = l.Acquire(context.Background(), "a")
	l.Feedback("a", Feedback{Err: errors.New("boom")})
	_, err := l.Acquire(context.Background(), "a")
	assert.ErrorIs(t, err, ErrCircuitOpen)

	_, err = l.Acquire(context.Background(), "b")
	assert.NoError(t, err)
}
