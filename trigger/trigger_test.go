package trigger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// S2: constraint application.
func TestConstraintsApplyForcesInterruptibleWhenPeriodExceedsMax(t *testing.T) {
	spec := TimeIntervalSpec(time.Time{}, 3*time.Second, 15*time.Second, 3*time.Second)
	require.Equal(t, 5, spec.LoopParams.FlushRounds)
	require.Equal(t, 1, spec.LoopParams.UpdateRounds)

	c := Constraints{MaxUpdateInterval: 2 * time.Second}
	out := c.Apply(spec)

	assert.Equal(t, 3*time.Second, out.Period)
	assert.Equal(t, 5, out.LoopParams.FlushRounds)
	assert.Equal(t, 1, out.LoopParams.UpdateRounds)
	assert.True(t, out.Interruptible)
}

// Property 4: trigger constraint monotonicity.
func TestConstraintsLowerUpdateRoundsWithoutForcingInterruptible(t *testing.T) {
	spec := TriggerSpec{
		Mechanism: MechTimeInterval,
		Period:    1 * time.Second,
		LoopParams: LoopParams{
			FlushRounds:  10,
			UpdateRounds: 10, // update_interval = 10s
		},
	}
	c := Constraints{MaxUpdateInterval: 4 * time.Second}
	out := c.Apply(spec)

	updateInterval := out.Period * time.Duration(out.LoopParams.UpdateRounds)
	assert.LessOrEqual(t, updateInterval, c.MaxUpdateInterval)
	assert.GreaterOrEqual(t, out.LoopParams.UpdateRounds, 1)
}

func TestConstraintsForcePipelineManualTrigger(t *testing.T) {
	spec := ManualOnlySpec()
	spec.AllowManualTrigger = false
	c := Constraints{AllowManualTrigger: true}
	out := c.Apply(spec)
	assert.True(t, out.AllowManualTrigger)
}

func TestManualOnlyTriggerFiresOnSignal(t *testing.T) {
	manual := make(chan struct{}, 1)
	tr, err := Compile(ManualOnlySpec(), manual, nil)
	require.NoError(t, err)

	manual <- struct{}{}
	reason, err := tr.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Triggered, reason)
}

func TestInterruptWinsWhenPrimaryNotReady(t *testing.T) {
	spec := TriggerSpec{Mechanism: MechTimeInterval, Start: time.Now().Add(time.Hour), Period: time.Hour, Interruptible: true}
	interrupt := make(chan struct{}, 1)
	tr, err := Compile(spec, nil, interrupt)
	require.NoError(t, err)

	interrupt <- struct{}{}
	reason, err := tr.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Interrupted, reason)
}

// Property 5: cooperative budget.
func TestBudgetedWrapperYieldsWithinBudget(t *testing.T) {
	manual := make(chan struct{}, 1)
	// Keep the manual channel perpetually pre-loaded so every poll is
	// immediately ready, simulating an infinite readiness streak.
	manual <- struct{}{}
	tr, err := Compile(ManualOnlySpec(), manual, nil)
	require.NoError(t, err)
	b := NewBudgeted(tr)

	sawPending := false
	for i := 0; i < BudgetAnyTrigger+1; i++ {
		_, outcome, err := b.Poll(context.Background())
		require.NoError(t, err)
		if outcome == Pending {
			sawPending = true
			break
		}
		// re-load so the next poll is immediately ready again
		select {
		case manual <- struct{}{}:
		default:
		}
	}
	assert.True(t, sawPending, "expected Pending within BUDGET_ANY_TRIGGER+1 polls")
}

func TestBudgetedWrapperRemembersPendingResult(t *testing.T) {
	manual := make(chan struct{}, 1)
	tr, err := Compile(ManualOnlySpec(), manual, nil)
	require.NoError(t, err)
	b := NewBudgeted(tr)

	var outcome PollOutcome
	for i := 0; i < BudgetAnyTrigger+1; i++ {
		manual <- struct{}{}
		_, outcome, err = b.Poll(context.Background())
		require.NoError(t, err)
		if outcome == Pending {
			break
		}
	}
	require.Equal(t, Pending, outcome)

	// The next poll must deliver the remembered reason without
	// requiring a fresh manual signal.
	reason, outcome, err := b.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Ready, outcome)
	assert.Equal(t, Triggered, reason)
}
