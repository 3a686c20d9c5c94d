package trigger

import "context"

// Cooperative scheduling budgets: a trigger that is immediately ready
// on every poll must still yield to its peers periodically.
const (
	BudgetSameTrigger = 2
	BudgetAnyTrigger  = 5
)

// PollOutcome tells the caller whether to act on the returned reason
// now (Ready) or yield to the scheduler and retry later (Pending).
type PollOutcome int

const (
	Ready PollOutcome = iota
	Pending
)

// Budgeted wraps a Trigger so that a source whose trigger is always
// instantly ready cannot starve its peers: after BudgetSameTrigger
// consecutive identical reasons, or BudgetAnyTrigger consecutive
// reasons of any kind, Poll reports Pending instead of acting, and
// remembers the already-obtained reason so the next Poll delivers it
// without re-consuming the underlying notification.
type Budgeted struct {
	inner *Trigger

	sameStreak int
	anyStreak  int
	hasLast    bool
	lastReason TriggerReason

	remembered *TriggerReason
}

// NewBudgeted wraps inner.
func NewBudgeted(inner *Trigger) *Budgeted {
	return &Budgeted{inner: inner}
}

// Poll returns the next trigger reason, or Pending if the cooperative
// budget was exhausted this round.
func (b *Budgeted) Poll(ctx context.Context) (TriggerReason, PollOutcome, error) {
	if b.remembered != nil {
		r := *b.remembered
		b.remembered = nil
		b.sameStreak = 1
		b.anyStreak = 1
		b.hasLast = true
		b.lastReason = r
		return r, Ready, nil
	}

	reason, ok := b.inner.TryNext()
	if !ok {
		reason, err := b.inner.Next(ctx)
		if err != nil {
			return reason, Ready, err
		}
		// A genuine wait is never part of an immediate-readiness streak.
		b.sameStreak, b.anyStreak = 0, 0
		b.hasLast, b.lastReason = true, reason
		return reason, Ready, nil
	}

	if b.hasLast && reason == b.lastReason {
		b.sameStreak++
	} else {
		b.sameStreak = 1
	}
	b.anyStreak++
	b.hasLast, b.lastReason = true, reason

	if b.sameStreak > BudgetSameTrigger || b.anyStreak > BudgetAnyTrigger {
		b.remembered = &reason
		b.sameStreak, b.anyStreak = 0, 0
		return reason, Pending, nil
	}
	return reason, Ready, nil
}
