// Package trigger implements the mechanisms that decide when a managed
// source is polled, the constraints a pipeline applies to them, and the
// cooperative budget wrapper that keeps one eager source from starving
// its peers.
package trigger

import (
	"context"
	"fmt"
	"time"
)

// Mechanism selects which primary readiness signal a TriggerSpec uses.
type Mechanism int

const (
	MechTimeInterval Mechanism = iota
	MechFuture
	MechManualOnly
)

// LoopParams controls how often a source flushes its accumulator
// downstream and re-reads its control state.
type LoopParams struct {
	FlushRounds  int
	UpdateRounds int
}

// TriggerSpec describes when a source should be polled, before it is
// compiled into a live Trigger.
type TriggerSpec struct {
	Mechanism Mechanism

	// Start/Period apply to MechTimeInterval.
	Start  time.Time
	Period time.Duration

	// FutureFn applies to MechFuture: it is called to obtain the channel
	// for the next occurrence, and called again after each fire.
	FutureFn func(ctx context.Context) <-chan struct{}

	Interruptible       bool
	AllowManualTrigger  bool
	UseRealtimePriority bool
	LoopParams          LoopParams
}

// TimeIntervalSpec builds a spec firing at start+k*period, with loop
// params derived from the requested flush/update cadences.
func TimeIntervalSpec(start time.Time, period, flushInterval, updateInterval time.Duration) TriggerSpec {
	return TriggerSpec{
		Mechanism: MechTimeInterval,
		Start:     start,
		Period:    period,
		LoopParams: LoopParams{
			FlushRounds:  roundsFor(flushInterval, period),
			UpdateRounds: roundsFor(updateInterval, period),
		},
	}
}

func roundsFor(interval, period time.Duration) int {
	if period <= 0 {
		return 1
	}
	n := int(interval / period)
	if n < 1 {
		n = 1
	}
	return n
}

// FutureSpec builds a spec that fires each time fn's channel resolves.
func FutureSpec(fn func(ctx context.Context) <-chan struct{}) TriggerSpec {
	return TriggerSpec{Mechanism: MechFuture, FutureFn: fn, LoopParams: LoopParams{FlushRounds: 1, UpdateRounds: 1}}
}

// ManualOnlySpec builds a spec that only fires on an explicit manual
// trigger notification.
func ManualOnlySpec() TriggerSpec {
	return TriggerSpec{Mechanism: MechManualOnly, AllowManualTrigger: true, LoopParams: LoopParams{FlushRounds: 1, UpdateRounds: 1}}
}

// Constraints are applied to a TriggerSpec before a source is spawned.
type Constraints struct {
	// MaxUpdateInterval bounds how long a source may go without
	// re-reading its control state. Zero disables the constraint.
	MaxUpdateInterval time.Duration
	// AllowManualTrigger, when set on the pipeline, is forced onto every
	// compiled trigger regardless of what the spec requested.
	AllowManualTrigger bool
}

// Apply adjusts spec to satisfy the constraints, per the scheduler's
// reconfiguration-never-starved rule: a period that alone exceeds the
// max forces interruptible+update_rounds=1; otherwise update_rounds is
// lowered (never below 1) until period*update_rounds fits the max.
func (c Constraints) Apply(spec TriggerSpec) TriggerSpec {
	if c.AllowManualTrigger {
		spec.AllowManualTrigger = true
	}
	if spec.Mechanism != MechTimeInterval || c.MaxUpdateInterval <= 0 || spec.Period <= 0 {
		return spec
	}
	if spec.Period > c.MaxUpdateInterval {
		spec.Interruptible = true
		spec.LoopParams.UpdateRounds = 1
		return spec
	}
	interval := spec.Period * time.Duration(spec.LoopParams.UpdateRounds)
	if interval > c.MaxUpdateInterval {
		rounds := int(c.MaxUpdateInterval / spec.Period)
		if rounds < 1 {
			rounds = 1
		}
		spec.LoopParams.UpdateRounds = rounds
	}
	return spec
}

// TriggerReason is why Trigger.Next returned.
type TriggerReason int

const (
	Triggered TriggerReason = iota
	Interrupted
)

func (r TriggerReason) String() string {
	if r == Interrupted {
		return "interrupted"
	}
	return "triggered"
}

// Trigger is a compiled, stateful TriggerSpec ready to be polled.
type Trigger struct {
	spec TriggerSpec

	next time.Time // MechTimeInterval only

	timer      *time.Timer
	timerFired chan struct{}

	futureCh <-chan struct{} // MechFuture only

	manual    <-chan struct{}
	interrupt <-chan struct{}
}

// Compile validates and prepares a spec for use. manual is the
// element's manual-trigger notification channel (required for
// MechManualOnly, optional otherwise); interrupt is the side-channel
// woken on fast reconfiguration (required when spec.Interruptible).
func Compile(spec TriggerSpec, manual, interrupt <-chan struct{}) (*Trigger, error) {
	switch spec.Mechanism {
	case MechTimeInterval:
		if spec.Period <= 0 {
			return nil, fmt.Errorf("trigger: time-interval period must be positive")
		}
	case MechFuture:
		if spec.FutureFn == nil {
			return nil, fmt.Errorf("trigger: future mechanism requires a non-nil function")
		}
	case MechManualOnly:
		if manual == nil {
			return nil, fmt.Errorf("trigger: manual-only mechanism requires a manual channel")
		}
	default:
		return nil, fmt.Errorf("trigger: unknown mechanism %d", spec.Mechanism)
	}
	t := &Trigger{spec: spec, manual: manual, interrupt: interrupt}
	if spec.Mechanism == MechTimeInterval {
		t.next = spec.Start
		if t.next.IsZero() {
			t.next = time.Now()
		}
	}
	return t, nil
}

// TryNext performs a single non-blocking check of every readiness
// source, in priority order: primary mechanism, then manual (if
// allowed), then interrupt (if interruptible). This fixed order is what
// makes simultaneous readiness resolve deterministically rather than by
// Go's randomized select.
func (t *Trigger) TryNext() (TriggerReason, bool) {
	if t.tryPrimary() {
		return Triggered, true
	}
	if t.spec.AllowManualTrigger && t.spec.Mechanism != MechManualOnly {
		select {
		case <-t.manual:
			return Triggered, true
		default:
		}
	}
	if t.spec.Interruptible {
		select {
		case <-t.interrupt:
			return Interrupted, true
		default:
		}
	}
	return 0, false
}

func (t *Trigger) tryPrimary() bool {
	switch t.spec.Mechanism {
	case MechTimeInterval:
		if !time.Now().Before(t.next) {
			t.advanceInterval()
			return true
		}
		return false
	case MechFuture:
		select {
		case <-t.futureChan(context.Background()):
			t.futureCh = nil
			return true
		default:
			return false
		}
	case MechManualOnly:
		select {
		case <-t.manual:
			return true
		default:
			return false
		}
	}
	return false
}

// Next blocks until the trigger fires or ctx is cancelled.
func (t *Trigger) Next(ctx context.Context) (TriggerReason, error) {
	for {
		if reason, ok := t.TryNext(); ok {
			return reason, nil
		}

		primary := t.primaryWaitChan(ctx)
		var manualCh <-chan struct{}
		if t.spec.AllowManualTrigger && t.spec.Mechanism != MechManualOnly {
			manualCh = t.manual
		}
		var interruptCh <-chan struct{}
		if t.spec.Interruptible {
			interruptCh = t.interrupt
		}

		select {
		case <-primary:
			switch t.spec.Mechanism {
			case MechFuture:
				t.futureCh = nil
			case MechTimeInterval:
				t.advanceInterval()
			}
			return Triggered, nil
		case <-manualCh:
			return Triggered, nil
		case <-interruptCh:
			return Interrupted, nil
		case <-ctx.Done():
			return Interrupted, ctx.Err()
		}
	}
}

func (t *Trigger) primaryWaitChan(ctx context.Context) <-chan struct{} {
	switch t.spec.Mechanism {
	case MechTimeInterval:
		return t.intervalChan()
	case MechFuture:
		return t.futureChan(ctx)
	case MechManualOnly:
		return t.manual
	}
	return nil
}

func (t *Trigger) futureChan(ctx context.Context) <-chan struct{} {
	if t.futureCh == nil {
		t.futureCh = t.spec.FutureFn(ctx)
	}
	return t.futureCh
}

// intervalChan lazily starts a one-shot relay that closes when the next
// tick is due; advanceInterval discards it so the following call builds
// a fresh one for the next tick.
func (t *Trigger) intervalChan() <-chan struct{} {
	if t.timerFired == nil {
		t.timer = time.NewTimer(time.Until(t.next))
		fired := make(chan struct{})
		t.timerFired = fired
		timer := t.timer
		go func() {
			<-timer.C
			close(fired)
		}()
	}
	return t.timerFired
}

func (t *Trigger) advanceInterval() {
	if t.spec.Period > 0 {
		t.next = t.next.Add(t.spec.Period)
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = nil
	t.timerFired = nil
}
