// Package backpressure adapts an AIMD token-bucket plus circuit breaker
// into a per-output rate governor: an output whose sink is degraded
// (errors, high latency) is slowed down automatically instead of
// hammering it, and trips a breaker if it keeps failing. It is
// disabled by default; a pipeline opts a given output into it.
package backpressure

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Acquire while an output's breaker is
// open and the probe window has not yet arrived.
var ErrCircuitOpen = errors.New("backpressure: circuit open for output")

// Config tunes the limiter. Disabled by default: a pipeline must opt an
// output in explicitly.
type Config struct {
	Enabled            bool
	FailureThreshold   int           // consecutive failures before the breaker opens
	OpenDuration       time.Duration // how long the breaker stays open before probing
	HalfOpenSuccesses  int           // successes needed in half-open to close
	MinFillRate        float64
	MaxFillRate        float64
	InitialFillRate    float64
}

// DefaultConfig returns a disabled limiter with sane defaults should a
// pipeline enable it without overriding every field.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:  5,
		OpenDuration:      5 * time.Second,
		HalfOpenSuccesses: 3,
		MinFillRate:       0.1,
		MaxFillRate:       5,
		InitialFillRate:   1,
	}
}

// Feedback reports the outcome of one write so the limiter can adapt.
type Feedback struct {
	Err     error
	Latency time.Duration
}

// Permit is returned by Acquire; Release is a no-op placeholder kept
// for symmetry with token-bucket designs that hold a slot open.
type Permit interface{ Release() }

type noopPermit struct{}

func (noopPermit) Release() {}

// Limiter gates one or more named outputs independently.
type Limiter struct {
	cfg   Config
	mu    sync.Mutex
	state map[string]*outputState
}

// New builds a Limiter. A zero Config.Enabled means Acquire always
// grants immediately and Feedback is a no-op, so wiring this in costs
// nothing until a pipeline turns it on for a specific output.
func New(cfg Config) *Limiter {
	return &Limiter{cfg: cfg, state: make(map[string]*outputState)}
}

func (l *Limiter) stateFor(output string) *outputState {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.state[output]
	if !ok {
		s = &outputState{fillRate: l.cfg.InitialFillRate, tokens: 1, lastRefill: time.Now()}
		l.state[output] = s
	}
	return s
}

// Acquire blocks until output may write again, or returns ErrCircuitOpen
// if its breaker has tripped and the probe window has not arrived.
func (l *Limiter) Acquire(ctx context.Context, output string) (Permit, error) {
	if !l.cfg.Enabled {
		return noopPermit{}, nil
	}
	s := l.stateFor(output)
	for {
		wait, err := s.plan(l.cfg, time.Now())
		if err != nil {
			return nil, err
		}
		if wait <= 0 {
			return noopPermit{}, nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
}

// Feedback records the outcome of a write against output, adapting its
// fill rate and breaker state for subsequent Acquire calls.
func (l *Limiter) Feedback(output string, fb Feedback) {
	if !l.cfg.Enabled {
		return
	}
	l.stateFor(output).applyFeedback(l.cfg, fb, time.Now())
}

const (
	circuitClosed = iota
	circuitOpen
	circuitHalfOpen
)

type outputState struct {
	mu          sync.Mutex
	fillRate    float64
	tokens      float64
	lastRefill  time.Time
	breakerSt   int
	nextAttempt time.Time
	failures    int
	successes   int
}

func (s *outputState) plan(cfg Config, now time.Time) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.breakerSt == circuitOpen {
		if now.After(s.nextAttempt) {
			s.breakerSt = circuitHalfOpen
		} else {
			return 0, ErrCircuitOpen
		}
	}

	elapsed := now.Sub(s.lastRefill).Seconds()
	if elapsed > 0 {
		s.tokens += elapsed * s.fillRate
		if s.tokens > 10 {
			s.tokens = 10
		}
		s.lastRefill = now
	}
	if s.tokens >= 1 {
		s.tokens--
		return 0, nil
	}
	waitSeconds := (1 - s.tokens) / math.Max(s.fillRate, cfg.MinFillRate)
	return time.Duration(waitSeconds * float64(time.Second)), nil
}

func (s *outputState) applyFeedback(cfg Config, fb Feedback, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fb.Err != nil {
		s.fillRate *= 0.8
		if s.fillRate < cfg.MinFillRate {
			s.fillRate = cfg.MinFillRate
		}
		s.failures++
	} else {
		s.fillRate *= 1.05
		if s.fillRate > cfg.MaxFillRate {
			s.fillRate = cfg.MaxFillRate
		}
		if s.breakerSt == circuitHalfOpen {
			s.successes++
		}
	}

	switch s.breakerSt {
	case circuitHalfOpen:
		if s.successes >= cfg.HalfOpenSuccesses {
			s.breakerSt, s.failures, s.successes = circuitClosed, 0, 0
		} else if s.failures > 0 {
			s.breakerSt = circuitOpen
			s.nextAttempt = now.Add(cfg.OpenDuration)
		}
	case circuitClosed:
		if s.failures >= cfg.FailureThreshold {
			s.breakerSt = circuitOpen
			s.nextAttempt = now.Add(cfg.OpenDuration)
		}
	}
}
