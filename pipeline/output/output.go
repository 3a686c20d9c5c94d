// Package output implements the output runtime: one task per registered
// output, each consuming buffers from a shared fan-out and writing them
// through a plugin.Output, optionally gated by a backpressure limiter.
package output

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/watthouse/agent/internal/backpressure"
	"github.com/watthouse/agent/models"
	"github.com/watthouse/agent/plugin"
	"github.com/watthouse/agent/registry"
	"github.com/watthouse/agent/selector"
)

const intakeCapacity = 256

// taskState is a per-output task's lifecycle. StopFinish drains whatever
// is already queued before exiting; StopNow exits immediately.
type taskState int32

const (
	stateRun taskState = iota
	statePause
	stateStopFinish
	stateStopNow
)

// Runtime owns every output task. Buffers are broadcast to every
// currently-registered output, each through its own bounded queue; once
// a slow output's queue is full, Dispatch blocks until it has room, which
// also holds back delivery to the outputs after it.
type Runtime struct {
	reg    registry.ReadHandle
	limit  *backpressure.Limiter
	logger *slog.Logger

	mu      sync.RWMutex
	outputs map[selector.Name]*managedOutput
	wg      sync.WaitGroup
}

// New builds a Runtime reading registry snapshots from reg and gating
// writes through limit (pass backpressure.New(backpressure.Config{}) for
// no gating).
func New(reg registry.ReadHandle, limit *backpressure.Limiter, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	if limit == nil {
		limit = backpressure.New(backpressure.Config{})
	}
	return &Runtime{
		reg:     reg,
		limit:   limit,
		logger:  logger.With("component", "output.runtime"),
		outputs: make(map[selector.Name]*managedOutput),
	}
}

// Add spawns a task for reg's output and returns its fully-qualified
// name.
func (r *Runtime) Add(ctx context.Context, plug models.PluginName, reg plugin.OutputRegistration) selector.Name {
	name := selector.Name{Kind: selector.KindOutput, Plugin: plug, Element: reg.Name}

	mo := &managedOutput{
		name:   name,
		output: reg.Output,
		in:     make(chan *models.MeasurementBuffer, intakeCapacity),
		rt:     r,
		logger: r.logger.With("output", name.String()),
	}
	mo.state.Store(int32(stateRun))

	r.mu.Lock()
	r.outputs[name] = mo
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		mo.run(ctx)
	}()
	return name
}

// Dispatch hands buf to every output registered at the time of the
// call. Each output gets its own independent copy of the pointer (the
// buffer itself is treated as read-only past this point); a full
// output queue logs a backpressure warning and blocks rather than
// silently dropping the buffer.
func (r *Runtime) Dispatch(ctx context.Context, buf *models.MeasurementBuffer) {
	r.mu.RLock()
	targets := make([]*managedOutput, 0, len(r.outputs))
	for _, mo := range r.outputs {
		targets = append(targets, mo)
	}
	r.mu.RUnlock()

	for _, mo := range targets {
		select {
		case mo.in <- buf:
		default:
			r.logger.Warn("output queue full, applying backpressure", "output", mo.name.String())
			select {
			case mo.in <- buf:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (r *Runtime) setState(matcher selector.Pattern, state taskState) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, mo := range r.outputs {
		if matcher.Match(name) {
			mo.state.Store(int32(state))
		}
	}
}

// Pause parks every matching output without discarding its queue.
func (r *Runtime) Pause(matcher selector.Pattern) { r.setState(matcher, statePause) }

// Resume un-pauses every matching output.
func (r *Runtime) Resume(matcher selector.Pattern) { r.setState(matcher, stateRun) }

// StopFinish drains each matching output's queue before it exits.
func (r *Runtime) StopFinish(matcher selector.Pattern) { r.setState(matcher, stateStopFinish) }

// StopNow exits every matching output immediately, discarding anything
// still queued.
func (r *Runtime) StopNow(matcher selector.Pattern) { r.setState(matcher, stateStopNow) }

// Wait blocks until every spawned output task has exited.
func (r *Runtime) Wait() { r.wg.Wait() }

type managedOutput struct {
	name   selector.Name
	output plugin.Output
	in     chan *models.MeasurementBuffer
	rt     *Runtime
	logger *slog.Logger
	state  atomic.Int32
}

func (mo *managedOutput) run(ctx context.Context) {
	for {
		switch taskState(mo.state.Load()) {
		case stateStopNow:
			return
		case statePause:
			select {
			case <-time.After(10 * time.Millisecond):
			case <-ctx.Done():
				return
			}
			continue
		case stateStopFinish:
			select {
			case buf, ok := <-mo.in:
				if !ok {
					return
				}
				mo.write(ctx, buf)
			default:
				return
			}
			continue
		}

		select {
		case buf, ok := <-mo.in:
			if !ok {
				return
			}
			// A pause may have arrived while this task was idle in the
			// select; hold the buffer until the output is resumed.
			for taskState(mo.state.Load()) == statePause {
				select {
				case <-time.After(10 * time.Millisecond):
				case <-ctx.Done():
					return
				}
			}
			if taskState(mo.state.Load()) == stateStopNow {
				return
			}
			mo.write(ctx, buf)
		case <-ctx.Done():
			return
		}
	}
}

func (mo *managedOutput) write(ctx context.Context, buf *models.MeasurementBuffer) {
	permit, err := mo.rt.limit.Acquire(ctx, mo.name.String())
	if err != nil {
		mo.logger.Warn("output circuit open, dropping buffer", "err", err)
		return
	}
	defer permit.Release()

	start := time.Now()
	writeCtx := plugin.OutputContext{Registry: mo.rt.reg.Read()}
	err = mo.safeWrite(buf, writeCtx)
	mo.rt.limit.Feedback(mo.name.String(), backpressure.Feedback{Err: err, Latency: time.Since(start)})
	if err != nil {
		mo.logger.Error("output write failed", "err", plugin.NewElementError(mo.name.String(), err))
	}
}

func (mo *managedOutput) safeWrite(buf *models.MeasurementBuffer, ctx plugin.OutputContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = plugin.NewElementError(mo.name.String(), panicError{r})
		}
	}()
	return mo.output.Write(buf, ctx)
}

type panicError struct{ v any }

func (p panicError) Error() string { return "output panicked" }
