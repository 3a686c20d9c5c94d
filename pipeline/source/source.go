// Package source implements the source scheduler: it owns every
// source task, accepts control messages through one bounded intake,
// and drives each managed source's poll loop against its compiled
// trigger.
package source

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/watthouse/agent/internal/governor"
	"github.com/watthouse/agent/models"
	"github.com/watthouse/agent/plugin"
	"github.com/watthouse/agent/registry"
	"github.com/watthouse/agent/selector"
	"github.com/watthouse/agent/trigger"
)

const intakeCapacity = 256

// taskState is the managed-source state machine: Run -> Pause -> Run ->
// ... -> Stop (terminal). Stored in an atomic so the poll loop can read
// it on every iteration without locking.
type taskState int32

const (
	stateRun taskState = iota
	statePause
	stateStop
)

// ConfigureKind is the per-element command a Configure message applies.
type ConfigureKind int

const (
	ConfigurePause ConfigureKind = iota
	ConfigureResume
	ConfigureStop
	ConfigureSetTrigger
)

// ConfigureCommand is the payload of a Configure control message.
type ConfigureCommand struct {
	Kind ConfigureKind
	Spec trigger.TriggerSpec // only meaningful for ConfigureSetTrigger
}

type controlMsg interface{ isControlMsg() }

type createOneMsg struct {
	plugin models.PluginName
	reg    plugin.SourceRegistration
	reply  chan error
}

func (createOneMsg) isControlMsg() {}

type createManyMsg struct {
	plugin models.PluginName
	regs   []plugin.SourceRegistration
	reply  chan error
}

func (createManyMsg) isControlMsg() {}

type configureMsg struct {
	matcher selector.Pattern
	command ConfigureCommand
	reply   chan error
}

func (configureMsg) isControlMsg() {}

type triggerManuallyMsg struct {
	matcher selector.Pattern
	reply   chan error
}

func (triggerManuallyMsg) isControlMsg() {}

// Control owns every source task and exposes the single intake channel
// described in the scheduler design.
type Control struct {
	ctx         context.Context
	out         chan<- *models.MeasurementBuffer
	reg         registry.ReadHandle
	gov         *governor.Governor
	constraints trigger.Constraints
	logger      *slog.Logger

	ch chan controlMsg

	mu      sync.Mutex
	sources map[selector.Name]*managedSource
	wg      sync.WaitGroup
}

// New builds a Control bound to out (the shared downstream channel
// every managed source flushes into), reg (for sources that need to
// resolve metric ids), gov (gating how many blocking-pace sources may
// run concurrently) and constraints (applied to every source's spec
// before it is compiled, so pipeline-wide limits like a maximum
// reconfiguration-update interval hold across every source regardless
// of what it asked for).
func New(ctx context.Context, out chan<- *models.MeasurementBuffer, reg registry.ReadHandle, gov *governor.Governor, constraints trigger.Constraints, logger *slog.Logger) *Control {
	if logger == nil {
		logger = slog.Default()
	}
	return &Control{
		ctx:         ctx,
		out:         out,
		reg:         reg,
		gov:         gov,
		constraints: constraints,
		logger:      logger.With("component", "source.control"),
		ch:          make(chan controlMsg, intakeCapacity),
		sources:     make(map[selector.Name]*managedSource),
	}
}

// Run processes control messages FIFO until ctx is cancelled or the
// intake is closed (the latter is treated as graceful shutdown).
func (c *Control) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.ch:
			if !ok {
				c.logger.Info("source control stopping: intake channel closed")
				return
			}
			c.handle(msg)
		}
	}
}

func (c *Control) handle(msg controlMsg) {
	switch m := msg.(type) {
	case createOneMsg:
		m.reply <- c.createOne(m.plugin, m.reg)
	case createManyMsg:
		m.reply <- c.createMany(m.plugin, m.regs)
	case configureMsg:
		m.reply <- c.configure(m.matcher, m.command)
	case triggerManuallyMsg:
		m.reply <- c.triggerManually(m.matcher)
	}
}

// CreateOne builds and spawns one source, waiting for it to be
// processed by the control loop.
func (c *Control) CreateOne(ctx context.Context, plug models.PluginName, reg plugin.SourceRegistration) error {
	reply := make(chan error, 1)
	if err := c.send(ctx, createOneMsg{plugin: plug, reg: reg, reply: reply}); err != nil {
		return err
	}
	return <-reply
}

// CreateMany builds and spawns a batch in one go, reading the registry
// only once for the whole batch.
func (c *Control) CreateMany(ctx context.Context, plug models.PluginName, regs []plugin.SourceRegistration) error {
	reply := make(chan error, 1)
	if err := c.send(ctx, createManyMsg{plugin: plug, regs: regs, reply: reply}); err != nil {
		return err
	}
	return <-reply
}

// Configure applies command to every source matching matcher.
func (c *Control) Configure(ctx context.Context, matcher selector.Pattern, command ConfigureCommand) error {
	reply := make(chan error, 1)
	if err := c.send(ctx, configureMsg{matcher: matcher, command: command, reply: reply}); err != nil {
		return err
	}
	return <-reply
}

// TriggerManually sends a manual-trigger signal to every matching source.
func (c *Control) TriggerManually(ctx context.Context, matcher selector.Pattern) error {
	reply := make(chan error, 1)
	if err := c.send(ctx, triggerManuallyMsg{matcher: matcher, reply: reply}); err != nil {
		return err
	}
	return <-reply
}

func (c *Control) send(ctx context.Context, msg controlMsg) error {
	select {
	case c.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the intake channel, which Run treats as a shutdown
// request. Callers must stop sending before calling Close.
func (c *Control) Close() { close(c.ch) }

// Wait blocks until every spawned source task has exited.
func (c *Control) Wait() { c.wg.Wait() }

func (c *Control) createOne(plug models.PluginName, reg plugin.SourceRegistration) error {
	return c.spawn(plug, reg)
}

func (c *Control) createMany(plug models.PluginName, regs []plugin.SourceRegistration) error {
	var failed int
	var errs []error
	for _, reg := range regs {
		if err := c.spawn(plug, reg); err != nil {
			failed++
			errs = append(errs, err)
		}
	}
	if failed > 0 {
		return &plugin.BuildError{Failed: failed, Total: len(regs), Errs: errs}
	}
	return nil
}

func (c *Control) spawn(plug models.PluginName, reg plugin.SourceRegistration) error {
	name := selector.Name{Kind: selector.KindSource, Plugin: plug, Element: reg.Name}

	spec := c.constraints.Apply(reg.Spec)

	ms := &managedSource{
		name:        name,
		source:      reg.Source,
		spec:        spec,
		constraints: c.constraints,
		out:         c.out,
		logger:      c.logger.With("source", name.String()),
		manual:      make(chan struct{}, 1),
		interrupt:   make(chan struct{}, 1),
	}
	ms.state.Store(int32(stateRun))

	tr, err := trigger.Compile(spec, ms.manual, ms.interrupt)
	if err != nil {
		return plugin.NewElementError(name.String(), err)
	}
	ms.trigger = trigger.NewBudgeted(tr)

	c.mu.Lock()
	c.sources[name] = ms
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if reg.Pace == plugin.PaceBlocking {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
		}
		if reg.Pace == plugin.PaceBlocking && c.gov != nil {
			if err := c.gov.Acquire(c.ctx); err != nil {
				return
			}
			defer c.gov.Release()
		}
		ms.run(c.ctx)
	}()
	return nil
}

func (c *Control) configure(matcher selector.Pattern, cmd ConfigureCommand) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, ms := range c.sources {
		if !matcher.Match(name) {
			continue
		}
		switch cmd.Kind {
		case ConfigurePause:
			ms.state.Store(int32(statePause))
			select {
			case ms.interrupt <- struct{}{}:
			default:
			}
		case ConfigureResume:
			ms.state.Store(int32(stateRun))
			select {
			case ms.interrupt <- struct{}{}:
			default:
			}
		case ConfigureStop:
			ms.state.Store(int32(stateStop))
			select {
			case ms.interrupt <- struct{}{}:
			default:
			}
		case ConfigureSetTrigger:
			ms.pendingSpec.Store(&cmd.Spec)
			select {
			case ms.interrupt <- struct{}{}:
			default:
			}
		}
	}
	return nil
}

func (c *Control) triggerManually(matcher selector.Pattern) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, ms := range c.sources {
		if !matcher.Match(name) {
			continue
		}
		select {
		case ms.manual <- struct{}{}:
		default:
		}
	}
	return nil
}

// managedSource is one scheduler-owned source task.
type managedSource struct {
	name        selector.Name
	source      plugin.Source
	spec        trigger.TriggerSpec
	constraints trigger.Constraints
	out         chan<- *models.MeasurementBuffer
	logger      *slog.Logger

	state       atomic.Int32
	trigger     *trigger.Budgeted
	manual      chan struct{}
	interrupt   chan struct{}
	pendingSpec atomic.Pointer[trigger.TriggerSpec]
}

func (ms *managedSource) run(ctx context.Context) {
	acc := models.NewMeasurementBuffer(32)
	round := 0
	for {
		if taskState(ms.state.Load()) == stateStop {
			return
		}
		if taskState(ms.state.Load()) == statePause {
			if !ms.waitForResume(ctx) {
				return
			}
			continue
		}

		reason, outcome, err := ms.trigger.Poll(ctx)
		if err != nil {
			return // context cancelled
		}
		if outcome == trigger.Pending {
			continue
		}

		// A pause or stop may have arrived while this call was blocked
		// waiting on the trigger; re-check before acting on it so a
		// delayed manual trigger can never cause a poll during a pause.
		if taskState(ms.state.Load()) != stateRun {
			continue
		}

		round++
		if reason == trigger.Triggered {
			if perr := ms.source.Poll(ctx, acc, time.Now()); perr != nil {
				se := plugin.NewSourceError(ms.name.String(), perr)
				ms.logger.Error("source poll failed", "err", se)
				if se.Fatal {
					return
				}
			}
		}

		if ms.spec.LoopParams.FlushRounds <= 0 || round%ms.spec.LoopParams.FlushRounds == 0 {
			if acc.Len() > 0 {
				flushed := acc
				acc = models.NewMeasurementBuffer(32)
				select {
				case ms.out <- flushed:
				case <-ctx.Done():
					return
				}
			}
		}

		if ms.spec.LoopParams.UpdateRounds <= 0 || round%ms.spec.LoopParams.UpdateRounds == 0 {
			if sp := ms.pendingSpec.Swap(nil); sp != nil {
				constrained := ms.constraints.Apply(*sp)
				if tr, err := trigger.Compile(constrained, ms.manual, ms.interrupt); err == nil {
					ms.spec = constrained
					ms.trigger = trigger.NewBudgeted(tr)
				}
			}
		}
	}
}

// waitForResume parks the task until it is resumed, stopped, or ctx is
// cancelled, returning false in the latter two non-resume cases so the
// caller knows whether to keep looping.
func (ms *managedSource) waitForResume(ctx context.Context) bool {
	for {
		select {
		case <-ms.interrupt:
			s := taskState(ms.state.Load())
			if s == stateStop {
				return false
			}
			if s == stateRun {
				return true
			}
		case <-ctx.Done():
			return false
		}
	}
}
