// Package agent composes the registry, event bus, control plane and
// the three pipeline runtimes behind a single facade a host program
// constructs once and drives for the life of the process.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/watthouse/agent/control"
	"github.com/watthouse/agent/eventbus"
	"github.com/watthouse/agent/health"
	"github.com/watthouse/agent/internal/backpressure"
	"github.com/watthouse/agent/internal/governor"
	"github.com/watthouse/agent/logging"
	"github.com/watthouse/agent/metrics"
	"github.com/watthouse/agent/models"
	"github.com/watthouse/agent/pipeline/output"
	"github.com/watthouse/agent/pipeline/source"
	"github.com/watthouse/agent/pipeline/transform"
	"github.com/watthouse/agent/plugin"
	"github.com/watthouse/agent/registry"
	"github.com/watthouse/agent/trigger"
)

// Config tunes the runtimes an Agent wires together. Every field has a
// usable zero value: an Agent built from a zero Config runs with no
// concurrency cap, no backpressure, and a noop metrics provider.
type Config struct {
	Logger          *slog.Logger
	Metrics         metrics.Provider
	MaxInFlight     int // governs blocking-pace sources
	Backpressure    backpressure.Config
	Constraints     trigger.Constraints // applied to every source's trigger spec before it is compiled
	ShutdownTimeout time.Duration       // bounds Shutdown's wait for runtimes to drain; 0 means wait forever

	// GopsAddr, if non-empty, starts a github.com/google/gops/agent
	// diagnostics listener on that address so `gops` can inspect this
	// process's goroutines, heap and GC stats remotely. Empty disables it.
	GopsAddr string
}

// Agent wires a registry, event bus, control plane and the source,
// transform and output runtimes into one unit a host starts, feeds
// control commands to, and shuts down.
type Agent struct {
	cfg    Config
	logger logging.Logger
	slog   *slog.Logger

	metrics metrics.Provider
	health  *health.Evaluator

	reg        *registry.Registry
	readHandle registry.ReadHandle
	sender     registry.SenderHandle
	regCtl     *registry.Controller

	bus *eventbus.Bus

	governor *governor.Governor
	limiter  *backpressure.Limiter

	sources    *source.Control
	transforms *transform.Chain
	outputs    *output.Runtime
	buffers    chan *models.MeasurementBuffer

	instances     []plugin.Instance
	shutdownHooks []func(ctx context.Context) error
	stopGops      func()

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// New builds an Agent but does not start any background task; call Run
// to do that.
func New(cfg Config) *Agent {
	baseLogger := cfg.Logger
	if baseLogger == nil {
		baseLogger = slog.Default()
	}
	mp := cfg.Metrics
	if mp == nil {
		mp = metrics.NewNoopProvider()
	}

	ctx, cancel := context.WithCancel(context.Background())

	reg, readHandle, _, regCtl := registry.NewController(baseLogger.With("component", "registry"))
	bus := eventbus.New(baseLogger.With("component", "eventbus"))
	gov := governor.New(governor.Config{MaxInFlight: cfg.MaxInFlight})
	limiter := backpressure.New(cfg.Backpressure)

	a := &Agent{
		cfg:        cfg,
		logger:     logging.New(baseLogger),
		slog:       baseLogger,
		metrics:    mp,
		health:     health.New(),
		reg:        reg,
		readHandle: readHandle,
		sender:     regCtl.Sender(),
		regCtl:     regCtl,
		bus:        bus,
		governor:   gov,
		limiter:    limiter,
		ctx:        ctx,
		cancel:     cancel,
	}

	a.buffers = make(chan *models.MeasurementBuffer, 256)
	a.sources = source.New(ctx, a.buffers, readHandle, gov, cfg.Constraints, baseLogger.With("component", "source"))
	a.transforms = transform.New(readHandle, baseLogger.With("component", "transform"))
	a.outputs = output.New(readHandle, limiter, baseLogger.With("component", "output"))

	a.wireHealth()

	if cfg.GopsAddr != "" {
		if stop, err := startGops(cfg.GopsAddr); err != nil {
			baseLogger.Warn("gops listener failed to start", "err", err)
		} else {
			a.stopGops = stop
		}
	}

	return a
}

// Run starts the background tasks (registry controller and source
// scheduler control loop) and begins draining the transform chain
// into the output runtime. It returns immediately; callers wait on
// Shutdown.
func (a *Agent) Run() {
	a.startOnce.Do(func() {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.regCtl.Run(a.ctx)
		}()

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.sources.Run(a.ctx)
		}()

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.pump(a.buffers)
		}()
	})
}

// pump moves every buffer flushed by a source through the transform
// chain and, if it survives, to the output runtime.
func (a *Agent) pump(in <-chan *models.MeasurementBuffer) {
	for {
		select {
		case buf, ok := <-in:
			if !ok {
				return
			}
			if out, keep := a.transforms.Apply(buf); keep {
				a.outputs.Dispatch(a.ctx, out)
			}
		case <-a.ctx.Done():
			return
		}
	}
}

// LoadPlugin initializes p with config, registers everything its
// instance contributes, and spawns its sources/outputs. It must be
// called before Run, or any source/output it registers will not be
// picked up by the scheduler's running loop.
func (a *Agent) LoadPlugin(p plugin.Plugin, config map[string]any) error {
	if config == nil {
		config = p.DefaultConfig()
	}
	inst, err := p.Init(config)
	if err != nil {
		return fmt.Errorf("agent: init plugin %q: %w", p.Name(), err)
	}

	name := models.PluginName(p.Name())
	handle := plugin.NewRegistrationHandle(name, a.sender, a.slog)
	if err := inst.Start(handle); err != nil {
		return fmt.Errorf("agent: start plugin %q: %w", p.Name(), err)
	}

	for _, cb := range handle.OnPipelineStart {
		if err := cb(a.ctx); err != nil {
			return fmt.Errorf("agent: plugin %q start hook: %w", p.Name(), err)
		}
	}
	a.shutdownHooks = append(a.shutdownHooks, handle.OnPipelineShutdown...)

	for _, reg := range handle.Sources {
		if err := a.sources.CreateOne(a.ctx, name, reg); err != nil {
			return fmt.Errorf("agent: register source %q/%q: %w", p.Name(), reg.Name, err)
		}
	}
	for _, reg := range handle.Transforms {
		a.transforms.Add(name, reg)
	}
	for _, reg := range handle.Outputs {
		a.outputs.Add(a.ctx, name, reg)
	}

	a.instances = append(a.instances, inst)
	return nil
}

// Dispatch applies a parsed control command to the matching runtime(s).
// CmdShutdown is not handled here; callers should translate it to a
// Shutdown call themselves, since Dispatch has no way to signal "stop
// everything" synchronously to its caller.
func (a *Agent) Dispatch(ctx context.Context, cmd control.Command) error {
	switch cmd.Kind {
	case control.CmdConfigure:
		return a.dispatchConfigure(ctx, cmd)
	default:
		return fmt.Errorf("agent: dispatch: unsupported command kind %v", cmd.Kind)
	}
}

func (a *Agent) dispatchConfigure(ctx context.Context, cmd control.Command) error {
	switch cmd.Verb {
	case control.VerbPause:
		a.sources.Configure(ctx, cmd.Pattern, source.ConfigureCommand{Kind: source.ConfigurePause})
		a.transforms.SetEnabled(cmd.Pattern, false)
		a.outputs.Pause(cmd.Pattern)
	case control.VerbResume:
		a.sources.Configure(ctx, cmd.Pattern, source.ConfigureCommand{Kind: source.ConfigureResume})
		a.transforms.SetEnabled(cmd.Pattern, true)
		a.outputs.Resume(cmd.Pattern)
	case control.VerbStop:
		a.sources.Configure(ctx, cmd.Pattern, source.ConfigureCommand{Kind: source.ConfigureStop})
		a.outputs.StopFinish(cmd.Pattern)
	case control.VerbSetPeriod:
		a.sources.Configure(ctx, cmd.Pattern, source.ConfigureCommand{
			Kind: source.ConfigureSetTrigger,
			Spec: periodSpec(cmd.Duration),
		})
	case control.VerbTriggerNow:
		a.sources.TriggerManually(ctx, cmd.Pattern)
	default:
		return fmt.Errorf("agent: dispatch: unsupported verb %v", cmd.Verb)
	}
	return nil
}

// Health returns the agent's health evaluator, pre-wired with checks
// for the registry controller and the concurrency governor.
func (a *Agent) Health() *health.Evaluator { return a.health }

// Metrics returns the metrics provider the agent was built with.
func (a *Agent) Metrics() metrics.Provider { return a.metrics }

// EventBus returns the process-wide event bus.
func (a *Agent) EventBus() *eventbus.Bus { return a.bus }

// ShutdownError aggregates every error encountered while stopping an
// Agent's subsystems. A nil *ShutdownError means a clean shutdown.
type ShutdownError struct {
	Errs []error
}

func (e *ShutdownError) Error() string {
	return fmt.Sprintf("agent: shutdown encountered %d error(s): %v", len(e.Errs), errors.Join(e.Errs...))
}

func (e *ShutdownError) Unwrap() []error { return e.Errs }

// Shutdown stops every plugin instance, cancels the root context and
// waits (bounded by cfg.ShutdownTimeout, if set) for every background
// task to exit. Safe to call more than once; later calls are no-ops.
func (a *Agent) Shutdown(ctx context.Context) error {
	var shutdownErr *ShutdownError
	a.stopOnce.Do(func() {
		for _, cb := range a.shutdownHooks {
			if err := cb(ctx); err != nil {
				shutdownErr = appendErr(shutdownErr, err)
			}
		}

		for _, inst := range a.instances {
			if err := inst.Stop(); err != nil {
				shutdownErr = appendErr(shutdownErr, err)
			}
		}

		a.cancel()
		a.regCtl.CloseIntake()
		if a.stopGops != nil {
			a.stopGops()
		}

		done := make(chan struct{})
		go func() {
			a.wg.Wait()
			a.sources.Wait()
			a.outputs.Wait()
			close(done)
		}()

		if a.cfg.ShutdownTimeout > 0 {
			select {
			case <-done:
			case <-time.After(a.cfg.ShutdownTimeout):
				shutdownErr = appendErr(shutdownErr, errors.New("agent: shutdown timed out waiting for runtimes to drain"))
			}
		} else {
			<-done
		}
	})
	if shutdownErr != nil {
		return shutdownErr
	}
	return nil
}

func appendErr(e *ShutdownError, err error) *ShutdownError {
	if e == nil {
		e = &ShutdownError{}
	}
	e.Errs = append(e.Errs, err)
	return e
}

// periodSpec builds a plain time-interval spec for a set-period control
// command. Flush and update cadence match the new period: a control
// plane issuing set-period wants the change to take effect promptly,
// not after an arbitrary backlog of rounds.
func periodSpec(period time.Duration) trigger.TriggerSpec {
	return trigger.TimeIntervalSpec(time.Now(), period, period, period)
}
