package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/watthouse/agent/models"
)

// intakeCapacity is the bound on the controller's command channel, per
// the registry's serialize-every-write-through-one-task design.
const intakeCapacity = 256

// ErrShutdown is returned by a send when the controller has stopped.
var ErrShutdown = errors.New("registry: controller has shut down")

// ErrFull is returned by TryCreate when the controller's intake is at
// capacity. It carries the message that could not be enqueued so the
// caller can retry or drop it.
type ErrFull struct {
	Msg any
}

func (e *ErrFull) Error() string { return "registry: controller intake is full" }

// Listener receives every successful registration made after it
// subscribed. It must not block; long work should be handed off.
type Listener func(registrations []Registration)

// Registration pairs an assigned id with the metric it names.
type Registration struct {
	ID     models.RawMetricId
	Metric models.Metric
}

type ctrlMsg interface{ isCtrlMsg() }

type createMsg struct {
	metrics  []models.Metric
	strategy DuplicateStrategy
	reply    chan []CreateResult
}

func (createMsg) isCtrlMsg() {}

type subscribeMsg struct {
	plugin   models.PluginName
	listener Listener
	reply    chan struct{}
}

func (subscribeMsg) isCtrlMsg() {}

// Controller is the registry's single writer. Exactly one goroutine
// should run Controller.Run for the lifetime of a registry.
type Controller struct {
	reg    *Registry
	ch     chan ctrlMsg
	closed chan struct{}
	once   sync.Once
	logger *slog.Logger

	subs []subscription

	closeIntakeOnce sync.Once
}

type subscription struct {
	plugin   models.PluginName
	listener Listener
}

// NewController wires a fresh Registry to a new Controller and hands
// back the read and write handles together with the Controller, whose
// Sender method gives the sender handle callers use to talk to it. The returned Controller.Run must be started (typically
// via agent.Agent) before any sender traffic is expected to make
// progress.
func NewController(logger *slog.Logger) (*Registry, ReadHandle, WriteHandle, *Controller) {
	if logger == nil {
		logger = slog.Default()
	}
	reg := New()
	c := &Controller{
		reg:    reg,
		ch:     make(chan ctrlMsg, intakeCapacity),
		closed: make(chan struct{}),
		logger: logger,
	}
	return reg, ReadHandle{reg: reg}, WriteHandle{reg: reg}, c
}

// Sender returns a cloneable handle bound to this controller's intake.
func (c *Controller) Sender() SenderHandle {
	return SenderHandle{ch: c.ch, closed: c.closed}
}

// CloseIntake closes the controller's command channel, which Run treats
// as a graceful shutdown request on its next receive. Safe to call more
// than once and from any goroutine; only the first call takes effect.
// Callers must stop sending through any SenderHandle before calling this
// or risk a send-on-closed-channel panic.
func (c *Controller) CloseIntake() {
	c.closeIntakeOnce.Do(func() { close(c.ch) })
}

// Run processes messages until ctx is cancelled or the intake channel is
// closed. A closed intake is treated as a graceful shutdown request: the
// controller logs and returns rather than panicking on the next receive.
func (c *Controller) Run(ctx context.Context) {
	defer c.markClosed()
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("registry controller stopping: context cancelled")
			return
		case msg, ok := <-c.ch:
			if !ok {
				c.logger.Info("registry controller stopping: intake channel closed")
				return
			}
			c.handle(msg)
		}
	}
}

func (c *Controller) markClosed() {
	c.once.Do(func() { close(c.closed) })
}

func (c *Controller) handle(msg ctrlMsg) {
	switch m := msg.(type) {
	case createMsg:
		c.handleCreate(m)
	case subscribeMsg:
		c.subs = append(c.subs, subscription{plugin: m.plugin, listener: m.listener})
		if m.reply != nil {
			m.reply <- struct{}{}
		}
	default:
		c.logger.Warn("registry controller: unknown message type", "type", fmt.Sprintf("%T", msg))
	}
}

func (c *Controller) handleCreate(m createMsg) {
	// RCU: read-clone-mutate-swap, all under the controller's exclusivity.
	next := c.reg.Load().clone()
	results := applyCreate(next, m.metrics, m.strategy)
	c.reg.store(next)

	var registrations []Registration
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		metric, _ := next.Get(r.ID)
		registrations = append(registrations, Registration{ID: r.ID, Metric: metric})
	}
	if len(registrations) > 0 {
		c.notify(registrations)
	}
	if m.reply != nil {
		m.reply <- results
	}
}

func (c *Controller) notify(registrations []Registration) {
	for _, sub := range c.subs {
		c.invoke(sub, registrations)
	}
}

// invoke isolates a listener panic so one bad plugin cannot take down
// the controller or starve later listeners.
func (c *Controller) invoke(sub subscription, registrations []Registration) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("registry listener panicked", "plugin", string(sub.plugin), "panic", r)
		}
	}()
	sub.listener(registrations)
}

// SenderHandle is the cloneable client-side handle to a Controller's
// intake. Every create()/subscribe() call routes through it.
type SenderHandle struct {
	ch     chan ctrlMsg
	closed chan struct{}
}

func (s SenderHandle) trySend(msg ctrlMsg) error {
	select {
	case <-s.closed:
		return ErrShutdown
	default:
	}
	select {
	case s.ch <- msg:
		return nil
	default:
	}
	select {
	case <-s.closed:
		return ErrShutdown
	default:
		return &ErrFull{Msg: msg}
	}
}

func (s SenderHandle) send(ctx context.Context, msg ctrlMsg) error {
	select {
	case <-s.closed:
		return ErrShutdown
	default:
	}
	select {
	case s.ch <- msg:
		return nil
	case <-s.closed:
		return ErrShutdown
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Create registers metrics, blocking until the controller has capacity.
func (s SenderHandle) Create(ctx context.Context, metrics []models.Metric, strategy DuplicateStrategy) ([]CreateResult, error) {
	reply := make(chan []CreateResult, 1)
	if err := s.send(ctx, createMsg{metrics: metrics, strategy: strategy, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case results := <-reply:
		return results, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closed:
		return nil, ErrShutdown
	}
}

// TryCreate is the non-blocking variant of Create: it fails with ErrFull
// rather than waiting for intake capacity.
func (s SenderHandle) TryCreate(metrics []models.Metric, strategy DuplicateStrategy) ([]CreateResult, error) {
	reply := make(chan []CreateResult, 1)
	if err := s.trySend(createMsg{metrics: metrics, strategy: strategy, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case results := <-reply:
		return results, nil
	case <-s.closed:
		return nil, ErrShutdown
	}
}

// Subscribe installs listener for plugin, blocking until the controller
// has capacity to accept the registration.
func (s SenderHandle) Subscribe(ctx context.Context, plugin models.PluginName, listener Listener) error {
	reply := make(chan struct{}, 1)
	if err := s.send(ctx, subscribeMsg{plugin: plugin, listener: listener, reply: reply}); err != nil {
		return err
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closed:
		return ErrShutdown
	}
}
