// Package eventbus is the process-wide typed publish/subscribe bus for
// events that cross plugin boundaries, such as a request to start or
// stop observing a specific process tree.
package eventbus

import (
	"log/slog"
	"sync"

	"github.com/watthouse/agent/models"
)

// Kind discriminates the two events the bus carries.
type Kind int

const (
	StartConsumerMeasurement Kind = iota
	EndConsumerMeasurement
)

func (k Kind) String() string {
	if k == EndConsumerMeasurement {
		return "end_consumer_measurement"
	}
	return "start_consumer_measurement"
}

// Target names one resource/consumer pair an event applies to.
type Target struct {
	Resource models.Resource
	Consumer models.Consumer
}

// Event is one emission on the bus.
type Event struct {
	Kind    Kind
	Targets []Target
}

// Subscriber receives every event emitted after it subscribed. It must
// not block; a subscriber that panics is isolated and logged, and does
// not prevent later subscribers in the same emission from running.
type Subscriber func(Event)

// Bus is the process-wide event bus. The zero value is not usable; use
// New.
type Bus struct {
	mu     sync.Mutex
	subs   []Subscriber
	logger *slog.Logger
}

// New returns a ready-to-use Bus.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger}
}

// Subscribe appends fn to the dispatch list. Subscribers are invoked in
// registration order on every subsequent emission.
func (b *Bus) Subscribe(fn Subscriber) {
	b.mu.Lock()
	b.subs = append(b.subs, fn)
	b.mu.Unlock()
}

// EmitStart notifies subscribers that targets are now being observed.
func (b *Bus) EmitStart(targets []Target) { b.emit(Event{Kind: StartConsumerMeasurement, Targets: targets}) }

// EmitEnd notifies subscribers that targets are no longer being observed.
func (b *Bus) EmitEnd(targets []Target) { b.emit(Event{Kind: EndConsumerMeasurement, Targets: targets}) }

func (b *Bus) emit(ev Event) {
	b.mu.Lock()
	subs := make([]Subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, sub := range subs {
		b.invoke(sub, ev)
	}
}

func (b *Bus) invoke(sub Subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("eventbus subscriber panicked", "event", ev.Kind.String(), "panic", r)
		}
	}()
	sub(ev)
}
