// Package transform implements the transform runtime: an ordered,
// individually-enabled chain of plugin.Transform elements applied to
// every buffer moving from the source scheduler to the output runtime.
package transform

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/watthouse/agent/models"
	"github.com/watthouse/agent/plugin"
	"github.com/watthouse/agent/registry"
	"github.com/watthouse/agent/selector"
)

// Entry is one step of the chain: a named transform plus its current
// enabled state.
type Entry struct {
	Name      selector.Name
	Transform plugin.Transform
	enabled   atomic.Bool
}

// Chain applies every enabled transform, in registration order, to each
// buffer it is handed. A rejected buffer (plugin.UnexpectedInputError)
// is dropped and logged, not treated as fatal; any other error aborts
// the chain for that buffer only.
type Chain struct {
	mu      sync.RWMutex
	entries []*Entry
	reg     registry.ReadHandle
	logger  *slog.Logger
}

// New builds an empty chain reading registry snapshots from reg.
func New(reg registry.ReadHandle, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{reg: reg, logger: logger.With("component", "transform.chain")}
}

// Add appends t to the end of the chain, enabled by default.
func (c *Chain) Add(plug models.PluginName, reg plugin.TransformRegistration) *Entry {
	e := &Entry{
		Name:      selector.Name{Kind: selector.KindTransform, Plugin: plug, Element: reg.Name},
		Transform: reg.Transform,
	}
	e.enabled.Store(true)
	c.mu.Lock()
	c.entries = append(c.entries, e)
	c.mu.Unlock()
	return e
}

// SetEnabled toggles every entry matching matcher.
func (c *Chain) SetEnabled(matcher selector.Pattern, enabled bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		if matcher.Match(e.Name) {
			e.enabled.Store(enabled)
		}
	}
}

// Apply runs buf through every enabled entry in order. It returns the
// final buffer (nil if a transform dropped it) and whether processing
// should continue to the output runtime.
func (c *Chain) Apply(buf *models.MeasurementBuffer) (*models.MeasurementBuffer, bool) {
	c.mu.RLock()
	entries := make([]*Entry, len(c.entries))
	copy(entries, c.entries)
	c.mu.RUnlock()

	ctx := plugin.TransformContext{Registry: c.reg.Read()}
	for _, e := range entries {
		if !e.enabled.Load() {
			continue
		}
		if err := c.applyOne(e, buf, ctx); err != nil {
			if plugin.IsUnexpectedInput(err) {
				c.logger.Warn("transform rejected buffer", "transform", e.Name.String(), "err", err)
				return nil, false
			}
			c.logger.Error("transform failed", "transform", e.Name.String(), "err", err)
			return nil, false
		}
	}
	return buf, true
}

// applyOne isolates a transform panic so one misbehaving plugin cannot
// take the whole chain down.
func (c *Chain) applyOne(e *Entry, buf *models.MeasurementBuffer, ctx plugin.TransformContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = plugin.NewElementError(e.Name.String(), panicError{r})
		}
	}()
	return e.Transform.Apply(buf, ctx)
}

type panicError struct{ v any }

func (p panicError) Error() string { return "transform panicked" }
