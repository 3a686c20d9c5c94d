// Package plugin defines the contract external code implements to
// extend an agent with sources, transforms and outputs, plus the
// registration handle the core hands each plugin at startup.
package plugin

import (
	"context"
	"time"

	"github.com/watthouse/agent/models"
	"github.com/watthouse/agent/registry"
)

// Plugin is the top-level contract a plugin package implements.
type Plugin interface {
	Name() string
	Version() string
	// DefaultConfig returns the plugin's default configuration, or nil
	// if it requires none.
	DefaultConfig() map[string]any
	// Init validates config and builds a running instance.
	Init(config map[string]any) (Instance, error)
}

// Instance is a plugin after Init, ready to register its elements and
// later to be told the pipeline is stopping.
type Instance interface {
	// Start registers metrics, sources, transforms, outputs and event
	// subscribers against h.
	Start(h *RegistrationHandle) error
	// Stop finalizes the plugin instance. Called once during agent
	// shutdown, after the pipeline-shutdown callbacks and before the
	// pipeline's tasks are cancelled, so its elements may still be
	// running when it is called.
	Stop() error
}

// Source polls for measurements on its own schedule, driven either by
// the scheduler (managed) or by its own task (autonomous).
type Source interface {
	Poll(ctx context.Context, acc models.MeasurementAccumulator, timestamp time.Time) error
}

// AutonomousSource is a source that manages its own task, receiving
// only a cancellation context and the send side of its output channel.
type AutonomousSource interface {
	Run(ctx context.Context, out chan<- *models.MeasurementBuffer) error
}

// TransformContext is passed to every Transform.Apply call.
type TransformContext struct {
	Registry *registry.Snapshot
}

// Transform rewrites or filters a buffer in place.
type Transform interface {
	Apply(buf *models.MeasurementBuffer, ctx TransformContext) error
}

// OutputContext is passed to every Output.Write call.
type OutputContext struct {
	Registry *registry.Snapshot
}

// Output consumes a buffer, typically by exporting it somewhere.
type Output interface {
	Write(buf *models.MeasurementBuffer, ctx OutputContext) error
}
