package plugin

import (
	"context"
	"log/slog"

	"github.com/gravitational/trace"

	"github.com/watthouse/agent/models"
	"github.com/watthouse/agent/registry"
	"github.com/watthouse/agent/trigger"
)

// Pace chooses how a source is scheduled.
type Pace int

const (
	// PaceFast runs on the shared cooperative pool.
	PaceFast Pace = iota
	// PaceBlocking runs on a dedicated OS thread.
	PaceBlocking
)

// SourceRegistration is one add_source call captured by a
// RegistrationHandle, ready for the scheduler to build.
type SourceRegistration struct {
	Name   models.ElementName
	Source Source
	Spec   trigger.TriggerSpec
	Pace   Pace
}

// TransformRegistration is one add_transform call.
type TransformRegistration struct {
	Name      models.ElementName
	Transform Transform
}

// OutputRegistration is one add_output/add_blocking_output call.
type OutputRegistration struct {
	Name     models.ElementName
	Output   Output
	Kind     string
	Blocking bool
}

// RegistrationHandle is handed to a plugin Instance's Start method. It
// collects everything the plugin contributes; the core drains it after
// Start returns and before the plugin's elements are spawned.
type RegistrationHandle struct {
	plugin models.PluginName
	sender registry.SenderHandle
	logger *slog.Logger

	sourceDedup    *models.ElementDeduper
	transformDedup *models.ElementDeduper
	outputDedup    *models.ElementDeduper

	Sources    []SourceRegistration
	Transforms []TransformRegistration
	Outputs    []OutputRegistration

	OnPipelineStart    []func(ctx context.Context) error
	OnPipelineShutdown []func(ctx context.Context) error
}

// NewRegistrationHandle constructs an empty handle bound to plugin's
// name, the registry's sender and a scoped logger.
func NewRegistrationHandle(name models.PluginName, sender registry.SenderHandle, logger *slog.Logger) *RegistrationHandle {
	if logger == nil {
		logger = slog.Default()
	}
	return &RegistrationHandle{
		plugin:         name,
		sender:         sender,
		logger:         logger.With("plugin", string(name)),
		sourceDedup:    models.NewElementDeduper(),
		transformDedup: models.NewElementDeduper(),
		outputDedup:    models.NewElementDeduper(),
	}
}

// Logger returns a logger pre-scoped to this plugin's name.
func (h *RegistrationHandle) Logger() *slog.Logger { return h.logger }

// Registry returns the handle's underlying registry sender, for plugins
// that need to register metrics outside of CreateMetric's generic form.
func (h *RegistrationHandle) Registry() registry.SenderHandle { return h.sender }

// AddSource registers a managed source (one the scheduler polls) under a
// plugin-unique element name; autonomous sources cannot be registered
// through it (collisions are suffixed per the element
// naming rule), returning the name actually assigned.
func (h *RegistrationHandle) AddSource(name string, src Source, spec trigger.TriggerSpec, pace Pace) models.ElementName {
	en := h.sourceDedup.Dedup(name)
	h.Sources = append(h.Sources, SourceRegistration{Name: en, Source: src, Spec: spec, Pace: pace})
	return en
}

// AddTransform appends transform to the plugin's transform chain.
func (h *RegistrationHandle) AddTransform(name string, t Transform) models.ElementName {
	en := h.transformDedup.Dedup(name)
	h.Transforms = append(h.Transforms, TransformRegistration{Name: en, Transform: t})
	return en
}

// AddOutput registers out to run on the shared cooperative pool.
func (h *RegistrationHandle) AddOutput(name string, out Output, kind string) models.ElementName {
	en := h.outputDedup.Dedup(name)
	h.Outputs = append(h.Outputs, OutputRegistration{Name: en, Output: out, Kind: kind})
	return en
}

// AddBlockingOutput registers out with its Blocking flag set. The output
// runtime does not read that flag: the output runs in its own goroutine
// like every other output, not on a dedicated OS thread.
func (h *RegistrationHandle) AddBlockingOutput(name string, out Output) models.ElementName {
	en := h.outputDedup.Dedup(name)
	h.Outputs = append(h.Outputs, OutputRegistration{Name: en, Output: out, Blocking: true})
	return en
}

// OnStart registers a callback the agent invokes while loading the
// plugin, right after its Start returns and before its sources and
// outputs are spawned.
func (h *RegistrationHandle) OnStart(cb func(ctx context.Context) error) {
	h.OnPipelineStart = append(h.OnPipelineStart, cb)
}

// OnShutdown registers a callback invoked once shutdown begins.
func (h *RegistrationHandle) OnShutdown(cb func(ctx context.Context) error) {
	h.OnPipelineShutdown = append(h.OnPipelineShutdown, cb)
}

func valueTypeFor[T any]() (models.ValueType, error) {
	var zero T
	switch any(zero).(type) {
	case uint64:
		return models.TypeU64, nil
	case float64:
		return models.TypeF64, nil
	case bool:
		return models.TypeBool, nil
	case string:
		return models.TypeString, nil
	default:
		return 0, trace.BadParameter("plugin: unsupported metric value type %T", zero)
	}
}

// CreateMetric registers one metric of value type T and returns a
// TypedMetricId scoped to it. Go methods cannot carry their own type
// parameters, so this is a free function taking the handle explicitly,
// mirroring the registration handle's generic create_metric.
func CreateMetric[T any](ctx context.Context, h *RegistrationHandle, name string, unit models.PrefixedUnit, description string, strategy registry.DuplicateStrategy) (models.TypedMetricId[T], error) {
	vt, err := valueTypeFor[T]()
	if err != nil {
		return models.TypedMetricId[T]{}, err
	}
	results, err := h.sender.Create(ctx, []models.Metric{{
		Name:        name,
		Description: description,
		ValueType:   vt,
		Unit:        unit,
	}}, strategy)
	if err != nil {
		return models.TypedMetricId[T]{}, err
	}
	if results[0].Err != nil {
		return models.TypedMetricId[T]{}, results[0].Err
	}
	return models.NewTypedMetricId[T](results[0].ID, vt, vt)
}
