package models

import "fmt"

// RawMetricId is an opaque dense non-negative id assigned by a registry.
// Invariant: id equals the count of metrics in the registry when it was
// inserted, so ids are stable and packed [0, N).
type RawMetricId uint64

// TypedMetricId pairs a RawMetricId with the value type T it is expected
// to carry. Registering or querying through the wrong type is rejected at
// construction time by NewTypedMetricId.
type TypedMetricId[T any] struct {
	id        RawMetricId
	valueType ValueType
}

// Raw returns the untyped id underneath a TypedMetricId.
func (t TypedMetricId[T]) Raw() RawMetricId { return t.id }

// NewTypedMetricId validates that want matches the metric's declared value
// type before wrapping it. Callers normally obtain a TypedMetricId from
// plugin.CreateMetric, not by calling this directly.
func NewTypedMetricId[T any](id RawMetricId, declared ValueType, want ValueType) (TypedMetricId[T], error) {
	if declared != want {
		var zero TypedMetricId[T]
		return zero, fmt.Errorf("models: metric %d has value type %s, not %s", id, declared, want)
	}
	return TypedMetricId[T]{id: id, valueType: want}, nil
}

// Metric is the immutable definition of a measurable quantity. Metrics are
// created at startup or at runtime via registry requests; they are never
// mutated in place and never removed once registered.
type Metric struct {
	Name        string
	Description string
	ValueType   ValueType
	Unit        PrefixedUnit
}

// Validate checks the structural invariants a Metric must satisfy before
// it can be accepted by a registry: a non-empty name and a recognized
// value type.
func (m Metric) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("models: metric name must not be empty")
	}
	switch m.ValueType {
	case TypeU64, TypeF64, TypeBool, TypeString:
	default:
		return fmt.Errorf("models: metric %q has unrecognized value type %d", m.Name, m.ValueType)
	}
	return nil
}

// SameDefinition reports whether m and other describe the same metric
// (name, unit, value type) for the purposes of the registry's Rename
// duplicate strategy, which reuses an id when a "duplicate" registration
// is in fact identical to the existing one.
func (m Metric) SameDefinition(other Metric) bool {
	return m.Name == other.Name && m.ValueType == other.ValueType && m.Unit == other.Unit
}
