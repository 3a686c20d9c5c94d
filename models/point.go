package models

import (
	"fmt"
	"time"
)

// MeasurementPoint is one sample produced by a source: a metric reading
// for a (resource, consumer) pair at a point in time, with attributes.
type MeasurementPoint struct {
	Timestamp time.Time
	Metric    RawMetricId
	Resource  Resource
	Consumer  Consumer
	Value     Value
	Attrs     Attributes
}

// WithAttr returns a copy of p with an extra attribute appended. Used by
// transforms that enrich points without mutating the buffer in place.
func (p MeasurementPoint) WithAttr(key string, value Value) MeasurementPoint {
	p.Attrs = p.Attrs.With(key, value)
	return p
}

// NewPoint constructs a point for a metric known to carry value type declared,
// returning an error if value does not match.
func NewPoint(ts time.Time, id RawMetricId, declared ValueType, resource Resource, consumer Consumer, value Value) (MeasurementPoint, error) {
	if value.Type() != declared {
		return MeasurementPoint{}, fmt.Errorf("models: value type %s does not match metric value type %s", value.Type(), declared)
	}
	return MeasurementPoint{
		Timestamp: ts,
		Metric:    id,
		Resource:  resource,
		Consumer:  consumer,
		Value:     value,
	}, nil
}

// MeasurementBuffer is an ordered, mutable sequence of points. Sources
// write into one per poll; transforms read and rewrite it in place;
// outputs drain it. The zero value is an empty, usable buffer.
type MeasurementBuffer struct {
	points []MeasurementPoint
}

// NewMeasurementBuffer preallocates a buffer for an expected point count,
// mirroring the capacity hints sources give when declaring their pacing.
func NewMeasurementBuffer(capacityHint int) *MeasurementBuffer {
	if capacityHint < 0 {
		capacityHint = 0
	}
	return &MeasurementBuffer{points: make([]MeasurementPoint, 0, capacityHint)}
}

// Len returns the number of points currently buffered.
func (b *MeasurementBuffer) Len() int { return len(b.points) }

// Points returns the buffered points. The returned slice aliases the
// buffer's storage and must not be retained past the next mutation.
func (b *MeasurementBuffer) Points() []MeasurementPoint { return b.points }

// Push appends a point to the buffer.
func (b *MeasurementBuffer) Push(p MeasurementPoint) { b.points = append(b.points, p) }

// Clear empties the buffer while retaining its backing array, so a source
// can reuse the same buffer across polls without reallocating.
func (b *MeasurementBuffer) Clear() { b.points = b.points[:0] }

// Retain keeps only the points for which keep returns true, compacting
// in place. Used by transforms that drop points rather than rewrite them.
func (b *MeasurementBuffer) Retain(keep func(MeasurementPoint) bool) {
	out := b.points[:0]
	for _, p := range b.points {
		if keep(p) {
			out = append(out, p)
		}
	}
	b.points = out
}

// Map rewrites every point in place via f. If f returns an error, the
// points before the failing one have already been rewritten, while the
// failing point and every point after it are left unmodified, and
// the error is returned so the caller can apply its own-input-rejection
// policy (drop the point, or treat it as fatal for the transform).
func (b *MeasurementBuffer) Map(f func(MeasurementPoint) (MeasurementPoint, error)) error {
	for i, p := range b.points {
		np, err := f(p)
		if err != nil {
			return fmt.Errorf("models: transform rejected point %d: %w", i, err)
		}
		b.points[i] = np
	}
	return nil
}

// MeasurementAccumulator is the write-only view of a buffer handed to
// sources, so a source implementation cannot read or rewind points that
// came from earlier polls.
type MeasurementAccumulator interface {
	Push(p MeasurementPoint)
}

var _ MeasurementAccumulator = (*MeasurementBuffer)(nil)
