package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomUnitIsIdempotent(t *testing.T) {
	a := CustomUnit("flops")
	b := CustomUnit("flops")
	assert.Equal(t, a, b)
	assert.Equal(t, "flops", a.String())
}

func TestPrefixedUnitString(t *testing.T) {
	pu := UnitWatt.WithPrefix(PrefixMilli)
	assert.Equal(t, "mW", pu.String())
}

func TestValueAccessorsRejectWrongType(t *testing.T) {
	v := U64(42)
	_, ok := v.AsF64()
	assert.False(t, ok)
	got, ok := v.AsU64()
	require.True(t, ok)
	assert.Equal(t, uint64(42), got)
}

func TestAttributesWithPreservesOriginal(t *testing.T) {
	base := Attributes{{Key: "a", Value: U64(1)}}
	next := base.With("b", U64(2))
	assert.Len(t, base, 1)
	assert.Len(t, next, 2)
	v, ok := next.Get("b")
	require.True(t, ok)
	u, _ := v.AsU64()
	assert.Equal(t, uint64(2), u)
}

func TestEntityAccessorsDiscriminateKind(t *testing.T) {
	r := CpuPackage(3)
	_, ok := r.Pid()
	assert.False(t, ok)
	id, ok := r.PackageID()
	require.True(t, ok)
	assert.Equal(t, uint32(3), id)
}

func TestNewPointRejectsMismatchedValueType(t *testing.T) {
	_, err := NewPoint(time.Now(), RawMetricId(0), TypeU64, LocalMachine(), ConsumerLocalMachine(), F64(1.5))
	assert.Error(t, err)

	p, err := NewPoint(time.Now(), RawMetricId(0), TypeU64, LocalMachine(), ConsumerLocalMachine(), U64(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), mustU64(t, p.Value))
}

func mustU64(t *testing.T, v Value) uint64 {
	t.Helper()
	got, ok := v.AsU64()
	require.True(t, ok)
	return got
}

func TestMeasurementBufferPushClearRetain(t *testing.T) {
	buf := NewMeasurementBuffer(4)
	buf.Push(MeasurementPoint{Value: U64(1)})
	buf.Push(MeasurementPoint{Value: U64(2)})
	assert.Equal(t, 2, buf.Len())

	buf.Retain(func(p MeasurementPoint) bool {
		u, _ := p.Value.AsU64()
		return u != 1
	})
	assert.Equal(t, 1, buf.Len())

	buf.Clear()
	assert.Equal(t, 0, buf.Len())
}

func TestMeasurementBufferMapPropagatesError(t *testing.T) {
	buf := NewMeasurementBuffer(1)
	buf.Push(MeasurementPoint{Value: U64(1)})
	err := buf.Map(func(p MeasurementPoint) (MeasurementPoint, error) {
		return p, assertErr()
	})
	assert.Error(t, err)
}

func assertErr() error { return errPlaceholder{} }

type errPlaceholder struct{}

func (errPlaceholder) Error() string { return "rejected" }

func TestElementDeduperSuffixesCollisions(t *testing.T) {
	d := NewElementDeduper()
	assert.Equal(t, ElementName("cpu"), d.Dedup("cpu"))
	assert.Equal(t, ElementName("cpu_1"), d.Dedup("cpu"))
	assert.Equal(t, ElementName("cpu_2"), d.Dedup("cpu"))
	assert.Equal(t, ElementName("mem"), d.Dedup("mem"))
}

func TestValidateElementNameRejectsSlash(t *testing.T) {
	assert.Error(t, ValidateElementName("a/b"))
	assert.NoError(t, ValidateElementName("a-b_2"))
}

func TestNewTypedMetricIdRejectsWrongType(t *testing.T) {
	_, err := NewTypedMetricId[float64](RawMetricId(1), TypeU64, TypeF64)
	assert.Error(t, err)

	id, err := NewTypedMetricId[float64](RawMetricId(1), TypeF64, TypeF64)
	require.NoError(t, err)
	assert.Equal(t, RawMetricId(1), id.Raw())
}
