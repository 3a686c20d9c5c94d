package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watthouse/agent/models"
	"github.com/watthouse/agent/plugin"
	"github.com/watthouse/agent/registry"
	"github.com/watthouse/agent/selector"
)

type addTagTransform struct{ key, value string }

func (t addTagTransform) Apply(buf *models.MeasurementBuffer, ctx plugin.TransformContext) error {
	return buf.Map(func(p models.MeasurementPoint) (models.MeasurementPoint, error) {
		return p.WithAttr(t.key, models.Str(t.value)), nil
	})
}

type rejectingTransform struct{}

func (rejectingTransform) Apply(buf *models.MeasurementBuffer, ctx plugin.TransformContext) error {
	return &plugin.UnexpectedInputError{Reason: "wrong shape"}
}

type panickingTransform struct{}

func (panickingTransform) Apply(buf *models.MeasurementBuffer, ctx plugin.TransformContext) error {
	panic("boom")
}

func newReadHandle(t *testing.T) registry.ReadHandle {
	t.Helper()
	_, rh, _, _ := registry.NewController(nil)
	return rh
}

func TestChainAppliesEntriesInOrder(t *testing.T) {
	c := New(newReadHandle(t), nil)
	c.Add(models.PluginName("p"), plugin.TransformRegistration{Name: models.ElementName("t1"), Transform: addTagTransform{key: "step", value: "t1"}})
	c.Add(models.PluginName("p"), plugin.TransformRegistration{Name: models.ElementName("t2"), Transform: addTagTransform{key: "step", value: "t2"}})

	buf := models.NewMeasurementBuffer(1)
	buf.Push(models.MeasurementPoint{Value: models.U64(1)})
	out, ok := c.Apply(buf)
	require.True(t, ok)
	assert.Same(t, buf, out)
	attrs := out.Points()[0].Attrs
	require.Len(t, attrs, 2)
	assert.Equal(t, models.Str("t1"), attrs[0].Value)
	assert.Equal(t, models.Str("t2"), attrs[1].Value)
}

func TestChainDropsOnUnexpectedInput(t *testing.T) {
	c := New(newReadHandle(t), nil)
	c.Add(models.PluginName("p"), plugin.TransformRegistration{Name: models.ElementName("reject"), Transform: rejectingTransform{}})

	_, ok := c.Apply(models.NewMeasurementBuffer(1))
	assert.False(t, ok)
}

func TestChainDisabledEntryIsSkipped(t *testing.T) {
	c := New(newReadHandle(t), nil)
	e := c.Add(models.PluginName("p"), plugin.TransformRegistration{Name: models.ElementName("reject"), Transform: rejectingTransform{}})
	c.SetEnabled(selector.MustParse(""), false)
	_ = e

	_, ok := c.Apply(models.NewMeasurementBuffer(1))
	assert.True(t, ok, "disabled transform must not reject the buffer")
}

func TestChainIsolatesPanic(t *testing.T) {
	c := New(newReadHandle(t), nil)
	c.Add(models.PluginName("p"), plugin.TransformRegistration{Name: models.ElementName("panicker"), Transform: panickingTransform{}})

	_, ok := c.Apply(models.NewMeasurementBuffer(1))
	assert.False(t, ok)
}
