package plugin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watthouse/agent/models"
	"github.com/watthouse/agent/registry"
	"github.com/watthouse/agent/trigger"
)

func newTestSender(t *testing.T) registry.SenderHandle {
	t.Helper()
	_, _, _, ctrl := registry.NewController(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { ctrl.Run(ctx); close(done) }()
	t.Cleanup(func() { cancel(); <-done })
	return ctrl.Sender()
}

type noopSource struct{}

func (noopSource) Poll(ctx context.Context, acc models.MeasurementAccumulator, ts time.Time) error {
	return nil
}

func TestAddSourceDedupesNames(t *testing.T) {
	h := NewRegistrationHandle("demo", newTestSender(t), nil)
	n1 := h.AddSource("cpu", noopSource{}, trigger.TriggerSpec{}, PaceFast)
	n2 := h.AddSource("cpu", noopSource{}, trigger.TriggerSpec{}, PaceFast)
	assert.Equal(t, models.ElementName("cpu"), n1)
	assert.Equal(t, models.ElementName("cpu_1"), n2)
	assert.Len(t, h.Sources, 2)
}

func TestCreateMetricRejectsWrongGoType(t *testing.T) {
	h := NewRegistrationHandle("demo", newTestSender(t), nil)
	_, err := CreateMetric[int](context.Background(), h, "bad", models.UnitWatt.WithPrefix(models.PrefixNone), "", registry.ErrorOnDuplicate())
	assert.Error(t, err)
}

func TestCreateMetricRegistersTypedId(t *testing.T) {
	h := NewRegistrationHandle("demo", newTestSender(t), nil)
	id, err := CreateMetric[float64](context.Background(), h, "cpu_power", models.UnitWatt.WithPrefix(models.PrefixNone), "cpu power draw", registry.ErrorOnDuplicate())
	require.NoError(t, err)
	assert.Equal(t, models.RawMetricId(0), id.Raw())
}
