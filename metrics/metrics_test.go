package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopProviderDiscardsObservations(t *testing.T) {
	p := NewNoopProvider()
	c := p.NewCounter(CounterOpts{CommonOpts: CommonOpts{Name: "x"}})
	c.Inc(1)
	g := p.NewGauge(GaugeOpts{CommonOpts: CommonOpts{Name: "y"}})
	g.Set(3)
	h := p.NewHistogram(HistogramOpts{CommonOpts: CommonOpts{Name: "z"}})
	h.Observe(0.5)
	require.NoError(t, p.Health(context.Background()))
}

func TestPrometheusProviderReusesInstrumentByName(t *testing.T) {
	p := NewPrometheusProvider(PrometheusProviderOptions{})
	opts := CounterOpts{CommonOpts: CommonOpts{Namespace: "agent", Name: "polls_total", Labels: []string{"source"}}}
	c1 := p.NewCounter(opts)
	c2 := p.NewCounter(opts)
	c1.Inc(1, "s1")
	c2.Inc(1, "s1")
	assert.NoError(t, p.Health(context.Background()))
}

func TestPrometheusProviderCardinalityWarning(t *testing.T) {
	p := NewPrometheusProvider(PrometheusProviderOptions{CardinalityLimit: 2})
	g := p.NewGauge(GaugeOpts{CommonOpts: CommonOpts{Name: "per_source", Labels: []string{"source"}}})
	g.Set(1, "a")
	g.Set(1, "b")
	g.Set(1, "c")
	// exceeding the limit must not panic or break subsequent observations.
	g.Set(2, "a")
}
