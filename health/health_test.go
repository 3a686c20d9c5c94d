package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateAggregatesWorstStatus(t *testing.T) {
	e := New()
	e.Register("registry", func(ctx context.Context) Result {
		return Result{Status: StatusHealthy}
	})
	e.Register("scheduler", func(ctx context.Context) Result {
		return Result{Status: StatusDegraded, Issues: []string{"one source lagging"}}
	})

	overall := e.Evaluate(context.Background())
	assert.Equal(t, StatusDegraded, overall.Status)
	assert.Equal(t, 2, overall.Summary.Total)
	assert.Equal(t, 1, overall.Summary.Healthy)
	assert.Equal(t, 1, overall.Summary.Degraded)
}

func TestEvaluateUnhealthyDominates(t *testing.T) {
	e := New()
	e.Register("a", func(ctx context.Context) Result { return Result{Status: StatusDegraded} })
	e.Register("b", func(ctx context.Context) Result { return Result{Status: StatusUnhealthy} })

	overall := e.Evaluate(context.Background())
	assert.Equal(t, StatusUnhealthy, overall.Status)
}

func TestHandlerReturns503WhenUnhealthy(t *testing.T) {
	e := New()
	e.Register("bad", func(ctx context.Context) Result { return Result{Status: StatusUnhealthy} })

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUnregisterRemovesCheck(t *testing.T) {
	e := New()
	e.Register("transient", func(ctx context.Context) Result { return Result{Status: StatusUnhealthy} })
	e.Unregister("transient")

	overall := e.Evaluate(context.Background())
	assert.Equal(t, StatusHealthy, overall.Status)
	assert.Equal(t, 0, overall.Summary.Total)
}
