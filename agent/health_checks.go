package agent

import (
	"context"

	"github.com/watthouse/agent/health"
)

// wireHealth registers the standard set of subsystem checks every
// Agent carries, mirroring a facade that probes its own composed
// runtimes rather than delegating health entirely to a plugin.
func (a *Agent) wireHealth() {
	a.health.Register("registry", a.checkRegistry)
	a.health.Register("governor", a.checkGovernor)
}

func (a *Agent) checkRegistry(ctx context.Context) health.Result {
	snap := a.readHandle.Read()
	return health.Result{
		Status:   health.StatusHealthy,
		Metadata: map[string]any{"metric_count": snap.Len()},
	}
}

func (a *Agent) checkGovernor(ctx context.Context) health.Result {
	return health.Result{
		Status:   health.StatusHealthy,
		Metadata: map[string]any{"in_flight": a.governor.InFlight()},
	}
}
