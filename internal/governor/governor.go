// Package governor gates how many blocking sources/outputs may run
// concurrently, adapted from a cache manager's concurrency semaphore.
// It carries none of that manager's persistence behavior: the core
// never writes a measurement to disk, so there is nothing here to
// spill or checkpoint.
package governor

import "context"

// Config bounds the number of concurrent dedicated-thread elements a
// pipeline will host at once. Zero means unbounded.
type Config struct {
	MaxInFlight int
}

// Governor is a counting semaphore gating access to a limited resource
// (OS threads hosting blocking sources/outputs).
type Governor struct {
	slots chan struct{}
}

// New builds a Governor from cfg. A non-positive MaxInFlight disables
// the limit entirely.
func New(cfg Config) *Governor {
	g := &Governor{}
	if cfg.MaxInFlight > 0 {
		g.slots = make(chan struct{}, cfg.MaxInFlight)
	}
	return g
}

// Acquire blocks until a slot is free or ctx is cancelled.
func (g *Governor) Acquire(ctx context.Context) error {
	if g.slots == nil {
		return nil
	}
	select {
	case g.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot previously obtained from Acquire. Safe to call
// even when no limit is configured.
func (g *Governor) Release() {
	if g.slots == nil {
		return
	}
	select {
	case <-g.slots:
	default:
	}
}

// InFlight reports how many slots are currently held, for diagnostics.
func (g *Governor) InFlight() int {
	if g.slots == nil {
		return 0
	}
	return len(g.slots)
}
