// Package registry implements the process-wide metric registry: a
// read-mostly snapshot of Metric definitions, mutated exclusively by a
// single controller task that serializes every write.
package registry

import (
	"fmt"
	"sync"

	"github.com/watthouse/agent/models"
)

// Snapshot is an immutable view of every metric known to the registry at
// a point in time. Readers hold on to a Snapshot rather than re-locking
// for every field access.
type Snapshot struct {
	metrics []models.Metric
	byName  map[string]models.RawMetricId
}

func emptySnapshot() *Snapshot {
	return &Snapshot{byName: make(map[string]models.RawMetricId)}
}

// clone returns a deep-enough copy suitable for the RCU mutate step: the
// metrics slice and name index are copied so the original snapshot stays
// immutable for any reader still holding it.
func (s *Snapshot) clone() *Snapshot {
	next := &Snapshot{
		metrics: make([]models.Metric, len(s.metrics)),
		byName:  make(map[string]models.RawMetricId, len(s.byName)),
	}
	copy(next.metrics, s.metrics)
	for k, v := range s.byName {
		next.byName[k] = v
	}
	return next
}

// Len reports how many metrics are registered.
func (s *Snapshot) Len() int { return len(s.metrics) }

// Get resolves a RawMetricId to its Metric definition.
func (s *Snapshot) Get(id models.RawMetricId) (models.Metric, bool) {
	if int(id) < 0 || int(id) >= len(s.metrics) {
		return models.Metric{}, false
	}
	return s.metrics[id], true
}

// Lookup resolves a metric name to its id.
func (s *Snapshot) Lookup(name string) (models.RawMetricId, bool) {
	id, ok := s.byName[name]
	return id, ok
}

// All returns every registered metric in id order. The returned slice
// must be treated as read-only.
func (s *Snapshot) All() []models.Metric { return s.metrics }

func (s *Snapshot) insert(m models.Metric) models.RawMetricId {
	id := models.RawMetricId(len(s.metrics))
	s.metrics = append(s.metrics, m)
	s.byName[m.Name] = id
	return id
}

// Registry holds the current Snapshot behind a read-write lock. Readers
// take the read lock just long enough to grab a pointer; writers (only
// ever the controller task) take the write lock to swap it.
type Registry struct {
	mu   sync.RWMutex
	snap *Snapshot
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{snap: emptySnapshot()}
}

// Load returns the current snapshot. Safe for concurrent use.
func (r *Registry) Load() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

func (r *Registry) store(s *Snapshot) {
	r.mu.Lock()
	r.snap = s
	r.mu.Unlock()
}

// ReadHandle is a cheap, cloneable read-only view of a Registry.
type ReadHandle struct {
	reg *Registry
}

// Read returns the current snapshot.
func (h ReadHandle) Read() *Snapshot { return h.reg.Load() }

// WriteHandle grants direct exclusive access to the registry outside the
// controller's RCU path, for callers that already run with exclusivity
// guaranteed by construction (the controller itself, and tests).
type WriteHandle struct {
	reg *Registry
}

// Write applies fn to a clone of the current snapshot and installs the
// result. fn must not retain the snapshot it is given past its return.
func (h WriteHandle) Write(fn func(*Snapshot)) {
	next := h.reg.Load().clone()
	fn(next)
	h.reg.store(next)
}

// DuplicateStrategy controls how create() resolves a name collision.
type DuplicateStrategy struct {
	kind   duplicateKind
	suffix string
}

type duplicateKind int

const (
	duplicateError duplicateKind = iota
	duplicateRename
)

// ErrorOnDuplicate rejects any metric whose name already exists.
func ErrorOnDuplicate() DuplicateStrategy { return DuplicateStrategy{kind: duplicateError} }

// RenameOnDuplicate appends "_<suffix>" (and then "_2", "_3", ...) until a
// colliding name becomes unique, reusing the existing id instead when the
// colliding registration is definitionally identical.
func RenameOnDuplicate(suffix string) DuplicateStrategy {
	return DuplicateStrategy{kind: duplicateRename, suffix: suffix}
}

// DuplicateError is returned for a metric rejected by ErrorOnDuplicate.
type DuplicateError struct {
	Name string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("registry: metric %q already exists", e.Name)
}

// CreateResult is the per-metric outcome of a create() call.
type CreateResult struct {
	ID  models.RawMetricId
	Err *DuplicateError
}

// applyCreate runs the create algorithm against snap in place, returning
// one CreateResult per input metric in order.
func applyCreate(snap *Snapshot, metrics []models.Metric, strategy DuplicateStrategy) []CreateResult {
	results := make([]CreateResult, len(metrics))
	for i, m := range metrics {
		existingID, collides := snap.byName[m.Name]
		if !collides {
			results[i] = CreateResult{ID: snap.insert(m)}
			continue
		}
		switch strategy.kind {
		case duplicateError:
			results[i] = CreateResult{Err: &DuplicateError{Name: m.Name}}
		case duplicateRename:
			if existing, _ := snap.Get(existingID); existing.SameDefinition(m) {
				results[i] = CreateResult{ID: existingID}
				continue
			}
			name := fmt.Sprintf("%s_%s", m.Name, strategy.suffix)
			if _, taken := snap.byName[name]; taken {
				for n := 2; ; n++ {
					candidate := fmt.Sprintf("%s_%d", name, n)
					if _, taken := snap.byName[candidate]; !taken {
						name = candidate
						break
					}
				}
			}
			renamed := m
			renamed.Name = name
			results[i] = CreateResult{ID: snap.insert(renamed)}
		}
	}
	return results
}
