// Package adapter defines the uniform contract every data source fulfils,
// the metadata the planner and orchestrator use to schedule it, and the
// registry of concrete source adapters (serper, google_places,
// openstreetmap, government_geojson, overture_release).
package adapter

import (
	"context"
)

// Phase is one of the three sequential execution phases.
type Phase int

const (
	PhaseDiscovery Phase = iota + 1
	PhaseStructured
	PhaseEnrichment
)

func (p Phase) String() string {
	switch p {
	case PhaseDiscovery:
		return "discovery"
	case PhaseStructured:
		return "structured"
	case PhaseEnrichment:
		return "enrichment"
	default:
		return "unknown"
	}
}

// Adapter is the uniform async contract every source fulfils: a unique
// name and a single fetch operation that may fail. Everything else
// (translation, timeouts, mapping, rate limits) lives in the orchestration
// layer wrapped around it.
type Adapter interface {
	SourceName() string
	Fetch(ctx context.Context, query string) (map[string]interface{}, error)
}

// Spec is the adapter metadata supplied at planning time, not by the
// adapter itself.
type Spec struct {
	Name               string
	Phase              Phase
	TrustLevel         int
	SupportsQueryOnly  bool
	EstimatedCostUSD   float64
	TimeoutSeconds     int
	RateLimitPerDay    int
	Requires           []string
	Provides           []string
}

// Registry is the closed set of adapters and their specs known to this
// process. It is built once at startup and never mutated afterwards.
type Registry struct {
	adapters map[string]Adapter
	specs    map[string]Spec
}

// NewRegistry builds an empty registry; callers call Register for each
// concrete adapter they construct.
func NewRegistry() *Registry {
	return &Registry{
		adapters: map[string]Adapter{},
		specs:    map[string]Spec{},
	}
}

// Register adds an adapter and its spec. The spec's Name must match
// adapter.SourceName().
func (r *Registry) Register(a Adapter, spec Spec) {
	r.adapters[spec.Name] = a
	r.specs[spec.Name] = spec
}

// Get returns the adapter and spec for a name, or ok=false if unknown.
func (r *Registry) Get(name string) (Adapter, Spec, bool) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, Spec{}, false
	}
	return a, r.specs[name], true
}

// Names returns every registered adapter name, in registration order is
// not guaranteed; callers that need determinism sort this themselves.
func (r *Registry) Names() map[string]struct{} {
	names := make(map[string]struct{}, len(r.adapters))
	for n := range r.adapters {
		names[n] = struct{}{}
	}
	return names
}

// All returns every registered spec.
func (r *Registry) All() map[string]Spec {
	return r.specs
}
