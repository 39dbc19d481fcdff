// Package planner selects the subset of adapters to run for a request and
// arranges them into an ExecutionPlan with inferred dependencies,
// respecting the discovery -> structured -> enrichment phase barrier.
// Grounded on the original execution_plan.py / planner.py DAG-lite design.
package planner

import (
	"sort"
	"strings"

	"github.com/edinburghfinds/lensfeed/internal/adapter"
	"github.com/edinburghfinds/lensfeed/internal/engine"
	"github.com/edinburghfinds/lensfeed/internal/lens"
	"github.com/edinburghfinds/lensfeed/internal/queryfeatures"
)

// ConnectorSpec is the scheduling metadata for one adapter in a plan.
type ConnectorSpec struct {
	Name              string
	Phase             adapter.Phase
	TrustLevel        int
	Requires          []string
	Provides          []string
	SupportsQueryOnly bool
	EstimatedCostUSD  float64
	RateLimitPerDay   int
}

// ConnectorNode wraps a spec with its inferred dependency names.
type ConnectorNode struct {
	Spec         ConnectorSpec
	Dependencies []string
}

// ExecutionPlan is the ordered, dependency-annotated set of adapters to
// run for one request.
type ExecutionPlan struct {
	Nodes []ConnectorNode
}

// AddConnector appends a spec to the plan, inferring its dependencies from
// already-added nodes.
func (p *ExecutionPlan) AddConnector(spec ConnectorSpec) {
	p.Nodes = append(p.Nodes, ConnectorNode{
		Spec:         spec,
		Dependencies: p.inferDependencies(spec),
	})
}

// inferDependencies matches context.* requires entries against the
// provides lists of previously-added nodes. request.* and
// query_features.* requires never create a dependency.
func (p *ExecutionPlan) inferDependencies(spec ConnectorSpec) []string {
	var deps []string
	seen := map[string]struct{}{}

	for _, req := range spec.Requires {
		if !strings.HasPrefix(req, "context.") {
			continue
		}
		for _, node := range p.Nodes {
			for _, provided := range node.Spec.Provides {
				if provided == req {
					if _, ok := seen[node.Spec.Name]; !ok {
						seen[node.Spec.Name] = struct{}{}
						deps = append(deps, node.Spec.Name)
					}
				}
			}
		}
	}
	return deps
}

// BestProvider selects, among the nodes that provide contextKey, the one
// with the highest trust level; ties break on earlier phase, then on
// lexicographically smaller name.
func (p *ExecutionPlan) BestProvider(contextKey string) (ConnectorNode, bool) {
	var candidates []ConnectorNode
	for _, node := range p.Nodes {
		for _, provided := range node.Spec.Provides {
			if provided == contextKey {
				candidates = append(candidates, node)
				break
			}
		}
	}
	if len(candidates) == 0 {
		return ConnectorNode{}, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i].Spec, candidates[j].Spec
		if a.TrustLevel != b.TrustLevel {
			return a.TrustLevel > b.TrustLevel
		}
		if a.Phase != b.Phase {
			return a.Phase < b.Phase
		}
		return a.Name < b.Name
	})
	return candidates[0], true
}

// SortedByPhase returns the plan's nodes ordered discovery -> structured ->
// enrichment, alphabetically by name within each phase.
func (p *ExecutionPlan) SortedByPhase() []ConnectorNode {
	out := append([]ConnectorNode(nil), p.Nodes...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Spec.Phase != out[j].Spec.Phase {
			return out[i].Spec.Phase < out[j].Spec.Phase
		}
		return out[i].Spec.Name < out[j].Spec.Name
	})
	return out
}

// RuntimeState is the subset of orchestrator state the gating check needs
// without importing the full engine.OrchestratorState type.
type RuntimeState struct {
	CandidatesEmpty       bool
	AcceptedEntitiesEmpty bool
	Context               map[string]interface{}
}

// ShouldRun applies the aggregate gating rule: a context-dependent
// connector is skipped iff it does not support query-only execution, both
// candidate sets are empty, and none of its required context keys hold
// data yet.
func ShouldRun(node ConnectorNode, state RuntimeState) bool {
	var contextKeys []string
	for _, req := range node.Spec.Requires {
		if strings.HasPrefix(req, "context.") {
			contextKeys = append(contextKeys, req)
		}
	}
	if len(contextKeys) == 0 {
		return true
	}
	if node.Spec.SupportsQueryOnly {
		return true
	}
	if !state.CandidatesEmpty || !state.AcceptedEntitiesEmpty {
		return true
	}
	for _, key := range contextKeys {
		attr := strings.TrimPrefix(key, "context.")
		if v, ok := state.Context[attr]; ok && !isEmptyValue(v) {
			return true
		}
	}
	return false
}

func isEmptyValue(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []interface{}:
		return len(t) == 0
	case map[string]interface{}:
		return len(t) == 0
	default:
		return false
	}
}

// roster is the engine's fixed adapter metadata table, keyed by name. The
// planner's default (lens-absent) policy and connector_rules evaluation
// both draw specs from here.
var roster = map[string]ConnectorSpec{
	"serper": {
		Name: "serper", Phase: adapter.PhaseDiscovery, TrustLevel: 40,
		Requires: []string{"request.query"}, Provides: []string{"context.candidates"},
		SupportsQueryOnly: true, EstimatedCostUSD: 0.001, RateLimitPerDay: 2500,
	},
	"openstreetmap": {
		Name: "openstreetmap", Phase: adapter.PhaseDiscovery, TrustLevel: 50,
		Requires: []string{"request.query"}, Provides: []string{"context.candidates"},
		SupportsQueryOnly: true, EstimatedCostUSD: 0, RateLimitPerDay: 10000,
	},
	"google_places": {
		Name: "google_places", Phase: adapter.PhaseStructured, TrustLevel: 90,
		Requires: []string{"request.query"}, Provides: []string{"context.candidates"},
		SupportsQueryOnly: true, EstimatedCostUSD: 0.017, RateLimitPerDay: 1000,
	},
	"government_geojson": {
		Name: "government_geojson", Phase: adapter.PhaseStructured, TrustLevel: 95,
		Requires: []string{"request.query"}, Provides: []string{"context.candidates"},
		SupportsQueryOnly: true, EstimatedCostUSD: 0, RateLimitPerDay: 1000,
	},
	"overture_release": {
		Name: "overture_release", Phase: adapter.PhaseEnrichment, TrustLevel: 70,
		Requires: []string{"context.candidates"}, Provides: []string{"context.enriched_data"},
		SupportsQueryOnly: false, EstimatedCostUSD: 0, RateLimitPerDay: 1000,
	},
}

// Roster exposes the fixed adapter metadata table for callers (e.g. the
// CLI, to build adapter specs and to validate the --connector diagnostic
// flag).
func Roster() map[string]ConnectorSpec {
	out := make(map[string]ConnectorSpec, len(roster))
	for k, v := range roster {
		out[k] = v
	}
	return out
}

// sportsKeywords mirrors the original's hardcoded domain-routing check,
// used only when no lens is supplied.
var sportsKeywords = []string{
	"padel", "tennis", "football", "rugby", "swimming", "pool", "pools",
	"sport", "sports", "gym", "fitness", "court", "courts", "pitch",
	"club", "clubs",
}

func looksSportsRelated(query string) bool {
	normalized := strings.ToLower(query)
	for _, kw := range sportsKeywords {
		if strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}

// Select builds an ExecutionPlan for the request. When contract is
// non-nil its connector_rules drive domain-specific additions; in its
// absence the default policy below applies (general discovery +
// authoritative enrichment, mode-sensitive breadth).
func Select(request engine.IngestRequest, features queryfeatures.Features, contract *lens.Contract) ExecutionPlan {
	var names []string

	if request.Mode == engine.ModeResolveOne {
		if !features.LooksLikeCategorySearch {
			names = append(names, "google_places")
		} else {
			names = append(names, "serper", "google_places")
		}
	} else {
		names = append(names, "serper")
		if features.LooksLikeCategorySearch {
			names = append(names, "openstreetmap")
		}
		names = append(names, "google_places")
		if contract == nil && looksSportsRelated(request.Query) {
			names = append(names, "government_geojson")
		}
	}

	if contract != nil {
		for _, rule := range contract.ConnectorRules {
			if connectorRuleMatches(rule, request.Query) {
				names = appendUnique(names, rule.Connector)
			}
		}
	}

	plan := ExecutionPlan{}
	for _, name := range dedupeNames(names) {
		spec, ok := roster[name]
		if !ok {
			continue
		}
		plan.AddConnector(spec)
	}
	return plan
}

// connectorRuleMatches evaluates a connector_rules trigger against the raw
// query. The planner runs before extraction, so it has no canonical values
// yet to match against: the rule's when.value is treated as a keyword
// searched for in the query, the same role the hardcoded sports keyword
// list played before lenses existed.
func connectorRuleMatches(rule lens.ConnectorRule, query string) bool {
	if rule.When.Value == "" {
		return true
	}
	return strings.Contains(strings.ToLower(query), strings.ToLower(rule.When.Value))
}

func appendUnique(names []string, name string) []string {
	for _, n := range names {
		if n == name {
			return names
		}
	}
	return append(names, name)
}

func dedupeNames(names []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
