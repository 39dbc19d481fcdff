// Package orchestrator runs an ExecutionPlan to completion: phase
// barriers, per-adapter rate limiting and timeouts, deterministic
// scalar/list/dict merge across connectors in the same phase, budget and
// confidence-driven early stopping, and dedup acceptance of every mapped
// candidate. Grounded on orchestrator.py's Orchestrator.execute /
// _execute_phase / _should_continue_execution and adapters.py's
// ConnectorAdapter.execute.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edinburghfinds/lensfeed/internal/adapter"
	"github.com/edinburghfinds/lensfeed/internal/dedup"
	"github.com/edinburghfinds/lensfeed/internal/engine"
	"github.com/edinburghfinds/lensfeed/internal/model"
	"github.com/edinburghfinds/lensfeed/internal/planner"
	"github.com/edinburghfinds/lensfeed/internal/queryfeatures"
)

// DefaultFetchTimeout bounds a single adapter call when its spec does not
// name a more specific timeout.
const DefaultFetchTimeout = 30 * time.Second

// RateLimiter gates an adapter's daily call budget. Implementations back
// onto the persistence layer's connector_usage table.
type RateLimiter interface {
	// Allow reports whether source may run today, and increments its usage
	// counter if so.
	Allow(ctx context.Context, source string, limitPerDay int) (bool, error)
}

// Orchestrator executes an ExecutionPlan against a live adapter registry.
type Orchestrator struct {
	registry    *adapter.Registry
	rateLimiter RateLimiter
}

func New(registry *adapter.Registry, rateLimiter RateLimiter) *Orchestrator {
	return &Orchestrator{registry: registry, rateLimiter: rateLimiter}
}

// Execute runs the plan's phases in discovery -> structured -> enrichment
// order, applying pre/post early-stopping checks, and returns the final
// OrchestratorState.
func (o *Orchestrator) Execute(ctx context.Context, request engine.IngestRequest, features queryfeatures.Features, plan planner.ExecutionPlan) *engine.OrchestratorState {
	state := engine.NewOrchestratorState()

	phases := []adapter.Phase{adapter.PhaseDiscovery, adapter.PhaseStructured, adapter.PhaseEnrichment}
	for _, phase := range phases {
		phase := phase
		if !o.shouldContinue(&phase, request, plan, state) {
			break
		}
		o.executePhase(ctx, phase, request, features, plan, state)
		if !o.shouldContinue(nil, request, plan, state) {
			break
		}
	}

	return state
}

// connectorResult is everything one adapter run contributes to shared
// state, collected so the merge step can apply trust-based conflict
// resolution after every connector in the phase has finished.
type connectorResult struct {
	node          planner.ConnectorNode
	metric        *engine.ConnectorMetric
	runErr        *engine.RunError
	mapped        []model.Candidate
	confidence    float64
	hasConfidence bool
}

// scalarUpdate tracks one scalar-field write within a phase for
// trust/alphabetical conflict resolution.
type scalarUpdate struct {
	value         float64
	trustLevel    int
	connectorName string
}

// executePhase runs every node scheduled for phase, in alphabetical name
// order, fanning them out concurrently via errgroup since nothing within
// one phase may depend on another's output (cross-phase dependencies are
// satisfied by the barrier itself). Confidence is the one scalar field
// this domain actually contends over; it resolves with the same
// trust-then-name tie-break the original applies generically.
func (o *Orchestrator) executePhase(ctx context.Context, phase adapter.Phase, request engine.IngestRequest, features queryfeatures.Features, plan planner.ExecutionPlan, state *engine.OrchestratorState) {
	var nodes []planner.ConnectorNode
	for _, node := range plan.Nodes {
		if node.Spec.Phase == phase {
			nodes = append(nodes, node)
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Spec.Name < nodes[j].Spec.Name })

	results := make([]connectorResult, len(nodes))
	group, groupCtx := errgroup.WithContext(ctx)

	for i, node := range nodes {
		i, node := i, node
		if !planner.ShouldRun(node, runtimeStateOf(state)) {
			continue
		}
		group.Go(func() error {
			results[i] = o.runConnector(groupCtx, node, request, features)
			return nil
		})
	}
	_ = group.Wait()

	updates := map[string]scalarUpdate{}
	var allMapped []model.Candidate

	for _, r := range results {
		if r.metric != nil {
			state.Metrics[r.node.Spec.Name] = r.metric
			state.BudgetSpentUSD += r.metric.CostUSD
		}
		if r.runErr != nil {
			state.Errors = append(state.Errors, *r.runErr)
		}
		allMapped = append(allMapped, r.mapped...)

		if r.hasConfidence {
			existing, ok := updates["confidence"]
			if !ok || r.node.Spec.TrustLevel > existing.trustLevel ||
				(r.node.Spec.TrustLevel == existing.trustLevel && r.node.Spec.Name > existing.connectorName) {
				updates["confidence"] = scalarUpdate{value: r.confidence, trustLevel: r.node.Spec.TrustLevel, connectorName: r.node.Spec.Name}
			}
		}
	}

	if u, ok := updates["confidence"]; ok {
		state.Confidence = u.value
	}

	state.Candidates = append(state.Candidates, allMapped...)

	for _, c := range allMapped {
		acceptResult := dedup.Accept(c, state.AcceptedEntities, state.AcceptedEntityKeys, state.Seeds)
		if acceptResult.Accepted {
			if acceptResult.Replaced {
				replaceAccepted(state, acceptResult.ReplacedKey, c)
			} else {
				state.AcceptedEntities = append(state.AcceptedEntities, c)
			}
			state.AcceptedEntityKeys[acceptResult.Key] = struct{}{}
		}
	}
}

func replaceAccepted(state *engine.OrchestratorState, replacedKey string, newCandidate model.Candidate) {
	for i, accepted := range state.AcceptedEntities {
		if dedup.GenerateEntityKey(accepted, state.Seeds) == replacedKey {
			state.AcceptedEntities[i] = newCandidate
			delete(state.AcceptedEntityKeys, replacedKey)
			return
		}
	}
}

func runtimeStateOf(state *engine.OrchestratorState) planner.RuntimeState {
	return planner.RuntimeState{
		CandidatesEmpty:       len(state.Candidates) == 0,
		AcceptedEntitiesEmpty: len(state.AcceptedEntities) == 0,
		Context:               state.Evidence,
	}
}

// runConnector executes a single adapter: rate limit check, query
// translation, timeout-bounded fetch, envelope unwrap, per-item mapping.
// Every failure mode (rate limit, timeout, fetch error) is non-fatal: it
// is recorded as a metric/error and the phase continues.
func (o *Orchestrator) runConnector(ctx context.Context, node planner.ConnectorNode, request engine.IngestRequest, features queryfeatures.Features) connectorResult {
	start := time.Now()
	name := node.Spec.Name

	if o.rateLimiter != nil {
		allowed, err := o.rateLimiter.Allow(ctx, name, node.Spec.RateLimitPerDay)
		if err == nil && !allowed {
			msg := fmt.Sprintf("rate limit exceeded (%d/day)", node.Spec.RateLimitPerDay)
			return connectorResult{
				node:   node,
				metric: &engine.ConnectorMetric{Executed: false, Error: msg, RateLimited: true},
				runErr: &engine.RunError{Connector: name, Error: msg, RateLimited: true},
			}
		}
	}

	impl, spec, ok := o.registry.Get(name)
	if !ok {
		msg := fmt.Sprintf("adapter not registered: %s", name)
		return connectorResult{
			node:   node,
			metric: &engine.ConnectorMetric{Executed: false, Error: msg},
			runErr: &engine.RunError{Connector: name, Error: msg},
		}
	}

	translated := adapter.Translate(name, request.Query, features)

	timeout := DefaultFetchTimeout
	if spec.TimeoutSeconds > 0 {
		timeout = time.Duration(spec.TimeoutSeconds) * time.Second
	}
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := impl.Fetch(fetchCtx, translated)
	elapsedMS := time.Since(start).Milliseconds()

	if err != nil {
		msg := err.Error()
		if fetchCtx.Err() == context.DeadlineExceeded {
			msg = fmt.Sprintf("connector timed out: %s", msg)
		}
		return connectorResult{
			node:   node,
			metric: &engine.ConnectorMetric{Executed: false, Error: msg, ExecutionTimeMS: elapsedMS},
			runErr: &engine.RunError{Connector: name, Error: msg, ExecutionTimeMS: elapsedMS},
		}
	}

	items := adapter.ExtractItems(raw)
	var mapped []model.Candidate
	mappingFailures := 0
	for _, item := range items {
		candidate, mapErr := adapter.MapItem(name, item)
		if mapErr != nil {
			mappingFailures++
			continue
		}
		mapped = append(mapped, candidate)
	}

	return connectorResult{
		node: node,
		metric: &engine.ConnectorMetric{
			Executed:        true,
			ItemsReceived:   len(items),
			CandidatesAdded: len(mapped),
			MappingFailures: mappingFailures,
			ExecutionTimeMS: elapsedMS,
			CostUSD:         node.Spec.EstimatedCostUSD,
		},
		mapped: mapped,
	}
}

// shouldContinue implements the three early-stopping families: budget
// pre/post check, RESOLVE_ONE confidence-plus-entity check, DISCOVER_MANY
// target-count check. nextPhase is non-nil for the pre-phase check and nil
// for the post-phase check.
func (o *Orchestrator) shouldContinue(nextPhase *adapter.Phase, request engine.IngestRequest, plan planner.ExecutionPlan, state *engine.OrchestratorState) bool {
	if nextPhase != nil && request.BudgetUSD != nil {
		var estimated float64
		for _, node := range plan.Nodes {
			if node.Spec.Phase == *nextPhase {
				estimated += node.Spec.EstimatedCostUSD
			}
		}
		if state.BudgetSpentUSD+estimated > *request.BudgetUSD {
			return false
		}
	}

	if request.BudgetUSD != nil && state.BudgetSpentUSD >= *request.BudgetUSD {
		return false
	}

	if request.Mode == engine.ModeResolveOne && request.MinConfidence != nil {
		if state.Confidence >= *request.MinConfidence && len(state.AcceptedEntities) >= 1 {
			return false
		}
	}

	if request.Mode == engine.ModeDiscoverMany && request.TargetEntityCount != nil {
		if len(state.AcceptedEntities) >= *request.TargetEntityCount {
			return false
		}
	}

	return true
}
