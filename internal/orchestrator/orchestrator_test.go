package orchestrator

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edinburghfinds/lensfeed/internal/adapter"
	"github.com/edinburghfinds/lensfeed/internal/engine"
	"github.com/edinburghfinds/lensfeed/internal/planner"
	"github.com/edinburghfinds/lensfeed/internal/queryfeatures"
)

type fakeAdapter struct {
	name    string
	results map[string]interface{}
	err     error
}

func (f *fakeAdapter) SourceName() string { return f.name }

func (f *fakeAdapter) Fetch(ctx context.Context, query string) (map[string]interface{}, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type alwaysAllow struct{}

func (alwaysAllow) Allow(ctx context.Context, source string, limitPerDay int) (bool, error) {
	return true, nil
}

type neverAllow struct{}

func (neverAllow) Allow(ctx context.Context, source string, limitPerDay int) (bool, error) {
	return false, nil
}

func serperSpec() planner.ConnectorSpec {
	return planner.ConnectorSpec{
		Name: "serper", Phase: adapter.PhaseDiscovery, TrustLevel: 40,
		Requires: []string{"request.query"}, Provides: []string{"context.candidates"},
		SupportsQueryOnly: true,
	}
}

func googlePlacesSpec() planner.ConnectorSpec {
	return planner.ConnectorSpec{
		Name: "google_places", Phase: adapter.PhaseStructured, TrustLevel: 90,
		Requires: []string{"request.query"}, Provides: []string{"context.candidates"},
		SupportsQueryOnly: true, EstimatedCostUSD: 0.017,
	}
}

func TestExecute_MapsCandidatesFromRegisteredAdapter(t *testing.T) {
	registry := adapter.NewRegistry()
	registry.Register(&fakeAdapter{name: "serper", results: map[string]interface{}{
		"organic": []interface{}{
			map[string]interface{}{"title": "Oriam Sports Centre"},
		},
	}}, adapter.Spec{Name: "serper"})

	plan := planner.ExecutionPlan{}
	plan.AddConnector(serperSpec())

	orch := New(registry, alwaysAllow{})
	request := engine.IngestRequest{Mode: engine.ModeDiscoverMany, Query: "sports centre"}
	state := orch.Execute(context.Background(), request, queryfeatures.Features{}, plan)

	require.Len(t, state.Candidates, 1)
	assert.Equal(t, "Oriam Sports Centre", state.Candidates[0].Name)
	assert.Len(t, state.AcceptedEntities, 1)
	assert.True(t, state.Metrics["serper"].Executed)
}

func TestExecute_RateLimitedConnectorRecordsError(t *testing.T) {
	registry := adapter.NewRegistry()
	registry.Register(&fakeAdapter{name: "serper", results: map[string]interface{}{}}, adapter.Spec{Name: "serper"})

	plan := planner.ExecutionPlan{}
	plan.AddConnector(serperSpec())

	orch := New(registry, neverAllow{})
	request := engine.IngestRequest{Mode: engine.ModeDiscoverMany, Query: "anything"}
	state := orch.Execute(context.Background(), request, queryfeatures.Features{}, plan)

	require.Len(t, state.Errors, 1)
	assert.True(t, state.Errors[0].RateLimited)
	assert.False(t, state.Metrics["serper"].Executed)
}

func TestExecute_FetchErrorIsNonFatal(t *testing.T) {
	registry := adapter.NewRegistry()
	registry.Register(&fakeAdapter{name: "serper", err: fmt.Errorf("boom")}, adapter.Spec{Name: "serper"})

	plan := planner.ExecutionPlan{}
	plan.AddConnector(serperSpec())

	orch := New(registry, alwaysAllow{})
	request := engine.IngestRequest{Mode: engine.ModeDiscoverMany, Query: "anything"}
	state := orch.Execute(context.Background(), request, queryfeatures.Features{}, plan)

	require.Len(t, state.Errors, 1)
	assert.Contains(t, state.Errors[0].Error, "boom")
	assert.Empty(t, state.Candidates)
}

func TestExecute_DedupAcrossSourcesBidirectional(t *testing.T) {
	registry := adapter.NewRegistry()
	registry.Register(&fakeAdapter{name: "serper", results: map[string]interface{}{
		"organic": []interface{}{map[string]interface{}{"title": "The Oriam Sports Centre"}},
	}}, adapter.Spec{Name: "serper"})
	registry.Register(&fakeAdapter{name: "google_places", results: map[string]interface{}{
		"results": []interface{}{
			map[string]interface{}{
				"place_id": "g1",
				"name":     "Oriam Sports Centre",
				"geometry": map[string]interface{}{"location": map[string]interface{}{"lat": 55.9, "lng": -3.3}},
			},
		},
	}}, adapter.Spec{Name: "google_places"})

	plan := planner.ExecutionPlan{}
	plan.AddConnector(serperSpec())
	plan.AddConnector(googlePlacesSpec())

	orch := New(registry, alwaysAllow{})
	request := engine.IngestRequest{Mode: engine.ModeDiscoverMany, Query: "oriam sports centre"}
	state := orch.Execute(context.Background(), request, queryfeatures.Features{}, plan)

	require.Len(t, state.Candidates, 2)
	require.Len(t, state.AcceptedEntities, 1)
	assert.Equal(t, "google", firstIDKind(state.AcceptedEntities[0].IDs))
}

func firstIDKind(ids map[string]string) string {
	for k := range ids {
		return k
	}
	return ""
}

func TestExecute_BudgetPreCheckStopsBeforeExpensivePhase(t *testing.T) {
	registry := adapter.NewRegistry()
	registry.Register(&fakeAdapter{name: "serper", results: map[string]interface{}{}}, adapter.Spec{Name: "serper"})
	registry.Register(&fakeAdapter{name: "google_places", results: map[string]interface{}{}}, adapter.Spec{Name: "google_places"})

	plan := planner.ExecutionPlan{}
	plan.AddConnector(serperSpec())
	plan.AddConnector(googlePlacesSpec())

	orch := New(registry, alwaysAllow{})
	budget := 0.001
	request := engine.IngestRequest{Mode: engine.ModeDiscoverMany, Query: "anything", BudgetUSD: &budget}
	state := orch.Execute(context.Background(), request, queryfeatures.Features{}, plan)

	_, googleRan := state.Metrics["google_places"]
	assert.False(t, googleRan)
}

func TestExecute_ResolveOneStopsOnceConfidentAndAccepted(t *testing.T) {
	registry := adapter.NewRegistry()
	registry.Register(&fakeAdapter{name: "google_places", results: map[string]interface{}{
		"results": []interface{}{
			map[string]interface{}{"place_id": "g1", "name": "Oriam"},
		},
	}}, adapter.Spec{Name: "google_places"})

	plan := planner.ExecutionPlan{}
	plan.AddConnector(googlePlacesSpec())

	orch := New(registry, alwaysAllow{})
	minConfidence := 0.0
	request := engine.IngestRequest{Mode: engine.ModeResolveOne, Query: "Oriam", MinConfidence: &minConfidence}
	state := orch.Execute(context.Background(), request, queryfeatures.Features{}, plan)

	require.Len(t, state.AcceptedEntities, 1)
}
