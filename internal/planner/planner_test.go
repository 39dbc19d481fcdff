package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edinburghfinds/lensfeed/internal/adapter"
	"github.com/edinburghfinds/lensfeed/internal/engine"
	"github.com/edinburghfinds/lensfeed/internal/lens"
	"github.com/edinburghfinds/lensfeed/internal/queryfeatures"
)

func TestSelect_ResolveOneSpecificQuery(t *testing.T) {
	req := engine.IngestRequest{Mode: engine.ModeResolveOne, Query: "Oriam Scotland"}
	features := queryfeatures.Features{LooksLikeCategorySearch: false}

	plan := Select(req, features, nil)

	names := planNames(plan)
	assert.Equal(t, []string{"google_places"}, names)
}

func TestSelect_ResolveOneCategoryQuery(t *testing.T) {
	req := engine.IngestRequest{Mode: engine.ModeResolveOne, Query: "padel courts"}
	features := queryfeatures.Features{LooksLikeCategorySearch: true}

	plan := Select(req, features, nil)

	names := planNames(plan)
	assert.ElementsMatch(t, []string{"serper", "google_places"}, names)
}

func TestSelect_DiscoverManyCategorySearch(t *testing.T) {
	req := engine.IngestRequest{Mode: engine.ModeDiscoverMany, Query: "tennis courts in edinburgh"}
	features := queryfeatures.Features{LooksLikeCategorySearch: true}

	plan := Select(req, features, nil)

	names := planNames(plan)
	assert.ElementsMatch(t, []string{"serper", "openstreetmap", "google_places", "government_geojson"}, names)
}

func TestSelect_DiscoverManySportsKeywordAddsGovConnector(t *testing.T) {
	req := engine.IngestRequest{Mode: engine.ModeDiscoverMany, Query: "padel courts"}
	features := queryfeatures.Features{LooksLikeCategorySearch: true}

	plan := Select(req, features, nil)

	names := planNames(plan)
	assert.Contains(t, names, "government_geojson")
}

func TestSelect_ConnectorRuleAddsLensSpecificAdapter(t *testing.T) {
	req := engine.IngestRequest{Mode: engine.ModeDiscoverMany, Query: "find museums"}
	features := queryfeatures.Features{LooksLikeCategorySearch: true}
	contract := &lens.Contract{
		ConnectorRules: []lens.ConnectorRule{
			{Connector: "overture_release", When: lens.TriggerWhen{Facet: "activity", Value: "museum"}},
		},
	}

	plan := Select(req, features, contract)

	names := planNames(plan)
	assert.Contains(t, names, "overture_release")
}

func TestExecutionPlan_SortedByPhase(t *testing.T) {
	plan := ExecutionPlan{}
	plan.AddConnector(ConnectorSpec{Name: "overture_release", Phase: adapter.PhaseEnrichment})
	plan.AddConnector(ConnectorSpec{Name: "google_places", Phase: adapter.PhaseStructured})
	plan.AddConnector(ConnectorSpec{Name: "serper", Phase: adapter.PhaseDiscovery})
	plan.AddConnector(ConnectorSpec{Name: "openstreetmap", Phase: adapter.PhaseDiscovery})

	sorted := plan.SortedByPhase()
	var names []string
	for _, n := range sorted {
		names = append(names, n.Spec.Name)
	}

	assert.Equal(t, []string{"openstreetmap", "serper", "google_places", "overture_release"}, names)
}

func TestExecutionPlan_InferDependencies(t *testing.T) {
	plan := ExecutionPlan{}
	plan.AddConnector(ConnectorSpec{
		Name:     "serper",
		Requires: []string{"request.query"},
		Provides: []string{"context.candidates"},
	})
	plan.AddConnector(ConnectorSpec{
		Name:     "overture_release",
		Requires: []string{"context.candidates", "query_features.looks_like_category_search"},
		Provides: []string{"context.enriched_data"},
	})

	require.Len(t, plan.Nodes, 2)
	assert.Equal(t, []string{"serper"}, plan.Nodes[1].Dependencies)
}

func TestExecutionPlan_BestProvider_TrustBreaksTies(t *testing.T) {
	plan := ExecutionPlan{}
	plan.AddConnector(ConnectorSpec{Name: "google_places", TrustLevel: 90, Phase: adapter.PhaseStructured, Provides: []string{"context.candidates"}})
	plan.AddConnector(ConnectorSpec{Name: "government_geojson", TrustLevel: 95, Phase: adapter.PhaseStructured, Provides: []string{"context.candidates"}})

	best, ok := plan.BestProvider("context.candidates")
	require.True(t, ok)
	assert.Equal(t, "government_geojson", best.Spec.Name)
}

func TestExecutionPlan_BestProvider_PhaseBreaksTrustTie(t *testing.T) {
	plan := ExecutionPlan{}
	plan.AddConnector(ConnectorSpec{Name: "overture_release", TrustLevel: 70, Phase: adapter.PhaseEnrichment, Provides: []string{"context.candidates"}})
	plan.AddConnector(ConnectorSpec{Name: "serper", TrustLevel: 70, Phase: adapter.PhaseDiscovery, Provides: []string{"context.candidates"}})

	best, ok := plan.BestProvider("context.candidates")
	require.True(t, ok)
	assert.Equal(t, "serper", best.Spec.Name)
}

func TestShouldRun_SkipsContextDependentConnectorWithNoData(t *testing.T) {
	node := ConnectorNode{Spec: ConnectorSpec{
		Name:              "overture_release",
		Requires:          []string{"context.candidates"},
		SupportsQueryOnly: false,
	}}
	state := RuntimeState{CandidatesEmpty: true, AcceptedEntitiesEmpty: true, Context: map[string]interface{}{}}

	assert.False(t, ShouldRun(node, state))
}

func TestShouldRun_RunsWhenCandidatesPresent(t *testing.T) {
	node := ConnectorNode{Spec: ConnectorSpec{
		Name:              "overture_release",
		Requires:          []string{"context.candidates"},
		SupportsQueryOnly: false,
	}}
	state := RuntimeState{CandidatesEmpty: false, AcceptedEntitiesEmpty: true, Context: map[string]interface{}{}}

	assert.True(t, ShouldRun(node, state))
}

func TestShouldRun_AlwaysRunsQueryOnlyConnector(t *testing.T) {
	node := ConnectorNode{Spec: ConnectorSpec{
		Name:              "serper",
		Requires:          []string{"context.candidates"},
		SupportsQueryOnly: true,
	}}
	state := RuntimeState{CandidatesEmpty: true, AcceptedEntitiesEmpty: true, Context: map[string]interface{}{}}

	assert.True(t, ShouldRun(node, state))
}

func planNames(plan ExecutionPlan) []string {
	var names []string
	for _, n := range plan.Nodes {
		names = append(names, n.Spec.Name)
	}
	return names
}
