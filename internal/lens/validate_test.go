package lens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validContract() *Contract {
	return &Contract{
		Schema: "v1",
		Facets: map[string]Facet{
			"activity": {DimensionSource: "canonical_activities"},
		},
		Values: []Value{
			{Key: "padel", Facet: "activity"},
		},
		MappingRules: []MappingRule{
			{Pattern: `(?i)padel`, Canonical: "padel"},
		},
		Modules: map[string]Module{
			"sports_facility": {
				FieldRules: []FieldRule{
					{TargetPath: "padel_courts.total", Extractor: "regex_capture", Pattern: `(\d+)\s*padel\s*courts?`},
				},
			},
		},
		ModuleTriggers: []ModuleTrigger{
			{
				When:       TriggerWhen{Facet: "activity", Value: "padel"},
				AddModules: []string{"sports_facility"},
				Conditions: []TriggerCondition{{EntityClass: "place"}},
			},
		},
	}
}

func TestValidate_ValidContract(t *testing.T) {
	err := Validate(validContract(), map[string]struct{}{})
	require.NoError(t, err)
}

func TestValidate_DimensionIntegrity(t *testing.T) {
	c := validContract()
	c.Facets["activity"] = Facet{DimensionSource: "not_a_real_dimension"}
	err := Validate(c, map[string]struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension_integrity")
}

func TestValidate_ValueFacetIntegrity(t *testing.T) {
	c := validContract()
	c.Values[0].Facet = "missing_facet"
	err := Validate(c, map[string]struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "value_facet_integrity")
}

func TestValidate_RuleValueIntegrity(t *testing.T) {
	c := validContract()
	c.MappingRules[0].Canonical = "missing_value"
	err := Validate(c, map[string]struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rule_value_integrity")
}

func TestValidate_UniqueValueKeys(t *testing.T) {
	c := validContract()
	c.Values = append(c.Values, Value{Key: "padel", Facet: "activity"})
	err := Validate(c, map[string]struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unique_value_keys")
}

func TestValidate_ConnectorRefs(t *testing.T) {
	c := validContract()
	c.ConnectorRules = []ConnectorRule{{Connector: "unknown_adapter"}}
	err := Validate(c, map[string]struct{}{"serper": {}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connector_refs")
}

func TestValidate_RegexCompilation(t *testing.T) {
	c := validContract()
	c.MappingRules[0].Pattern = "(unterminated"
	err := Validate(c, map[string]struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "regex_compilation")
}

func TestValidate_Coverage(t *testing.T) {
	c := validContract()
	c.Facets["access"] = Facet{DimensionSource: "canonical_access"}
	err := Validate(c, map[string]struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "coverage")
}

func TestValidate_ModuleTriggerRefs(t *testing.T) {
	c := validContract()
	c.ModuleTriggers[0].AddModules = []string{"missing_module"}
	err := Validate(c, map[string]struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "module_trigger_refs")
}

func TestValidate_DerivedGroupingRefs(t *testing.T) {
	c := validContract()
	c.DerivedGroupings = []DerivedGrouping{
		{ID: "g1", Rules: []DerivedGroupingRule{{EntityClass: "not_a_class"}}},
	}
	err := Validate(c, map[string]struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "derived_grouping_refs")
}

func TestResolveLensID_Precedence(t *testing.T) {
	id, fallback, err := ResolveLensID("cli-lens", "env-lens", "config-lens", "dev-lens", true, nil)
	require.NoError(t, err)
	assert.Equal(t, "cli-lens", id)
	assert.False(t, fallback)

	id, fallback, err = ResolveLensID("", "env-lens", "config-lens", "dev-lens", true, nil)
	require.NoError(t, err)
	assert.Equal(t, "env-lens", id)
	assert.False(t, fallback)

	id, fallback, err = ResolveLensID("", "", "config-lens", "dev-lens", true, nil)
	require.NoError(t, err)
	assert.Equal(t, "config-lens", id)
	assert.False(t, fallback)

	id, fallback, err = ResolveLensID("", "", "", "dev-lens", true, nil)
	require.NoError(t, err)
	assert.Equal(t, "dev-lens", id)
	assert.True(t, fallback)

	_, _, err = ResolveLensID("", "", "", "dev-lens", false, nil)
	require.Error(t, err)
}
