package classifier

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_TimeBoundsTakesPriorityOverEverything(t *testing.T) {
	attrs := map[string]interface{}{
		"start_datetime": "2026-05-15T09:00:00Z",
		"latitude":       55.9,
		"longitude":      -3.3,
		"activities":     []string{"padel"},
	}

	result := Resolve(attrs)

	assert.Equal(t, "event", result.EntityClass)
	assert.Empty(t, result.CanonicalRoles)
	assert.Equal(t, []string{"padel"}, result.CanonicalActivities)
	assert.Empty(t, result.CanonicalPlaceTypes)
}

func TestResolve_LocationBeatsOrganizationHint(t *testing.T) {
	attrs := map[string]interface{}{
		"address": "123 Court St",
		"type":    "club",
	}

	result := Resolve(attrs)

	assert.Equal(t, "place", result.EntityClass)
}

func TestResolve_OrganizationByTypeHint(t *testing.T) {
	attrs := map[string]interface{}{"type": "league"}

	result := Resolve(attrs)

	assert.Equal(t, "organization", result.EntityClass)
}

func TestResolve_OrganizationByCategoryKeyword(t *testing.T) {
	attrs := map[string]interface{}{"categories": []string{"Retail Chain"}}

	result := Resolve(attrs)

	assert.Equal(t, "organization", result.EntityClass)
}

func TestResolve_NonPersonTypeHintFallsBackToThing(t *testing.T) {
	attrs := map[string]interface{}{"type": "coach", "activities": []string{"Tennis"}}

	result := Resolve(attrs)

	assert.Equal(t, "thing", result.EntityClass)
}

func TestResolve_PersonByIsPersonFlag(t *testing.T) {
	attrs := map[string]interface{}{"is_person": true}

	result := Resolve(attrs)

	assert.Equal(t, "person", result.EntityClass)
}

func TestResolve_FallsBackToThing(t *testing.T) {
	result := Resolve(map[string]interface{}{})

	assert.Equal(t, "thing", result.EntityClass)
}

func TestResolve_RolesCombineIndependentlyOfClass(t *testing.T) {
	attrs := map[string]interface{}{
		"address":              "123 Court St",
		"provides_equipment":   true,
		"membership_required":  true,
		"provides_instruction": true,
	}

	result := Resolve(attrs)

	assert.Equal(t, "place", result.EntityClass)
	assert.ElementsMatch(t, []string{"provides_facility", "membership_org", "provides_instruction"}, result.CanonicalRoles)
}

func TestResolve_SellsGoodsByTypeHintOrFlag(t *testing.T) {
	result := Resolve(map[string]interface{}{"type": "retailer"})
	assert.Contains(t, result.CanonicalRoles, "sells_goods")

	result = Resolve(map[string]interface{}{"sells_goods": true})
	assert.Contains(t, result.CanonicalRoles, "sells_goods")
}

func TestResolve_ActivitiesLowercasedAndDeduped(t *testing.T) {
	attrs := map[string]interface{}{"activities": []string{"Tennis", "tennis", "Padel"}}

	result := Resolve(attrs)

	assert.ElementsMatch(t, []string{"tennis", "padel"}, result.CanonicalActivities)
}

func TestResolve_PlaceTypesOnlyForPlaceClass(t *testing.T) {
	attrs := map[string]interface{}{"address": "123 Court St", "place_type": "sports_centre"}

	result := Resolve(attrs)

	assert.Equal(t, []string{"sports_centre"}, result.CanonicalPlaceTypes)

	nonPlace := Resolve(map[string]interface{}{"place_type": "sports_centre"})
	assert.Empty(t, nonPlace.CanonicalPlaceTypes)
}

func TestRequiredModules_ReturnsEngineOwnedSetPerClass(t *testing.T) {
	assert.Equal(t, []string{"core", "location"}, RequiredModules("place"))
	assert.Equal(t, []string{"core", "contact"}, RequiredModules("person"))
	assert.Equal(t, []string{"core", "time_range"}, RequiredModules("event"))
	assert.Nil(t, RequiredModules("not_a_class"))
}

func TestRequiredModules_ReturnsIndependentCopyEachCall(t *testing.T) {
	first := RequiredModules("place")
	first[0] = "mutated"
	second := RequiredModules("place")
	assert.Equal(t, "core", second[0])
}

// TestPurityInvariant_NoDomainLiterals enforces that this package's source
// never names a specific vertical's domain vocabulary (padel, tennis,
// wine, restaurant, and similar terms belong only in lenses).
func TestPurityInvariant_NoDomainLiterals(t *testing.T) {
	forbidden := regexp.MustCompile(`(?i)padel|tennis|wine|restaurant|sports_centre|sports centre`)

	err := filepath.Walk(".", func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() || filepath.Ext(path) != ".go" || filepath.Base(path) == "classifier_test.go" {
			return nil
		}
		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		assert.False(t, forbidden.Match(content), "domain literal found in %s", path)
		return nil
	})
	assert.NoError(t, err)
}
