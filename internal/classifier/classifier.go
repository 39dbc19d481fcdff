// Package classifier resolves entity_class and supplementary roles from a
// Phase 1 (plus Phase 2) attribute set using a fixed, vertical-agnostic
// priority algorithm. Grounded on entity_classifier.py's
// resolve_entity_class and its has_time_bounds/has_location/
// is_organization_like/is_individual/extract_roles/extract_activities/
// extract_place_types helpers.
//
// The classifier contains no domain literals beyond the generic type-hint
// vocabulary and role field names the algorithm itself is defined over;
// no vertical-specific activity or category term appears here. All
// vertical-specific semantics live in the active lens.
package classifier

import (
	"sort"
	"strings"
)

// ValidEntityClasses is the closed set of classes resolve may return.
var ValidEntityClasses = map[string]struct{}{
	"place": {}, "person": {}, "organization": {}, "event": {}, "thing": {},
}

// Result is resolve's output: the single entity_class and its
// independently-derived, multi-valued roles/activities/place_types.
type Result struct {
	EntityClass         string
	CanonicalRoles       []string
	CanonicalActivities  []string
	CanonicalPlaceTypes  []string
}

var organizationTypeHints = map[string]struct{}{
	"retailer": {}, "shop": {}, "business": {}, "organization": {},
	"league": {}, "club": {}, "association": {},
}

var organizationCategoryTerms = []string{"retail", "shop", "business", "league", "chain"}

// requiredModulesByClass is the engine-owned minimum module set for each
// entity_class, independent of whatever a lens's module_triggers add.
// Grounded on get_engine_modules's entity_model.yaml-backed table; the
// backing yaml document isn't part of this port so the table is inlined
// from its docstring examples and extended by symmetry for organization
// and thing.
var requiredModulesByClass = map[string][]string{
	"place":        {"core", "location"},
	"person":       {"core", "contact"},
	"event":        {"core", "time_range"},
	"organization": {"core", "contact"},
	"thing":        {"core"},
}

// RequiredModules returns the engine-required module names for entityClass,
// present even if a lens never triggers them. Callers union this set with
// whatever module_triggers fire before running field rules.
func RequiredModules(entityClass string) []string {
	modules, ok := requiredModulesByClass[entityClass]
	if !ok {
		return nil
	}
	out := make([]string, len(modules))
	copy(out, modules)
	return out
}

// Resolve runs the priority-ordered classification algorithm against a
// Phase 1/2 attribute map. Field names consulted are the generic schema
// primitives (start_datetime, end_datetime, start_date, end_date,
// latitude, longitude, address, street_address, type, categories,
// is_person) plus the generic role indicator fields (provides_equipment,
// equipment_count, provides_instruction, membership_required,
// is_members_only, sells_goods, activities, place_type).
func Resolve(attrs map[string]interface{}) Result {
	entityClass := resolveEntityClass(attrs)

	result := Result{
		EntityClass:         entityClass,
		CanonicalActivities: extractActivities(attrs),
	}

	if entityClass == "event" {
		result.CanonicalRoles = []string{}
	} else {
		result.CanonicalRoles = extractRoles(attrs)
	}

	if entityClass == "place" {
		result.CanonicalPlaceTypes = extractPlaceTypes(attrs)
	} else {
		result.CanonicalPlaceTypes = []string{}
	}

	return result
}

func resolveEntityClass(attrs map[string]interface{}) string {
	switch {
	case hasTimeBounds(attrs):
		return "event"
	case hasLocation(attrs):
		return "place"
	case isOrganizationLike(attrs):
		return "organization"
	case isIndividual(attrs):
		return "person"
	default:
		return "thing"
	}
}

func hasTimeBounds(attrs map[string]interface{}) bool {
	return truthy(attrs["start_datetime"]) || truthy(attrs["end_datetime"]) ||
		truthy(attrs["start_date"]) || truthy(attrs["end_date"])
}

func hasLocation(attrs map[string]interface{}) bool {
	hasCoords := truthy(attrs["latitude"]) && truthy(attrs["longitude"])
	hasAddress := truthy(attrs["address"]) || truthy(attrs["street_address"])
	return hasCoords || hasAddress
}

func isOrganizationLike(attrs map[string]interface{}) bool {
	if _, ok := organizationTypeHints[typeHint(attrs)]; ok {
		return true
	}
	categoryStr := strings.ToLower(strings.Join(stringList(attrs["categories"]), " "))
	for _, term := range organizationCategoryTerms {
		if strings.Contains(categoryStr, term) {
			return true
		}
	}
	return false
}

func isIndividual(attrs map[string]interface{}) bool {
	if typeHint(attrs) == "person" {
		return true
	}
	return truthy(attrs["is_person"])
}

func extractRoles(attrs map[string]interface{}) []string {
	seen := map[string]struct{}{}

	if truthy(attrs["provides_equipment"]) || asFloat(attrs["equipment_count"]) > 0 {
		seen["provides_facility"] = struct{}{}
	}
	if truthy(attrs["membership_required"]) || truthy(attrs["is_members_only"]) {
		seen["membership_org"] = struct{}{}
	}
	if truthy(attrs["provides_instruction"]) {
		seen["provides_instruction"] = struct{}{}
	}
	hint := typeHint(attrs)
	if hint == "retailer" || hint == "shop" || truthy(attrs["sells_goods"]) {
		seen["sells_goods"] = struct{}{}
	}

	return sortedKeys(seen)
}

func extractActivities(attrs map[string]interface{}) []string {
	values := stringList(attrs["activities"])
	seen := map[string]struct{}{}
	for _, v := range values {
		seen[strings.ToLower(v)] = struct{}{}
	}
	return sortedKeys(seen)
}

func extractPlaceTypes(attrs map[string]interface{}) []string {
	seen := map[string]struct{}{}
	switch v := attrs["place_type"].(type) {
	case string:
		if v != "" {
			seen[v] = struct{}{}
		}
	case []string:
		for _, s := range v {
			seen[s] = struct{}{}
		}
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				seen[s] = struct{}{}
			}
		}
	}
	return sortedKeys(seen)
}

func typeHint(attrs map[string]interface{}) string {
	s, _ := attrs["type"].(string)
	return strings.ToLower(s)
}

func stringList(raw interface{}) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func truthy(raw interface{}) bool {
	switch v := raw.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case float64:
		return v != 0
	case int:
		return v != 0
	default:
		return true
	}
}

func asFloat(raw interface{}) float64 {
	switch v := raw.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
