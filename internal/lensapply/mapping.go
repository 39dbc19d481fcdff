// Package lensapply is Phase 2 of extraction: it takes the deterministic
// primitives a source extractor produced (Phase 1) and applies the active
// lens contract to populate canonical dimensions, fire module triggers,
// and run field rules into module sub-structures. Grounded on
// mapping_engine.py (apply_lens_mapping / execute_mapping_rules /
// stabilize_canonical_dimensions) and module_extractor.py
// (evaluate_module_triggers / execute_field_rules).
package lensapply

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/edinburghfinds/lensfeed/internal/lens"
)

// defaultSourceFields is used when a mapping rule does not declare its own
// source_fields.
var defaultSourceFields = []string{"entity_name", "description", "raw_categories"}

// enhancedRule pairs a lens.MappingRule with the dimension its canonical
// value resolves to (via the value's facet) and its effective source
// fields.
type enhancedRule struct {
	rule         lens.MappingRule
	dimension    string
	sourceFields []string
}

func buildEnhancedRules(contract *lens.Contract) []enhancedRule {
	valueFacet := map[string]string{}
	for _, v := range contract.Values {
		valueFacet[v.Key] = v.Facet
	}

	var out []enhancedRule
	for _, rule := range contract.MappingRules {
		facetName, ok := valueFacet[rule.Canonical]
		if !ok {
			continue
		}
		facet, ok := contract.Facets[facetName]
		if !ok {
			continue
		}
		fields := rule.SourceFields
		if len(fields) == 0 {
			fields = defaultSourceFields
		}
		out = append(out, enhancedRule{rule: rule, dimension: facet.DimensionSource, sourceFields: fields})
	}
	return out
}

// matchRuleAgainstEntity searches pattern across the rule's source fields
// in declaration order and returns the canonical value on the first hit.
func matchRuleAgainstEntity(er enhancedRule, entity map[string]interface{}) (dimension, value string, matched bool) {
	re, err := regexp.Compile(er.rule.Pattern)
	if err != nil {
		return "", "", false
	}
	for _, field := range er.sourceFields {
		raw, ok := entity[field]
		if !ok || raw == nil {
			continue
		}
		if re.MatchString(fieldText(raw)) {
			return er.dimension, er.rule.Canonical, true
		}
	}
	return "", "", false
}

// fieldText renders a source field value as searchable text, joining list
// values with a space so a regex can match across the whole list.
func fieldText(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, " ")
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprintf("%v", item))
		}
		return strings.Join(parts, " ")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// executeMappingRules runs every enhanced rule against entity and
// collects matches into their dimension arrays. Multiple rules may
// contribute to the same dimension; each rule contributes at most once.
func executeMappingRules(rules []enhancedRule, entity map[string]interface{}) map[string][]string {
	dimensions := map[string][]string{
		"canonical_activities":  {},
		"canonical_roles":       {},
		"canonical_place_types": {},
		"canonical_access":      {},
	}
	for _, er := range rules {
		dimension, value, ok := matchRuleAgainstEntity(er, entity)
		if !ok {
			continue
		}
		if _, known := dimensions[dimension]; known {
			dimensions[dimension] = append(dimensions[dimension], value)
		}
	}
	return dimensions
}

// stabilizeCanonicalDimensions deduplicates and lexicographically sorts
// every dimension's value list, the determinism invariant the spec
// requires of canonical dimension output.
func stabilizeCanonicalDimensions(dimensions map[string][]string) map[string][]string {
	out := make(map[string][]string, len(dimensions))
	for dimension, values := range dimensions {
		seen := map[string]struct{}{}
		var unique []string
		for _, v := range values {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			unique = append(unique, v)
		}
		sort.Strings(unique)
		out[dimension] = unique
	}
	return out
}

// ApplyMapping runs Phase 2 mapping against a Phase 1 primitive entity
// dict, returning the deduplicated, sorted canonical dimensions keyed by
// dimension name (canonical_activities, canonical_roles,
// canonical_place_types, canonical_access).
func ApplyMapping(contract *lens.Contract, entity map[string]interface{}) map[string][]string {
	rules := buildEnhancedRules(contract)
	dimensions := executeMappingRules(rules, entity)
	return stabilizeCanonicalDimensions(dimensions)
}

// Apply runs the full Phase 2 pipeline: mapping rules into canonical
// dimensions, then module triggers (matched against each facet's values,
// taken from the dimension the facet is bound to) and field rules into
// structured sub-objects. It returns the dimensions and the modules; the
// primitives in entity are not copied into either.
func Apply(contract *lens.Contract, entity map[string]interface{}, source, entityClass string) (dimensions map[string][]string, modules map[string]interface{}) {
	dimensions = ApplyMapping(contract, entity)
	valuesByFacet := make(map[string][]string, len(contract.Facets))
	for facetKey, facet := range contract.Facets {
		valuesByFacet[facetKey] = dimensions[facet.DimensionSource]
	}
	modules = BuildModules(contract, entityClass, valuesByFacet, entity, source)
	return dimensions, modules
}
