// Package extract implements Phase 1 of extraction: per-source,
// deterministic primitive extraction from a raw response item, validated
// against a hard schema-field whitelist before Phase 2 (lensapply) ever
// runs. Grounded on overture_local_extractor.py's extract/validate/
// split_attributes triad and extraction_integration.py's
// needs_extraction/STRUCTURED_SOURCES/UNSTRUCTURED_SOURCES table.
package extract

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// schemaFields is the closed vocabulary of Phase 1 primitives. Any
// extracted key outside this set is treated as a discovered (non-schema)
// attribute by Split.
var schemaFields = map[string]struct{}{
	"entity_name":              {},
	"latitude":                 {},
	"longitude":                {},
	"address":                  {},
	"street_address":           {},
	"phone":                    {},
	"website":                  {},
	"external_id":              {},
	"raw_categories":           {},
	"type":                     {},
	"categories":               {},
	"start_datetime":           {},
	"end_datetime":             {},
	"start_date":               {},
	"end_date":                 {},
	"is_person":                {},
	"provides_equipment":       {},
	"equipment_count":          {},
	"provides_instruction":     {},
	"membership_required":      {},
	"is_members_only":          {},
	"sells_goods":              {},
	"activities":               {},
	"place_type":               {},
	"overture_source_datasets": {},
}

// forbiddenPhase2Fields are Phase 2 outputs; a Phase 1 extractor that
// emits any of these has violated the extraction boundary.
var forbiddenPhase2Fields = []string{
	"canonical_activities", "canonical_roles", "canonical_place_types",
	"canonical_access", "modules",
}

// Extractor is a per-source Phase 1 primitive extractor. Implementations
// must be pure and context-free: the same raw item always yields the same
// primitives.
type Extractor interface {
	// Extract pulls schema primitives out of one raw response item. It may
	// return fewer fields than are present; it must never invent values.
	Extract(raw map[string]interface{}) (map[string]interface{}, error)
}

// ExtractorFunc adapts a plain function to the Extractor interface.
type ExtractorFunc func(raw map[string]interface{}) (map[string]interface{}, error)

func (f ExtractorFunc) Extract(raw map[string]interface{}) (map[string]interface{}, error) {
	return f(raw)
}

// Registry is the closed per-source extractor table.
var Registry = map[string]Extractor{
	"serper":             ExtractorFunc(extractSerper),
	"google_places":      ExtractorFunc(extractGooglePlaces),
	"openstreetmap":      ExtractorFunc(extractOpenStreetMap),
	"government_geojson": ExtractorFunc(extractGovernmentGeoJSON),
	"overture_release":   ExtractorFunc(extractOvertureRelease),
}

// structuredSources have well-defined response schemas and are extracted
// deterministically. unstructuredSources have free-form or loosely-tagged
// content and would, in a full deployment, be routed to an external
// llm_extract function; the core treats that function as opaque and this
// package does not implement it, per the Non-goal on the LLM extraction
// subsystem.
var structuredSources = map[string]struct{}{
	"google_places":      {},
	"government_geojson": {},
	"overture_release":   {},
}

var unstructuredSources = map[string]struct{}{
	"serper":        {},
	"openstreetmap": {},
}

// NeedsExtraction reports whether source requires the (unimplemented) LLM
// extraction path rather than a deterministic extractor. Unknown sources
// default to true: a conservative choice that avoids silently dropping
// data from a source nobody classified yet.
func NeedsExtraction(source string) bool {
	if _, ok := structuredSources[source]; ok {
		return false
	}
	if _, ok := unstructuredSources[source]; ok {
		return true
	}
	return true
}

// Run executes the full Phase 1 pipeline for source against one raw
// response item: extract then validate. Returns an error for an
// unregistered source, a failed extraction, or an extraction boundary
// violation.
func Run(source string, raw map[string]interface{}) (map[string]interface{}, error) {
	extractor, ok := Registry[source]
	if !ok {
		return nil, fmt.Errorf("extract: no extractor registered for source %q", source)
	}
	extracted, err := extractor.Extract(raw)
	if err != nil {
		return nil, fmt.Errorf("extract: %s: %w", source, err)
	}
	return Validate(extracted)
}

// Validate enforces the extraction-boundary invariant and the schema
// constraints: entity_name is required, out-of-range coordinates are
// dropped, and raw_categories is deduplicated.
func Validate(extracted map[string]interface{}) (map[string]interface{}, error) {
	validated := make(map[string]interface{}, len(extracted))
	for k, v := range extracted {
		validated[k] = v
	}

	name, _ := validated["entity_name"].(string)
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("extract: missing required field entity_name")
	}

	var violations []string
	for _, field := range forbiddenPhase2Fields {
		if _, present := validated[field]; present {
			violations = append(violations, field)
		}
	}
	if len(violations) > 0 {
		sort.Strings(violations)
		return nil, fmt.Errorf("extract: extraction boundary violation, forbidden fields emitted: %s", strings.Join(violations, ", "))
	}

	if lat, ok := asFloat(validated["latitude"]); ok && (lat < -90 || lat > 90) {
		delete(validated, "latitude")
	}
	if lng, ok := asFloat(validated["longitude"]); ok && (lng < -180 || lng > 180) {
		delete(validated, "longitude")
	}

	if raw, ok := validated["raw_categories"].([]string); ok {
		validated["raw_categories"] = dedupeStrings(raw)
	}

	return validated, nil
}

// Split partitions a validated Phase 1 attribute set into schema-defined
// attributes and discovered (non-schema) attributes.
func Split(validated map[string]interface{}) (attributes, discovered map[string]interface{}) {
	attributes = map[string]interface{}{}
	discovered = map[string]interface{}{}
	for k, v := range validated {
		if _, known := schemaFields[k]; known {
			attributes[k] = v
		} else {
			discovered[k] = v
		}
	}
	return attributes, discovered
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func dedupeStrings(values []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, v := range values {
		cleaned := strings.TrimSpace(v)
		if cleaned == "" {
			continue
		}
		if _, ok := seen[cleaned]; ok {
			continue
		}
		seen[cleaned] = struct{}{}
		out = append(out, cleaned)
	}
	return out
}

func asString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}
