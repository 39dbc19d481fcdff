// Package queryfeatures extracts deterministic boolean signals from a raw
// query string to guide adapter selection. Extraction is pure and rule
// based: the same query always produces the same features.
package queryfeatures

import "strings"

// Features are the boolean signals computed once per request and consulted
// by the planner and the orchestrator's aggregate gating.
type Features struct {
	LooksLikeCategorySearch bool
	HasGeoIntent            bool
}

// Keywords is the lens-supplied vocabulary used to detect category
// searches, specific-venue markers, and geographic intent. An empty list
// contributes no matches to its signal; the CLI fills any list the lens
// leaves empty from DefaultKeywords (GeoMarkers always come from there).
type Keywords struct {
	CategoryTerms       []string
	SpecificIndicators  []string
	GeoMarkers          []string
	LocationNames       []string
}

// DefaultKeywords mirrors the heuristics of the original padel/sports
// vertical; lenses are expected to override these via their own keyword
// sections, falling back to this set when they don't supply one.
func DefaultKeywords() Keywords {
	return Keywords{
		CategoryTerms: []string{
			"court", "courts", "centre", "center", "facility", "facilities",
			"club", "clubs", "padel", "tennis", "football", "rugby",
			"swimming", "gym", "sport", "sports",
		},
		SpecificIndicators: []string{
			"leisure", "edinburgh leisure", "oriam", "meggetland",
		},
		GeoMarkers: []string{
			" in ", " near ", " around ", " at ", "near me", "nearby",
		},
		LocationNames: []string{
			"edinburgh", "leith", "morningside", "stockbridge", "portobello",
			"musselburgh", "dalkeith", "lothian", "scotland",
		},
	}
}

// Extract computes Features from a raw query string using the supplied
// keyword set. Normalization: casefold, strip, collapse whitespace. An
// empty/whitespace-only query yields both signals false.
func Extract(query string, kw Keywords) Features {
	normalized := normalize(query)
	if normalized == "" {
		return Features{}
	}

	return Features{
		LooksLikeCategorySearch: looksLikeCategorySearch(normalized, kw),
		HasGeoIntent:            hasGeoIntent(normalized, kw),
	}
}

func normalize(query string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(query)))
	return strings.Join(fields, " ")
}

func looksLikeCategorySearch(normalized string, kw Keywords) bool {
	for _, indicator := range kw.SpecificIndicators {
		if strings.Contains(normalized, indicator) {
			return false
		}
	}
	for _, term := range kw.CategoryTerms {
		if strings.Contains(normalized, term) {
			return true
		}
	}
	return false
}

func hasGeoIntent(normalized string, kw Keywords) bool {
	padded := " " + normalized + " "
	for _, marker := range kw.GeoMarkers {
		if strings.Contains(padded, marker) {
			return true
		}
	}
	for _, location := range kw.LocationNames {
		if strings.Contains(normalized, location) {
			return true
		}
	}
	return false
}
