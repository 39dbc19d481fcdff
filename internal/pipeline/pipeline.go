// Package pipeline wires the per-candidate extraction chain together:
// Phase 1 primitive extraction, entity classification, and Phase 2 lens
// application, turning one accepted model.Candidate into one
// model.ExtractedEntity ready for persistence. Grounded on
// extraction_integration.py's orchestration glue that calls extract,
// entity_classifier, and the lens mapper in sequence for every accepted
// candidate.
package pipeline

import (
	"fmt"
	"sort"

	"github.com/edinburghfinds/lensfeed/internal/classifier"
	"github.com/edinburghfinds/lensfeed/internal/extract"
	"github.com/edinburghfinds/lensfeed/internal/lens"
	"github.com/edinburghfinds/lensfeed/internal/lensapply"
	"github.com/edinburghfinds/lensfeed/internal/model"
)

// BuildExtractedEntity runs candidate through Phase 1 extraction,
// classification, and Phase 2 lens application, and assembles the result
// into a model.ExtractedEntity. rawIngestionID ties the result back to the
// raw payload it was derived from; it may be empty when the caller is not
// persisting raw ingestion rows.
func BuildExtractedEntity(contract *lens.Contract, candidate model.Candidate, rawIngestionID string) (model.ExtractedEntity, error) {
	validated, err := extract.Run(candidate.Source, candidate.Raw)
	if err != nil {
		return model.ExtractedEntity{}, fmt.Errorf("pipeline: extraction failed for source %s: %w", candidate.Source, err)
	}

	attributes, discovered := extract.Split(validated)

	result := classifier.Resolve(attributes)

	var dimensions map[string][]string
	var modules map[string]interface{}
	if contract != nil {
		dimensions, modules = lensapply.Apply(contract, attributes, candidate.Source, result.EntityClass)
	}

	attributes["canonical_activities"] = mergeDimension(result.CanonicalActivities, dimensions["canonical_activities"])
	attributes["canonical_roles"] = mergeDimension(result.CanonicalRoles, dimensions["canonical_roles"])
	attributes["canonical_place_types"] = mergeDimension(result.CanonicalPlaceTypes, dimensions["canonical_place_types"])
	attributes["canonical_access"] = mergeDimension(nil, dimensions["canonical_access"])
	if len(modules) > 0 {
		attributes["modules"] = modules
	}

	return model.ExtractedEntity{
		Source:               candidate.Source,
		EntityClass:          result.EntityClass,
		Attributes:           attributes,
		DiscoveredAttributes: discovered,
		ExternalIDs:          candidate.IDs,
		RawIngestionID:       rawIngestionID,
	}, nil
}

// mergeDimension unions the classifier's heuristic-derived values with the
// lens's mapping-rule-derived values for the same canonical dimension,
// deduplicating and sorting for determinism.
func mergeDimension(classifierValues, lensValues []string) []string {
	seen := map[string]struct{}{}
	for _, v := range classifierValues {
		seen[v] = struct{}{}
	}
	for _, v := range lensValues {
		seen[v] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
