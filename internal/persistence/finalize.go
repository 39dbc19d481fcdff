package persistence

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/edinburghfinds/lensfeed/internal/dedup"
	"github.com/edinburghfinds/lensfeed/internal/model"
)

// FinalizeResult reports how many new Entity rows were created versus
// how many existing ones were updated by a finalization pass.
type FinalizeResult struct {
	EntitiesCreated int
	EntitiesUpdated int
}

// Finalize groups extracted entities by merge key (the same three-tier
// strategy §4.5 uses for in-run dedup), merges each group's attributes
// field-by-field, and upserts one Entity row per group by slug.
func (s *Store) Finalize(ctx context.Context, extracted []model.ExtractedEntity) (FinalizeResult, error) {
	groups := groupByMergeKey(extracted)

	var result FinalizeResult
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		group := groups[key]
		sort.Slice(group, func(i, j int) bool { return group[i].Source < group[j].Source })

		merged := mergeGroup(group)
		created, err := s.upsertEntity(ctx, merged)
		if err != nil {
			return result, err
		}
		if created {
			result.EntitiesCreated++
		} else {
			result.EntitiesUpdated++
		}
	}

	return result, nil
}

func groupByMergeKey(extracted []model.ExtractedEntity) map[string][]model.ExtractedEntity {
	groups := map[string][]model.ExtractedEntity{}
	for _, e := range extracted {
		key := mergeKeyOf(e)
		groups[key] = append(groups[key], e)
	}
	return groups
}

// mergeKeyOf projects an ExtractedEntity's primitives into a
// model.Candidate so the same three-tier key generation dedup uses for
// in-run acceptance also governs cross-session finalization.
func mergeKeyOf(e model.ExtractedEntity) string {
	candidate := model.Candidate{
		Name:    stringAttr(e.Attributes, "entity_name"),
		IDs:     e.ExternalIDs,
		Address: stringAttr(e.Attributes, "address"),
		Source:  e.Source,
	}
	if lat, ok := floatAttr(e.Attributes, "latitude"); ok {
		candidate.Lat = &lat
	}
	if lng, ok := floatAttr(e.Attributes, "longitude"); ok {
		candidate.Lng = &lng
	}
	return dedup.GenerateEntityKey(candidate, nil)
}

// mergedEntity is the finalized, merged form of one group of
// ExtractedEntity records, ready to be upserted as an Entity row.
type mergedEntity struct {
	name                string
	entityClass         string
	canonicalActivities []string
	canonicalRoles      []string
	canonicalPlaceTypes []string
	canonicalAccess     []string
	modules             map[string]interface{}
	lat                 *float64
	lng                 *float64
	address             string
	phone               string
	website             string
	slugSource          string
}

// mergeGroup applies the §4.6.2 scalar/list/dict merge rules across every
// ExtractedEntity in a group. Group is pre-sorted by source name; in the
// absence of a trust ranking at this layer (persistence has no adapter
// spec), ties resolve to the alphabetically-later source, consistent with
// the tie-break half of the orchestrator's own rule.
func mergeGroup(group []model.ExtractedEntity) mergedEntity {
	merged := mergedEntity{
		modules: map[string]interface{}{},
	}

	activities := map[string]struct{}{}
	roles := map[string]struct{}{}
	placeTypes := map[string]struct{}{}
	access := map[string]struct{}{}

	for _, e := range group {
		if name := stringAttr(e.Attributes, "entity_name"); name != "" {
			merged.name = name
			merged.slugSource = e.Source
		}
		if e.EntityClass != "" {
			merged.entityClass = e.EntityClass
		}
		if lat, ok := floatAttr(e.Attributes, "latitude"); ok {
			merged.lat = &lat
		}
		if lng, ok := floatAttr(e.Attributes, "longitude"); ok {
			merged.lng = &lng
		}
		if v := stringAttr(e.Attributes, "address"); v != "" {
			merged.address = v
		}
		if v := stringAttr(e.Attributes, "phone"); v != "" {
			merged.phone = v
		}
		if v := stringAttr(e.Attributes, "website"); v != "" {
			merged.website = v
		}

		addAll(activities, listAttr(e.Attributes, "canonical_activities"))
		addAll(roles, listAttr(e.Attributes, "canonical_roles"))
		addAll(placeTypes, listAttr(e.Attributes, "canonical_place_types"))
		addAll(access, listAttr(e.Attributes, "canonical_access"))

		if modules, ok := e.Attributes["modules"].(map[string]interface{}); ok {
			for k, v := range modules {
				merged.modules[k] = v
			}
		}
	}

	merged.canonicalActivities = sortedSetKeys(activities)
	merged.canonicalRoles = sortedSetKeys(roles)
	merged.canonicalPlaceTypes = sortedSetKeys(placeTypes)
	merged.canonicalAccess = sortedSetKeys(access)

	return merged
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

func computeSlug(source, name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = slugUnsafe.ReplaceAllString(normalized, "-")
	normalized = strings.Trim(normalized, "-")
	return fmt.Sprintf("%s-%s", source, normalized)
}

// upsertEntity writes merged as an Entity row, upserting by slug. Returns
// true when a new row was created.
func (s *Store) upsertEntity(ctx context.Context, merged mergedEntity) (bool, error) {
	slug := computeSlug(merged.slugSource, merged.name)

	var existingID string
	err := s.db.DB().QueryRowContext(ctx, `SELECT id FROM entity WHERE slug = $1`, slug).Scan(&existingID)
	created := err != nil

	id := existingID
	if created {
		id = "ent_" + uuid.New().String()
	}

	mergeKey := slug

	_, err = s.db.DB().ExecContext(ctx, `
		INSERT INTO entity (id, entity_name, entity_class, slug, canonical_activities, canonical_roles,
			canonical_place_types, canonical_access, modules, lat, lng, address, phone, website, merge_key, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now())
		ON CONFLICT (slug) DO UPDATE SET
			entity_name = excluded.entity_name,
			entity_class = excluded.entity_class,
			canonical_activities = excluded.canonical_activities,
			canonical_roles = excluded.canonical_roles,
			canonical_place_types = excluded.canonical_place_types,
			canonical_access = excluded.canonical_access,
			modules = excluded.modules,
			lat = excluded.lat,
			lng = excluded.lng,
			address = excluded.address,
			phone = excluded.phone,
			website = excluded.website,
			updated_at = now()`,
		id, merged.name, merged.entityClass, slug,
		jsonOrNull(merged.canonicalActivities), jsonOrNull(merged.canonicalRoles),
		jsonOrNull(merged.canonicalPlaceTypes), jsonOrNull(merged.canonicalAccess),
		jsonOrNull(merged.modules), nullableFloat(merged.lat), nullableFloat(merged.lng),
		merged.address, merged.phone, merged.website, mergeKey)
	if err != nil {
		return false, fmt.Errorf("persistence: failed to upsert entity: %w", err)
	}

	return created, nil
}

func nullableFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func stringAttr(attrs map[string]interface{}, key string) string {
	s, _ := attrs[key].(string)
	return s
}

func floatAttr(attrs map[string]interface{}, key string) (float64, bool) {
	switch v := attrs[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func listAttr(attrs map[string]interface{}, key string) []string {
	switch v := attrs[key].(type) {
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

func addAll(set map[string]struct{}, values []string) {
	for _, v := range values {
		set[v] = struct{}{}
	}
}

func sortedSetKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
