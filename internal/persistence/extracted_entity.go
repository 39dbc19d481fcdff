package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/edinburghfinds/lensfeed/internal/model"
)

// InsertExtractedEntity writes one Phase 1 + Phase 2 extraction result,
// assigning it an id if it doesn't already have one.
func (s *Store) InsertExtractedEntity(ctx context.Context, entity *model.ExtractedEntity) error {
	if entity.ID == "" {
		entity.ID = "ext_" + uuid.New().String()
	}

	_, err := s.db.DB().ExecContext(ctx, `
		INSERT INTO extracted_entity (id, raw_ingestion_id, source, entity_class, attributes, discovered_attributes, external_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entity.ID, entity.RawIngestionID, entity.Source, entity.EntityClass,
		jsonOrNull(entity.Attributes), jsonOrNull(entity.DiscoveredAttributes), jsonOrNull(entity.ExternalIDs))
	if err != nil {
		return fmt.Errorf("persistence: failed to insert extracted_entity: %w", err)
	}
	return nil
}

// ListExtractedEntities loads every ExtractedEntity row, used by
// finalization to rebuild the current merge groups. A production system
// would scope this to the active session/run; here it operates over the
// whole table, matching the teacher's simple query-then-merge style.
func (s *Store) ListExtractedEntities(ctx context.Context) ([]model.ExtractedEntity, error) {
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT id, raw_ingestion_id, source, entity_class, attributes, discovered_attributes, external_ids
		FROM extracted_entity`)
	if err != nil {
		return nil, fmt.Errorf("persistence: failed to query extracted_entity: %w", err)
	}
	defer rows.Close()

	var out []model.ExtractedEntity
	for rows.Next() {
		var e model.ExtractedEntity
		var attrsRaw, discoveredRaw, externalIDsRaw []byte
		if err := rows.Scan(&e.ID, &e.RawIngestionID, &e.Source, &e.EntityClass, &attrsRaw, &discoveredRaw, &externalIDsRaw); err != nil {
			return nil, fmt.Errorf("persistence: failed to scan extracted_entity: %w", err)
		}
		e.Attributes = unmarshalMap(attrsRaw)
		e.DiscoveredAttributes = unmarshalMap(discoveredRaw)
		e.ExternalIDs = unmarshalStringMap(externalIDsRaw)
		out = append(out, e)
	}
	return out, rows.Err()
}

func unmarshalMap(raw []byte) map[string]interface{} {
	if len(raw) == 0 {
		return map[string]interface{}{}
	}
	out := map[string]interface{}{}
	_ = json.Unmarshal(raw, &out)
	return out
}

func unmarshalStringMap(raw []byte) map[string]string {
	if len(raw) == 0 {
		return map[string]string{}
	}
	out := map[string]string{}
	_ = json.Unmarshal(raw, &out)
	return out
}
