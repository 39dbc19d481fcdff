// Package persistence implements §4.10: Raw Ingestion upsert-by-hash,
// Extracted Entity insert, and finalization/merge of a session's Extracted
// Entities into final Entity rows by slug. Grounded on the teacher's
// internal/storage/sqlite upsert style (INSERT ... ON CONFLICT DO UPDATE)
// swapped to Postgres placeholder syntax, and on orchestrator_state.py's
// merge-by-dedup-tier semantics (§4.6.2/§4.5 reused at the finalization
// boundary).
package persistence

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/edinburghfinds/lensfeed/internal/model"
	"github.com/edinburghfinds/lensfeed/internal/storage/postgres"
)

// Store is the persistence layer's single entry point: raw ingestion,
// extracted entities, finalized entities, connector usage, and
// orchestration runs all go through one Store bound to one *postgres.DB.
type Store struct {
	db       *postgres.DB
	logger   arbor.ILogger
	dataRoot string
}

func NewStore(db *postgres.DB, logger arbor.ILogger, dataRoot string) *Store {
	return &Store{db: db, logger: logger, dataRoot: dataRoot}
}

// UpsertRawIngestion computes the content hash of payload and reuses an
// existing (source, content_hash) row if one exists; otherwise it writes
// payload to disk under a source-partitioned path and inserts a new row.
func (s *Store) UpsertRawIngestion(ctx context.Context, source string, payload []byte) (*model.RawIngestion, error) {
	hash := contentHash(payload)

	existing, err := s.findRawIngestion(ctx, source, hash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	filePath := filepath.Join(s.dataRoot, "raw", source, hash+".json")
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("persistence: failed to create raw ingestion directory: %w", err)
	}
	if err := os.WriteFile(filePath, payload, 0644); err != nil {
		return nil, fmt.Errorf("persistence: failed to write raw payload: %w", err)
	}

	record := &model.RawIngestion{
		ID:          "raw_" + uuid.New().String(),
		Source:      source,
		ContentHash: hash,
		FilePath:    filePath,
		Status:      "pending",
		Metadata:    map[string]interface{}{},
	}

	_, err = s.db.DB().ExecContext(ctx, `
		INSERT INTO raw_ingestion (id, source, content_hash, file_path, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (source, content_hash) DO NOTHING`,
		record.ID, record.Source, record.ContentHash, record.FilePath, record.Status, jsonOrNull(record.Metadata))
	if err != nil {
		return nil, fmt.Errorf("persistence: failed to insert raw_ingestion: %w", err)
	}

	return s.findRawIngestion(ctx, source, hash)
}

func (s *Store) findRawIngestion(ctx context.Context, source, hash string) (*model.RawIngestion, error) {
	row := s.db.DB().QueryRowContext(ctx, `
		SELECT id, source, content_hash, file_path, status, metadata
		FROM raw_ingestion WHERE source = $1 AND content_hash = $2`, source, hash)

	var record model.RawIngestion
	var metadataRaw []byte
	err := row.Scan(&record.ID, &record.Source, &record.ContentHash, &record.FilePath, &record.Status, &metadataRaw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("persistence: failed to query raw_ingestion: %w", err)
	}
	if len(metadataRaw) > 0 {
		_ = json.Unmarshal(metadataRaw, &record.Metadata)
	}
	return &record, nil
}

func contentHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func jsonOrNull(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return encoded
}
