package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

type migration struct {
	version int
	name    string
	up      func(context.Context, *sql.Tx) error
}

func (d *DB) migrate() error {
	ctx := context.Background()

	if err := d.createMigrationsTable(ctx); err != nil {
		return err
	}

	migrations := []migration{
		{version: 1, name: "initial_schema", up: migrateV1},
		{version: 2, name: "connector_usage", up: migrateV2},
		{version: 3, name: "orchestration_run", up: migrateV3},
	}

	for _, m := range migrations {
		if err := d.runMigration(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
		}
	}

	return nil
}

func (d *DB) createMigrationsTable(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	return err
}

func (d *DB) runMigration(ctx context.Context, m migration) error {
	var count int
	err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM schema_migrations WHERE version = $1", m.version).Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.up(ctx, tx); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES ($1, $2)", m.version, m.name); err != nil {
		return err
	}

	return tx.Commit()
}

// migrateV1 creates the raw ingestion, extracted entity, and final entity
// tables the ingestion pipeline persists into.
func migrateV1(ctx context.Context, tx *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS raw_ingestion (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			file_path TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (source, content_hash)
		)`,

		`CREATE TABLE IF NOT EXISTS extracted_entity (
			id TEXT PRIMARY KEY,
			raw_ingestion_id TEXT NOT NULL REFERENCES raw_ingestion(id) ON DELETE CASCADE,
			source TEXT NOT NULL,
			entity_class TEXT NOT NULL,
			attributes JSONB NOT NULL,
			discovered_attributes JSONB,
			external_ids JSONB,
			model_used TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS entity (
			id TEXT PRIMARY KEY,
			entity_name TEXT NOT NULL,
			entity_class TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			canonical_activities JSONB,
			canonical_roles JSONB,
			canonical_place_types JSONB,
			canonical_access JSONB,
			modules JSONB,
			lat DOUBLE PRECISION,
			lng DOUBLE PRECISION,
			address TEXT,
			phone TEXT,
			website TEXT,
			merge_key TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_extracted_entity_raw_ingestion ON extracted_entity(raw_ingestion_id)`,
		`CREATE INDEX IF NOT EXISTS idx_entity_merge_key ON entity(merge_key)`,
		`CREATE INDEX IF NOT EXISTS idx_entity_class ON entity(entity_class)`,
	}

	for _, query := range queries {
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w\nquery: %s", err, query)
		}
	}
	return nil
}

// migrateV2 creates the per-connector daily usage counter the in-process
// rate limiter and the orchestrator's RateLimiter both read through.
func migrateV2(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS connector_usage (
		source TEXT NOT NULL,
		usage_date DATE NOT NULL,
		call_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (source, usage_date)
	)`)
	return err
}

// migrateV3 creates the orchestration_run table recording one run's
// report (metrics, errors, budget, accepted entity count) for audit.
func migrateV3(ctx context.Context, tx *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS orchestration_run (
			id TEXT PRIMARY KEY,
			lens_id TEXT NOT NULL,
			mode TEXT NOT NULL,
			query TEXT NOT NULL,
			budget_spent_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			accepted_entity_count INTEGER NOT NULL DEFAULT 0,
			metrics JSONB,
			errors JSONB,
			persistence_errors JSONB,
			extraction_errors JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orchestration_run_lens ON orchestration_run(lens_id)`,
	}
	for _, query := range queries {
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w\nquery: %s", err, query)
		}
	}
	return nil
}
