package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/edinburghfinds/lensfeed/internal/engine"
)

// InsertOrchestrationRun records one run's Report for audit, keyed by lens
// id, mode, and query.
func (s *Store) InsertOrchestrationRun(ctx context.Context, lensID, mode, query string, budgetSpentUSD, confidence float64, report *engine.Report) error {
	id := "run_" + uuid.New().String()

	_, err := s.db.DB().ExecContext(ctx, `
		INSERT INTO orchestration_run (id, lens_id, mode, query, budget_spent_usd, confidence,
			accepted_entity_count, metrics, errors, persistence_errors, extraction_errors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, lensID, mode, query, budgetSpentUSD, confidence, report.AcceptedEntities,
		jsonOrNull(report.Connectors), jsonOrNull(marshalErrors(report.Errors)),
		jsonOrNull(report.PersistenceErrors), jsonOrNull(report.ExtractionErrors))
	if err != nil {
		return fmt.Errorf("persistence: failed to insert orchestration_run: %w", err)
	}
	return nil
}

func marshalErrors(errs []engine.RunError) []engine.RunError {
	if errs == nil {
		return []engine.RunError{}
	}
	return errs
}
