package persistence

import (
	"context"
	"database/sql"
	"fmt"
)

// ConnectorUsageStore implements orchestrator.RateLimiter against the
// connector_usage daily-counter table: each call atomically checks today's
// count against limitPerDay and increments it if there is room.
type ConnectorUsageStore struct {
	store *Store
}

func NewConnectorUsageStore(store *Store) *ConnectorUsageStore {
	return &ConnectorUsageStore{store: store}
}

// Allow reports whether source may run again today given limitPerDay, and
// increments its usage counter in the same transaction if so. A
// limitPerDay of zero or less is treated as unlimited.
func (c *ConnectorUsageStore) Allow(ctx context.Context, source string, limitPerDay int) (bool, error) {
	if limitPerDay <= 0 {
		return true, nil
	}

	tx, err := c.store.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("persistence: failed to begin connector usage tx: %w", err)
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRowContext(ctx, `
		SELECT call_count FROM connector_usage
		WHERE source = $1 AND usage_date = CURRENT_DATE`, source).Scan(&count)
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("persistence: failed to read connector usage: %w", err)
	}

	if count >= limitPerDay {
		return false, tx.Commit()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO connector_usage (source, usage_date, call_count)
		VALUES ($1, CURRENT_DATE, 1)
		ON CONFLICT (source, usage_date) DO UPDATE SET call_count = connector_usage.call_count + 1`,
		source)
	if err != nil {
		return false, fmt.Errorf("persistence: failed to increment connector usage: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("persistence: failed to commit connector usage tx: %w", err)
	}
	return true, nil
}
