// Package postgres manages the relational store backing finalized
// entities: connection setup, migrations, and per-table stores. Grounded
// on the teacher's internal/storage/sqlite package (connection.go,
// migrations.go, manager.go) with the driver and dialect swapped from
// modernc.org/sqlite to jackc/pgx's database/sql driver, since the spec
// requires a production-grade RDBMS for finalization paths and rejects a
// sqlite-style URL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ternarybob/arbor"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Config is the subset of connection settings this package needs. The
// caller (internal/common.Config) decodes the rest of the TOML document.
type Config struct {
	DatabaseURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // seconds
}

// DB wraps the pgx-backed *sql.DB connection and owns schema migrations.
type DB struct {
	db     *sql.DB
	logger arbor.ILogger
}

// New opens a connection to config.DatabaseURL, validates it is not a
// sqlite-style URL, configures the pool, and runs migrations.
func New(logger arbor.ILogger, config Config) (*DB, error) {
	if config.DatabaseURL == "" {
		return nil, fmt.Errorf("postgres: DATABASE_URL is required")
	}
	if err := rejectSQLiteURL(config.DatabaseURL); err != nil {
		return nil, err
	}

	logger.Debug().Str("driver", "pgx").Msg("opening database connection")

	sqlDB, err := sql.Open("pgx", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}

	if err := sqlDB.PingContext(context.Background()); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	d := &DB{db: sqlDB, logger: logger}

	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info().Msg("postgres database initialized")
	return d, nil
}

// rejectSQLiteURL enforces the spec's "production-grade RDBMS" constraint
// at the connection boundary, the same place a batch re-extraction tool
// would check before touching finalized data.
func rejectSQLiteURL(url string) error {
	for _, prefix := range []string{"sqlite://", "sqlite3://", "file:"} {
		if len(url) >= len(prefix) && url[:len(prefix)] == prefix {
			return fmt.Errorf("postgres: DATABASE_URL must be a production-grade RDBMS connection string, got sqlite-style URL")
		}
	}
	return nil
}

// DB returns the underlying *sql.DB connection.
func (d *DB) DB() *sql.DB {
	return d.db
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// Ping verifies the database connection.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// BeginTx starts a new transaction.
func (d *DB) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return d.db.BeginTx(ctx, nil)
}
