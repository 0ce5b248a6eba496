package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Executor runs migrations against a SQLite database and tracks applied
// versions in a schema_migrations table.
type Executor struct {
	db *sql.DB
}

// NewExecutor constructs an executor bound to the given database handle.
func NewExecutor(db *sql.DB) *Executor {
	return &Executor{db: db}
}

// InitializeVersionTable creates the schema_migrations table if needed.
func (e *Executor) InitializeVersionTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			checksum TEXT NOT NULL DEFAULT '',
			applied_at TEXT NOT NULL,
			execution_time_ms INTEGER NOT NULL DEFAULT 0
		)
	`
	if _, err := e.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	return nil
}

// ExecuteMigration runs a single migration's SQL within a transaction.
func (e *Executor) ExecuteMigration(ctx context.Context, migration Migration) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return NewError(migration.Version, migration.Name, "begin", err)
	}

	if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewError(migration.Version, migration.Name, "execute",
				fmt.Errorf("%w (rollback error: %v)", err, rbErr))
		}
		return NewError(migration.Version, migration.Name, "execute", fmt.Errorf("%w: %v", ErrMigrationFailed, err))
	}

	if err := tx.Commit(); err != nil {
		return NewError(migration.Version, migration.Name, "commit", err)
	}

	return nil
}

// RecordMigration records a successfully applied migration.
func (e *Executor) RecordMigration(ctx context.Context, migration Migration, executionTime time.Duration) error {
	query := `INSERT INTO schema_migrations (version, checksum, applied_at, execution_time_ms) VALUES (?, ?, ?, ?)`
	_, err := e.db.ExecContext(ctx, query,
		migration.Version,
		migration.Checksum,
		time.Now().UTC().Format(time.RFC3339),
		executionTime.Milliseconds(),
	)
	if err != nil {
		return NewError(migration.Version, migration.Name, "record", err)
	}
	return nil
}

// AppliedChecksums returns the checksum recorded for every applied version.
func (e *Executor) AppliedChecksums(ctx context.Context) (map[string]string, error) {
	rows, err := e.db.QueryContext(ctx, `SELECT version, checksum FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied versions: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]string)
	for rows.Next() {
		var version, checksum string
		if err := rows.Scan(&version, &checksum); err != nil {
			return nil, fmt.Errorf("failed to scan applied version: %w", err)
		}
		applied[version] = checksum
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate applied versions: %w", err)
	}
	return applied, nil
}

// ListApplied returns applied migrations with their timestamps.
func (e *Executor) ListApplied(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := e.db.QueryContext(ctx, `SELECT version, applied_at, execution_time_ms FROM schema_migrations ORDER BY version ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var record AppliedMigration
		var appliedAt string
		var executionMS int64
		if err := rows.Scan(&record.Version, &appliedAt, &executionMS); err != nil {
			return nil, fmt.Errorf("failed to scan applied migration: %w", err)
		}
		if record.AppliedAt, err = time.Parse(time.RFC3339, appliedAt); err != nil {
			return nil, fmt.Errorf("failed to parse applied_at: %w", err)
		}
		record.ExecutionTime = time.Duration(executionMS) * time.Millisecond
		applied = append(applied, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate applied migrations: %w", err)
	}
	return applied, nil
}
