package migration

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Manager orchestrates the migration process: scanning the embedded
// filesystem, skipping applied versions, verifying checksums, and executing
// the remainder in order.
type Manager struct {
	scanner  *Scanner
	executor *Executor
	logger   *slog.Logger
}

// NewManager constructs a manager from a scanner and executor.
func NewManager(scanner *Scanner, executor *Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{scanner: scanner, executor: executor, logger: logger}
}

// Run executes all pending migrations in sequential order. Already applied
// versions are verified against their recorded checksums.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return fmt.Errorf("failed to initialize version table: %w", err)
	}

	migrations, err := m.scanner.ScanMigrations()
	if err != nil {
		return fmt.Errorf("failed to scan migrations: %w", err)
	}

	applied, err := m.executor.AppliedChecksums(ctx)
	if err != nil {
		return err
	}

	pending := make([]Migration, 0, len(migrations))
	for _, migration := range migrations {
		checksum, ok := applied[migration.Version]
		if !ok {
			pending = append(pending, migration)
			continue
		}
		if checksum != "" && checksum != migration.Checksum {
			return NewError(migration.Version, migration.Name, "verify", ErrChecksumMismatch)
		}
	}

	if len(pending) == 0 {
		m.logger.Debug("schema up to date", "applied", len(applied))
		return nil
	}

	for _, migration := range pending {
		start := time.Now()
		m.logger.Info("applying migration", "version", migration.Version, "description", migration.Description)

		if err := m.executor.ExecuteMigration(ctx, migration); err != nil {
			return err
		}
		if err := m.executor.RecordMigration(ctx, migration, time.Since(start)); err != nil {
			return err
		}

		m.logger.Info("migration applied", "version", migration.Version, "duration", time.Since(start))
	}

	return nil
}

// Pending returns migrations that have not been applied yet.
func (m *Manager) Pending(ctx context.Context) ([]Migration, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize version table: %w", err)
	}

	migrations, err := m.scanner.ScanMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to scan migrations: %w", err)
	}
	applied, err := m.executor.AppliedChecksums(ctx)
	if err != nil {
		return nil, err
	}

	pending := make([]Migration, 0)
	for _, migration := range migrations {
		if _, ok := applied[migration.Version]; !ok {
			pending = append(pending, migration)
		}
	}
	return pending, nil
}
