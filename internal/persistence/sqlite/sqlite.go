package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/example/university-library/internal/persistence"
	"github.com/example/university-library/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Storage bundles the SQLite connection pool with the repositories built on
// top of it.
type Storage struct {
	pool         *ConnectionPool
	logger       *slog.Logger
	Books        *BookRepository
	Members      *MemberRepository
	Loans        *LoanRepository
	Reservations *ReservationRepository
	Sessions     *SessionRepository
}

// Open opens the SQLite database at the given DSN and wires the
// repositories. Migrate must be called before first use.
func Open(dsn string, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := NewConnectionPool(dsn)
	if err != nil {
		return nil, err
	}

	return &Storage{
		pool:         pool,
		logger:       logger,
		Books:        NewBookRepository(pool),
		Members:      NewMemberRepository(pool),
		Loans:        NewLoanRepository(pool),
		Reservations: NewReservationRepository(pool),
		Sessions:     NewSessionRepository(pool),
	}, nil
}

// Pool exposes the underlying connection pool for transactional flows.
func (s *Storage) Pool() *ConnectionPool {
	return s.pool
}

// Close releases the underlying database handle.
func (s *Storage) Close() error {
	return s.pool.Close()
}

// Migrate applies all pending schema migrations embedded in the binary.
func (s *Storage) Migrate(ctx context.Context) error {
	source, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	manager := migration.NewManager(
		migration.NewScanner(source),
		migration.NewExecutor(s.pool.DB()),
		s.logger,
	)
	return manager.Run(ctx)
}

var (
	_ persistence.BookRepository        = (*BookRepository)(nil)
	_ persistence.MemberRepository      = (*MemberRepository)(nil)
	_ persistence.LoanRepository        = (*LoanRepository)(nil)
	_ persistence.ReservationRepository = (*ReservationRepository)(nil)
	_ persistence.SessionRepository     = (*SessionRepository)(nil)
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	return t, nil
}

func formatNullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullableTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid {
		return nil, nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
