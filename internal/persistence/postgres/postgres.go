package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/university-library/internal/persistence"
)

//go:embed schema.sql
var schemaSQL string

var dialect = goqu.Dialect("postgres")

// Storage bundles a pgx connection pool with the repositories built on top
// of it. It backs deployments that use a hosted relational database instead
// of the embedded SQLite engine.
type Storage struct {
	pool         *pgxpool.Pool
	logger       *slog.Logger
	Books        *BookRepository
	Members      *MemberRepository
	Loans        *LoanRepository
	Reservations *ReservationRepository
	Sessions     *SessionRepository
}

// Open connects to the PostgreSQL database at the given DSN and wires the
// repositories. Migrate must be called before first use.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
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
func (s *Storage) Pool() *pgxpool.Pool {
	return s.pool
}

// Close releases all pooled connections.
func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

// Migrate applies the embedded schema. Every statement uses IF NOT EXISTS,
// so repeated runs are harmless.
func (s *Storage) Migrate(ctx context.Context) error {
	s.logger.Info("applying postgres schema")
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply postgres schema: %w", err)
	}
	return nil
}

var (
	_ persistence.BookRepository        = (*BookRepository)(nil)
	_ persistence.MemberRepository      = (*MemberRepository)(nil)
	_ persistence.LoanRepository        = (*LoanRepository)(nil)
	_ persistence.ReservationRepository = (*ReservationRepository)(nil)
	_ persistence.SessionRepository     = (*SessionRepository)(nil)
)
