package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/university-library/internal/persistence"
	"github.com/example/university-library/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite
// storage instance for integration-style persistence tests.
type SQLiteHarness struct {
	Books        persistence.BookRepository
	Members      persistence.MemberRepository
	Loans        persistence.LoanRepository
	Reservations persistence.ReservationRepository
	Sessions     persistence.SessionRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// also registers a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	dir := tb.TempDir()
	path := filepath.Join(dir, "library.db")

	storage, err := sqlite.Open("file:"+path+"?_pragma=foreign_keys(1)", nil)
	if err != nil {
		tb.Fatalf("failed to open sqlite storage: %v", err)
	}
	if err := storage.Migrate(context.Background()); err != nil {
		storage.Close()
		tb.Fatalf("failed to migrate sqlite storage: %v", err)
	}

	harness := &SQLiteHarness{
		Books:        storage.Books,
		Members:      storage.Members,
		Loans:        storage.Loans,
		Reservations: storage.Reservations,
		Sessions:     storage.Sessions,
		cleanup: func() {
			storage.Close()
		},
	}
	tb.Cleanup(harness.Close)
	return harness
}
