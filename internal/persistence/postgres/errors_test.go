package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/example/university-library/internal/persistence"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", pgx.ErrNoRows, persistence.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: codeUniqueViolation}, persistence.ErrDuplicate},
		{"foreign key violation", &pgconn.PgError{Code: codeForeignKeyViolation}, persistence.ErrForeignKeyViolation},
		{"check violation", &pgconn.PgError{Code: codeCheckViolation}, persistence.ErrConstraintViolation},
		{"not null violation", &pgconn.PgError{Code: codeNotNullViolation}, persistence.ErrConstraintViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err)
			if tt.want == nil {
				if got != nil {
					t.Errorf("expected nil, got %v", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestMapErrorPassesThroughUnknownErrors(t *testing.T) {
	unknown := errors.New("connection refused")
	if got := mapError(unknown); !errors.Is(got, unknown) {
		t.Errorf("expected passthrough, got %v", got)
	}
}
