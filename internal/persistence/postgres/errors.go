package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/example/university-library/internal/persistence"
)

// PostgreSQL error codes, see https://www.postgresql.org/docs/current/errcodes-appendix.html.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeNotNullViolation    = "23502"
)

// mapError converts pgx and PostgreSQL errors to persistence sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return persistence.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return persistence.ErrDuplicate
		case codeForeignKeyViolation:
			return persistence.ErrForeignKeyViolation
		case codeCheckViolation, codeNotNullViolation:
			return persistence.ErrConstraintViolation
		}
	}

	return err
}
