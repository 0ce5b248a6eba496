package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/university-library/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository on PostgreSQL.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new PostgreSQL session repository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

var sessionCols = []any{
	"id", "member_id", "token", "expires_at", "created_at", "updated_at", "revoked_at",
}

// CreateSession inserts a new session and returns it.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	if session.ID == "" || session.MemberID == "" || session.Token == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}

	query, args, err := dialect.Insert("sessions").Rows(goqu.Record{
		"id":         session.ID,
		"member_id":  session.MemberID,
		"token":      session.Token,
		"expires_at": session.ExpiresAt,
		"created_at": session.CreatedAt,
		"updated_at": session.UpdatedAt,
		"revoked_at": session.RevokedAt,
	}).Prepared(true).ToSQL()
	if err != nil {
		return persistence.Session{}, fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return persistence.Session{}, mapError(err)
	}
	return session, nil
}

// GetSession retrieves a session by token.
func (r *SessionRepository) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	if token == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}

	query, args, err := dialect.From("sessions").
		Select(sessionCols...).
		Where(goqu.C("token").Eq(token)).
		Prepared(true).ToSQL()
	if err != nil {
		return persistence.Session{}, fmt.Errorf("failed to build select query: %w", err)
	}

	session, err := scanSession(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return persistence.Session{}, mapError(err)
	}
	return session, nil
}

// RevokeSession marks a session as revoked and returns the updated record.
func (r *SessionRepository) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.Session, error) {
	if token == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}

	query, args, err := dialect.Update("sessions").
		Set(goqu.Record{"revoked_at": revokedAt, "updated_at": revokedAt}).
		Where(goqu.C("token").Eq(token), goqu.C("revoked_at").IsNull()).
		Prepared(true).ToSQL()
	if err != nil {
		return persistence.Session{}, fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return persistence.Session{}, mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.Session{}, persistence.ErrNotFound
	}

	return r.GetSession(ctx, token)
}

// DeleteExpiredSessions removes sessions whose expiry has passed.
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	query, args, err := dialect.Delete("sessions").
		Where(goqu.C("expires_at").Lte(reference)).
		Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return mapError(err)
	}
	return nil
}

func scanSession(row pgx.Row) (persistence.Session, error) {
	var session persistence.Session
	err := row.Scan(
		&session.ID,
		&session.MemberID,
		&session.Token,
		&session.ExpiresAt,
		&session.CreatedAt,
		&session.UpdatedAt,
		&session.RevokedAt,
	)
	if err != nil {
		return persistence.Session{}, err
	}
	return session, nil
}
