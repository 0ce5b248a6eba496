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

// MemberRepository implements persistence.MemberRepository on PostgreSQL.
// Library card fields are stored inline on the members row.
type MemberRepository struct {
	pool *pgxpool.Pool
}

// NewMemberRepository creates a new PostgreSQL member repository.
func NewMemberRepository(pool *pgxpool.Pool) *MemberRepository {
	return &MemberRepository{pool: pool}
}

var memberCols = []any{
	"id", "name", "email", "password_hash", "role", "department",
	"card_number", "card_issued_at", "card_expires_at", "card_status",
	"created_at", "updated_at",
}

func memberRecord(member persistence.Member) goqu.Record {
	record := goqu.Record{
		"id":              member.ID,
		"name":            member.Name,
		"email":           member.Email,
		"password_hash":   member.PasswordHash,
		"role":            member.Role,
		"department":      member.Department,
		"card_number":     nil,
		"card_issued_at":  nil,
		"card_expires_at": nil,
		"card_status":     nil,
		"created_at":      member.CreatedAt,
		"updated_at":      member.UpdatedAt,
	}
	if member.Card != nil {
		record["card_number"] = member.Card.Number
		record["card_issued_at"] = member.Card.IssuedAt
		record["card_expires_at"] = member.Card.ExpiresAt
		record["card_status"] = member.Card.Status
	}
	return record
}

// CreateMember inserts a new member account.
func (r *MemberRepository) CreateMember(ctx context.Context, member persistence.Member) error {
	if member.ID == "" || member.Email == "" {
		return persistence.ErrConstraintViolation
	}

	query, args, err := dialect.Insert("members").Rows(memberRecord(member)).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return mapError(err)
	}
	return nil
}

// UpdateMember updates a member account including its card fields.
func (r *MemberRepository) UpdateMember(ctx context.Context, member persistence.Member) error {
	if member.ID == "" {
		return persistence.ErrConstraintViolation
	}

	record := memberRecord(member)
	delete(record, "id")
	delete(record, "created_at")

	query, args, err := dialect.Update("members").
		Set(record).
		Where(goqu.C("id").Eq(member.ID)).
		Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetMember retrieves a member account by ID.
func (r *MemberRepository) GetMember(ctx context.Context, id string) (persistence.Member, error) {
	if id == "" {
		return persistence.Member{}, persistence.ErrNotFound
	}
	return r.getOne(ctx, goqu.C("id").Eq(id))
}

// GetMemberByEmail retrieves a member account by email for credential checks.
func (r *MemberRepository) GetMemberByEmail(ctx context.Context, email string) (persistence.Member, error) {
	if email == "" {
		return persistence.Member{}, persistence.ErrNotFound
	}
	return r.getOne(ctx, goqu.C("email").Eq(email))
}

// ListMembers returns all member accounts ordered by name.
func (r *MemberRepository) ListMembers(ctx context.Context) ([]persistence.Member, error) {
	query, args, err := dialect.From("members").
		Select(memberCols...).
		Order(goqu.C("name").Asc(), goqu.C("id").Asc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var members []persistence.Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, mapError(err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return members, nil
}

// DeleteMember removes a member account together with its sessions. Members
// with lending history or open reservations are protected.
func (r *MemberRepository) DeleteMember(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var loanCount, reservationCount int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM loans WHERE member_id = $1`, id).Scan(&loanCount); err != nil {
		return mapError(err)
	}
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM reservations WHERE member_id = $1 AND cancelled_at IS NULL`, id,
	).Scan(&reservationCount); err != nil {
		return mapError(err)
	}
	if loanCount > 0 || reservationCount > 0 {
		return persistence.ErrForeignKeyViolation
	}

	if _, err := tx.Exec(ctx, `DELETE FROM sessions WHERE member_id = $1`, id); err != nil {
		return mapError(err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM members WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}

	return tx.Commit(ctx)
}

// SetCard replaces the card fields on a member row.
func (r *MemberRepository) SetCard(ctx context.Context, memberID string, card persistence.LibraryCard, updatedAt time.Time) error {
	if memberID == "" {
		return persistence.ErrNotFound
	}

	query, args, err := dialect.Update("members").
		Set(goqu.Record{
			"card_number":     card.Number,
			"card_issued_at":  card.IssuedAt,
			"card_expires_at": card.ExpiresAt,
			"card_status":     card.Status,
			"updated_at":      updatedAt,
		}).
		Where(goqu.C("id").Eq(memberID)).
		Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (r *MemberRepository) getOne(ctx context.Context, condition goqu.Expression) (persistence.Member, error) {
	query, args, err := dialect.From("members").
		Select(memberCols...).
		Where(condition).
		Prepared(true).ToSQL()
	if err != nil {
		return persistence.Member{}, fmt.Errorf("failed to build select query: %w", err)
	}

	member, err := scanMember(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return persistence.Member{}, mapError(err)
	}
	return member, nil
}

func scanMember(row pgx.Row) (persistence.Member, error) {
	var member persistence.Member
	var cardNumber, cardStatus *string
	var cardIssuedAt, cardExpiresAt *time.Time

	err := row.Scan(
		&member.ID,
		&member.Name,
		&member.Email,
		&member.PasswordHash,
		&member.Role,
		&member.Department,
		&cardNumber,
		&cardIssuedAt,
		&cardExpiresAt,
		&cardStatus,
		&member.CreatedAt,
		&member.UpdatedAt,
	)
	if err != nil {
		return persistence.Member{}, err
	}

	if cardNumber != nil {
		member.Card = &persistence.LibraryCard{
			Number:    *cardNumber,
			IssuedAt:  *cardIssuedAt,
			ExpiresAt: *cardExpiresAt,
			Status:    *cardStatus,
		}
	}
	return member, nil
}
