package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/university-library/internal/persistence"
)

// MemberRepository implements persistence.MemberRepository using SQLite.
// Library card fields are stored inline on the members row.
type MemberRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewMemberRepository creates a new SQLite member repository.
func NewMemberRepository(pool *ConnectionPool) *MemberRepository {
	return &MemberRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const memberColumns = `id, name, email, password_hash, role, department,
	card_number, card_issued_at, card_expires_at, card_status, created_at, updated_at`

// CreateMember inserts a new member account.
func (r *MemberRepository) CreateMember(ctx context.Context, member persistence.Member) error {
	if member.ID == "" || member.Email == "" {
		return persistence.ErrConstraintViolation
	}

	query := fmt.Sprintf(`INSERT INTO members (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, memberColumns)

	cardNumber, cardIssuedAt, cardExpiresAt, cardStatus := cardFields(member.Card)

	_, err := r.helper.Exec(ctx, query,
		member.ID,
		member.Name,
		member.Email,
		member.PasswordHash,
		member.Role,
		member.Department,
		cardNumber,
		cardIssuedAt,
		cardExpiresAt,
		cardStatus,
		formatTime(member.CreatedAt),
		formatTime(member.UpdatedAt),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// UpdateMember updates a member account including its card fields.
func (r *MemberRepository) UpdateMember(ctx context.Context, member persistence.Member) error {
	if member.ID == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		UPDATE members
		SET name = ?, email = ?, password_hash = ?, role = ?, department = ?,
			card_number = ?, card_issued_at = ?, card_expires_at = ?, card_status = ?,
			updated_at = ?
		WHERE id = ?
	`

	cardNumber, cardIssuedAt, cardExpiresAt, cardStatus := cardFields(member.Card)

	result, err := r.helper.Exec(ctx, query,
		member.Name,
		member.Email,
		member.PasswordHash,
		member.Role,
		member.Department,
		cardNumber,
		cardIssuedAt,
		cardExpiresAt,
		cardStatus,
		formatTime(member.UpdatedAt),
		member.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetMember retrieves a member account by ID.
func (r *MemberRepository) GetMember(ctx context.Context, id string) (persistence.Member, error) {
	if id == "" {
		return persistence.Member{}, persistence.ErrNotFound
	}

	query := fmt.Sprintf(`SELECT %s FROM members WHERE id = ?`, memberColumns)
	return r.scanMember(r.helper.QueryRow(ctx, query, id))
}

// GetMemberByEmail retrieves a member account by email for credential checks.
func (r *MemberRepository) GetMemberByEmail(ctx context.Context, email string) (persistence.Member, error) {
	if email == "" {
		return persistence.Member{}, persistence.ErrNotFound
	}

	query := fmt.Sprintf(`SELECT %s FROM members WHERE email = ?`, memberColumns)
	return r.scanMember(r.helper.QueryRow(ctx, query, email))
}

// ListMembers returns all member accounts ordered by name.
func (r *MemberRepository) ListMembers(ctx context.Context) ([]persistence.Member, error) {
	query := fmt.Sprintf(`SELECT %s FROM members ORDER BY name ASC, id ASC`, memberColumns)

	rows, err := r.helper.Query(ctx, query)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var members []persistence.Member
	for rows.Next() {
		member, err := scanMemberFrom(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return members, nil
}

// DeleteMember removes a member account together with its sessions. Members
// with lending history or open reservations are protected.
func (r *MemberRepository) DeleteMember(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var loanCount, reservationCount int
		if err := r.helper.QueryRowTx(tx, `SELECT COUNT(*) FROM loans WHERE member_id = ?`, id).Scan(&loanCount); err != nil {
			return r.mapper.MapError(err)
		}
		if err := r.helper.QueryRowTx(tx,
			`SELECT COUNT(*) FROM reservations WHERE member_id = ? AND cancelled_at IS NULL`, id,
		).Scan(&reservationCount); err != nil {
			return r.mapper.MapError(err)
		}
		if loanCount > 0 || reservationCount > 0 {
			return persistence.ErrForeignKeyViolation
		}

		if _, err := r.helper.ExecTx(tx, `DELETE FROM sessions WHERE member_id = ?`, id); err != nil {
			return r.mapper.MapError(err)
		}

		result, err := r.helper.ExecTx(tx, `DELETE FROM members WHERE id = ?`, id)
		if err != nil {
			return r.mapper.MapError(err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

// SetCard replaces the card fields on a member row.
func (r *MemberRepository) SetCard(ctx context.Context, memberID string, card persistence.LibraryCard, updatedAt time.Time) error {
	if memberID == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx,
		`UPDATE members SET card_number = ?, card_issued_at = ?, card_expires_at = ?, card_status = ?, updated_at = ? WHERE id = ?`,
		card.Number,
		formatTime(card.IssuedAt),
		formatTime(card.ExpiresAt),
		card.Status,
		formatTime(updatedAt),
		memberID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func cardFields(card *persistence.LibraryCard) (number, issuedAt, expiresAt, status sql.NullString) {
	if card == nil {
		return
	}
	number = sql.NullString{String: card.Number, Valid: true}
	issuedAt = sql.NullString{String: formatTime(card.IssuedAt), Valid: true}
	expiresAt = sql.NullString{String: formatTime(card.ExpiresAt), Valid: true}
	status = sql.NullString{String: card.Status, Valid: true}
	return
}

func (r *MemberRepository) scanMember(row *sql.Row) (persistence.Member, error) {
	member, err := scanMemberFrom(row)
	if err != nil {
		return persistence.Member{}, r.mapper.MapError(err)
	}
	return member, nil
}

func scanMemberFrom(scanner rowScanner) (persistence.Member, error) {
	var member persistence.Member
	var cardNumber, cardIssuedAt, cardExpiresAt, cardStatus sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
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
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Member{}, err
	}

	if cardNumber.Valid {
		card := persistence.LibraryCard{
			Number: cardNumber.String,
			Status: cardStatus.String,
		}
		if card.IssuedAt, err = parseTime(cardIssuedAt.String); err != nil {
			return persistence.Member{}, err
		}
		if card.ExpiresAt, err = parseTime(cardExpiresAt.String); err != nil {
			return persistence.Member{}, err
		}
		member.Card = &card
	}

	if member.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Member{}, err
	}
	if member.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Member{}, err
	}
	return member, nil
}
