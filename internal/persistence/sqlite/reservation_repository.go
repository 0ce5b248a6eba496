package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/university-library/internal/persistence"
)

// ReservationRepository implements persistence.ReservationRepository using
// SQLite. A reservation is open while it is not cancelled and its expiry has
// not yet passed (it lapses strictly after the expiry instant); the reference
// instant is always supplied by the caller.
type ReservationRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewReservationRepository creates a new SQLite reservation repository.
func NewReservationRepository(pool *ConnectionPool) *ReservationRepository {
	return &ReservationRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const reservationColumns = `id, book_id, member_id, reserved_at, expires_at, cancelled_at, created_at, updated_at`

// CreateReservation inserts a new hold.
func (r *ReservationRepository) CreateReservation(ctx context.Context, reservation persistence.Reservation) error {
	if reservation.ID == "" || reservation.BookID == "" || reservation.MemberID == "" {
		return persistence.ErrConstraintViolation
	}

	query := fmt.Sprintf(`INSERT INTO reservations (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, reservationColumns)

	_, err := r.helper.Exec(ctx, query,
		reservation.ID,
		reservation.BookID,
		reservation.MemberID,
		formatTime(reservation.ReservedAt),
		formatTime(reservation.ExpiresAt),
		formatNullableTime(reservation.CancelledAt),
		formatTime(reservation.CreatedAt),
		formatTime(reservation.UpdatedAt),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// CancelReservation marks a hold as cancelled. Cancelling an already
// cancelled hold returns ErrNotFound.
func (r *ReservationRepository) CancelReservation(ctx context.Context, id string, cancelledAt time.Time) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx,
		`UPDATE reservations SET cancelled_at = ?, updated_at = ? WHERE id = ? AND cancelled_at IS NULL`,
		formatTime(cancelledAt), formatTime(cancelledAt), id,
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

// GetReservation retrieves a hold by ID.
func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	if id == "" {
		return persistence.Reservation{}, persistence.ErrNotFound
	}

	query := fmt.Sprintf(`SELECT %s FROM reservations WHERE id = ?`, reservationColumns)
	return r.scanReservation(r.helper.QueryRow(ctx, query, id))
}

// GetOpenReservationForBook retrieves the open hold on a book, if any.
func (r *ReservationRepository) GetOpenReservationForBook(ctx context.Context, bookID string, reference time.Time) (persistence.Reservation, error) {
	if bookID == "" {
		return persistence.Reservation{}, persistence.ErrNotFound
	}

	query := fmt.Sprintf(
		`SELECT %s FROM reservations WHERE book_id = ? AND cancelled_at IS NULL AND expires_at >= ? ORDER BY reserved_at ASC LIMIT 1`,
		reservationColumns,
	)
	return r.scanReservation(r.helper.QueryRow(ctx, query, bookID, formatTime(reference)))
}

// ListOpenReservations returns all holds still open at the reference instant.
func (r *ReservationRepository) ListOpenReservations(ctx context.Context, reference time.Time) ([]persistence.Reservation, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM reservations WHERE cancelled_at IS NULL AND expires_at >= ? ORDER BY reserved_at ASC`,
		reservationColumns,
	)
	return r.queryReservations(ctx, query, formatTime(reference))
}

// ListExpiredReservations returns holds whose expiry has passed without being
// cancelled. The expiry sweeper consumes these.
func (r *ReservationRepository) ListExpiredReservations(ctx context.Context, reference time.Time) ([]persistence.Reservation, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM reservations WHERE cancelled_at IS NULL AND expires_at < ? ORDER BY expires_at ASC`,
		reservationColumns,
	)
	return r.queryReservations(ctx, query, formatTime(reference))
}

// ListReservationsForMember returns the hold history of a member, most
// recent first.
func (r *ReservationRepository) ListReservationsForMember(ctx context.Context, memberID string) ([]persistence.Reservation, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM reservations WHERE member_id = ? ORDER BY reserved_at DESC, id ASC`,
		reservationColumns,
	)
	return r.queryReservations(ctx, query, memberID)
}

func (r *ReservationRepository) queryReservations(ctx context.Context, query string, args ...any) ([]persistence.Reservation, error) {
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var reservations []persistence.Reservation
	for rows.Next() {
		reservation, err := scanReservationFrom(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		reservations = append(reservations, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return reservations, nil
}

func (r *ReservationRepository) scanReservation(row *sql.Row) (persistence.Reservation, error) {
	reservation, err := scanReservationFrom(row)
	if err != nil {
		return persistence.Reservation{}, r.mapper.MapError(err)
	}
	return reservation, nil
}

func scanReservationFrom(scanner rowScanner) (persistence.Reservation, error) {
	var reservation persistence.Reservation
	var reservedAt, expiresAt, createdAt, updatedAt string
	var cancelledAt sql.NullString

	err := scanner.Scan(
		&reservation.ID,
		&reservation.BookID,
		&reservation.MemberID,
		&reservedAt,
		&expiresAt,
		&cancelledAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Reservation{}, err
	}

	if reservation.ReservedAt, err = parseTime(reservedAt); err != nil {
		return persistence.Reservation{}, err
	}
	if reservation.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return persistence.Reservation{}, err
	}
	if reservation.CancelledAt, err = parseNullableTime(cancelledAt); err != nil {
		return persistence.Reservation{}, err
	}
	if reservation.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Reservation{}, err
	}
	if reservation.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Reservation{}, err
	}
	return reservation, nil
}
