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

// ReservationRepository implements persistence.ReservationRepository on
// PostgreSQL.
type ReservationRepository struct {
	pool *pgxpool.Pool
}

// NewReservationRepository creates a new PostgreSQL reservation repository.
func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{pool: pool}
}

var reservationCols = []any{
	"id", "book_id", "member_id", "reserved_at", "expires_at", "cancelled_at",
	"created_at", "updated_at",
}

// CreateReservation inserts a new hold.
func (r *ReservationRepository) CreateReservation(ctx context.Context, reservation persistence.Reservation) error {
	if reservation.ID == "" || reservation.BookID == "" || reservation.MemberID == "" {
		return persistence.ErrConstraintViolation
	}

	query, args, err := dialect.Insert("reservations").Rows(goqu.Record{
		"id":           reservation.ID,
		"book_id":      reservation.BookID,
		"member_id":    reservation.MemberID,
		"reserved_at":  reservation.ReservedAt,
		"expires_at":   reservation.ExpiresAt,
		"cancelled_at": reservation.CancelledAt,
		"created_at":   reservation.CreatedAt,
		"updated_at":   reservation.UpdatedAt,
	}).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return mapError(err)
	}
	return nil
}

// CancelReservation marks a hold as cancelled.
func (r *ReservationRepository) CancelReservation(ctx context.Context, id string, cancelledAt time.Time) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	query, args, err := dialect.Update("reservations").
		Set(goqu.Record{"cancelled_at": cancelledAt, "updated_at": cancelledAt}).
		Where(goqu.C("id").Eq(id), goqu.C("cancelled_at").IsNull()).
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

// GetReservation retrieves a hold by ID.
func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	if id == "" {
		return persistence.Reservation{}, persistence.ErrNotFound
	}

	query, args, err := dialect.From("reservations").
		Select(reservationCols...).
		Where(goqu.C("id").Eq(id)).
		Prepared(true).ToSQL()
	if err != nil {
		return persistence.Reservation{}, fmt.Errorf("failed to build select query: %w", err)
	}

	reservation, err := scanReservation(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return persistence.Reservation{}, mapError(err)
	}
	return reservation, nil
}

// GetOpenReservationForBook retrieves the open hold on a book, if any.
func (r *ReservationRepository) GetOpenReservationForBook(ctx context.Context, bookID string, reference time.Time) (persistence.Reservation, error) {
	if bookID == "" {
		return persistence.Reservation{}, persistence.ErrNotFound
	}

	query, args, err := dialect.From("reservations").
		Select(reservationCols...).
		Where(
			goqu.C("book_id").Eq(bookID),
			goqu.C("cancelled_at").IsNull(),
			goqu.C("expires_at").Gte(reference),
		).
		Order(goqu.C("reserved_at").Asc()).
		Limit(1).
		Prepared(true).ToSQL()
	if err != nil {
		return persistence.Reservation{}, fmt.Errorf("failed to build select query: %w", err)
	}

	reservation, err := scanReservation(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return persistence.Reservation{}, mapError(err)
	}
	return reservation, nil
}

// ListOpenReservations returns all holds still open at the reference instant.
func (r *ReservationRepository) ListOpenReservations(ctx context.Context, reference time.Time) ([]persistence.Reservation, error) {
	ds := dialect.From("reservations").
		Select(reservationCols...).
		Where(goqu.C("cancelled_at").IsNull(), goqu.C("expires_at").Gte(reference)).
		Order(goqu.C("reserved_at").Asc())
	return r.queryReservations(ctx, ds)
}

// ListExpiredReservations returns holds whose expiry has passed without
// being cancelled.
func (r *ReservationRepository) ListExpiredReservations(ctx context.Context, reference time.Time) ([]persistence.Reservation, error) {
	ds := dialect.From("reservations").
		Select(reservationCols...).
		Where(goqu.C("cancelled_at").IsNull(), goqu.C("expires_at").Lt(reference)).
		Order(goqu.C("expires_at").Asc())
	return r.queryReservations(ctx, ds)
}

// ListReservationsForMember returns the hold history of a member, most
// recent first.
func (r *ReservationRepository) ListReservationsForMember(ctx context.Context, memberID string) ([]persistence.Reservation, error) {
	ds := dialect.From("reservations").
		Select(reservationCols...).
		Where(goqu.C("member_id").Eq(memberID)).
		Order(goqu.C("reserved_at").Desc(), goqu.C("id").Asc())
	return r.queryReservations(ctx, ds)
}

func (r *ReservationRepository) queryReservations(ctx context.Context, ds *goqu.SelectDataset) ([]persistence.Reservation, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var reservations []persistence.Reservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, mapError(err)
		}
		reservations = append(reservations, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return reservations, nil
}

func scanReservation(row pgx.Row) (persistence.Reservation, error) {
	var reservation persistence.Reservation
	err := row.Scan(
		&reservation.ID,
		&reservation.BookID,
		&reservation.MemberID,
		&reservation.ReservedAt,
		&reservation.ExpiresAt,
		&reservation.CancelledAt,
		&reservation.CreatedAt,
		&reservation.UpdatedAt,
	)
	if err != nil {
		return persistence.Reservation{}, err
	}
	return reservation, nil
}
