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

// LoanRepository implements persistence.LoanRepository on PostgreSQL. The
// idx_loans_open_book partial unique index backs up the
// one-open-loan-per-book rule at the storage level.
type LoanRepository struct {
	pool *pgxpool.Pool
}

// NewLoanRepository creates a new PostgreSQL loan repository.
func NewLoanRepository(pool *pgxpool.Pool) *LoanRepository {
	return &LoanRepository{pool: pool}
}

var loanCols = []any{
	"id", "book_id", "member_id", "borrowed_at", "due_at", "returned_at",
	"created_at", "updated_at",
}

// CreateLoan inserts a new lending record.
func (r *LoanRepository) CreateLoan(ctx context.Context, loan persistence.Loan) error {
	if loan.ID == "" || loan.BookID == "" || loan.MemberID == "" {
		return persistence.ErrConstraintViolation
	}

	query, args, err := dialect.Insert("loans").Rows(goqu.Record{
		"id":          loan.ID,
		"book_id":     loan.BookID,
		"member_id":   loan.MemberID,
		"borrowed_at": loan.BorrowedAt,
		"due_at":      loan.DueAt,
		"returned_at": loan.ReturnedAt,
		"created_at":  loan.CreatedAt,
		"updated_at":  loan.UpdatedAt,
	}).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return mapError(err)
	}
	return nil
}

// CloseLoan marks a lending record as returned.
func (r *LoanRepository) CloseLoan(ctx context.Context, id string, returnedAt time.Time) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	query, args, err := dialect.Update("loans").
		Set(goqu.Record{"returned_at": returnedAt, "updated_at": returnedAt}).
		Where(goqu.C("id").Eq(id), goqu.C("returned_at").IsNull()).
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

// GetOpenLoan retrieves the open loan of a member on a book.
func (r *LoanRepository) GetOpenLoan(ctx context.Context, bookID, memberID string) (persistence.Loan, error) {
	if bookID == "" || memberID == "" {
		return persistence.Loan{}, persistence.ErrNotFound
	}

	query, args, err := dialect.From("loans").
		Select(loanCols...).
		Where(
			goqu.C("book_id").Eq(bookID),
			goqu.C("member_id").Eq(memberID),
			goqu.C("returned_at").IsNull(),
		).
		Prepared(true).ToSQL()
	if err != nil {
		return persistence.Loan{}, fmt.Errorf("failed to build select query: %w", err)
	}

	loan, err := scanLoan(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return persistence.Loan{}, mapError(err)
	}
	return loan, nil
}

// ListOpenLoansForBook returns open loans on a book.
func (r *LoanRepository) ListOpenLoansForBook(ctx context.Context, bookID string) ([]persistence.Loan, error) {
	ds := dialect.From("loans").
		Select(loanCols...).
		Where(goqu.C("book_id").Eq(bookID), goqu.C("returned_at").IsNull()).
		Order(goqu.C("borrowed_at").Asc())
	return r.queryLoans(ctx, ds)
}

// ListLoansForMember returns the full lending history of a member, most
// recent first.
func (r *LoanRepository) ListLoansForMember(ctx context.Context, memberID string) ([]persistence.Loan, error) {
	ds := dialect.From("loans").
		Select(loanCols...).
		Where(goqu.C("member_id").Eq(memberID)).
		Order(goqu.C("borrowed_at").Desc(), goqu.C("id").Asc())
	return r.queryLoans(ctx, ds)
}

// CountOpenLoansForMember counts a member's open loans for limit checks.
func (r *LoanRepository) CountOpenLoansForMember(ctx context.Context, memberID string) (int, error) {
	query, args, err := dialect.From("loans").
		Select(goqu.COUNT("*")).
		Where(goqu.C("member_id").Eq(memberID), goqu.C("returned_at").IsNull()).
		Prepared(true).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, mapError(err)
	}
	return count, nil
}

func (r *LoanRepository) queryLoans(ctx context.Context, ds *goqu.SelectDataset) ([]persistence.Loan, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var loans []persistence.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, mapError(err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return loans, nil
}

func scanLoan(row pgx.Row) (persistence.Loan, error) {
	var loan persistence.Loan
	err := row.Scan(
		&loan.ID,
		&loan.BookID,
		&loan.MemberID,
		&loan.BorrowedAt,
		&loan.DueAt,
		&loan.ReturnedAt,
		&loan.CreatedAt,
		&loan.UpdatedAt,
	)
	if err != nil {
		return persistence.Loan{}, err
	}
	return loan, nil
}
