package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/university-library/internal/persistence"
)

// LoanRepository implements persistence.LoanRepository using SQLite. The
// idx_loans_open_book unique index backs up the one-open-loan-per-book rule
// at the storage level.
type LoanRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewLoanRepository creates a new SQLite loan repository.
func NewLoanRepository(pool *ConnectionPool) *LoanRepository {
	return &LoanRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const loanColumns = `id, book_id, member_id, borrowed_at, due_at, returned_at, created_at, updated_at`

// CreateLoan inserts a new lending record.
func (r *LoanRepository) CreateLoan(ctx context.Context, loan persistence.Loan) error {
	if loan.ID == "" || loan.BookID == "" || loan.MemberID == "" {
		return persistence.ErrConstraintViolation
	}

	query := fmt.Sprintf(`INSERT INTO loans (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, loanColumns)

	_, err := r.helper.Exec(ctx, query,
		loan.ID,
		loan.BookID,
		loan.MemberID,
		formatTime(loan.BorrowedAt),
		formatTime(loan.DueAt),
		formatNullableTime(loan.ReturnedAt),
		formatTime(loan.CreatedAt),
		formatTime(loan.UpdatedAt),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// CloseLoan marks a lending record as returned. Closing an already closed
// loan returns ErrNotFound.
func (r *LoanRepository) CloseLoan(ctx context.Context, id string, returnedAt time.Time) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx,
		`UPDATE loans SET returned_at = ?, updated_at = ? WHERE id = ? AND returned_at IS NULL`,
		formatTime(returnedAt), formatTime(returnedAt), id,
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

// GetOpenLoan retrieves the open loan of a member on a book.
func (r *LoanRepository) GetOpenLoan(ctx context.Context, bookID, memberID string) (persistence.Loan, error) {
	if bookID == "" || memberID == "" {
		return persistence.Loan{}, persistence.ErrNotFound
	}

	query := fmt.Sprintf(
		`SELECT %s FROM loans WHERE book_id = ? AND member_id = ? AND returned_at IS NULL`,
		loanColumns,
	)
	return r.scanLoan(r.helper.QueryRow(ctx, query, bookID, memberID))
}

// ListOpenLoansForBook returns open loans on a book. The unique index keeps
// this at zero or one rows.
func (r *LoanRepository) ListOpenLoansForBook(ctx context.Context, bookID string) ([]persistence.Loan, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM loans WHERE book_id = ? AND returned_at IS NULL ORDER BY borrowed_at ASC`,
		loanColumns,
	)
	return r.queryLoans(ctx, query, bookID)
}

// ListLoansForMember returns the full lending history of a member, most
// recent first.
func (r *LoanRepository) ListLoansForMember(ctx context.Context, memberID string) ([]persistence.Loan, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM loans WHERE member_id = ? ORDER BY borrowed_at DESC, id ASC`,
		loanColumns,
	)
	return r.queryLoans(ctx, query, memberID)
}

// CountOpenLoansForMember counts a member's open loans for limit checks.
func (r *LoanRepository) CountOpenLoansForMember(ctx context.Context, memberID string) (int, error) {
	var count int
	err := r.helper.QueryRow(ctx,
		`SELECT COUNT(*) FROM loans WHERE member_id = ? AND returned_at IS NULL`,
		memberID,
	).Scan(&count)
	if err != nil {
		return 0, r.mapper.MapError(err)
	}
	return count, nil
}

func (r *LoanRepository) queryLoans(ctx context.Context, query string, args ...any) ([]persistence.Loan, error) {
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var loans []persistence.Loan
	for rows.Next() {
		loan, err := scanLoanFrom(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return loans, nil
}

func (r *LoanRepository) scanLoan(row *sql.Row) (persistence.Loan, error) {
	loan, err := scanLoanFrom(row)
	if err != nil {
		return persistence.Loan{}, r.mapper.MapError(err)
	}
	return loan, nil
}

func scanLoanFrom(scanner rowScanner) (persistence.Loan, error) {
	var loan persistence.Loan
	var borrowedAt, dueAt, createdAt, updatedAt string
	var returnedAt sql.NullString

	err := scanner.Scan(
		&loan.ID,
		&loan.BookID,
		&loan.MemberID,
		&borrowedAt,
		&dueAt,
		&returnedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Loan{}, err
	}

	if loan.BorrowedAt, err = parseTime(borrowedAt); err != nil {
		return persistence.Loan{}, err
	}
	if loan.DueAt, err = parseTime(dueAt); err != nil {
		return persistence.Loan{}, err
	}
	if loan.ReturnedAt, err = parseNullableTime(returnedAt); err != nil {
		return persistence.Loan{}, err
	}
	if loan.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Loan{}, err
	}
	if loan.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Loan{}, err
	}
	return loan, nil
}
