package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/university-library/internal/persistence"
)

// BookRepository implements persistence.BookRepository using SQLite.
type BookRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewBookRepository creates a new SQLite book repository.
func NewBookRepository(pool *ConnectionPool) *BookRepository {
	return &BookRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const bookColumns = `id, title, author, isbn, category, department, course, academic_year,
	publish_year, description, cover_url, status, is_digital, resource_type,
	pdf_url, download_count, created_at, updated_at`

// CreateBook inserts a new catalog entry.
func (r *BookRepository) CreateBook(ctx context.Context, book persistence.Book) error {
	if book.ID == "" || book.Title == "" {
		return persistence.ErrConstraintViolation
	}

	query := fmt.Sprintf(`INSERT INTO books (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, bookColumns)

	var pdfURL sql.NullString
	if book.PDFURL != nil {
		pdfURL = sql.NullString{String: *book.PDFURL, Valid: true}
	}

	_, err := r.helper.Exec(ctx, query,
		book.ID,
		book.Title,
		book.Author,
		book.ISBN,
		book.Category,
		book.Department,
		book.Course,
		book.AcademicYear,
		book.PublishYear,
		book.Description,
		book.CoverURL,
		book.Status,
		book.IsDigital,
		book.ResourceType,
		pdfURL,
		book.DownloadCount,
		formatTime(book.CreatedAt),
		formatTime(book.UpdatedAt),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// UpdateBook updates an existing catalog entry, including its status.
func (r *BookRepository) UpdateBook(ctx context.Context, book persistence.Book) error {
	if book.ID == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		UPDATE books
		SET title = ?, author = ?, isbn = ?, category = ?, department = ?, course = ?,
			academic_year = ?, publish_year = ?, description = ?, cover_url = ?, status = ?,
			is_digital = ?, resource_type = ?, pdf_url = ?, download_count = ?, updated_at = ?
		WHERE id = ?
	`

	var pdfURL sql.NullString
	if book.PDFURL != nil {
		pdfURL = sql.NullString{String: *book.PDFURL, Valid: true}
	}

	result, err := r.helper.Exec(ctx, query,
		book.Title,
		book.Author,
		book.ISBN,
		book.Category,
		book.Department,
		book.Course,
		book.AcademicYear,
		book.PublishYear,
		book.Description,
		book.CoverURL,
		book.Status,
		book.IsDigital,
		book.ResourceType,
		pdfURL,
		book.DownloadCount,
		formatTime(book.UpdatedAt),
		book.ID,
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

// UpdateBookStatus updates only the cached circulation status.
func (r *BookRepository) UpdateBookStatus(ctx context.Context, id string, status string, updatedAt time.Time) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx,
		`UPDATE books SET status = ?, updated_at = ? WHERE id = ?`,
		status, formatTime(updatedAt), id,
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

// GetBook retrieves a catalog entry by ID.
func (r *BookRepository) GetBook(ctx context.Context, id string) (persistence.Book, error) {
	if id == "" {
		return persistence.Book{}, persistence.ErrNotFound
	}

	query := fmt.Sprintf(`SELECT %s FROM books WHERE id = ?`, bookColumns)
	return r.scanBook(r.helper.QueryRow(ctx, query, id))
}

// ListBooks returns catalog entries matching the filter, ordered by title.
// Free-text search matches title, author, and ISBN case-insensitively.
func (r *BookRepository) ListBooks(ctx context.Context, filter persistence.BookFilter) ([]persistence.Book, error) {
	conditions := make([]string, 0, 5)
	args := make([]any, 0, 7)

	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		conditions = append(conditions, `(LOWER(title) LIKE ? OR LOWER(author) LIKE ? OR LOWER(isbn) LIKE ?)`)
		args = append(args, pattern, pattern, pattern)
	}
	if filter.Category != "" {
		conditions = append(conditions, `category = ?`)
		args = append(args, filter.Category)
	}
	if filter.Department != "" {
		conditions = append(conditions, `department = ?`)
		args = append(args, filter.Department)
	}
	if filter.Status != "" {
		conditions = append(conditions, `status = ?`)
		args = append(args, filter.Status)
	}
	if filter.PublishYear != nil {
		conditions = append(conditions, `publish_year = ?`)
		args = append(args, *filter.PublishYear)
	}

	query := fmt.Sprintf(`SELECT %s FROM books`, bookColumns)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY title ASC, id ASC"

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var books []persistence.Book
	for rows.Next() {
		book, err := r.scanBookRow(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return books, nil
}

// DeleteBook removes a catalog entry. Books with lending history are
// protected by the loans foreign key.
func (r *BookRepository) DeleteBook(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var loanCount int
		if err := r.helper.QueryRowTx(tx, `SELECT COUNT(*) FROM loans WHERE book_id = ?`, id).Scan(&loanCount); err != nil {
			return r.mapper.MapError(err)
		}
		if loanCount > 0 {
			return persistence.ErrForeignKeyViolation
		}

		if _, err := r.helper.ExecTx(tx, `DELETE FROM reservations WHERE book_id = ?`, id); err != nil {
			return r.mapper.MapError(err)
		}

		result, err := r.helper.ExecTx(tx, `DELETE FROM books WHERE id = ?`, id)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *BookRepository) scanBook(row *sql.Row) (persistence.Book, error) {
	book, err := scanBookFrom(row)
	if err != nil {
		return persistence.Book{}, r.mapper.MapError(err)
	}
	return book, nil
}

func (r *BookRepository) scanBookRow(rows *sql.Rows) (persistence.Book, error) {
	book, err := scanBookFrom(rows)
	if err != nil {
		return persistence.Book{}, r.mapper.MapError(err)
	}
	return book, nil
}

func scanBookFrom(scanner rowScanner) (persistence.Book, error) {
	var book persistence.Book
	var pdfURL sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&book.ID,
		&book.Title,
		&book.Author,
		&book.ISBN,
		&book.Category,
		&book.Department,
		&book.Course,
		&book.AcademicYear,
		&book.PublishYear,
		&book.Description,
		&book.CoverURL,
		&book.Status,
		&book.IsDigital,
		&book.ResourceType,
		&pdfURL,
		&book.DownloadCount,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Book{}, err
	}

	if pdfURL.Valid {
		book.PDFURL = &pdfURL.String
	}
	if book.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Book{}, err
	}
	if book.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Book{}, err
	}
	return book, nil
}
