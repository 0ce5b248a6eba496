package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/university-library/internal/persistence"
)

// BookRepository implements persistence.BookRepository on PostgreSQL.
// Queries are built with goqu and executed through the pgx pool.
type BookRepository struct {
	pool *pgxpool.Pool
}

// NewBookRepository creates a new PostgreSQL book repository.
func NewBookRepository(pool *pgxpool.Pool) *BookRepository {
	return &BookRepository{pool: pool}
}

var bookCols = []any{
	"id", "title", "author", "isbn", "category", "department", "course",
	"academic_year", "publish_year", "description", "cover_url", "status",
	"is_digital", "resource_type", "pdf_url", "download_count",
	"created_at", "updated_at",
}

func bookRecord(book persistence.Book) goqu.Record {
	return goqu.Record{
		"id":             book.ID,
		"title":          book.Title,
		"author":         book.Author,
		"isbn":           book.ISBN,
		"category":       book.Category,
		"department":     book.Department,
		"course":         book.Course,
		"academic_year":  book.AcademicYear,
		"publish_year":   book.PublishYear,
		"description":    book.Description,
		"cover_url":      book.CoverURL,
		"status":         book.Status,
		"is_digital":     book.IsDigital,
		"resource_type":  book.ResourceType,
		"pdf_url":        book.PDFURL,
		"download_count": book.DownloadCount,
		"created_at":     book.CreatedAt,
		"updated_at":     book.UpdatedAt,
	}
}

// CreateBook inserts a new catalog entry.
func (r *BookRepository) CreateBook(ctx context.Context, book persistence.Book) error {
	if book.ID == "" || book.Title == "" {
		return persistence.ErrConstraintViolation
	}

	query, args, err := dialect.Insert("books").Rows(bookRecord(book)).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return mapError(err)
	}
	return nil
}

// UpdateBook updates an existing catalog entry, including its status.
func (r *BookRepository) UpdateBook(ctx context.Context, book persistence.Book) error {
	if book.ID == "" {
		return persistence.ErrConstraintViolation
	}

	record := bookRecord(book)
	delete(record, "id")
	delete(record, "created_at")

	query, args, err := dialect.Update("books").
		Set(record).
		Where(goqu.C("id").Eq(book.ID)).
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

// UpdateBookStatus updates only the cached circulation status.
func (r *BookRepository) UpdateBookStatus(ctx context.Context, id string, status string, updatedAt time.Time) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	query, args, err := dialect.Update("books").
		Set(goqu.Record{"status": status, "updated_at": updatedAt}).
		Where(goqu.C("id").Eq(id)).
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

// GetBook retrieves a catalog entry by ID.
func (r *BookRepository) GetBook(ctx context.Context, id string) (persistence.Book, error) {
	if id == "" {
		return persistence.Book{}, persistence.ErrNotFound
	}

	query, args, err := dialect.From("books").
		Select(bookCols...).
		Where(goqu.C("id").Eq(id)).
		Prepared(true).ToSQL()
	if err != nil {
		return persistence.Book{}, fmt.Errorf("failed to build select query: %w", err)
	}

	book, err := scanBook(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return persistence.Book{}, mapError(err)
	}
	return book, nil
}

// ListBooks returns catalog entries matching the filter, ordered by title.
func (r *BookRepository) ListBooks(ctx context.Context, filter persistence.BookFilter) ([]persistence.Book, error) {
	ds := dialect.From("books").Select(bookCols...)

	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		ds = ds.Where(goqu.Or(
			goqu.L("LOWER(title)").Like(pattern),
			goqu.L("LOWER(author)").Like(pattern),
			goqu.L("LOWER(isbn)").Like(pattern),
		))
	}
	if filter.Category != "" {
		ds = ds.Where(goqu.C("category").Eq(filter.Category))
	}
	if filter.Department != "" {
		ds = ds.Where(goqu.C("department").Eq(filter.Department))
	}
	if filter.Status != "" {
		ds = ds.Where(goqu.C("status").Eq(filter.Status))
	}
	if filter.PublishYear != nil {
		ds = ds.Where(goqu.C("publish_year").Eq(*filter.PublishYear))
	}

	ds = ds.Order(goqu.C("title").Asc(), goqu.C("id").Asc())

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var books []persistence.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, mapError(err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return books, nil
}

// DeleteBook removes a catalog entry. Books with lending history are
// protected by the loans foreign key.
func (r *BookRepository) DeleteBook(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var loanCount int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM loans WHERE book_id = $1`, id).Scan(&loanCount); err != nil {
		return mapError(err)
	}
	if loanCount > 0 {
		return persistence.ErrForeignKeyViolation
	}

	if _, err := tx.Exec(ctx, `DELETE FROM reservations WHERE book_id = $1`, id); err != nil {
		return mapError(err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}

	return tx.Commit(ctx)
}

func scanBook(row pgx.Row) (persistence.Book, error) {
	var book persistence.Book
	err := row.Scan(
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
		&book.PDFURL,
		&book.DownloadCount,
		&book.CreatedAt,
		&book.UpdatedAt,
	)
	if err != nil {
		return persistence.Book{}, err
	}
	return book, nil
}
