package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/university-library/internal/ledger"
)

// BookRepository captures the persistence operations needed by the catalog
// service.
type BookRepository interface {
	CreateBook(ctx context.Context, book Book) (Book, error)
	UpdateBook(ctx context.Context, book Book) (Book, error)
	GetBook(ctx context.Context, id string) (Book, error)
	ListBooks(ctx context.Context, query BookQuery) ([]Book, error)
	DeleteBook(ctx context.Context, id string) error
}

// CatalogService orchestrates validation, authorization, and persistence
// for catalog entries.
type CatalogService struct {
	books       BookRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewCatalogService wires dependencies for the catalog service.
func NewCatalogService(books BookRepository, idGenerator func() string, now func() time.Time) *CatalogService {
	return NewCatalogServiceWithLogger(books, idGenerator, now, nil)
}

// NewCatalogServiceWithLogger constructs a CatalogService with a specified logger.
func NewCatalogServiceWithLogger(books BookRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *CatalogService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &CatalogService{
		books:       books,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *CatalogService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "CatalogService", operation, attrs...)
}

// CreateBook validates input and persists a new catalog entry for
// administrators. New entries always start AVAILABLE.
func (s *CatalogService) CreateBook(ctx context.Context, params CreateBookParams) (Book, error) {
	if s == nil {
		return Book{}, fmt.Errorf("CatalogService is nil")
	}
	if !params.Principal.IsAdmin() {
		return Book{}, ErrUnauthorized
	}

	normalized := normalizeBookInput(params.Input)
	vErr := validateBookInput(normalized)
	if vErr.HasErrors() {
		return Book{}, vErr
	}

	now := s.now()
	book := Book{
		ID:           s.idGenerator(),
		Title:        normalized.Title,
		Author:       normalized.Author,
		ISBN:         normalized.ISBN,
		Category:     normalized.Category,
		Department:   normalized.Department,
		Course:       normalized.Course,
		AcademicYear: normalized.AcademicYear,
		PublishYear:  normalized.PublishYear,
		Description:  normalized.Description,
		CoverURL:     normalized.CoverURL,
		Status:       ledger.StatusAvailable,
		IsDigital:    normalized.IsDigital,
		ResourceType: normalized.ResourceType,
		PDFURL:       normalized.PDFURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	logger := s.loggerWith(ctx, "CreateBook", "book_id", book.ID)

	persisted, err := s.books.CreateBook(ctx, book)
	if err != nil {
		logger.ErrorContext(ctx, "catalog create failed", "error", err, "error_kind", ErrorKind(err))
		return Book{}, err
	}

	logger.InfoContext(ctx, "book created", "title", persisted.Title)
	return persisted, nil
}

// UpdateBook validates input and updates an existing catalog entry for
// administrators. A non-empty Status overrides the circulation state, which
// administrators use to correct records that drift from reality.
func (s *CatalogService) UpdateBook(ctx context.Context, params UpdateBookParams) (Book, error) {
	if s == nil {
		return Book{}, fmt.Errorf("CatalogService is nil")
	}
	if !params.Principal.IsAdmin() {
		return Book{}, ErrUnauthorized
	}

	existing, err := s.books.GetBook(ctx, params.BookID)
	if err != nil {
		return Book{}, err
	}

	normalized := normalizeBookInput(params.Input)
	vErr := validateBookInput(normalized)
	if params.Status != "" && !validBookStatus(params.Status) {
		vErr.add("status", "must be one of AVAILABLE, BORROWED, RESERVED")
	}
	if vErr.HasErrors() {
		return Book{}, vErr
	}

	updated := existing
	updated.Title = normalized.Title
	updated.Author = normalized.Author
	updated.ISBN = normalized.ISBN
	updated.Category = normalized.Category
	updated.Department = normalized.Department
	updated.Course = normalized.Course
	updated.AcademicYear = normalized.AcademicYear
	updated.PublishYear = normalized.PublishYear
	updated.Description = normalized.Description
	updated.CoverURL = normalized.CoverURL
	updated.IsDigital = normalized.IsDigital
	updated.ResourceType = normalized.ResourceType
	updated.PDFURL = normalized.PDFURL
	if params.Status != "" {
		updated.Status = params.Status
	}
	updated.UpdatedAt = s.now()

	logger := s.loggerWith(ctx, "UpdateBook", "book_id", params.BookID)

	persisted, err := s.books.UpdateBook(ctx, updated)
	if err != nil {
		logger.ErrorContext(ctx, "catalog update failed", "error", err, "error_kind", ErrorKind(err))
		return Book{}, err
	}

	logger.InfoContext(ctx, "book updated")
	return persisted, nil
}

// DeleteBook removes a catalog entry for administrators. Entries with
// lending history are refused.
func (s *CatalogService) DeleteBook(ctx context.Context, principal Principal, bookID string) error {
	if s == nil {
		return fmt.Errorf("CatalogService is nil")
	}
	if !principal.IsAdmin() {
		return ErrUnauthorized
	}

	logger := s.loggerWith(ctx, "DeleteBook", "book_id", bookID)

	if err := s.books.DeleteBook(ctx, bookID); err != nil {
		logger.ErrorContext(ctx, "catalog delete failed", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "book deleted")
	return nil
}

// GetBook retrieves a single catalog entry.
func (s *CatalogService) GetBook(ctx context.Context, bookID string) (Book, error) {
	if s == nil {
		return Book{}, fmt.Errorf("CatalogService is nil")
	}
	return s.books.GetBook(ctx, bookID)
}

// ListBooks returns catalog entries narrowed by the query's filters and
// ordered by its sort key and direction. An empty sort key orders by title;
// an empty order sorts ascending.
func (s *CatalogService) ListBooks(ctx context.Context, query BookQuery) ([]Book, error) {
	if s == nil {
		return nil, fmt.Errorf("CatalogService is nil")
	}

	books, err := s.books.ListBooks(ctx, query)
	if err != nil {
		return nil, err
	}

	sortBooks(books, query.Sort, query.Order)
	return books, nil
}

// DownloadResource records a download of a digital resource and returns the
// entry with its bumped counter. Physical resources are refused.
func (s *CatalogService) DownloadResource(ctx context.Context, bookID string) (Book, error) {
	if s == nil {
		return Book{}, fmt.Errorf("CatalogService is nil")
	}

	book, err := s.books.GetBook(ctx, bookID)
	if err != nil {
		return Book{}, err
	}
	if !book.IsDigital || book.PDFURL == nil {
		return Book{}, ErrNotDigital
	}

	book.DownloadCount++
	book.UpdatedAt = s.now()

	logger := s.loggerWith(ctx, "DownloadResource", "book_id", bookID)

	persisted, err := s.books.UpdateBook(ctx, book)
	if err != nil {
		logger.ErrorContext(ctx, "download count update failed", "error", err, "error_kind", ErrorKind(err))
		return Book{}, err
	}

	logger.InfoContext(ctx, "resource downloaded", "download_count", persisted.DownloadCount)
	return persisted, nil
}

func sortBooks(books []Book, key BookSort, order SortOrder) {
	var less func(i, j int) bool
	switch key {
	case SortByAuthor:
		less = func(i, j int) bool {
			return strings.ToLower(books[i].Author) < strings.ToLower(books[j].Author)
		}
	case SortByPublishYear:
		less = func(i, j int) bool {
			return books[i].PublishYear < books[j].PublishYear
		}
	default:
		less = func(i, j int) bool {
			return strings.ToLower(books[i].Title) < strings.ToLower(books[j].Title)
		}
	}
	if order == SortDescending {
		ascending := less
		less = func(i, j int) bool { return ascending(j, i) }
	}
	sort.SliceStable(books, less)
}

func validBookStatus(status ledger.BookStatus) bool {
	switch status {
	case ledger.StatusAvailable, ledger.StatusBorrowed, ledger.StatusReserved:
		return true
	}
	return false
}

func normalizeBookInput(input BookInput) BookInput {
	normalized := input
	normalized.Title = strings.TrimSpace(input.Title)
	normalized.Author = strings.TrimSpace(input.Author)
	normalized.ISBN = strings.TrimSpace(input.ISBN)
	normalized.Category = strings.TrimSpace(input.Category)
	normalized.Department = strings.TrimSpace(input.Department)
	normalized.Course = strings.TrimSpace(input.Course)
	normalized.AcademicYear = strings.TrimSpace(input.AcademicYear)
	normalized.Description = strings.TrimSpace(input.Description)
	normalized.CoverURL = strings.TrimSpace(input.CoverURL)
	normalized.ResourceType = strings.ToUpper(strings.TrimSpace(input.ResourceType))
	if normalized.ResourceType == "" {
		normalized.ResourceType = "PHYSICAL"
	}
	if input.PDFURL != nil {
		trimmed := strings.TrimSpace(*input.PDFURL)
		if trimmed == "" {
			normalized.PDFURL = nil
		} else {
			normalized.PDFURL = &trimmed
		}
	}
	return normalized
}

func validateBookInput(input BookInput) *ValidationError {
	vErr := &ValidationError{}
	if input.Title == "" {
		vErr.add("title", "title is required")
	}
	if input.Author == "" {
		vErr.add("author", "author is required")
	}
	if input.PublishYear != 0 && (input.PublishYear < 1000 || input.PublishYear > 2100) {
		vErr.add("publishYear", "publish year is out of range")
	}
	if input.IsDigital && input.PDFURL == nil {
		vErr.add("pdfUrl", "digital resources need a document URL")
	}
	return vErr
}
