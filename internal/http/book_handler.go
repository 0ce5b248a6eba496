package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/university-library/internal/application"
	"github.com/example/university-library/internal/ledger"
)

type catalogService interface {
	CreateBook(ctx context.Context, params application.CreateBookParams) (application.Book, error)
	UpdateBook(ctx context.Context, params application.UpdateBookParams) (application.Book, error)
	DeleteBook(ctx context.Context, principal application.Principal, bookID string) error
	GetBook(ctx context.Context, bookID string) (application.Book, error)
	ListBooks(ctx context.Context, query application.BookQuery) ([]application.Book, error)
	DownloadResource(ctx context.Context, bookID string) (application.Book, error)
}

type BookHandler struct {
	service   catalogService
	responder responder
}

func NewBookHandler(service catalogService, logger *slog.Logger) *BookHandler {
	return &BookHandler{service: service, responder: newResponder(logger)}
}

func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	book, err := h.service.CreateBook(r.Context(), application.CreateBookParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, bookResponse{Book: toBookDTO(book)})
}

func (h *BookHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookID, ok := BookIDFromContext(r.Context())
	if !ok || strings.TrimSpace(bookID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookID)
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	book, err := h.service.UpdateBook(r.Context(), application.UpdateBookParams{
		Principal: principal,
		BookID:    bookID,
		Input:     req.toInput(),
		Status:    ledger.BookStatus(strings.TrimSpace(req.Status)),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookResponse{Book: toBookDTO(book)})
}

func (h *BookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookID, ok := BookIDFromContext(r.Context())
	if !ok || strings.TrimSpace(bookID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeleteBook(r.Context(), principal, bookID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *BookHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookID, ok := BookIDFromContext(r.Context())
	if !ok || strings.TrimSpace(bookID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookID)
		return
	}

	book, err := h.service.GetBook(r.Context(), bookID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookResponse{Book: toBookDTO(book)})
}

func (h *BookHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	books, err := h.service.ListBooks(r.Context(), buildBookQuery(r.URL.Query()))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listBooksResponse{Books: toBookDTOs(books)})
}

// Download records a download of a digital resource and returns the entry
// with its refreshed download count.
func (h *BookHandler) Download(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookID, ok := BookIDFromContext(r.Context())
	if !ok || strings.TrimSpace(bookID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookID)
		return
	}

	book, err := h.service.DownloadResource(r.Context(), bookID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookResponse{Book: toBookDTO(book)})
}

// UpdateStatus lets an administrator override the circulation state of a
// catalog entry without resubmitting the bibliographic fields.
func (h *BookHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookID, ok := BookIDFromContext(r.Context())
	if !ok || strings.TrimSpace(bookID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookID)
		return
	}

	var req bookStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	current, err := h.service.GetBook(r.Context(), bookID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	book, err := h.service.UpdateBook(r.Context(), application.UpdateBookParams{
		Principal: principal,
		BookID:    bookID,
		Input:     bookInputFrom(current),
		Status:    ledger.BookStatus(strings.ToUpper(strings.TrimSpace(req.Status))),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookResponse{Book: toBookDTO(book)})
}

func bookInputFrom(book application.Book) application.BookInput {
	return application.BookInput{
		Title:        book.Title,
		Author:       book.Author,
		ISBN:         book.ISBN,
		Category:     book.Category,
		Department:   book.Department,
		Course:       book.Course,
		AcademicYear: book.AcademicYear,
		PublishYear:  book.PublishYear,
		Description:  book.Description,
		CoverURL:     book.CoverURL,
		IsDigital:    book.IsDigital,
		ResourceType: book.ResourceType,
		PDFURL:       book.PDFURL,
	}
}

type bookStatusRequest struct {
	Status string `json:"status"`
}

func buildBookQuery(values url.Values) application.BookQuery {
	query := application.BookQuery{
		Search:     strings.TrimSpace(values.Get("search")),
		Category:   strings.TrimSpace(values.Get("category")),
		Department: strings.TrimSpace(values.Get("department")),
		Status:     ledger.BookStatus(strings.TrimSpace(values.Get("status"))),
		Sort:       application.BookSort(strings.TrimSpace(values.Get("sort"))),
		Order:      application.SortOrder(strings.ToLower(strings.TrimSpace(values.Get("order")))),
	}
	if raw := strings.TrimSpace(values.Get("publish_year")); raw != "" {
		if year, err := strconv.Atoi(raw); err == nil {
			query.PublishYear = &year
		}
	}
	return query
}

type bookRequest struct {
	Title        string  `json:"title"`
	Author       string  `json:"author"`
	ISBN         string  `json:"isbn"`
	Category     string  `json:"category"`
	Department   string  `json:"department"`
	Course       string  `json:"course"`
	AcademicYear string  `json:"academic_year"`
	PublishYear  int     `json:"publish_year"`
	Description  string  `json:"description"`
	CoverURL     string  `json:"cover_url"`
	IsDigital    bool    `json:"is_digital"`
	ResourceType string  `json:"resource_type"`
	PDFURL       *string `json:"pdf_url"`
	Status       string  `json:"status"`
}

func (r bookRequest) toInput() application.BookInput {
	return application.BookInput{
		Title:        strings.TrimSpace(r.Title),
		Author:       strings.TrimSpace(r.Author),
		ISBN:         strings.TrimSpace(r.ISBN),
		Category:     strings.TrimSpace(r.Category),
		Department:   strings.TrimSpace(r.Department),
		Course:       strings.TrimSpace(r.Course),
		AcademicYear: strings.TrimSpace(r.AcademicYear),
		PublishYear:  r.PublishYear,
		Description:  r.Description,
		CoverURL:     strings.TrimSpace(r.CoverURL),
		IsDigital:    r.IsDigital,
		ResourceType: strings.TrimSpace(r.ResourceType),
		PDFURL:       r.PDFURL,
	}
}

type bookDTO struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	ISBN          string  `json:"isbn,omitempty"`
	Category      string  `json:"category,omitempty"`
	Department    string  `json:"department,omitempty"`
	Course        string  `json:"course,omitempty"`
	AcademicYear  string  `json:"academic_year,omitempty"`
	PublishYear   int     `json:"publish_year,omitempty"`
	Description   string  `json:"description,omitempty"`
	CoverURL      string  `json:"cover_url,omitempty"`
	Status        string  `json:"status"`
	IsDigital     bool    `json:"is_digital"`
	ResourceType  string  `json:"resource_type"`
	PDFURL        *string `json:"pdf_url,omitempty"`
	DownloadCount int     `json:"download_count"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

type bookResponse struct {
	Book bookDTO `json:"book"`
}

type listBooksResponse struct {
	Books []bookDTO `json:"books"`
}

func toBookDTO(book application.Book) bookDTO {
	return bookDTO{
		ID:            book.ID,
		Title:         book.Title,
		Author:        book.Author,
		ISBN:          book.ISBN,
		Category:      book.Category,
		Department:    book.Department,
		Course:        book.Course,
		AcademicYear:  book.AcademicYear,
		PublishYear:   book.PublishYear,
		Description:   book.Description,
		CoverURL:      book.CoverURL,
		Status:        string(book.Status),
		IsDigital:     book.IsDigital,
		ResourceType:  book.ResourceType,
		PDFURL:        book.PDFURL,
		DownloadCount: book.DownloadCount,
		CreatedAt:     formatTimestamp(book.CreatedAt),
		UpdatedAt:     formatTimestamp(book.UpdatedAt),
	}
}

func toBookDTOs(books []application.Book) []bookDTO {
	dtos := make([]bookDTO, 0, len(books))
	for _, book := range books {
		dtos = append(dtos, toBookDTO(book))
	}
	return dtos
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
