package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/example/university-library/internal/application"
	"github.com/example/university-library/internal/ledger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	errBadRequestBody       = errors.New("the request body could not be parsed")
	errInvalidBookID        = errors.New("a valid book identifier is required")
	errInvalidMemberID      = errors.New("a valid member identifier is required")
	errInvalidReservationID = errors.New("a valid reservation identifier is required")
	errMissingSessionToken  = errors.New("a session token is required")
)

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := statusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// handleServiceError maps application and ledger errors onto HTTP statuses
// with stable machine-readable error codes.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   "the submitted input is invalid",
			Errors:    vErr.FieldErrors,
		})
		return
	}

	status, code, message := classifyServiceError(err)
	if status >= http.StatusInternalServerError {
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "error", err, "error_kind", application.ErrorKind(err))
	}
	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: code, Message: message})
}

func classifyServiceError(err error) (status int, code, message string) {
	switch {
	case errors.Is(err, application.ErrInvalidCredentials):
		return http.StatusUnauthorized, "AUTH_INVALID_CREDENTIALS", "the email or password is incorrect"
	case errors.Is(err, application.ErrSessionExpired):
		return http.StatusUnauthorized, "AUTH_SESSION_EXPIRED", "the session has expired, please log in again"
	case errors.Is(err, application.ErrSessionRevoked):
		return http.StatusUnauthorized, "AUTH_SESSION_REVOKED", "the session has been revoked, please log in again"
	case errors.Is(err, application.ErrUnauthorized):
		return http.StatusForbidden, "AUTH_FORBIDDEN", "you are not allowed to perform this operation"
	case errors.Is(err, ledger.ErrNotReservationHolder):
		return http.StatusForbidden, "NOT_RESERVATION_HOLDER", "only the reservation holder or an administrator may cancel a reservation"
	case errors.Is(err, application.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "the requested resource was not found"
	case errors.Is(err, application.ErrAlreadyExists):
		return http.StatusConflict, "ALREADY_EXISTS", "a resource with the same identity already exists"
	case errors.Is(err, application.ErrBookInUse):
		return http.StatusConflict, "BOOK_IN_USE", "the book has lending history and cannot be removed"
	case errors.Is(err, application.ErrMemberInUse):
		return http.StatusConflict, "MEMBER_IN_USE", "the member has lending history and cannot be removed"
	case errors.Is(err, application.ErrNotDigital):
		return http.StatusConflict, "NOT_DIGITAL", "the book has no digital resource to download"
	case errors.Is(err, ledger.ErrBookUnavailable):
		return http.StatusConflict, "BOOK_UNAVAILABLE", "the book is not available for borrowing"
	case errors.Is(err, ledger.ErrBookNotBorrowed):
		return http.StatusConflict, "BOOK_NOT_BORROWED", "the book is not out on loan, borrow it instead of reserving"
	case errors.Is(err, ledger.ErrNoOpenLoan):
		return http.StatusConflict, "NO_OPEN_LOAN", "there is no open loan for this book and member"
	case errors.Is(err, ledger.ErrAlreadyReserved):
		return http.StatusConflict, "ALREADY_RESERVED", "the book already has an active reservation"
	case errors.Is(err, ledger.ErrBorrowLimitReached):
		return http.StatusConflict, "BORROW_LIMIT_REACHED", "the borrowing limit for this member has been reached"
	case errors.Is(err, ledger.ErrCardRequired):
		return http.StatusConflict, "CARD_REQUIRED", "an active library card is required for this operation"
	case errors.Is(err, ledger.ErrCardAlreadyIssued):
		return http.StatusConflict, "CARD_ALREADY_ISSUED", "the member already holds a library card"
	case errors.Is(err, ledger.ErrNoCard):
		return http.StatusConflict, "NO_CARD", "the member has no library card"
	default:
		return http.StatusInternalServerError, "INTERNAL", "an internal error occurred"
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "the request is malformed"
	case http.StatusUnauthorized:
		return "authentication is required"
	case http.StatusForbidden:
		return "you are not allowed to perform this operation"
	case http.StatusNotFound:
		return "the requested resource was not found"
	case http.StatusConflict:
		return "the request conflicts with the current state of the resource"
	case http.StatusUnprocessableEntity:
		return "the submitted input is invalid"
	default:
		return "an internal error occurred"
	}
}
