package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/university-library/internal/ledger"
	"github.com/example/university-library/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// ErrorKind maps sentinel, ledger, and validation errors to a stable
// logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, ErrSessionRevoked):
		return "session_revoked"
	case errors.Is(err, ErrMemberInUse):
		return "member_in_use"
	case errors.Is(err, ErrBookInUse):
		return "book_in_use"
	case errors.Is(err, ErrNotDigital):
		return "not_digital"
	case errors.Is(err, ledger.ErrBookUnavailable):
		return "book_unavailable"
	case errors.Is(err, ledger.ErrBookNotBorrowed):
		return "book_not_borrowed"
	case errors.Is(err, ledger.ErrNoOpenLoan):
		return "no_open_loan"
	case errors.Is(err, ledger.ErrAlreadyReserved):
		return "already_reserved"
	case errors.Is(err, ledger.ErrCardRequired):
		return "card_required"
	case errors.Is(err, ledger.ErrBorrowLimitReached):
		return "borrow_limit_reached"
	case errors.Is(err, ledger.ErrCardAlreadyIssued):
		return "card_already_issued"
	case errors.Is(err, ledger.ErrNoCard):
		return "no_card"
	case errors.Is(err, ledger.ErrNotReservationHolder):
		return "not_reservation_holder"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}

	return "unexpected"
}
