package http

import (
	"context"

	"github.com/example/university-library/internal/application"
)

type contextKey string

const (
	principalContextKey     contextKey = "principal"
	bookIDContextKey        contextKey = "book_id"
	memberIDContextKey      contextKey = "member_id"
	reservationIDContextKey contextKey = "reservation_id"
)

// ContextWithPrincipal returns a derived context containing the authenticated principal.
func ContextWithPrincipal(ctx context.Context, principal application.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the authenticated principal from context if available.
func PrincipalFromContext(ctx context.Context) (application.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(application.Principal)
	return principal, ok
}

// ContextWithBookID injects the book identifier resolved from the request path.
func ContextWithBookID(ctx context.Context, bookID string) context.Context {
	return context.WithValue(ctx, bookIDContextKey, bookID)
}

// BookIDFromContext extracts a book identifier previously associated with the context.
func BookIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(bookIDContextKey).(string)
	return id, ok
}

// ContextWithMemberID injects the member identifier resolved from the request path.
func ContextWithMemberID(ctx context.Context, memberID string) context.Context {
	return context.WithValue(ctx, memberIDContextKey, memberID)
}

// MemberIDFromContext extracts a member identifier previously associated with the context.
func MemberIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(memberIDContextKey).(string)
	return id, ok
}

// ContextWithReservationID injects the reservation identifier resolved from the request path.
func ContextWithReservationID(ctx context.Context, reservationID string) context.Context {
	return context.WithValue(ctx, reservationIDContextKey, reservationID)
}

// ReservationIDFromContext extracts a reservation identifier previously associated with the context.
func ReservationIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(reservationIDContextKey).(string)
	return id, ok
}
