package persistence

import (
	"context"
	"time"
)

// BookFilter narrows catalog queries.
type BookFilter struct {
	Search      string
	Category    string
	Department  string
	Status      string
	PublishYear *int
}

// BookRepository exposes CRUD operations for catalog entries.
type BookRepository interface {
	CreateBook(ctx context.Context, book Book) error
	UpdateBook(ctx context.Context, book Book) error
	UpdateBookStatus(ctx context.Context, id string, status string, updatedAt time.Time) error
	GetBook(ctx context.Context, id string) (Book, error)
	ListBooks(ctx context.Context, filter BookFilter) ([]Book, error)
	DeleteBook(ctx context.Context, id string) error
}

// MemberRepository exposes CRUD operations for member accounts and their
// library cards.
type MemberRepository interface {
	CreateMember(ctx context.Context, member Member) error
	UpdateMember(ctx context.Context, member Member) error
	GetMember(ctx context.Context, id string) (Member, error)
	GetMemberByEmail(ctx context.Context, email string) (Member, error)
	ListMembers(ctx context.Context) ([]Member, error)
	DeleteMember(ctx context.Context, id string) error
	SetCard(ctx context.Context, memberID string, card LibraryCard, updatedAt time.Time) error
}

// LoanRepository stores lending records.
type LoanRepository interface {
	CreateLoan(ctx context.Context, loan Loan) error
	CloseLoan(ctx context.Context, id string, returnedAt time.Time) error
	GetOpenLoan(ctx context.Context, bookID, memberID string) (Loan, error)
	ListOpenLoansForBook(ctx context.Context, bookID string) ([]Loan, error)
	ListLoansForMember(ctx context.Context, memberID string) ([]Loan, error)
	CountOpenLoansForMember(ctx context.Context, memberID string) (int, error)
}

// ReservationRepository stores holds placed on borrowed books.
type ReservationRepository interface {
	CreateReservation(ctx context.Context, reservation Reservation) error
	CancelReservation(ctx context.Context, id string, cancelledAt time.Time) error
	GetReservation(ctx context.Context, id string) (Reservation, error)
	GetOpenReservationForBook(ctx context.Context, bookID string, reference time.Time) (Reservation, error)
	ListOpenReservations(ctx context.Context, reference time.Time) ([]Reservation, error)
	ListExpiredReservations(ctx context.Context, reference time.Time) ([]Reservation, error)
	ListReservationsForMember(ctx context.Context, memberID string) ([]Reservation, error)
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}
