package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/university-library/internal/persistence"
)

var (
	bookCounter        uint64
	memberCounter      uint64
	loanCounter        uint64
	reservationCounter uint64
)

var referenceTime = time.Date(2026, time.February, 2, 9, 30, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// BookOption configures a generated book fixture.
type BookOption func(*persistence.Book)

// NewBookFixture returns a deterministic catalog entry with optional overrides.
func NewBookFixture(opts ...BookOption) persistence.Book {
	idx := atomic.AddUint64(&bookCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	book := persistence.Book{
		ID:           fmt.Sprintf("book-%03d", idx),
		Title:        fmt.Sprintf("Fixture Title %03d", idx),
		Author:       fmt.Sprintf("Fixture Author %03d", idx),
		ISBN:         fmt.Sprintf("978-0-00-%06d-0", idx),
		Category:     "General",
		Department:   "Library Science",
		PublishYear:  2020,
		Status:       "AVAILABLE",
		ResourceType: "PHYSICAL",
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&book)
	}
	return book
}

// WithBookStatus overrides the circulation status of the fixture.
func WithBookStatus(status string) BookOption {
	return func(book *persistence.Book) {
		book.Status = status
	}
}

// WithDigitalResource marks the fixture as a downloadable digital resource.
func WithDigitalResource(pdfURL string) BookOption {
	return func(book *persistence.Book) {
		book.IsDigital = true
		book.ResourceType = "DIGITAL"
		book.PDFURL = &pdfURL
	}
}

// MemberOption configures a generated member fixture.
type MemberOption func(*persistence.Member)

// NewMemberFixture returns a deterministic member account with optional overrides.
func NewMemberFixture(opts ...MemberOption) persistence.Member {
	idx := atomic.AddUint64(&memberCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	member := persistence.Member{
		ID:           fmt.Sprintf("member-%03d", idx),
		Name:         fmt.Sprintf("Fixture Member %03d", idx),
		Email:        fmt.Sprintf("member%03d@example.edu", idx),
		PasswordHash: "fixture-hash",
		Role:         "STUDENT",
		Department:   "Economics",
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&member)
	}
	return member
}

// WithRole overrides the member's role.
func WithRole(role string) MemberOption {
	return func(member *persistence.Member) {
		member.Role = role
	}
}

// WithActiveCard attaches a card valid for a year from the reference time.
func WithActiveCard() MemberOption {
	return func(member *persistence.Member) {
		member.Card = &persistence.LibraryCard{
			Number:    fmt.Sprintf("card-%s", member.ID),
			IssuedAt:  referenceTime,
			ExpiresAt: referenceTime.AddDate(0, 0, 365),
			Status:    "ACTIVE",
		}
	}
}

// LoanOption configures a generated loan fixture.
type LoanOption func(*persistence.Loan)

// NewLoanFixture returns a deterministic open loan linking the given book and member.
func NewLoanFixture(bookID, memberID string, opts ...LoanOption) persistence.Loan {
	idx := atomic.AddUint64(&loanCounter, 1)
	borrowed := referenceTime.Add(time.Duration(idx) * time.Minute)
	loan := persistence.Loan{
		ID:         fmt.Sprintf("loan-%03d", idx),
		BookID:     bookID,
		MemberID:   memberID,
		BorrowedAt: borrowed,
		DueAt:      borrowed.AddDate(0, 0, 14),
		CreatedAt:  borrowed,
		UpdatedAt:  borrowed,
	}
	for _, opt := range opts {
		opt(&loan)
	}
	return loan
}

// Returned closes the loan at the given time.
func Returned(at time.Time) LoanOption {
	return func(loan *persistence.Loan) {
		loan.ReturnedAt = &at
	}
}

// ReservationOption configures a generated reservation fixture.
type ReservationOption func(*persistence.Reservation)

// NewReservationFixture returns a deterministic open reservation for the given
// book and member.
func NewReservationFixture(bookID, memberID string, opts ...ReservationOption) persistence.Reservation {
	idx := atomic.AddUint64(&reservationCounter, 1)
	reserved := referenceTime.Add(time.Duration(idx) * time.Minute)
	reservation := persistence.Reservation{
		ID:         fmt.Sprintf("reservation-%03d", idx),
		BookID:     bookID,
		MemberID:   memberID,
		ReservedAt: reserved,
		ExpiresAt:  reserved.AddDate(0, 0, 3),
		CreatedAt:  reserved,
		UpdatedAt:  reserved,
	}
	for _, opt := range opts {
		opt(&reservation)
	}
	return reservation
}

// ExpiresAt overrides the reservation's expiry instant.
func ExpiresAt(at time.Time) ReservationOption {
	return func(reservation *persistence.Reservation) {
		reservation.ExpiresAt = at
	}
}
