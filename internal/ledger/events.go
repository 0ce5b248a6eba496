package ledger

import "time"

// Event is a discrete change produced by a ledger transition. Interested
// components subscribe to events instead of refetching whole tables after
// every mutation.
type Event interface {
	EventType() string
}

const (
	LoanCreatedEventType          = "LoanCreated"
	LoanClosedEventType           = "LoanClosed"
	ReservationCreatedEventType   = "ReservationCreated"
	ReservationExpiredEventType   = "ReservationExpired"
	ReservationCancelledEventType = "ReservationCancelled"
	BookStatusChangedEventType    = "BookStatusChanged"
	CardIssuedEventType           = "CardIssued"
	CardStatusChangedEventType    = "CardStatusChanged"
)

// LoanCreated is emitted when a borrow transition opens a new loan.
type LoanCreated struct {
	LoanID   string
	BookID   string
	MemberID string
	DueAt    time.Time
	At       time.Time
}

func (LoanCreated) EventType() string { return LoanCreatedEventType }

// LoanClosed is emitted when a return transition closes an open loan.
type LoanClosed struct {
	LoanID   string
	BookID   string
	MemberID string
	At       time.Time
}

func (LoanClosed) EventType() string { return LoanClosedEventType }

// ReservationCreated is emitted when a reserve transition claims a book.
type ReservationCreated struct {
	ReservationID string
	BookID        string
	MemberID      string
	ExpiresAt     time.Time
	At            time.Time
}

func (ReservationCreated) EventType() string { return ReservationCreatedEventType }

// ReservationExpired is emitted when a reservation lapses unfulfilled.
type ReservationExpired struct {
	ReservationID string
	BookID        string
	MemberID      string
	At            time.Time
}

func (ReservationExpired) EventType() string { return ReservationExpiredEventType }

// ReservationCancelled is emitted when a holder withdraws a reservation.
type ReservationCancelled struct {
	ReservationID string
	BookID        string
	MemberID      string
	At            time.Time
}

func (ReservationCancelled) EventType() string { return ReservationCancelledEventType }

// BookStatusChanged is emitted whenever a transition moves a book between
// circulation states.
type BookStatusChanged struct {
	BookID string
	From   BookStatus
	To     BookStatus
	At     time.Time
}

func (BookStatusChanged) EventType() string { return BookStatusChangedEventType }

// CardIssued is emitted when a member receives a fresh library card.
type CardIssued struct {
	MemberID   string
	CardNumber string
	ExpiresAt  time.Time
	At         time.Time
}

func (CardIssued) EventType() string { return CardIssuedEventType }

// CardStatusChanged is emitted when an administrator toggles a card between
// ACTIVE and SUSPENDED.
type CardStatusChanged struct {
	MemberID   string
	CardNumber string
	Status     CardStatus
	At         time.Time
}

func (CardStatusChanged) EventType() string { return CardStatusChangedEventType }
