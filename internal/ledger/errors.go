package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrBookUnavailable is returned when a borrow targets a book that is
	// not AVAILABLE. The caller should refresh its view of the book.
	ErrBookUnavailable = errors.New("ledger: book unavailable")
	// ErrBookNotBorrowed is returned when a reservation targets a book that
	// is not currently on loan.
	ErrBookNotBorrowed = errors.New("ledger: book not borrowed")
	// ErrNoOpenLoan is returned when a return finds no open loan for the
	// book and member pair.
	ErrNoOpenLoan = errors.New("ledger: no open loan")
	// ErrAlreadyReserved is returned when a book already carries an open
	// reservation; only one reservation may be held at a time.
	ErrAlreadyReserved = errors.New("ledger: already reserved")
	// ErrCardRequired is returned when the member holds no active library
	// card. The caller should direct the member to card issuance.
	ErrCardRequired = errors.New("ledger: active library card required")
	// ErrBorrowLimitReached is returned when the member already holds their
	// role's maximum number of open loans.
	ErrBorrowLimitReached = errors.New("ledger: borrow limit reached")
	// ErrCardAlreadyIssued is returned when issuing a card to a member who
	// already holds a usable one.
	ErrCardAlreadyIssued = errors.New("ledger: card already issued")
	// ErrNoCard is returned when a card operation targets a member without
	// a card.
	ErrNoCard = errors.New("ledger: member holds no card")
	// ErrNotReservationHolder is returned when a member cancels a
	// reservation they do not hold.
	ErrNotReservationHolder = errors.New("ledger: not the reservation holder")

	// ErrUnknownBook and ErrUnknownMember indicate caller or collaborator
	// corruption: the ledger was handed an empty record. They are integrity
	// failures, not user-facing validation outcomes.
	ErrUnknownBook   = errors.New("ledger: unknown book")
	ErrUnknownMember = errors.New("ledger: unknown member")
)

// StateError wraps a state-mismatch sentinel with the book snapshot the
// ledger observed, so callers can report which state blocked the transition.
type StateError struct {
	Err    error
	BookID string
	Status BookStatus
}

func (e *StateError) Error() string {
	if e.BookID == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s (book %s in status %s)", e.Err.Error(), e.BookID, e.Status)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// LimitError reports a rejected borrow together with the member's current
// count and limit so callers can surface both.
type LimitError struct {
	MemberID  string
	Role      Role
	OpenLoans int
	Limit     int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s (member %s holds %d of %d)", ErrBorrowLimitReached.Error(), e.MemberID, e.OpenLoans, e.Limit)
}

func (e *LimitError) Unwrap() error {
	return ErrBorrowLimitReached
}
