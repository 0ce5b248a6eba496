package ledger

import (
	"fmt"
	"time"
)

// BookStatus is the circulation state cached on a catalog entry. It is a
// projection of the open loan and reservation records and must only be
// changed through ledger transitions.
type BookStatus string

const (
	StatusAvailable BookStatus = "AVAILABLE"
	StatusBorrowed  BookStatus = "BORROWED"
	StatusReserved  BookStatus = "RESERVED"
)

// Role identifies a member's standing, which determines their borrow limit.
type Role string

const (
	RoleStudent  Role = "STUDENT"
	RoleLecturer Role = "LECTURER"
	RoleAdmin    Role = "ADMIN"
)

// CardStatus is the lifecycle state of a library card.
type CardStatus string

const (
	CardActive    CardStatus = "ACTIVE"
	CardExpired   CardStatus = "EXPIRED"
	CardSuspended CardStatus = "SUSPENDED"
)

// BookState is the slice of a catalog entry the ledger reasons about.
type BookState struct {
	ID     string
	Status BookStatus
}

// LibraryCard is the per-member credential gating borrow and reserve
// eligibility.
type LibraryCard struct {
	Number    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Status    CardStatus
}

// Member is the slice of a directory record the ledger reasons about.
type Member struct {
	ID   string
	Role Role
	Card *LibraryCard
}

// Loan records a single lending of a book to a member. A loan with a nil
// ReturnedAt is open: the book is currently out.
type Loan struct {
	ID         string
	BookID     string
	MemberID   string
	BorrowedAt time.Time
	DueAt      time.Time
	ReturnedAt *time.Time
}

// Open reports whether the loan has not been returned yet.
func (l Loan) Open() bool {
	return l.ReturnedAt == nil
}

// Reservation records a claim on a book that is currently on loan. A
// reservation whose ExpiresAt has passed is no longer open.
type Reservation struct {
	ID         string
	BookID     string
	MemberID   string
	ReservedAt time.Time
	ExpiresAt  time.Time
}

// Open reports whether the reservation is still unexpired at the given time.
// A reservation lapses strictly after its expiry instant: at ExpiresAt itself
// it is still open.
func (r Reservation) Open(now time.Time) bool {
	return !r.ExpiresAt.Before(now)
}

// Policy holds the lending rules that are uniform across the ledger.
type Policy struct {
	LoanPeriod     time.Duration
	ReservationTTL time.Duration
	CardValidity   time.Duration
	BorrowLimits   map[Role]int
}

// DefaultPolicy returns the institution's standing lending policy: 14 day
// loans, 3 day reservation holds, 365 day cards, and per-role borrow limits.
// Administrators are exempt from the card requirement but not from their
// limit of 10 open loans.
func DefaultPolicy() Policy {
	return Policy{
		LoanPeriod:     14 * 24 * time.Hour,
		ReservationTTL: 3 * 24 * time.Hour,
		CardValidity:   365 * 24 * time.Hour,
		BorrowLimits: map[Role]int{
			RoleStudent:  3,
			RoleLecturer: 7,
			RoleAdmin:    10,
		},
	}
}

// BorrowLimit returns the maximum number of simultaneous open loans for the
// role. Unknown roles fall back to the most restrictive limit.
func (p Policy) BorrowLimit(role Role) int {
	if limit, ok := p.BorrowLimits[role]; ok {
		return limit
	}
	return p.BorrowLimits[RoleStudent]
}

// Ledger enforces every legal state transition for books, loans,
// reservations, and cards. It performs no I/O: every operation takes a
// snapshot of the affected records plus the caller's clock reading and
// returns the mutations to apply. Callers must serialise operations per book
// (a storage transaction or per-book lock) so that racing borrows observe
// each other's status updates.
type Ledger struct {
	policy       Policy
	idGenerator  func() string
	cardNumberer func() string
}

// New constructs a ledger with the provided policy and generators.
func New(policy Policy, idGenerator func() string, cardNumberer func() string) *Ledger {
	if policy.LoanPeriod <= 0 {
		policy.LoanPeriod = DefaultPolicy().LoanPeriod
	}
	if policy.ReservationTTL <= 0 {
		policy.ReservationTTL = DefaultPolicy().ReservationTTL
	}
	if policy.CardValidity <= 0 {
		policy.CardValidity = DefaultPolicy().CardValidity
	}
	if len(policy.BorrowLimits) == 0 {
		policy.BorrowLimits = DefaultPolicy().BorrowLimits
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if cardNumberer == nil {
		cardNumberer = idGenerator
	}
	return &Ledger{policy: policy, idGenerator: idGenerator, cardNumberer: cardNumberer}
}

// Policy returns the lending policy the ledger enforces.
func (l *Ledger) Policy() Policy {
	return l.policy
}

// BorrowResult carries the mutations produced by a successful Borrow.
type BorrowResult struct {
	Loan       Loan
	BookStatus BookStatus
	Events     []Event
}

// Borrow checks that the book is available and that the member is eligible,
// then produces a new open loan due after the policy's loan period and the
// BORROWED status for the book. No mutation is produced when any
// precondition fails.
func (l *Ledger) Borrow(book BookState, member Member, openLoans []Loan, now time.Time) (BorrowResult, error) {
	if book.ID == "" {
		return BorrowResult{}, fmt.Errorf("ledger: borrow: %w", ErrUnknownBook)
	}
	if member.ID == "" {
		return BorrowResult{}, fmt.Errorf("ledger: borrow: %w", ErrUnknownMember)
	}
	if book.Status != StatusAvailable {
		return BorrowResult{}, &StateError{Err: ErrBookUnavailable, BookID: book.ID, Status: book.Status}
	}
	if err := l.checkCard(member, now); err != nil {
		return BorrowResult{}, err
	}

	count := countOpenLoans(openLoans, member.ID)
	limit := l.policy.BorrowLimit(member.Role)
	if count >= limit {
		return BorrowResult{}, &LimitError{MemberID: member.ID, Role: member.Role, OpenLoans: count, Limit: limit}
	}

	loan := Loan{
		ID:         l.idGenerator(),
		BookID:     book.ID,
		MemberID:   member.ID,
		BorrowedAt: now,
		DueAt:      now.Add(l.policy.LoanPeriod),
	}

	return BorrowResult{
		Loan:       loan,
		BookStatus: StatusBorrowed,
		Events: []Event{
			LoanCreated{LoanID: loan.ID, BookID: book.ID, MemberID: member.ID, DueAt: loan.DueAt, At: now},
			BookStatusChanged{BookID: book.ID, From: book.Status, To: StatusBorrowed, At: now},
		},
	}, nil
}

// ReturnResult carries the mutations produced by a successful Return.
type ReturnResult struct {
	Loan       Loan
	BookStatus BookStatus
	Events     []Event
}

// Return closes the member's open loan for the book. The book reverts to
// AVAILABLE unless another member holds an open reservation, in which case
// the reservation's claim takes priority and the book becomes RESERVED.
func (l *Ledger) Return(book BookState, memberID string, loans []Loan, reservations []Reservation, now time.Time) (ReturnResult, error) {
	if book.ID == "" {
		return ReturnResult{}, fmt.Errorf("ledger: return: %w", ErrUnknownBook)
	}

	open, ok := findOpenLoan(loans, book.ID, memberID)
	if !ok {
		return ReturnResult{}, &StateError{Err: ErrNoOpenLoan, BookID: book.ID, Status: book.Status}
	}

	returnedAt := now
	closed := open
	closed.ReturnedAt = &returnedAt

	status := StatusAvailable
	if hasOpenReservation(reservations, book.ID, now) {
		status = StatusReserved
	}

	events := []Event{
		LoanClosed{LoanID: closed.ID, BookID: book.ID, MemberID: memberID, At: now},
	}
	if status != book.Status {
		events = append(events, BookStatusChanged{BookID: book.ID, From: book.Status, To: status, At: now})
	}

	return ReturnResult{Loan: closed, BookStatus: status, Events: events}, nil
}

// ReserveResult carries the mutations produced by a successful Reserve.
type ReserveResult struct {
	Reservation Reservation
	BookStatus  BookStatus
	Events      []Event
}

// Reserve places a single-slot claim on a book that is currently on loan.
// Reservations against available books are rejected: the member should
// simply borrow them. A RESERVED book is a legal target so that a second
// claimant is told the hold exists rather than that the book is not out.
func (l *Ledger) Reserve(book BookState, member Member, reservations []Reservation, now time.Time) (ReserveResult, error) {
	if book.ID == "" {
		return ReserveResult{}, fmt.Errorf("ledger: reserve: %w", ErrUnknownBook)
	}
	if member.ID == "" {
		return ReserveResult{}, fmt.Errorf("ledger: reserve: %w", ErrUnknownMember)
	}
	if book.Status == StatusAvailable {
		return ReserveResult{}, &StateError{Err: ErrBookNotBorrowed, BookID: book.ID, Status: book.Status}
	}
	if err := l.checkCard(member, now); err != nil {
		return ReserveResult{}, err
	}
	if hasOpenReservation(reservations, book.ID, now) {
		return ReserveResult{}, &StateError{Err: ErrAlreadyReserved, BookID: book.ID, Status: book.Status}
	}

	reservation := Reservation{
		ID:         l.idGenerator(),
		BookID:     book.ID,
		MemberID:   member.ID,
		ReservedAt: now,
		ExpiresAt:  now.Add(l.policy.ReservationTTL),
	}

	events := []Event{
		ReservationCreated{ReservationID: reservation.ID, BookID: book.ID, MemberID: member.ID, ExpiresAt: reservation.ExpiresAt, At: now},
	}
	if book.Status != StatusReserved {
		events = append(events, BookStatusChanged{BookID: book.ID, From: book.Status, To: StatusReserved, At: now})
	}

	return ReserveResult{
		Reservation: reservation,
		BookStatus:  StatusReserved,
		Events:      events,
	}, nil
}

// ExpiredReservation pairs a lapsed reservation with the status its book
// should revert to and the events describing that transition. Events are
// carried per item so the host publishes only what it actually applied.
type ExpiredReservation struct {
	Reservation Reservation
	BookStatus  BookStatus
	Events      []Event
}

// ExpireResult carries the mutations produced by ExpireReservations.
type ExpireResult struct {
	Expired []ExpiredReservation
}

// ExpireReservations closes every reservation whose expiry has passed and
// computes the status its book reverts to: BORROWED while the underlying
// loan is still open, AVAILABLE if the book was returned in the interim. The
// ledger has no timer of its own; the host invokes this periodically.
func (l *Ledger) ExpireReservations(reservations []Reservation, openLoans []Loan, now time.Time) ExpireResult {
	var result ExpireResult
	for _, reservation := range reservations {
		if reservation.Open(now) {
			continue
		}
		status := StatusAvailable
		if hasOpenLoanForBook(openLoans, reservation.BookID) {
			status = StatusBorrowed
		}
		result.Expired = append(result.Expired, ExpiredReservation{
			Reservation: reservation,
			BookStatus:  status,
			Events: []Event{
				ReservationExpired{ReservationID: reservation.ID, BookID: reservation.BookID, MemberID: reservation.MemberID, At: now},
				BookStatusChanged{BookID: reservation.BookID, From: StatusReserved, To: status, At: now},
			},
		})
	}
	return result
}

// CancelResult carries the mutations produced by CancelReservation.
type CancelResult struct {
	BookStatus BookStatus
	Events     []Event
}

// CancelReservation withdraws a member's open reservation ahead of its
// expiry. Administrators may cancel any reservation.
func (l *Ledger) CancelReservation(reservation Reservation, actor Member, openLoans []Loan, now time.Time) (CancelResult, error) {
	if reservation.MemberID != actor.ID && actor.Role != RoleAdmin {
		return CancelResult{}, ErrNotReservationHolder
	}

	status := StatusAvailable
	if hasOpenLoanForBook(openLoans, reservation.BookID) {
		status = StatusBorrowed
	}

	return CancelResult{
		BookStatus: status,
		Events: []Event{
			ReservationCancelled{ReservationID: reservation.ID, BookID: reservation.BookID, MemberID: reservation.MemberID, At: now},
			BookStatusChanged{BookID: reservation.BookID, From: StatusReserved, To: status, At: now},
		},
	}, nil
}

// CardResult carries the mutations produced by a card operation.
type CardResult struct {
	Card   LibraryCard
	Events []Event
}

// IssueCard creates a fresh ACTIVE card for the member, replacing a
// suspended or expired one. Members already holding a usable card are
// rejected so reissue cannot silently extend validity.
func (l *Ledger) IssueCard(member Member, now time.Time) (CardResult, error) {
	if member.ID == "" {
		return CardResult{}, fmt.Errorf("ledger: issue card: %w", ErrUnknownMember)
	}
	if member.Card != nil && cardUsable(*member.Card, now) {
		return CardResult{}, ErrCardAlreadyIssued
	}

	card := LibraryCard{
		Number:    l.cardNumberer(),
		IssuedAt:  now,
		ExpiresAt: now.Add(l.policy.CardValidity),
		Status:    CardActive,
	}

	return CardResult{
		Card:   card,
		Events: []Event{CardIssued{MemberID: member.ID, CardNumber: card.Number, ExpiresAt: card.ExpiresAt, At: now}},
	}, nil
}

// SetCardStatus toggles an existing card between ACTIVE and SUSPENDED.
func (l *Ledger) SetCardStatus(member Member, status CardStatus, now time.Time) (CardResult, error) {
	if member.Card == nil {
		return CardResult{}, ErrNoCard
	}
	if status != CardActive && status != CardSuspended {
		return CardResult{}, fmt.Errorf("ledger: set card status: unsupported status %q", status)
	}

	card := *member.Card
	card.Status = status

	return CardResult{
		Card:   card,
		Events: []Event{CardStatusChanged{MemberID: member.ID, CardNumber: card.Number, Status: status, At: now}},
	}, nil
}

func (l *Ledger) checkCard(member Member, now time.Time) error {
	if member.Role == RoleAdmin {
		return nil
	}
	if member.Card == nil || !cardUsable(*member.Card, now) {
		return &StateError{Err: ErrCardRequired, BookID: "", Status: ""}
	}
	return nil
}

func cardUsable(card LibraryCard, now time.Time) bool {
	return card.Status == CardActive && card.ExpiresAt.After(now)
}

func countOpenLoans(loans []Loan, memberID string) int {
	count := 0
	for _, loan := range loans {
		if loan.MemberID == memberID && loan.Open() {
			count++
		}
	}
	return count
}

func findOpenLoan(loans []Loan, bookID, memberID string) (Loan, bool) {
	for _, loan := range loans {
		if loan.BookID == bookID && loan.MemberID == memberID && loan.Open() {
			return loan, true
		}
	}
	return Loan{}, false
}

func hasOpenLoanForBook(loans []Loan, bookID string) bool {
	for _, loan := range loans {
		if loan.BookID == bookID && loan.Open() {
			return true
		}
	}
	return false
}

func hasOpenReservation(reservations []Reservation, bookID string, now time.Time) bool {
	for _, reservation := range reservations {
		if reservation.BookID == bookID && reservation.Open(now) {
			return true
		}
	}
	return false
}
