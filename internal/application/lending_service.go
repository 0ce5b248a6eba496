package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/university-library/internal/events"
	"github.com/example/university-library/internal/ledger"
)

// LendingBookStore exposes the catalog operations the lending service needs.
type LendingBookStore interface {
	GetBook(ctx context.Context, id string) (Book, error)
	UpdateBookStatus(ctx context.Context, id string, status ledger.BookStatus, updatedAt time.Time) error
}

// LendingMemberStore exposes the directory operations the lending service
// needs, including replacing the member's card.
type LendingMemberStore interface {
	GetMember(ctx context.Context, id string) (Member, error)
	SetCard(ctx context.Context, memberID string, card ledger.LibraryCard, updatedAt time.Time) error
}

// LoanStore captures the persistence interactions for lending records.
type LoanStore interface {
	CreateLoan(ctx context.Context, loan Loan) error
	CloseLoan(ctx context.Context, id string, returnedAt time.Time) error
	ListOpenLoansForBook(ctx context.Context, bookID string) ([]Loan, error)
	ListLoansForMember(ctx context.Context, memberID string) ([]Loan, error)
}

// ReservationStore captures the persistence interactions for holds. The
// open-reservation lookup reports absence with a boolean rather than an
// error because a free book is the common case.
type ReservationStore interface {
	CreateReservation(ctx context.Context, reservation Reservation) error
	CancelReservation(ctx context.Context, id string, cancelledAt time.Time) error
	GetReservation(ctx context.Context, id string) (Reservation, error)
	GetOpenReservationForBook(ctx context.Context, bookID string, reference time.Time) (Reservation, bool, error)
	ListExpiredReservations(ctx context.Context, reference time.Time) ([]Reservation, error)
	ListReservationsForMember(ctx context.Context, memberID string) ([]Reservation, error)
}

// LendingService drives the borrowing lifecycle. Every transition is decided
// by the ledger against a snapshot of the affected records; this service
// loads the snapshot, applies the resulting mutations, and publishes the
// produced events.
type LendingService struct {
	books        LendingBookStore
	members      LendingMemberStore
	loans        LoanStore
	reservations ReservationStore
	ledger       *ledger.Ledger
	bus          *events.Bus
	now          func() time.Time
	logger       *slog.Logger
}

// NewLendingService wires dependencies for the lending service.
func NewLendingService(books LendingBookStore, members LendingMemberStore, loans LoanStore, reservations ReservationStore, ldg *ledger.Ledger, bus *events.Bus, now func() time.Time) *LendingService {
	return NewLendingServiceWithLogger(books, members, loans, reservations, ldg, bus, now, nil)
}

// NewLendingServiceWithLogger constructs a LendingService with a specified logger.
func NewLendingServiceWithLogger(books LendingBookStore, members LendingMemberStore, loans LoanStore, reservations ReservationStore, ldg *ledger.Ledger, bus *events.Bus, now func() time.Time, logger *slog.Logger) *LendingService {
	if ldg == nil {
		ldg = ledger.New(ledger.DefaultPolicy(), nil, nil)
	}
	if now == nil {
		now = time.Now
	}
	return &LendingService{
		books:        books,
		members:      members,
		loans:        loans,
		reservations: reservations,
		ledger:       ldg,
		bus:          bus,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

func (s *LendingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "LendingService", operation, attrs...)
}

// Borrow lends the book to the acting member. The ledger decides
// eligibility; the storage layer's unique open-loan index catches the rare
// race where two members borrow the same book at once.
func (s *LendingService) Borrow(ctx context.Context, params BorrowParams) (loan Loan, err error) {
	if s == nil {
		err = fmt.Errorf("LendingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Borrow",
		"book_id", params.BookID,
		"member_id", params.Principal.MemberID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "borrow failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "book borrowed", "loan_id", loan.ID, "due_at", loan.DueAt)
	}()

	book, err := s.books.GetBook(ctx, params.BookID)
	if err != nil {
		return Loan{}, err
	}
	member, err := s.members.GetMember(ctx, params.Principal.MemberID)
	if err != nil {
		return Loan{}, err
	}
	memberLoans, err := s.loans.ListLoansForMember(ctx, member.ID)
	if err != nil {
		return Loan{}, err
	}

	now := s.now()
	result, err := s.ledger.Borrow(bookState(book), ledgerMember(member), openLedgerLoans(memberLoans), now)
	if err != nil {
		return Loan{}, err
	}

	created := fromLedgerLoan(result.Loan)
	if err = s.loans.CreateLoan(ctx, created); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			// Lost a race for the last copy.
			err = &ledger.StateError{Err: ledger.ErrBookUnavailable, BookID: book.ID, Status: book.Status}
		}
		return Loan{}, err
	}
	if err = s.books.UpdateBookStatus(ctx, book.ID, result.BookStatus, now); err != nil {
		return Loan{}, err
	}

	s.bus.Publish(result.Events...)
	return created, nil
}

// Return closes the open loan on the book. Members return their own loans;
// administrators may return on behalf of the borrower. The book becomes
// RESERVED when another member holds an open reservation, otherwise
// AVAILABLE.
func (s *LendingService) Return(ctx context.Context, params ReturnParams) (loan Loan, err error) {
	if s == nil {
		err = fmt.Errorf("LendingService is nil")
		return
	}

	memberID := params.MemberID
	if memberID == "" {
		memberID = params.Principal.MemberID
	}
	if memberID != params.Principal.MemberID && !params.Principal.IsAdmin() {
		return Loan{}, ErrUnauthorized
	}

	logger := s.loggerWith(ctx, "Return",
		"book_id", params.BookID,
		"member_id", memberID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "return failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "book returned", "loan_id", loan.ID)
	}()

	book, err := s.books.GetBook(ctx, params.BookID)
	if err != nil {
		return Loan{}, err
	}
	memberLoans, err := s.loans.ListLoansForMember(ctx, memberID)
	if err != nil {
		return Loan{}, err
	}

	now := s.now()
	reservations, err := s.openBookReservations(ctx, book.ID, now)
	if err != nil {
		return Loan{}, err
	}

	result, err := s.ledger.Return(bookState(book), memberID, toLedgerLoans(memberLoans), reservations, now)
	if err != nil {
		return Loan{}, err
	}

	if err = s.loans.CloseLoan(ctx, result.Loan.ID, now); err != nil {
		return Loan{}, err
	}
	if err = s.books.UpdateBookStatus(ctx, book.ID, result.BookStatus, now); err != nil {
		return Loan{}, err
	}

	s.bus.Publish(result.Events...)
	return fromLedgerLoan(result.Loan), nil
}

// Reserve places the acting member's hold on a borrowed book.
func (s *LendingService) Reserve(ctx context.Context, params ReserveParams) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("LendingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Reserve",
		"book_id", params.BookID,
		"member_id", params.Principal.MemberID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "reserve failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "book reserved", "reservation_id", reservation.ID, "expires_at", reservation.ExpiresAt)
	}()

	book, err := s.books.GetBook(ctx, params.BookID)
	if err != nil {
		return Reservation{}, err
	}
	member, err := s.members.GetMember(ctx, params.Principal.MemberID)
	if err != nil {
		return Reservation{}, err
	}

	now := s.now()
	reservations, err := s.openBookReservations(ctx, book.ID, now)
	if err != nil {
		return Reservation{}, err
	}

	result, err := s.ledger.Reserve(bookState(book), ledgerMember(member), reservations, now)
	if err != nil {
		return Reservation{}, err
	}

	created := fromLedgerReservation(result.Reservation)
	if err = s.reservations.CreateReservation(ctx, created); err != nil {
		return Reservation{}, err
	}
	if err = s.books.UpdateBookStatus(ctx, book.ID, result.BookStatus, now); err != nil {
		return Reservation{}, err
	}

	s.bus.Publish(result.Events...)
	return created, nil
}

// CancelReservation withdraws a hold ahead of its expiry. Only the holder
// or an administrator may cancel.
func (s *LendingService) CancelReservation(ctx context.Context, params CancelReservationParams) (err error) {
	if s == nil {
		return fmt.Errorf("LendingService is nil")
	}

	logger := s.loggerWith(ctx, "CancelReservation",
		"reservation_id", params.ReservationID,
		"member_id", params.Principal.MemberID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "cancel failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reservation cancelled")
	}()

	reservation, err := s.reservations.GetReservation(ctx, params.ReservationID)
	if err != nil {
		return err
	}

	actor := ledger.Member{ID: params.Principal.MemberID, Role: params.Principal.Role}
	openLoans, err := s.loans.ListOpenLoansForBook(ctx, reservation.BookID)
	if err != nil {
		return err
	}

	now := s.now()
	result, err := s.ledger.CancelReservation(toLedgerReservation(reservation), actor, toLedgerLoans(openLoans), now)
	if err != nil {
		return err
	}

	if err = s.reservations.CancelReservation(ctx, reservation.ID, now); err != nil {
		return err
	}
	if err = s.books.UpdateBookStatus(ctx, reservation.BookID, result.BookStatus, now); err != nil {
		return err
	}

	s.bus.Publish(result.Events...)
	return nil
}

// ExpireReservations sweeps every lapsed hold, reverting each book to
// BORROWED while its loan is still out or AVAILABLE otherwise. The serve
// loop invokes this periodically; it returns the number of holds closed.
func (s *LendingService) ExpireReservations(ctx context.Context) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("LendingService is nil")
	}

	now := s.now()
	logger := s.loggerWith(ctx, "ExpireReservations")

	expired, err := s.reservations.ListExpiredReservations(ctx, now)
	if err != nil {
		logger.ErrorContext(ctx, "expiry sweep failed", "error", err, "error_kind", ErrorKind(err))
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	var openLoans []ledger.Loan
	for _, reservation := range expired {
		bookLoans, err := s.loans.ListOpenLoansForBook(ctx, reservation.BookID)
		if err != nil {
			return 0, err
		}
		openLoans = append(openLoans, toLedgerLoans(bookLoans)...)
	}

	result := s.ledger.ExpireReservations(toLedgerReservations(expired), openLoans, now)

	closed := 0
	var applied []ledger.Event
	for _, item := range result.Expired {
		if err := s.reservations.CancelReservation(ctx, item.Reservation.ID, now); err != nil {
			logger.ErrorContext(ctx, "failed to close expired reservation",
				"reservation_id", item.Reservation.ID, "error", err)
			continue
		}
		if err := s.books.UpdateBookStatus(ctx, item.Reservation.BookID, item.BookStatus, now); err != nil {
			logger.ErrorContext(ctx, "failed to revert book status",
				"book_id", item.Reservation.BookID, "error", err)
			continue
		}
		applied = append(applied, item.Events...)
		closed++
	}

	s.bus.Publish(applied...)
	logger.InfoContext(ctx, "reservations expired", "count", closed)
	return closed, nil
}

// IssueCard creates a fresh library card for the member. Members may
// request their own card; administrators may issue for anyone.
func (s *LendingService) IssueCard(ctx context.Context, params IssueCardParams) (card ledger.LibraryCard, err error) {
	if s == nil {
		err = fmt.Errorf("LendingService is nil")
		return
	}
	if !params.Principal.IsAdmin() && params.Principal.MemberID != params.MemberID {
		return ledger.LibraryCard{}, ErrUnauthorized
	}

	logger := s.loggerWith(ctx, "IssueCard", "member_id", params.MemberID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "card issue failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "card issued", "card_number", card.Number, "expires_at", card.ExpiresAt)
	}()

	member, err := s.members.GetMember(ctx, params.MemberID)
	if err != nil {
		return ledger.LibraryCard{}, err
	}

	now := s.now()
	result, err := s.ledger.IssueCard(ledgerMember(member), now)
	if err != nil {
		return ledger.LibraryCard{}, err
	}

	if err = s.members.SetCard(ctx, member.ID, result.Card, now); err != nil {
		return ledger.LibraryCard{}, err
	}

	s.bus.Publish(result.Events...)
	return result.Card, nil
}

// SetCardStatus toggles a member's card between ACTIVE and SUSPENDED for
// administrators.
func (s *LendingService) SetCardStatus(ctx context.Context, params SetCardStatusParams) (card ledger.LibraryCard, err error) {
	if s == nil {
		err = fmt.Errorf("LendingService is nil")
		return
	}
	if !params.Principal.IsAdmin() {
		return ledger.LibraryCard{}, ErrUnauthorized
	}

	logger := s.loggerWith(ctx, "SetCardStatus",
		"member_id", params.MemberID,
		"card_status", params.Status,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "card status change failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "card status changed")
	}()

	member, err := s.members.GetMember(ctx, params.MemberID)
	if err != nil {
		return ledger.LibraryCard{}, err
	}

	now := s.now()
	result, err := s.ledger.SetCardStatus(ledgerMember(member), params.Status, now)
	if err != nil {
		return ledger.LibraryCard{}, err
	}

	if err = s.members.SetCard(ctx, member.ID, result.Card, now); err != nil {
		return ledger.LibraryCard{}, err
	}

	s.bus.Publish(result.Events...)
	return result.Card, nil
}

// MemberLoans returns a member's lending history. Members may read their
// own; administrators may read anyone's.
func (s *LendingService) MemberLoans(ctx context.Context, principal Principal, memberID string) ([]Loan, error) {
	if s == nil {
		return nil, fmt.Errorf("LendingService is nil")
	}
	if !principal.IsAdmin() && principal.MemberID != memberID {
		return nil, ErrUnauthorized
	}
	return s.loans.ListLoansForMember(ctx, memberID)
}

// MemberReservations returns a member's hold history. Members may read
// their own; administrators may read anyone's.
func (s *LendingService) MemberReservations(ctx context.Context, principal Principal, memberID string) ([]Reservation, error) {
	if s == nil {
		return nil, fmt.Errorf("LendingService is nil")
	}
	if !principal.IsAdmin() && principal.MemberID != memberID {
		return nil, ErrUnauthorized
	}
	return s.reservations.ListReservationsForMember(ctx, memberID)
}

func (s *LendingService) openBookReservations(ctx context.Context, bookID string, now time.Time) ([]ledger.Reservation, error) {
	reservation, ok, err := s.reservations.GetOpenReservationForBook(ctx, bookID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return []ledger.Reservation{toLedgerReservation(reservation)}, nil
}

func bookState(book Book) ledger.BookState {
	return ledger.BookState{ID: book.ID, Status: book.Status}
}

func ledgerMember(member Member) ledger.Member {
	return ledger.Member{ID: member.ID, Role: member.Role, Card: member.Card}
}

func toLedgerLoan(loan Loan) ledger.Loan {
	return ledger.Loan{
		ID:         loan.ID,
		BookID:     loan.BookID,
		MemberID:   loan.MemberID,
		BorrowedAt: loan.BorrowedAt,
		DueAt:      loan.DueAt,
		ReturnedAt: loan.ReturnedAt,
	}
}

func toLedgerLoans(loans []Loan) []ledger.Loan {
	converted := make([]ledger.Loan, 0, len(loans))
	for _, loan := range loans {
		converted = append(converted, toLedgerLoan(loan))
	}
	return converted
}

func openLedgerLoans(loans []Loan) []ledger.Loan {
	open := make([]ledger.Loan, 0, len(loans))
	for _, loan := range loans {
		if loan.Open() {
			open = append(open, toLedgerLoan(loan))
		}
	}
	return open
}

func fromLedgerLoan(loan ledger.Loan) Loan {
	return Loan{
		ID:         loan.ID,
		BookID:     loan.BookID,
		MemberID:   loan.MemberID,
		BorrowedAt: loan.BorrowedAt,
		DueAt:      loan.DueAt,
		ReturnedAt: loan.ReturnedAt,
	}
}

func toLedgerReservation(reservation Reservation) ledger.Reservation {
	return ledger.Reservation{
		ID:         reservation.ID,
		BookID:     reservation.BookID,
		MemberID:   reservation.MemberID,
		ReservedAt: reservation.ReservedAt,
		ExpiresAt:  reservation.ExpiresAt,
	}
}

func toLedgerReservations(reservations []Reservation) []ledger.Reservation {
	converted := make([]ledger.Reservation, 0, len(reservations))
	for _, reservation := range reservations {
		converted = append(converted, toLedgerReservation(reservation))
	}
	return converted
}

func fromLedgerReservation(reservation ledger.Reservation) Reservation {
	return Reservation{
		ID:         reservation.ID,
		BookID:     reservation.BookID,
		MemberID:   reservation.MemberID,
		ReservedAt: reservation.ReservedAt,
		ExpiresAt:  reservation.ExpiresAt,
	}
}
