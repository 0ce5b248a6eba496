package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/example/university-library/internal/events"
	"github.com/example/university-library/internal/ledger"
)

type stubBookStore struct {
	books    map[string]Book
	statuses map[string]ledger.BookStatus
}

func newStubBookStore(books ...Book) *stubBookStore {
	s := &stubBookStore{books: make(map[string]Book), statuses: make(map[string]ledger.BookStatus)}
	for _, book := range books {
		s.books[book.ID] = book
	}
	return s
}

func (s *stubBookStore) GetBook(_ context.Context, id string) (Book, error) {
	book, ok := s.books[id]
	if !ok {
		return Book{}, ErrNotFound
	}
	return book, nil
}

func (s *stubBookStore) UpdateBookStatus(_ context.Context, id string, status ledger.BookStatus, _ time.Time) error {
	book, ok := s.books[id]
	if !ok {
		return ErrNotFound
	}
	book.Status = status
	s.books[id] = book
	s.statuses[id] = status
	return nil
}

type stubMemberStore struct {
	members map[string]Member
	cards   map[string]ledger.LibraryCard
}

func newStubMemberStore(members ...Member) *stubMemberStore {
	s := &stubMemberStore{members: make(map[string]Member), cards: make(map[string]ledger.LibraryCard)}
	for _, member := range members {
		s.members[member.ID] = member
	}
	return s
}

func (s *stubMemberStore) GetMember(_ context.Context, id string) (Member, error) {
	member, ok := s.members[id]
	if !ok {
		return Member{}, ErrNotFound
	}
	return member, nil
}

func (s *stubMemberStore) SetCard(_ context.Context, memberID string, card ledger.LibraryCard, _ time.Time) error {
	member, ok := s.members[memberID]
	if !ok {
		return ErrNotFound
	}
	member.Card = &card
	s.members[memberID] = member
	s.cards[memberID] = card
	return nil
}

type stubLoanStore struct {
	loans     []Loan
	createErr error
}

func (s *stubLoanStore) CreateLoan(_ context.Context, loan Loan) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.loans = append(s.loans, loan)
	return nil
}

func (s *stubLoanStore) CloseLoan(_ context.Context, id string, returnedAt time.Time) error {
	for i, loan := range s.loans {
		if loan.ID == id && loan.ReturnedAt == nil {
			at := returnedAt
			s.loans[i].ReturnedAt = &at
			return nil
		}
	}
	return ErrNotFound
}

func (s *stubLoanStore) ListOpenLoansForBook(_ context.Context, bookID string) ([]Loan, error) {
	var open []Loan
	for _, loan := range s.loans {
		if loan.BookID == bookID && loan.Open() {
			open = append(open, loan)
		}
	}
	return open, nil
}

func (s *stubLoanStore) ListLoansForMember(_ context.Context, memberID string) ([]Loan, error) {
	var result []Loan
	for _, loan := range s.loans {
		if loan.MemberID == memberID {
			result = append(result, loan)
		}
	}
	return result, nil
}

type stubReservationStore struct {
	reservations []Reservation
}

func (s *stubReservationStore) CreateReservation(_ context.Context, reservation Reservation) error {
	s.reservations = append(s.reservations, reservation)
	return nil
}

func (s *stubReservationStore) CancelReservation(_ context.Context, id string, cancelledAt time.Time) error {
	for i, reservation := range s.reservations {
		if reservation.ID == id && reservation.CancelledAt == nil {
			at := cancelledAt
			s.reservations[i].CancelledAt = &at
			return nil
		}
	}
	return ErrNotFound
}

func (s *stubReservationStore) GetReservation(_ context.Context, id string) (Reservation, error) {
	for _, reservation := range s.reservations {
		if reservation.ID == id {
			return reservation, nil
		}
	}
	return Reservation{}, ErrNotFound
}

func (s *stubReservationStore) GetOpenReservationForBook(_ context.Context, bookID string, reference time.Time) (Reservation, bool, error) {
	for _, reservation := range s.reservations {
		if reservation.BookID == bookID && reservation.CancelledAt == nil && !reservation.ExpiresAt.Before(reference) {
			return reservation, true, nil
		}
	}
	return Reservation{}, false, nil
}

func (s *stubReservationStore) ListExpiredReservations(_ context.Context, reference time.Time) ([]Reservation, error) {
	var expired []Reservation
	for _, reservation := range s.reservations {
		if reservation.CancelledAt == nil && reservation.ExpiresAt.Before(reference) {
			expired = append(expired, reservation)
		}
	}
	return expired, nil
}

func (s *stubReservationStore) ListReservationsForMember(_ context.Context, memberID string) ([]Reservation, error) {
	var result []Reservation
	for _, reservation := range s.reservations {
		if reservation.MemberID == memberID {
			result = append(result, reservation)
		}
	}
	return result, nil
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func activeCard(now time.Time) *ledger.LibraryCard {
	return &ledger.LibraryCard{
		Number:    "LIB-0001",
		IssuedAt:  now,
		ExpiresAt: now.AddDate(0, 0, 365),
		Status:    ledger.CardActive,
	}
}

type lendingFixture struct {
	service      *LendingService
	books        *stubBookStore
	members      *stubMemberStore
	loans        *stubLoanStore
	reservations *stubReservationStore
	bus          *events.Bus
	now          time.Time
}

func newLendingFixture(t *testing.T, books []Book, members []Member) *lendingFixture {
	t.Helper()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f := &lendingFixture{
		books:        newStubBookStore(books...),
		members:      newStubMemberStore(members...),
		loans:        &stubLoanStore{},
		reservations: &stubReservationStore{},
		bus:          events.NewBus(),
		now:          now,
	}
	ldg := ledger.New(ledger.DefaultPolicy(), sequentialIDs("id"), sequentialIDs("card"))
	f.service = NewLendingService(f.books, f.members, f.loans, f.reservations, ldg, f.bus, func() time.Time { return f.now })
	return f
}

func TestBorrowCreatesLoanAndMarksBookBorrowed(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	member := Member{ID: "member-1", Role: ledger.RoleStudent, Card: activeCard(now)}
	book := Book{ID: "book-1", Status: ledger.StatusAvailable}
	f := newLendingFixture(t, []Book{book}, []Member{member})

	var published []string
	f.bus.Subscribe(func(event ledger.Event) {
		published = append(published, event.EventType())
	})

	loan, err := f.service.Borrow(context.Background(), BorrowParams{
		Principal: Principal{MemberID: "member-1", Role: ledger.RoleStudent},
		BookID:    "book-1",
	})
	if err != nil {
		t.Fatalf("Borrow failed: %v", err)
	}

	if want := f.now.AddDate(0, 0, 14); !loan.DueAt.Equal(want) {
		t.Errorf("due at = %v, want %v", loan.DueAt, want)
	}
	if got := f.books.statuses["book-1"]; got != ledger.StatusBorrowed {
		t.Errorf("book status = %q, want BORROWED", got)
	}
	if len(f.loans.loans) != 1 {
		t.Fatalf("expected 1 persisted loan, got %d", len(f.loans.loans))
	}
	if len(published) != 2 || published[0] != ledger.LoanCreatedEventType || published[1] != ledger.BookStatusChangedEventType {
		t.Errorf("unexpected events: %v", published)
	}
}

func TestBorrowMapsLostRaceToUnavailable(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	member := Member{ID: "member-1", Role: ledger.RoleStudent, Card: activeCard(now)}
	book := Book{ID: "book-1", Status: ledger.StatusAvailable}
	f := newLendingFixture(t, []Book{book}, []Member{member})
	f.loans.createErr = ErrAlreadyExists

	_, err := f.service.Borrow(context.Background(), BorrowParams{
		Principal: Principal{MemberID: "member-1", Role: ledger.RoleStudent},
		BookID:    "book-1",
	})
	if !errors.Is(err, ledger.ErrBookUnavailable) {
		t.Errorf("expected ErrBookUnavailable, got %v", err)
	}
}

func TestBorrowEnforcesRoleLimit(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	member := Member{ID: "member-1", Role: ledger.RoleStudent, Card: activeCard(now)}
	books := []Book{
		{ID: "book-1", Status: ledger.StatusAvailable},
		{ID: "book-2", Status: ledger.StatusAvailable},
		{ID: "book-3", Status: ledger.StatusAvailable},
		{ID: "book-4", Status: ledger.StatusAvailable},
	}
	f := newLendingFixture(t, books, []Member{member})

	principal := Principal{MemberID: "member-1", Role: ledger.RoleStudent}
	for _, id := range []string{"book-1", "book-2", "book-3"} {
		if _, err := f.service.Borrow(context.Background(), BorrowParams{Principal: principal, BookID: id}); err != nil {
			t.Fatalf("Borrow %s failed: %v", id, err)
		}
	}

	_, err := f.service.Borrow(context.Background(), BorrowParams{Principal: principal, BookID: "book-4"})
	var limitErr *ledger.LimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected LimitError, got %v", err)
	}
	if limitErr.Limit != 3 || limitErr.OpenLoans != 3 {
		t.Errorf("unexpected limit error: %+v", limitErr)
	}
}

func TestReturnRespectsPendingReservation(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	borrower := Member{ID: "member-1", Role: ledger.RoleStudent, Card: activeCard(now)}
	holder := Member{ID: "member-2", Role: ledger.RoleLecturer, Card: activeCard(now)}
	book := Book{ID: "book-1", Status: ledger.StatusAvailable}
	f := newLendingFixture(t, []Book{book}, []Member{borrower, holder})

	ctx := context.Background()
	if _, err := f.service.Borrow(ctx, BorrowParams{Principal: Principal{MemberID: "member-1", Role: ledger.RoleStudent}, BookID: "book-1"}); err != nil {
		t.Fatalf("Borrow failed: %v", err)
	}
	if _, err := f.service.Reserve(ctx, ReserveParams{Principal: Principal{MemberID: "member-2", Role: ledger.RoleLecturer}, BookID: "book-1"}); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	if _, err := f.service.Return(ctx, ReturnParams{Principal: Principal{MemberID: "member-1", Role: ledger.RoleStudent}, BookID: "book-1"}); err != nil {
		t.Fatalf("Return failed: %v", err)
	}

	if got := f.books.statuses["book-1"]; got != ledger.StatusReserved {
		t.Errorf("book status after return = %q, want RESERVED", got)
	}
}

func TestReserveOnReservedBookReportsExistingHold(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	borrower := Member{ID: "member-1", Role: ledger.RoleStudent, Card: activeCard(now)}
	holder := Member{ID: "member-2", Role: ledger.RoleLecturer, Card: activeCard(now)}
	latecomer := Member{ID: "member-3", Role: ledger.RoleStudent, Card: activeCard(now)}
	book := Book{ID: "book-1", Status: ledger.StatusAvailable}
	f := newLendingFixture(t, []Book{book}, []Member{borrower, holder, latecomer})

	ctx := context.Background()
	if _, err := f.service.Borrow(ctx, BorrowParams{Principal: Principal{MemberID: "member-1", Role: ledger.RoleStudent}, BookID: "book-1"}); err != nil {
		t.Fatalf("Borrow failed: %v", err)
	}
	if _, err := f.service.Reserve(ctx, ReserveParams{Principal: Principal{MemberID: "member-2", Role: ledger.RoleLecturer}, BookID: "book-1"}); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	// The book is now RESERVED; a second claimant learns the hold exists,
	// not that the book is not out.
	_, err := f.service.Reserve(ctx, ReserveParams{Principal: Principal{MemberID: "member-3", Role: ledger.RoleStudent}, BookID: "book-1"})
	if !errors.Is(err, ledger.ErrAlreadyReserved) {
		t.Errorf("expected ErrAlreadyReserved, got %v", err)
	}
}

func TestReturnForOtherMemberRequiresAdmin(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	borrower := Member{ID: "member-1", Role: ledger.RoleStudent, Card: activeCard(now)}
	book := Book{ID: "book-1", Status: ledger.StatusAvailable}
	f := newLendingFixture(t, []Book{book}, []Member{borrower})

	ctx := context.Background()
	if _, err := f.service.Borrow(ctx, BorrowParams{Principal: Principal{MemberID: "member-1", Role: ledger.RoleStudent}, BookID: "book-1"}); err != nil {
		t.Fatalf("Borrow failed: %v", err)
	}

	_, err := f.service.Return(ctx, ReturnParams{
		Principal: Principal{MemberID: "member-2", Role: ledger.RoleStudent},
		BookID:    "book-1",
		MemberID:  "member-1",
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}

	if _, err := f.service.Return(ctx, ReturnParams{
		Principal: Principal{MemberID: "admin-1", Role: ledger.RoleAdmin},
		BookID:    "book-1",
		MemberID:  "member-1",
	}); err != nil {
		t.Errorf("admin return failed: %v", err)
	}
}

func TestExpireReservationsRevertsBookStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	borrower := Member{ID: "member-1", Role: ledger.RoleStudent, Card: activeCard(now)}
	holder := Member{ID: "member-2", Role: ledger.RoleLecturer, Card: activeCard(now)}
	book := Book{ID: "book-1", Status: ledger.StatusAvailable}
	f := newLendingFixture(t, []Book{book}, []Member{borrower, holder})

	ctx := context.Background()
	if _, err := f.service.Borrow(ctx, BorrowParams{Principal: Principal{MemberID: "member-1", Role: ledger.RoleStudent}, BookID: "book-1"}); err != nil {
		t.Fatalf("Borrow failed: %v", err)
	}
	if _, err := f.service.Reserve(ctx, ReserveParams{Principal: Principal{MemberID: "member-2", Role: ledger.RoleLecturer}, BookID: "book-1"}); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	// Jump past the 3 day reservation window; the loan is still open.
	f.now = now.AddDate(0, 0, 4)

	closed, err := f.service.ExpireReservations(ctx)
	if err != nil {
		t.Fatalf("ExpireReservations failed: %v", err)
	}
	if closed != 1 {
		t.Errorf("closed = %d, want 1", closed)
	}
	if got := f.books.statuses["book-1"]; got != ledger.StatusBorrowed {
		t.Errorf("book status after sweep = %q, want BORROWED", got)
	}
	if f.reservations.reservations[0].CancelledAt == nil {
		t.Error("expected swept reservation to be closed")
	}

	// A second sweep finds nothing.
	closed, err = f.service.ExpireReservations(ctx)
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if closed != 0 {
		t.Errorf("second sweep closed %d, want 0", closed)
	}
}

func TestExpireReservationsPublishesOnlyAppliedItems(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	book := Book{ID: "book-1", Status: ledger.StatusReserved}
	f := newLendingFixture(t, []Book{book}, nil)

	expiry := now.AddDate(0, 0, -1)
	f.reservations.reservations = []Reservation{
		{ID: "res-1", BookID: "book-1", MemberID: "member-1", ReservedAt: now.AddDate(0, 0, -4), ExpiresAt: expiry},
		// book-2 no longer exists, so reverting its status fails.
		{ID: "res-2", BookID: "book-2", MemberID: "member-2", ReservedAt: now.AddDate(0, 0, -4), ExpiresAt: expiry},
	}

	var published []string
	f.bus.Subscribe(func(event ledger.Event) {
		published = append(published, event.EventType())
	})

	closed, err := f.service.ExpireReservations(context.Background())
	if err != nil {
		t.Fatalf("ExpireReservations failed: %v", err)
	}
	if closed != 1 {
		t.Errorf("closed = %d, want 1", closed)
	}

	if len(published) != 2 {
		t.Fatalf("published %d events, want 2 for the applied item only: %v", len(published), published)
	}
	if published[0] != ledger.ReservationExpiredEventType || published[1] != ledger.BookStatusChangedEventType {
		t.Errorf("unexpected event sequence: %v", published)
	}
}

func TestIssueCardEnablesBorrowing(t *testing.T) {
	member := Member{ID: "member-1", Role: ledger.RoleStudent}
	book := Book{ID: "book-1", Status: ledger.StatusAvailable}
	f := newLendingFixture(t, []Book{book}, []Member{member})

	ctx := context.Background()
	principal := Principal{MemberID: "member-1", Role: ledger.RoleStudent}

	_, err := f.service.Borrow(ctx, BorrowParams{Principal: principal, BookID: "book-1"})
	if !errors.Is(err, ledger.ErrCardRequired) {
		t.Fatalf("expected ErrCardRequired before issuance, got %v", err)
	}

	card, err := f.service.IssueCard(ctx, IssueCardParams{Principal: principal, MemberID: "member-1"})
	if err != nil {
		t.Fatalf("IssueCard failed: %v", err)
	}
	if want := f.now.AddDate(0, 0, 365); !card.ExpiresAt.Equal(want) {
		t.Errorf("card expiry = %v, want %v", card.ExpiresAt, want)
	}

	if _, err := f.service.Borrow(ctx, BorrowParams{Principal: principal, BookID: "book-1"}); err != nil {
		t.Errorf("Borrow after card issuance failed: %v", err)
	}
}

func TestSetCardStatusRequiresAdmin(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	member := Member{ID: "member-1", Role: ledger.RoleStudent, Card: activeCard(now)}
	f := newLendingFixture(t, nil, []Member{member})

	ctx := context.Background()
	_, err := f.service.SetCardStatus(ctx, SetCardStatusParams{
		Principal: Principal{MemberID: "member-1", Role: ledger.RoleStudent},
		MemberID:  "member-1",
		Status:    ledger.CardSuspended,
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	card, err := f.service.SetCardStatus(ctx, SetCardStatusParams{
		Principal: Principal{MemberID: "admin-1", Role: ledger.RoleAdmin},
		MemberID:  "member-1",
		Status:    ledger.CardSuspended,
	})
	if err != nil {
		t.Fatalf("SetCardStatus failed: %v", err)
	}
	if card.Status != ledger.CardSuspended {
		t.Errorf("card status = %q, want SUSPENDED", card.Status)
	}
}

func TestCancelReservationAuthorization(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	borrower := Member{ID: "member-1", Role: ledger.RoleStudent, Card: activeCard(now)}
	holder := Member{ID: "member-2", Role: ledger.RoleStudent, Card: activeCard(now)}
	book := Book{ID: "book-1", Status: ledger.StatusAvailable}
	f := newLendingFixture(t, []Book{book}, []Member{borrower, holder})

	ctx := context.Background()
	if _, err := f.service.Borrow(ctx, BorrowParams{Principal: Principal{MemberID: "member-1", Role: ledger.RoleStudent}, BookID: "book-1"}); err != nil {
		t.Fatalf("Borrow failed: %v", err)
	}
	reservation, err := f.service.Reserve(ctx, ReserveParams{Principal: Principal{MemberID: "member-2", Role: ledger.RoleStudent}, BookID: "book-1"})
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	err = f.service.CancelReservation(ctx, CancelReservationParams{
		Principal:     Principal{MemberID: "member-1", Role: ledger.RoleStudent},
		ReservationID: reservation.ID,
	})
	if !errors.Is(err, ledger.ErrNotReservationHolder) {
		t.Fatalf("expected ErrNotReservationHolder, got %v", err)
	}

	if err := f.service.CancelReservation(ctx, CancelReservationParams{
		Principal:     Principal{MemberID: "member-2", Role: ledger.RoleStudent},
		ReservationID: reservation.ID,
	}); err != nil {
		t.Fatalf("holder cancel failed: %v", err)
	}

	// The loan is still open, so the book reverts to BORROWED.
	if got := f.books.statuses["book-1"]; got != ledger.StatusBorrowed {
		t.Errorf("book status after cancel = %q, want BORROWED", got)
	}
}
