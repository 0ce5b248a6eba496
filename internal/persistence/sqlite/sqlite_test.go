package sqlite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/university-library/internal/persistence"
)

func openTestStorage(t *testing.T) *Storage {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	storage, err := Open("file::memory:?_pragma=foreign_keys(1)", logger)
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}
	t.Cleanup(func() { _ = storage.Close() })

	if err := storage.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return storage
}

func testBook(id string, now time.Time) persistence.Book {
	return persistence.Book{
		ID:           id,
		Title:        "Structure and Interpretation of Computer Programs",
		Author:       "Abelson and Sussman",
		ISBN:         "978-0262510875",
		Category:     "Computer Science",
		Department:   "Computer Science",
		PublishYear:  1996,
		Status:       "AVAILABLE",
		ResourceType: "PHYSICAL",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func testMember(id, email string, now time.Time) persistence.Member {
	return persistence.Member{
		ID:           id,
		Name:         "Alice Carter",
		Email:        email,
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		Role:         "STUDENT",
		Department:   "Computer Science",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestBookRepositoryCRUD(t *testing.T) {
	storage := openTestStorage(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	book := testBook("book-1", now)
	if err := storage.Books.CreateBook(ctx, book); err != nil {
		t.Fatalf("CreateBook failed: %v", err)
	}

	if err := storage.Books.CreateBook(ctx, book); !errors.Is(err, persistence.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate for repeated insert, got %v", err)
	}

	got, err := storage.Books.GetBook(ctx, "book-1")
	if err != nil {
		t.Fatalf("GetBook failed: %v", err)
	}
	if got.Title != book.Title {
		t.Errorf("expected title %q, got %q", book.Title, got.Title)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("expected created_at %v, got %v", now, got.CreatedAt)
	}
	if got.PDFURL != nil {
		t.Errorf("expected nil pdf url, got %v", *got.PDFURL)
	}

	got.Title = "SICP"
	got.UpdatedAt = now.Add(time.Hour)
	if err := storage.Books.UpdateBook(ctx, got); err != nil {
		t.Fatalf("UpdateBook failed: %v", err)
	}

	if err := storage.Books.UpdateBookStatus(ctx, "book-1", "BORROWED", now.Add(2*time.Hour)); err != nil {
		t.Fatalf("UpdateBookStatus failed: %v", err)
	}
	got, err = storage.Books.GetBook(ctx, "book-1")
	if err != nil {
		t.Fatalf("GetBook failed: %v", err)
	}
	if got.Status != "BORROWED" {
		t.Errorf("expected status BORROWED, got %q", got.Status)
	}

	if _, err := storage.Books.GetBook(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := storage.Books.DeleteBook(ctx, "book-1"); err != nil {
		t.Fatalf("DeleteBook failed: %v", err)
	}
	if _, err := storage.Books.GetBook(ctx, "book-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestBookRepositoryListFilters(t *testing.T) {
	storage := openTestStorage(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first := testBook("book-1", now)
	second := testBook("book-2", now)
	second.Title = "The Go Programming Language"
	second.Author = "Donovan and Kernighan"
	second.Category = "Programming"
	second.PublishYear = 2015
	third := testBook("book-3", now)
	third.Title = "Linear Algebra Done Right"
	third.Author = "Axler"
	third.Department = "Mathematics"
	third.Status = "BORROWED"

	for _, b := range []persistence.Book{first, second, third} {
		if err := storage.Books.CreateBook(ctx, b); err != nil {
			t.Fatalf("CreateBook failed: %v", err)
		}
	}

	all, err := storage.Books.ListBooks(ctx, persistence.BookFilter{})
	if err != nil {
		t.Fatalf("ListBooks failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 books, got %d", len(all))
	}
	if all[0].ID != "book-3" {
		t.Errorf("expected title ordering with book-3 first, got %q", all[0].ID)
	}

	bySearch, err := storage.Books.ListBooks(ctx, persistence.BookFilter{Search: "go programming"})
	if err != nil {
		t.Fatalf("ListBooks with search failed: %v", err)
	}
	if len(bySearch) != 1 || bySearch[0].ID != "book-2" {
		t.Errorf("expected search to match book-2, got %+v", bySearch)
	}

	byDepartment, err := storage.Books.ListBooks(ctx, persistence.BookFilter{Department: "Mathematics"})
	if err != nil {
		t.Fatalf("ListBooks with department failed: %v", err)
	}
	if len(byDepartment) != 1 || byDepartment[0].ID != "book-3" {
		t.Errorf("expected department filter to match book-3, got %+v", byDepartment)
	}

	year := 2015
	byYear, err := storage.Books.ListBooks(ctx, persistence.BookFilter{PublishYear: &year, Status: "AVAILABLE"})
	if err != nil {
		t.Fatalf("ListBooks with year failed: %v", err)
	}
	if len(byYear) != 1 || byYear[0].ID != "book-2" {
		t.Errorf("expected year filter to match book-2, got %+v", byYear)
	}
}

func TestMemberRepositoryCardLifecycle(t *testing.T) {
	storage := openTestStorage(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	member := testMember("member-1", "alice@university.edu", now)
	if err := storage.Members.CreateMember(ctx, member); err != nil {
		t.Fatalf("CreateMember failed: %v", err)
	}

	duplicate := testMember("member-2", "alice@university.edu", now)
	if err := storage.Members.CreateMember(ctx, duplicate); !errors.Is(err, persistence.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate for reused email, got %v", err)
	}

	got, err := storage.Members.GetMemberByEmail(ctx, "alice@university.edu")
	if err != nil {
		t.Fatalf("GetMemberByEmail failed: %v", err)
	}
	if got.Card != nil {
		t.Fatalf("expected no card before issuance, got %+v", got.Card)
	}

	card := persistence.LibraryCard{
		Number:    "LIB-2026-0001",
		IssuedAt:  now,
		ExpiresAt: now.AddDate(0, 0, 365),
		Status:    "ACTIVE",
	}
	if err := storage.Members.SetCard(ctx, "member-1", card, now); err != nil {
		t.Fatalf("SetCard failed: %v", err)
	}

	got, err = storage.Members.GetMember(ctx, "member-1")
	if err != nil {
		t.Fatalf("GetMember failed: %v", err)
	}
	if got.Card == nil {
		t.Fatal("expected card after issuance")
	}
	if got.Card.Number != card.Number || got.Card.Status != "ACTIVE" {
		t.Errorf("unexpected card: %+v", got.Card)
	}
	if !got.Card.ExpiresAt.Equal(card.ExpiresAt) {
		t.Errorf("expected expiry %v, got %v", card.ExpiresAt, got.Card.ExpiresAt)
	}

	if err := storage.Members.SetCard(ctx, "missing", card, now); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := storage.Members.DeleteMember(ctx, "member-1"); err != nil {
		t.Fatalf("DeleteMember failed: %v", err)
	}
}

func TestLoanRepositoryOpenLoanUniqueness(t *testing.T) {
	storage := openTestStorage(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	if err := storage.Books.CreateBook(ctx, testBook("book-1", now)); err != nil {
		t.Fatalf("CreateBook failed: %v", err)
	}
	if err := storage.Members.CreateMember(ctx, testMember("member-1", "alice@university.edu", now)); err != nil {
		t.Fatalf("CreateMember failed: %v", err)
	}
	if err := storage.Members.CreateMember(ctx, testMember("member-2", "bob@university.edu", now)); err != nil {
		t.Fatalf("CreateMember failed: %v", err)
	}

	loan := persistence.Loan{
		ID:         "loan-1",
		BookID:     "book-1",
		MemberID:   "member-1",
		BorrowedAt: now,
		DueAt:      now.AddDate(0, 0, 14),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := storage.Loans.CreateLoan(ctx, loan); err != nil {
		t.Fatalf("CreateLoan failed: %v", err)
	}

	second := loan
	second.ID = "loan-2"
	second.MemberID = "member-2"
	if err := storage.Loans.CreateLoan(ctx, second); !errors.Is(err, persistence.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate for second open loan on the same book, got %v", err)
	}

	count, err := storage.Loans.CountOpenLoansForMember(ctx, "member-1")
	if err != nil {
		t.Fatalf("CountOpenLoansForMember failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 open loan, got %d", count)
	}

	open, err := storage.Loans.GetOpenLoan(ctx, "book-1", "member-1")
	if err != nil {
		t.Fatalf("GetOpenLoan failed: %v", err)
	}
	if open.ID != "loan-1" {
		t.Errorf("expected loan-1, got %q", open.ID)
	}

	returnedAt := now.AddDate(0, 0, 7)
	if err := storage.Loans.CloseLoan(ctx, "loan-1", returnedAt); err != nil {
		t.Fatalf("CloseLoan failed: %v", err)
	}
	if err := storage.Loans.CloseLoan(ctx, "loan-1", returnedAt); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("expected ErrNotFound when closing a closed loan, got %v", err)
	}

	// The slot frees up once the previous loan closes.
	if err := storage.Loans.CreateLoan(ctx, second); err != nil {
		t.Fatalf("CreateLoan after return failed: %v", err)
	}

	history, err := storage.Loans.ListLoansForMember(ctx, "member-1")
	if err != nil {
		t.Fatalf("ListLoansForMember failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 loan in history, got %d", len(history))
	}
	if history[0].ReturnedAt == nil || !history[0].ReturnedAt.Equal(returnedAt) {
		t.Errorf("expected returned_at %v, got %v", returnedAt, history[0].ReturnedAt)
	}
}

func TestReservationRepositoryExpiryWindows(t *testing.T) {
	storage := openTestStorage(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	if err := storage.Books.CreateBook(ctx, testBook("book-1", now)); err != nil {
		t.Fatalf("CreateBook failed: %v", err)
	}
	if err := storage.Members.CreateMember(ctx, testMember("member-1", "alice@university.edu", now)); err != nil {
		t.Fatalf("CreateMember failed: %v", err)
	}

	reservation := persistence.Reservation{
		ID:         "res-1",
		BookID:     "book-1",
		MemberID:   "member-1",
		ReservedAt: now,
		ExpiresAt:  now.AddDate(0, 0, 3),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := storage.Reservations.CreateReservation(ctx, reservation); err != nil {
		t.Fatalf("CreateReservation failed: %v", err)
	}

	open, err := storage.Reservations.GetOpenReservationForBook(ctx, "book-1", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetOpenReservationForBook failed: %v", err)
	}
	if open.ID != "res-1" {
		t.Errorf("expected res-1, got %q", open.ID)
	}

	// The hold lapses strictly after its expiry instant, so at ExpiresAt
	// itself it is still open and not yet a sweeper candidate.
	atBoundary, err := storage.Reservations.GetOpenReservationForBook(ctx, "book-1", reservation.ExpiresAt)
	if err != nil {
		t.Fatalf("GetOpenReservationForBook at expiry instant failed: %v", err)
	}
	if atBoundary.ID != "res-1" {
		t.Errorf("expected res-1 at expiry instant, got %q", atBoundary.ID)
	}
	stillOpen, err := storage.Reservations.ListExpiredReservations(ctx, reservation.ExpiresAt)
	if err != nil {
		t.Fatalf("ListExpiredReservations failed: %v", err)
	}
	if len(stillOpen) != 0 {
		t.Errorf("expected no expired reservations at expiry instant, got %d", len(stillOpen))
	}

	if _, err := storage.Reservations.GetOpenReservationForBook(ctx, "book-1", now.AddDate(0, 0, 4)); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("expected ErrNotFound after expiry, got %v", err)
	}

	expired, err := storage.Reservations.ListExpiredReservations(ctx, now.AddDate(0, 0, 4))
	if err != nil {
		t.Fatalf("ListExpiredReservations failed: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != "res-1" {
		t.Errorf("expected res-1 in expired list, got %+v", expired)
	}

	if err := storage.Reservations.CancelReservation(ctx, "res-1", now.Add(time.Hour)); err != nil {
		t.Fatalf("CancelReservation failed: %v", err)
	}
	if err := storage.Reservations.CancelReservation(ctx, "res-1", now.Add(time.Hour)); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("expected ErrNotFound when cancelling twice, got %v", err)
	}

	openList, err := storage.Reservations.ListOpenReservations(ctx, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("ListOpenReservations failed: %v", err)
	}
	if len(openList) != 0 {
		t.Errorf("expected no open reservations after cancel, got %d", len(openList))
	}
}

func TestSessionRepositoryLifecycle(t *testing.T) {
	storage := openTestStorage(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	if err := storage.Members.CreateMember(ctx, testMember("member-1", "alice@university.edu", now)); err != nil {
		t.Fatalf("CreateMember failed: %v", err)
	}

	session := persistence.Session{
		ID:        "session-1",
		MemberID:  "member-1",
		Token:     "token-abc",
		ExpiresAt: now.Add(24 * time.Hour),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := storage.Sessions.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	got, err := storage.Sessions.GetSession(ctx, "token-abc")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.MemberID != "member-1" || got.RevokedAt != nil {
		t.Errorf("unexpected session: %+v", got)
	}

	revoked, err := storage.Sessions.RevokeSession(ctx, "token-abc", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}
	if revoked.RevokedAt == nil {
		t.Error("expected revoked_at to be set")
	}
	if _, err := storage.Sessions.RevokeSession(ctx, "token-abc", now.Add(time.Hour)); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("expected ErrNotFound when revoking twice, got %v", err)
	}

	if err := storage.Sessions.DeleteExpiredSessions(ctx, now.Add(48*time.Hour)); err != nil {
		t.Fatalf("DeleteExpiredSessions failed: %v", err)
	}
	if _, err := storage.Sessions.GetSession(ctx, "token-abc"); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("expected ErrNotFound after purge, got %v", err)
	}
}
