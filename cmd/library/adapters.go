package main

import (
	"context"
	"errors"
	"time"

	"github.com/example/university-library/internal/application"
	"github.com/example/university-library/internal/ledger"
	"github.com/example/university-library/internal/persistence"
)

// repositories bundles the persistence interfaces the adapters are built
// on, regardless of which storage engine backs them.
type repositories struct {
	books        persistence.BookRepository
	members      persistence.MemberRepository
	loans        persistence.LoanRepository
	reservations persistence.ReservationRepository
	sessions     persistence.SessionRepository
}

// mapStorageError translates persistence sentinels into the application
// layer's vocabulary.
func mapStorageError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return application.ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return application.ErrAlreadyExists
	default:
		return err
	}
}

// ----------------------------- model mapping -----------------------------

func toApplicationBook(book persistence.Book) application.Book {
	return application.Book{
		ID:            book.ID,
		Title:         book.Title,
		Author:        book.Author,
		ISBN:          book.ISBN,
		Category:      book.Category,
		Department:    book.Department,
		Course:        book.Course,
		AcademicYear:  book.AcademicYear,
		PublishYear:   book.PublishYear,
		Description:   book.Description,
		CoverURL:      book.CoverURL,
		Status:        ledger.BookStatus(book.Status),
		IsDigital:     book.IsDigital,
		ResourceType:  book.ResourceType,
		PDFURL:        book.PDFURL,
		DownloadCount: book.DownloadCount,
		CreatedAt:     book.CreatedAt,
		UpdatedAt:     book.UpdatedAt,
	}
}

func toPersistenceBook(book application.Book) persistence.Book {
	return persistence.Book{
		ID:            book.ID,
		Title:         book.Title,
		Author:        book.Author,
		ISBN:          book.ISBN,
		Category:      book.Category,
		Department:    book.Department,
		Course:        book.Course,
		AcademicYear:  book.AcademicYear,
		PublishYear:   book.PublishYear,
		Description:   book.Description,
		CoverURL:      book.CoverURL,
		Status:        string(book.Status),
		IsDigital:     book.IsDigital,
		ResourceType:  book.ResourceType,
		PDFURL:        book.PDFURL,
		DownloadCount: book.DownloadCount,
		CreatedAt:     book.CreatedAt,
		UpdatedAt:     book.UpdatedAt,
	}
}

func toApplicationCard(card *persistence.LibraryCard) *ledger.LibraryCard {
	if card == nil {
		return nil
	}
	return &ledger.LibraryCard{
		Number:    card.Number,
		IssuedAt:  card.IssuedAt,
		ExpiresAt: card.ExpiresAt,
		Status:    ledger.CardStatus(card.Status),
	}
}

func toPersistenceCard(card *ledger.LibraryCard) *persistence.LibraryCard {
	if card == nil {
		return nil
	}
	return &persistence.LibraryCard{
		Number:    card.Number,
		IssuedAt:  card.IssuedAt,
		ExpiresAt: card.ExpiresAt,
		Status:    string(card.Status),
	}
}

func toApplicationMember(member persistence.Member) application.Member {
	return application.Member{
		ID:         member.ID,
		Name:       member.Name,
		Email:      member.Email,
		Role:       ledger.Role(member.Role),
		Department: member.Department,
		Card:       toApplicationCard(member.Card),
		CreatedAt:  member.CreatedAt,
		UpdatedAt:  member.UpdatedAt,
	}
}

func toPersistenceMember(member application.Member, passwordHash string) persistence.Member {
	return persistence.Member{
		ID:           member.ID,
		Name:         member.Name,
		Email:        member.Email,
		PasswordHash: passwordHash,
		Role:         string(member.Role),
		Department:   member.Department,
		Card:         toPersistenceCard(member.Card),
		CreatedAt:    member.CreatedAt,
		UpdatedAt:    member.UpdatedAt,
	}
}

func toApplicationLoan(loan persistence.Loan) application.Loan {
	return application.Loan{
		ID:         loan.ID,
		BookID:     loan.BookID,
		MemberID:   loan.MemberID,
		BorrowedAt: loan.BorrowedAt,
		DueAt:      loan.DueAt,
		ReturnedAt: loan.ReturnedAt,
	}
}

func toPersistenceLoan(loan application.Loan) persistence.Loan {
	return persistence.Loan{
		ID:         loan.ID,
		BookID:     loan.BookID,
		MemberID:   loan.MemberID,
		BorrowedAt: loan.BorrowedAt,
		DueAt:      loan.DueAt,
		ReturnedAt: loan.ReturnedAt,
		CreatedAt:  loan.BorrowedAt,
		UpdatedAt:  loan.BorrowedAt,
	}
}

func toApplicationReservation(reservation persistence.Reservation) application.Reservation {
	return application.Reservation{
		ID:          reservation.ID,
		BookID:      reservation.BookID,
		MemberID:    reservation.MemberID,
		ReservedAt:  reservation.ReservedAt,
		ExpiresAt:   reservation.ExpiresAt,
		CancelledAt: reservation.CancelledAt,
	}
}

func toPersistenceReservation(reservation application.Reservation) persistence.Reservation {
	return persistence.Reservation{
		ID:          reservation.ID,
		BookID:      reservation.BookID,
		MemberID:    reservation.MemberID,
		ReservedAt:  reservation.ReservedAt,
		ExpiresAt:   reservation.ExpiresAt,
		CancelledAt: reservation.CancelledAt,
		CreatedAt:   reservation.ReservedAt,
		UpdatedAt:   reservation.ReservedAt,
	}
}

func toApplicationSession(session persistence.Session) application.Session {
	return application.Session{
		ID:        session.ID,
		MemberID:  session.MemberID,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
		RevokedAt: session.RevokedAt,
	}
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:        session.ID,
		MemberID:  session.MemberID,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
		RevokedAt: session.RevokedAt,
	}
}

// ------------------------- catalog repository -------------------------

type bookRepositoryAdapter struct {
	repo persistence.BookRepository
}

func newBookRepositoryAdapter(repo persistence.BookRepository) *bookRepositoryAdapter {
	return &bookRepositoryAdapter{repo: repo}
}

func (a *bookRepositoryAdapter) CreateBook(ctx context.Context, book application.Book) (application.Book, error) {
	if err := a.repo.CreateBook(ctx, toPersistenceBook(book)); err != nil {
		return application.Book{}, mapStorageError(err)
	}
	stored, err := a.repo.GetBook(ctx, book.ID)
	if err != nil {
		return application.Book{}, mapStorageError(err)
	}
	return toApplicationBook(stored), nil
}

func (a *bookRepositoryAdapter) UpdateBook(ctx context.Context, book application.Book) (application.Book, error) {
	if err := a.repo.UpdateBook(ctx, toPersistenceBook(book)); err != nil {
		return application.Book{}, mapStorageError(err)
	}
	stored, err := a.repo.GetBook(ctx, book.ID)
	if err != nil {
		return application.Book{}, mapStorageError(err)
	}
	return toApplicationBook(stored), nil
}

func (a *bookRepositoryAdapter) GetBook(ctx context.Context, id string) (application.Book, error) {
	stored, err := a.repo.GetBook(ctx, id)
	if err != nil {
		return application.Book{}, mapStorageError(err)
	}
	return toApplicationBook(stored), nil
}

func (a *bookRepositoryAdapter) ListBooks(ctx context.Context, query application.BookQuery) ([]application.Book, error) {
	filter := persistence.BookFilter{
		Search:      query.Search,
		Category:    query.Category,
		Department:  query.Department,
		Status:      string(query.Status),
		PublishYear: query.PublishYear,
	}
	models, err := a.repo.ListBooks(ctx, filter)
	if err != nil {
		return nil, mapStorageError(err)
	}
	if len(models) == 0 {
		return nil, nil
	}
	books := make([]application.Book, 0, len(models))
	for _, model := range models {
		books = append(books, toApplicationBook(model))
	}
	return books, nil
}

func (a *bookRepositoryAdapter) DeleteBook(ctx context.Context, id string) error {
	err := a.repo.DeleteBook(ctx, id)
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		return application.ErrBookInUse
	}
	return mapStorageError(err)
}

// ------------------------- member repository -------------------------

type memberRepositoryAdapter struct {
	repo persistence.MemberRepository
}

func newMemberRepositoryAdapter(repo persistence.MemberRepository) *memberRepositoryAdapter {
	return &memberRepositoryAdapter{repo: repo}
}

func (a *memberRepositoryAdapter) CreateMember(ctx context.Context, member application.Member, passwordHash string) (application.Member, error) {
	if err := a.repo.CreateMember(ctx, toPersistenceMember(member, passwordHash)); err != nil {
		return application.Member{}, mapStorageError(err)
	}
	stored, err := a.repo.GetMember(ctx, member.ID)
	if err != nil {
		return application.Member{}, mapStorageError(err)
	}
	return toApplicationMember(stored), nil
}

func (a *memberRepositoryAdapter) UpdateMember(ctx context.Context, member application.Member, passwordHash string) (application.Member, error) {
	if passwordHash == "" {
		current, err := a.repo.GetMember(ctx, member.ID)
		if err != nil {
			return application.Member{}, mapStorageError(err)
		}
		passwordHash = current.PasswordHash
	}
	if err := a.repo.UpdateMember(ctx, toPersistenceMember(member, passwordHash)); err != nil {
		return application.Member{}, mapStorageError(err)
	}
	stored, err := a.repo.GetMember(ctx, member.ID)
	if err != nil {
		return application.Member{}, mapStorageError(err)
	}
	return toApplicationMember(stored), nil
}

func (a *memberRepositoryAdapter) GetMember(ctx context.Context, id string) (application.Member, error) {
	stored, err := a.repo.GetMember(ctx, id)
	if err != nil {
		return application.Member{}, mapStorageError(err)
	}
	return toApplicationMember(stored), nil
}

func (a *memberRepositoryAdapter) ListMembers(ctx context.Context) ([]application.Member, error) {
	models, err := a.repo.ListMembers(ctx)
	if err != nil {
		return nil, mapStorageError(err)
	}
	if len(models) == 0 {
		return nil, nil
	}
	members := make([]application.Member, 0, len(models))
	for _, model := range models {
		members = append(members, toApplicationMember(model))
	}
	return members, nil
}

func (a *memberRepositoryAdapter) DeleteMember(ctx context.Context, id string) error {
	err := a.repo.DeleteMember(ctx, id)
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		return application.ErrMemberInUse
	}
	return mapStorageError(err)
}

// ------------------------- credential store -------------------------

type credentialStoreAdapter struct {
	repo persistence.MemberRepository
}

func newCredentialStoreAdapter(repo persistence.MemberRepository) *credentialStoreAdapter {
	return &credentialStoreAdapter{repo: repo}
}

func (a *credentialStoreAdapter) GetMemberCredentialsByEmail(ctx context.Context, email string) (application.MemberCredentials, error) {
	stored, err := a.repo.GetMemberByEmail(ctx, email)
	if err != nil {
		return application.MemberCredentials{}, mapStorageError(err)
	}
	return application.MemberCredentials{
		Member:       toApplicationMember(stored),
		PasswordHash: stored.PasswordHash,
	}, nil
}

func (a *credentialStoreAdapter) GetMember(ctx context.Context, id string) (application.Member, error) {
	stored, err := a.repo.GetMember(ctx, id)
	if err != nil {
		return application.Member{}, mapStorageError(err)
	}
	return toApplicationMember(stored), nil
}

// ------------------------- session repository -------------------------

type sessionRepositoryAdapter struct {
	repo persistence.SessionRepository
}

func newSessionRepositoryAdapter(repo persistence.SessionRepository) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo}
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.CreateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, mapStorageError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, mapStorageError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	stored, err := a.repo.RevokeSession(ctx, token, revokedAt)
	if err != nil {
		return application.Session{}, mapStorageError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return mapStorageError(a.repo.DeleteExpiredSessions(ctx, reference))
}

// ------------------------- lending stores -------------------------

type lendingBookStoreAdapter struct {
	repo persistence.BookRepository
}

func newLendingBookStoreAdapter(repo persistence.BookRepository) *lendingBookStoreAdapter {
	return &lendingBookStoreAdapter{repo: repo}
}

func (a *lendingBookStoreAdapter) GetBook(ctx context.Context, id string) (application.Book, error) {
	stored, err := a.repo.GetBook(ctx, id)
	if err != nil {
		return application.Book{}, mapStorageError(err)
	}
	return toApplicationBook(stored), nil
}

func (a *lendingBookStoreAdapter) UpdateBookStatus(ctx context.Context, id string, status ledger.BookStatus, updatedAt time.Time) error {
	return mapStorageError(a.repo.UpdateBookStatus(ctx, id, string(status), updatedAt))
}

type lendingMemberStoreAdapter struct {
	repo persistence.MemberRepository
}

func newLendingMemberStoreAdapter(repo persistence.MemberRepository) *lendingMemberStoreAdapter {
	return &lendingMemberStoreAdapter{repo: repo}
}

func (a *lendingMemberStoreAdapter) GetMember(ctx context.Context, id string) (application.Member, error) {
	stored, err := a.repo.GetMember(ctx, id)
	if err != nil {
		return application.Member{}, mapStorageError(err)
	}
	return toApplicationMember(stored), nil
}

func (a *lendingMemberStoreAdapter) SetCard(ctx context.Context, memberID string, card ledger.LibraryCard, updatedAt time.Time) error {
	stored := toPersistenceCard(&card)
	return mapStorageError(a.repo.SetCard(ctx, memberID, *stored, updatedAt))
}

type loanStoreAdapter struct {
	repo persistence.LoanRepository
}

func newLoanStoreAdapter(repo persistence.LoanRepository) *loanStoreAdapter {
	return &loanStoreAdapter{repo: repo}
}

func (a *loanStoreAdapter) CreateLoan(ctx context.Context, loan application.Loan) error {
	return mapStorageError(a.repo.CreateLoan(ctx, toPersistenceLoan(loan)))
}

func (a *loanStoreAdapter) CloseLoan(ctx context.Context, id string, returnedAt time.Time) error {
	return mapStorageError(a.repo.CloseLoan(ctx, id, returnedAt))
}

func (a *loanStoreAdapter) ListOpenLoansForBook(ctx context.Context, bookID string) ([]application.Loan, error) {
	models, err := a.repo.ListOpenLoansForBook(ctx, bookID)
	if err != nil {
		return nil, mapStorageError(err)
	}
	return toApplicationLoans(models), nil
}

func (a *loanStoreAdapter) ListLoansForMember(ctx context.Context, memberID string) ([]application.Loan, error) {
	models, err := a.repo.ListLoansForMember(ctx, memberID)
	if err != nil {
		return nil, mapStorageError(err)
	}
	return toApplicationLoans(models), nil
}

func toApplicationLoans(models []persistence.Loan) []application.Loan {
	if len(models) == 0 {
		return nil
	}
	loans := make([]application.Loan, 0, len(models))
	for _, model := range models {
		loans = append(loans, toApplicationLoan(model))
	}
	return loans
}

type reservationStoreAdapter struct {
	repo persistence.ReservationRepository
}

func newReservationStoreAdapter(repo persistence.ReservationRepository) *reservationStoreAdapter {
	return &reservationStoreAdapter{repo: repo}
}

func (a *reservationStoreAdapter) CreateReservation(ctx context.Context, reservation application.Reservation) error {
	return mapStorageError(a.repo.CreateReservation(ctx, toPersistenceReservation(reservation)))
}

func (a *reservationStoreAdapter) CancelReservation(ctx context.Context, id string, cancelledAt time.Time) error {
	return mapStorageError(a.repo.CancelReservation(ctx, id, cancelledAt))
}

func (a *reservationStoreAdapter) GetReservation(ctx context.Context, id string) (application.Reservation, error) {
	stored, err := a.repo.GetReservation(ctx, id)
	if err != nil {
		return application.Reservation{}, mapStorageError(err)
	}
	return toApplicationReservation(stored), nil
}

func (a *reservationStoreAdapter) GetOpenReservationForBook(ctx context.Context, bookID string, reference time.Time) (application.Reservation, bool, error) {
	stored, err := a.repo.GetOpenReservationForBook(ctx, bookID, reference)
	if errors.Is(err, persistence.ErrNotFound) {
		return application.Reservation{}, false, nil
	}
	if err != nil {
		return application.Reservation{}, false, mapStorageError(err)
	}
	return toApplicationReservation(stored), true, nil
}

func (a *reservationStoreAdapter) ListExpiredReservations(ctx context.Context, reference time.Time) ([]application.Reservation, error) {
	models, err := a.repo.ListExpiredReservations(ctx, reference)
	if err != nil {
		return nil, mapStorageError(err)
	}
	return toApplicationReservations(models), nil
}

func (a *reservationStoreAdapter) ListReservationsForMember(ctx context.Context, memberID string) ([]application.Reservation, error) {
	models, err := a.repo.ListReservationsForMember(ctx, memberID)
	if err != nil {
		return nil, mapStorageError(err)
	}
	return toApplicationReservations(models), nil
}

func toApplicationReservations(models []persistence.Reservation) []application.Reservation {
	if len(models) == 0 {
		return nil
	}
	reservations := make([]application.Reservation, 0, len(models))
	for _, model := range models {
		reservations = append(reservations, toApplicationReservation(model))
	}
	return reservations
}
