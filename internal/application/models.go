package application

import (
	"time"

	"github.com/example/university-library/internal/ledger"
)

// Principal identifies the authenticated member on whose behalf an
// operation runs.
type Principal struct {
	MemberID string
	Role     ledger.Role
}

// IsAdmin reports whether the principal may perform administrative
// operations.
func (p Principal) IsAdmin() bool {
	return p.Role == ledger.RoleAdmin
}

// Book is a catalog entry as exposed to transport layers.
type Book struct {
	ID            string
	Title         string
	Author        string
	ISBN          string
	Category      string
	Department    string
	Course        string
	AcademicYear  string
	PublishYear   int
	Description   string
	CoverURL      string
	Status        ledger.BookStatus
	IsDigital     bool
	ResourceType  string
	PDFURL        *string
	DownloadCount int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// BookInput carries the caller supplied fields for creating or updating a
// catalog entry.
type BookInput struct {
	Title        string
	Author       string
	ISBN         string
	Category     string
	Department   string
	Course       string
	AcademicYear string
	PublishYear  int
	Description  string
	CoverURL     string
	IsDigital    bool
	ResourceType string
	PDFURL       *string
}

// BookSort names a catalog ordering.
type BookSort string

const (
	SortByTitle       BookSort = "title"
	SortByAuthor      BookSort = "author"
	SortByPublishYear BookSort = "publishYear"
)

// SortOrder is the direction of a catalog ordering.
type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// BookQuery narrows and orders catalog listings.
type BookQuery struct {
	Search      string
	Category    string
	Department  string
	Status      ledger.BookStatus
	PublishYear *int
	Sort        BookSort
	Order       SortOrder
}

// Member is a directory record as exposed to transport layers. The password
// hash stays in the persistence layer.
type Member struct {
	ID         string
	Name       string
	Email      string
	Role       ledger.Role
	Department string
	Card       *ledger.LibraryCard
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// MemberInput carries the caller supplied fields for creating or updating a
// member account.
type MemberInput struct {
	Name       string
	Email      string
	Password   string
	Role       ledger.Role
	Department string
}

// MemberCredentials pairs a directory record with its stored password hash
// for authentication.
type MemberCredentials struct {
	Member       Member
	PasswordHash string
}

// Loan is a lending record as exposed to transport layers.
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

// Reservation is a hold record as exposed to transport layers.
type Reservation struct {
	ID          string
	BookID      string
	MemberID    string
	ReservedAt  time.Time
	ExpiresAt   time.Time
	CancelledAt *time.Time
}

// Session is an issued authentication session.
type Session struct {
	ID        string
	MemberID  string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// AuthenticateParams carries a login request.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult carries the member and the freshly issued session.
type AuthenticateResult struct {
	Member  Member
	Session Session
}

// CreateBookParams carries a catalog creation request.
type CreateBookParams struct {
	Principal Principal
	Input     BookInput
}

// UpdateBookParams carries a catalog update request. Status lets an
// administrator override the circulation state when correcting records.
type UpdateBookParams struct {
	Principal Principal
	BookID    string
	Input     BookInput
	Status    ledger.BookStatus
}

// CreateMemberParams carries a member creation request.
type CreateMemberParams struct {
	Principal Principal
	Input     MemberInput
}

// UpdateMemberParams carries a member update request. Password is optional;
// an empty value keeps the existing hash.
type UpdateMemberParams struct {
	Principal Principal
	MemberID  string
	Input     MemberInput
}

// BorrowParams identifies the book a member wants to borrow.
type BorrowParams struct {
	Principal Principal
	BookID    string
}

// ReturnParams identifies the book being returned. Administrators may
// return on behalf of the borrowing member by naming them.
type ReturnParams struct {
	Principal Principal
	BookID    string
	MemberID  string
}

// ReserveParams identifies the book a member wants to place a hold on.
type ReserveParams struct {
	Principal Principal
	BookID    string
}

// CancelReservationParams identifies the hold being withdrawn.
type CancelReservationParams struct {
	Principal     Principal
	ReservationID string
}

// IssueCardParams identifies the member receiving a library card.
type IssueCardParams struct {
	Principal Principal
	MemberID  string
}

// SetCardStatusParams toggles a member's card between ACTIVE and SUSPENDED.
type SetCardStatusParams struct {
	Principal Principal
	MemberID  string
	Status    ledger.CardStatus
}

// AssistantQueryParams carries a free-form research question.
type AssistantQueryParams struct {
	Principal Principal
	Question  string
}

// AssistantAnswer is the assistant's reply. Fallback is set when the reply
// is the canned offline message rather than a model response.
type AssistantAnswer struct {
	Text     string
	Fallback bool
}

// RecommendationsParams requests reading suggestions for a member.
type RecommendationsParams struct {
	Principal Principal
	MemberID  string
}
