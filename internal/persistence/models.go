package persistence

import "time"

// Book represents a catalog entry as stored.
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
	Status        string
	IsDigital     bool
	ResourceType  string
	PDFURL        *string
	DownloadCount int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Member represents a library member account as stored. The password hash
// never leaves the persistence layer except through the credential lookup
// path.
type Member struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	Department   string
	Card         *LibraryCard
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LibraryCard represents the credential attached to a member.
type LibraryCard struct {
	Number    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Status    string
}

// Loan represents a lending record. Closed loans (ReturnedAt set) are kept
// as history and never deleted.
type Loan struct {
	ID         string
	BookID     string
	MemberID   string
	BorrowedAt time.Time
	DueAt      time.Time
	ReturnedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Reservation represents a hold placed on a borrowed book.
type Reservation struct {
	ID          string
	BookID      string
	MemberID    string
	ReservedAt  time.Time
	ExpiresAt   time.Time
	CancelledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Session represents an authentication session persisted for a member.
type Session struct {
	ID        string
	MemberID  string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}
