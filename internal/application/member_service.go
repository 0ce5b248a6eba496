package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/example/university-library/internal/ledger"
)

// MemberRepository captures the persistence operations needed by the member
// service. Password hashes travel beside the member record so they never
// appear on the exposed model.
type MemberRepository interface {
	CreateMember(ctx context.Context, member Member, passwordHash string) (Member, error)
	UpdateMember(ctx context.Context, member Member, passwordHash string) (Member, error)
	GetMember(ctx context.Context, id string) (Member, error)
	ListMembers(ctx context.Context) ([]Member, error)
	DeleteMember(ctx context.Context, id string) error
}

// PasswordHasher derives a storable hash from a plaintext password.
type PasswordHasher func(password string) (string, error)

// MemberService orchestrates validation, authorization, and persistence for
// the member directory.
type MemberService struct {
	members      MemberRepository
	hashPassword PasswordHasher
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewMemberService wires dependencies for the member service.
func NewMemberService(members MemberRepository, hash PasswordHasher, idGenerator func() string, now func() time.Time) *MemberService {
	return NewMemberServiceWithLogger(members, hash, idGenerator, now, nil)
}

// NewMemberServiceWithLogger constructs a MemberService with a specified logger.
func NewMemberServiceWithLogger(members MemberRepository, hash PasswordHasher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *MemberService {
	if hash == nil {
		hash = func(password string) (string, error) {
			return CreatePasswordHash(password, DefaultArgon2idParams)
		}
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &MemberService{
		members:      members,
		hashPassword: hash,
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

func (s *MemberService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "MemberService", operation, attrs...)
}

// CreateMember validates input and persists a new member account for
// administrators. Accounts start without a library card; issuing one is a
// separate lending operation.
func (s *MemberService) CreateMember(ctx context.Context, params CreateMemberParams) (Member, error) {
	if s == nil {
		return Member{}, fmt.Errorf("MemberService is nil")
	}
	if !params.Principal.IsAdmin() {
		return Member{}, ErrUnauthorized
	}

	normalized := normalizeMemberInput(params.Input)
	vErr := validateMemberInput(normalized, true)
	if vErr.HasErrors() {
		return Member{}, vErr
	}

	hash, err := s.hashPassword(normalized.Password)
	if err != nil {
		return Member{}, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	member := Member{
		ID:         s.idGenerator(),
		Name:       normalized.Name,
		Email:      normalized.Email,
		Role:       normalized.Role,
		Department: normalized.Department,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	logger := s.loggerWith(ctx, "CreateMember", "member_id", member.ID)

	persisted, err := s.members.CreateMember(ctx, member, hash)
	if err != nil {
		logger.ErrorContext(ctx, "member create failed", "error", err, "error_kind", ErrorKind(err))
		return Member{}, err
	}

	logger.InfoContext(ctx, "member created", "role", persisted.Role)
	return persisted, nil
}

// UpdateMember validates input and updates an existing account. Members may
// update their own profile; administrators may update anyone and change
// roles. An empty password keeps the stored hash.
func (s *MemberService) UpdateMember(ctx context.Context, params UpdateMemberParams) (Member, error) {
	if s == nil {
		return Member{}, fmt.Errorf("MemberService is nil")
	}
	if !params.Principal.IsAdmin() && params.Principal.MemberID != params.MemberID {
		return Member{}, ErrUnauthorized
	}

	existing, err := s.members.GetMember(ctx, params.MemberID)
	if err != nil {
		return Member{}, err
	}

	normalized := normalizeMemberInput(params.Input)
	vErr := validateMemberInput(normalized, false)
	if !params.Principal.IsAdmin() && normalized.Role != existing.Role {
		vErr.add("role", "only administrators may change roles")
	}
	if vErr.HasErrors() {
		return Member{}, vErr
	}

	hash := ""
	if normalized.Password != "" {
		hash, err = s.hashPassword(normalized.Password)
		if err != nil {
			return Member{}, fmt.Errorf("failed to hash password: %w", err)
		}
	}

	updated := existing
	updated.Name = normalized.Name
	updated.Email = normalized.Email
	updated.Role = normalized.Role
	updated.Department = normalized.Department
	updated.UpdatedAt = s.now()

	logger := s.loggerWith(ctx, "UpdateMember", "member_id", params.MemberID)

	persisted, err := s.members.UpdateMember(ctx, updated, hash)
	if err != nil {
		logger.ErrorContext(ctx, "member update failed", "error", err, "error_kind", ErrorKind(err))
		return Member{}, err
	}

	logger.InfoContext(ctx, "member updated")
	return persisted, nil
}

// GetMember retrieves an account. Members may read their own record;
// administrators may read anyone's.
func (s *MemberService) GetMember(ctx context.Context, principal Principal, memberID string) (Member, error) {
	if s == nil {
		return Member{}, fmt.Errorf("MemberService is nil")
	}
	if !principal.IsAdmin() && principal.MemberID != memberID {
		return Member{}, ErrUnauthorized
	}
	return s.members.GetMember(ctx, memberID)
}

// ListMembers returns every account for administrators.
func (s *MemberService) ListMembers(ctx context.Context, principal Principal) ([]Member, error) {
	if s == nil {
		return nil, fmt.Errorf("MemberService is nil")
	}
	if !principal.IsAdmin() {
		return nil, ErrUnauthorized
	}
	return s.members.ListMembers(ctx)
}

// DeleteMember removes an account for administrators. Accounts with lending
// history are refused.
func (s *MemberService) DeleteMember(ctx context.Context, principal Principal, memberID string) error {
	if s == nil {
		return fmt.Errorf("MemberService is nil")
	}
	if !principal.IsAdmin() {
		return ErrUnauthorized
	}

	logger := s.loggerWith(ctx, "DeleteMember", "member_id", memberID)

	if err := s.members.DeleteMember(ctx, memberID); err != nil {
		logger.ErrorContext(ctx, "member delete failed", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "member deleted")
	return nil
}

func normalizeMemberInput(input MemberInput) MemberInput {
	normalized := input
	normalized.Name = strings.TrimSpace(input.Name)
	normalized.Email = strings.TrimSpace(strings.ToLower(input.Email))
	normalized.Department = strings.TrimSpace(input.Department)
	normalized.Role = ledger.Role(strings.ToUpper(strings.TrimSpace(string(input.Role))))
	return normalized
}

func validateMemberInput(input MemberInput, passwordRequired bool) *ValidationError {
	vErr := &ValidationError{}
	if input.Name == "" {
		vErr.add("name", "name is required")
	}
	if input.Email == "" {
		vErr.add("email", "email is required")
	} else if _, err := mail.ParseAddress(input.Email); err != nil {
		vErr.add("email", "email is invalid")
	}
	if passwordRequired && input.Password == "" {
		vErr.add("password", "password is required")
	}
	if input.Password != "" && len(input.Password) < 8 {
		vErr.add("password", "password must be at least 8 characters")
	}
	switch input.Role {
	case ledger.RoleStudent, ledger.RoleLecturer, ledger.RoleAdmin:
	default:
		vErr.add("role", "role must be one of STUDENT, LECTURER, ADMIN")
	}
	return vErr
}
