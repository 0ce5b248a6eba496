package migration

import (
	"errors"
	"fmt"
)

var (
	// ErrMigrationFailed indicates a migration's SQL failed to execute.
	ErrMigrationFailed = errors.New("migration failed")
	// ErrInvalidFileName indicates a migration file does not follow the
	// NNNN_description.sql naming convention.
	ErrInvalidFileName = errors.New("invalid migration file name")
	// ErrDuplicateVersion indicates two migration files share a version.
	ErrDuplicateVersion = errors.New("duplicate migration version")
	// ErrChecksumMismatch indicates an applied migration's file content has
	// changed since it was recorded.
	ErrChecksumMismatch = errors.New("migration checksum mismatch")
)

// Error captures the failing migration's context.
type Error struct {
	Version string
	Name    string
	Op      string
	Err     error
}

// NewError wraps err with the migration's version, file name, and operation.
func NewError(version, name, op string, err error) *Error {
	return &Error{Version: version, Name: name, Op: op, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("migration %s (%s): %s: %v", e.Version, e.Name, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
