package migration

import "time"

// Migration represents a database migration with its metadata and SQL content.
type Migration struct {
	Version     string // version identifier, e.g. "0001"
	Description string // human-readable description derived from the file name
	SQL         string // SQL statements to execute
	Name        string // source file name within the migration filesystem
	Checksum    string // content checksum recorded alongside the version
}

// AppliedMigration represents a migration recorded in the version table.
type AppliedMigration struct {
	Version       string
	AppliedAt     time.Time
	ExecutionTime time.Duration
}
