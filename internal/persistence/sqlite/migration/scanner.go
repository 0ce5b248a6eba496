package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"
)

var fileNamePattern = regexp.MustCompile(`^(\d{4})_([a-z0-9_]+)\.sql$`)

// Scanner reads migrations from a filesystem, typically an embed.FS compiled
// into the binary so the schema always travels with the code.
type Scanner struct {
	source fs.FS
}

// NewScanner constructs a scanner over the provided filesystem.
func NewScanner(source fs.FS) *Scanner {
	return &Scanner{source: source}
}

// ScanMigrations returns every migration in the filesystem ordered by
// version. Duplicate versions and malformed names are rejected outright so
// a bad file never half-applies a schema.
func (s *Scanner) ScanMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(s.source, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migration filesystem: %w", err)
	}

	seen := make(map[string]string)
	migrations := make([]Migration, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		migration, err := s.parse(entry.Name())
		if err != nil {
			return nil, err
		}
		if prior, ok := seen[migration.Version]; ok {
			return nil, NewError(migration.Version, migration.Name, "scan",
				fmt.Errorf("%w: also defined by %s", ErrDuplicateVersion, prior))
		}
		seen[migration.Version] = migration.Name
		migrations = append(migrations, migration)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// ValidateFileName checks that a file follows the NNNN_description.sql
// naming convention.
func (s *Scanner) ValidateFileName(name string) error {
	if !fileNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %s", ErrInvalidFileName, name)
	}
	return nil
}

func (s *Scanner) parse(name string) (Migration, error) {
	matches := fileNamePattern.FindStringSubmatch(name)
	if matches == nil {
		return Migration{}, fmt.Errorf("%w: %s", ErrInvalidFileName, name)
	}

	content, err := fs.ReadFile(s.source, name)
	if err != nil {
		return Migration{}, NewError(matches[1], name, "read", err)
	}

	sum := sha256.Sum256(content)

	return Migration{
		Version:     matches[1],
		Description: strings.ReplaceAll(matches[2], "_", " "),
		SQL:         string(content),
		Name:        name,
		Checksum:    hex.EncodeToString(sum[:]),
	}, nil
}
