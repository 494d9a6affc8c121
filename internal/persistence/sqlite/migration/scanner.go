package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var migrationFilePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_-]+)\.sql$`)

type fileScanner struct {
	files fs.FS
}

// NewFileScanner scans the root of files for migration files. Use fs.Sub to
// point it at a subdirectory of an embedded filesystem.
func NewFileScanner(files fs.FS) FileScanner {
	return &fileScanner{files: files}
}

// ScanMigrations reads every .sql file, rejects names outside the
// {version}_{description}.sql pattern and duplicate versions, and sorts by
// numeric version.
func (s *fileScanner) ScanMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(s.files, ".")
	if err != nil {
		return nil, NewMigrationError("", ".", "read directory", err)
	}

	var migrations []Migration
	seen := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		m, err := s.parse(entry.Name())
		if err != nil {
			return nil, err
		}
		if other, dup := seen[m.Version]; dup {
			return nil, NewMigrationError(m.Version, entry.Name(), "check duplicates",
				fmt.Errorf("%w: %s and %s", ErrDuplicateVersion, other, entry.Name()))
		}
		seen[m.Version] = entry.Name()
		migrations = append(migrations, m)
	}

	sort.Slice(migrations, func(i, j int) bool {
		vi, _ := strconv.Atoi(migrations[i].Version)
		vj, _ := strconv.Atoi(migrations[j].Version)
		return vi < vj
	})
	return migrations, nil
}

func (s *fileScanner) parse(name string) (Migration, error) {
	matches := migrationFilePattern.FindStringSubmatch(name)
	if matches == nil {
		return Migration{}, NewMigrationError("", name, "validate filename",
			fmt.Errorf("%w: %q does not match {version}_{description}.sql", ErrInvalidMigrationFile, name))
	}
	version := matches[1]

	raw, err := fs.ReadFile(s.files, name)
	if err != nil {
		return Migration{}, NewMigrationError(version, name, "read file", err)
	}
	content := string(raw)
	if strings.TrimSpace(stripComments(content)) == "" {
		return Migration{}, NewMigrationError(version, name, "validate content",
			fmt.Errorf("%w: no SQL statements", ErrInvalidMigrationFile))
	}
	if err := checkParentheses(content); err != nil {
		return Migration{}, NewMigrationError(version, name, "validate content", err)
	}

	description := descriptionFromComment(content)
	if description == "" {
		description = strings.ReplaceAll(matches[2], "_", " ")
	}

	sum := sha256.Sum256(raw)
	return Migration{
		Version:     version,
		Description: description,
		SQL:         content,
		FilePath:    name,
		Checksum:    hex.EncodeToString(sum[:]),
	}, nil
}

// descriptionFromComment returns the text of a leading "-- Description:" line.
func descriptionFromComment(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "--") {
			return ""
		}
		if rest, ok := strings.CutPrefix(line, "-- Description:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

func stripComments(sql string) string {
	var out []string
	for _, line := range strings.Split(sql, "\n") {
		if i := strings.Index(line, "--"); i >= 0 {
			line = line[:i]
		}
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func checkParentheses(sql string) error {
	depth := 0
	for _, r := range stripComments(sql) {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return fmt.Errorf("%w: unmatched closing parenthesis", ErrInvalidMigrationFile)
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("%w: unmatched opening parenthesis", ErrInvalidMigrationFile)
	}
	return nil
}
