package sqlite

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MemoryDSN selects a private in-memory database.
const MemoryDSN = ":memory:"

// Config holds SQLite connection settings. Pragmas are passed through the DSN
// so that every pooled connection gets them, not only the first one.
type Config struct {
	// DSN is the database file path, or MemoryDSN.
	DSN string

	// BusyTimeout sets how long a connection waits on a locked database.
	BusyTimeout time.Duration

	// ForeignKeys enables foreign key enforcement.
	ForeignKeys bool

	// JournalMode is one of DELETE, TRUNCATE, PERSIST, MEMORY, WAL or OFF.
	JournalMode string

	// Synchronous is one of OFF, NORMAL, FULL or EXTRA.
	Synchronous string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns file-backed settings tuned for a small API server.
func DefaultConfig(path string) Config {
	return Config{
		DSN:             path,
		BusyTimeout:     5 * time.Second,
		ForeignKeys:     true,
		JournalMode:     "WAL",
		Synchronous:     "NORMAL",
		MaxOpenConns:    8,
		MaxIdleConns:    4,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// MemoryConfig returns settings for a throwaway in-memory database. The pool is
// pinned to a single connection because each SQLite memory connection is its
// own database.
func MemoryConfig() Config {
	return Config{
		DSN:             MemoryDSN,
		BusyTimeout:     time.Second,
		ForeignKeys:     true,
		JournalMode:     "MEMORY",
		Synchronous:     "OFF",
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: 0,
	}
}

var (
	validJournalModes = map[string]bool{"DELETE": true, "TRUNCATE": true, "PERSIST": true, "MEMORY": true, "WAL": true, "OFF": true}
	validSyncModes    = map[string]bool{"OFF": true, "NORMAL": true, "FULL": true, "EXTRA": true}
)

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DSN) == "" {
		return fmt.Errorf("sqlite: DSN cannot be empty")
	}
	if c.BusyTimeout < 0 {
		return fmt.Errorf("sqlite: busy timeout cannot be negative")
	}
	if c.JournalMode != "" && !validJournalModes[strings.ToUpper(c.JournalMode)] {
		return fmt.Errorf("sqlite: invalid journal mode %q", c.JournalMode)
	}
	if c.Synchronous != "" && !validSyncModes[strings.ToUpper(c.Synchronous)] {
		return fmt.Errorf("sqlite: invalid synchronous mode %q", c.Synchronous)
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 || c.ConnMaxLifetime < 0 {
		return fmt.Errorf("sqlite: pool limits cannot be negative")
	}
	return nil
}

// connectionString renders the modernc.org/sqlite DSN with _pragma parameters.
func (c Config) connectionString() string {
	query := url.Values{}
	query.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout.Milliseconds()))
	if c.ForeignKeys {
		query.Add("_pragma", "foreign_keys(1)")
	}
	if c.JournalMode != "" {
		query.Add("_pragma", fmt.Sprintf("journal_mode(%s)", strings.ToUpper(c.JournalMode)))
	}
	if c.Synchronous != "" {
		query.Add("_pragma", fmt.Sprintf("synchronous(%s)", strings.ToUpper(c.Synchronous)))
	}

	base := "file:" + c.DSN
	if c.DSN == MemoryDSN {
		base = "file::memory:"
	}
	return base + "?" + query.Encode()
}

// ensureDirectory creates the parent directory of a file-backed database.
func (c Config) ensureDirectory() error {
	if c.DSN == MemoryDSN {
		return nil
	}
	dir := filepath.Dir(c.DSN)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("sqlite: create database directory %s: %w", dir, err)
	}
	return nil
}
