package migration

import (
	"context"
	"time"
)

// Migration is one SQL file with its metadata.
type Migration struct {
	Version     string
	Description string
	SQL         string
	FilePath    string
	Checksum    string
}

// AppliedMigration is a row of the schema_migrations table.
type AppliedMigration struct {
	Version       string
	AppliedAt     time.Time
	ExecutionTime time.Duration
	Checksum      string
}

// Status summarises the migration state of a database.
type Status struct {
	CurrentVersion string
	Applied        []AppliedMigration
	Pending        []Migration
}

// FileScanner discovers migration files.
type FileScanner interface {
	// ScanMigrations returns every migration ordered by version.
	ScanMigrations() ([]Migration, error)
}

// Executor applies migrations to a database.
type Executor interface {
	// InitializeVersionTable creates schema_migrations if it does not exist.
	InitializeVersionTable(ctx context.Context) error
	// ExecuteMigration runs the statements of migration and records it in one
	// transaction.
	ExecuteMigration(ctx context.Context, migration Migration) (time.Duration, error)
	// GetAppliedVersions returns the recorded migrations ordered by version.
	GetAppliedVersions(ctx context.Context) ([]AppliedMigration, error)
}
