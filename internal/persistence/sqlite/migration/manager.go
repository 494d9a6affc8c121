package migration

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
)

// Manager orchestrates scanning, validation and execution of migrations.
type Manager struct {
	scanner         FileScanner
	executor        Executor
	logger          *slog.Logger
	verifyChecksums bool
}

// ManagerOption customises a Manager.
type ManagerOption func(*Manager)

// WithChecksumVerification makes the manager refuse to run when an applied
// migration file changed after it was applied.
func WithChecksumVerification(enabled bool) ManagerOption {
	return func(m *Manager) {
		m.verifyChecksums = enabled
	}
}

// NewManager creates a Manager. A nil logger falls back to slog.Default.
func NewManager(scanner FileScanner, executor Executor, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		scanner:         scanner,
		executor:        executor,
		logger:          logger.With("component", "migration"),
		verifyChecksums: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RunMigrations applies every pending migration in version order and returns
// the ones it applied. It stops at the first failure.
func (m *Manager) RunMigrations(ctx context.Context) (applied []Migration, err error) {
	status, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "migration status",
		"current_version", status.CurrentVersion,
		"pending", len(status.Pending),
	)

	for i, migration := range status.Pending {
		logger := m.logger.With(
			"version", migration.Version,
			"description", migration.Description,
			"file", migration.FilePath,
		)
		logger.InfoContext(ctx, "applying migration", "position", i+1, "total", len(status.Pending))

		elapsed, err := m.executor.ExecuteMigration(ctx, migration)
		if err != nil {
			logger.ErrorContext(ctx, "migration failed", "error", err)
			return applied, NewMigrationError(migration.Version, migration.FilePath, "execute migration",
				fmt.Errorf("%w: %w", ErrMigrationFailed, err))
		}

		logger.InfoContext(ctx, "migration applied", "duration_ms", elapsed.Milliseconds())
		applied = append(applied, migration)
	}

	if len(applied) > 0 {
		m.logger.InfoContext(ctx, "migrations completed",
			"applied", len(applied),
			"current_version", applied[len(applied)-1].Version,
		)
	}
	return applied, nil
}

// Status reports the applied and pending migrations after validating that the
// files and the version table agree.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return Status{}, fmt.Errorf("initialize version table: %w", err)
	}

	available, err := m.scanner.ScanMigrations()
	if err != nil {
		return Status{}, fmt.Errorf("scan migrations: %w", err)
	}

	applied, err := m.executor.GetAppliedVersions(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("get applied versions: %w", err)
	}

	if err := m.validate(available, applied); err != nil {
		return Status{}, err
	}

	done := make(map[string]bool, len(applied))
	for _, a := range applied {
		done[a.Version] = true
	}

	status := Status{Applied: applied}
	if len(applied) > 0 {
		status.CurrentVersion = applied[len(applied)-1].Version
	}
	for _, migration := range available {
		if !done[migration.Version] {
			status.Pending = append(status.Pending, migration)
		}
	}
	return status, nil
}

// validate rejects gaps between the lowest and highest file version, applied
// versions without a file and, when enabled, edited files.
func (m *Manager) validate(available []Migration, applied []AppliedMigration) error {
	byVersion := make(map[int]Migration, len(available))
	for i, migration := range available {
		v, err := strconv.Atoi(migration.Version)
		if err != nil {
			return NewMigrationError(migration.Version, migration.FilePath, "validate sequence",
				fmt.Errorf("%w: version %q is not numeric", ErrInvalidMigrationFile, migration.Version))
		}
		if i > 0 {
			prev, _ := strconv.Atoi(available[i-1].Version)
			if v != prev+1 {
				return fmt.Errorf("%w: missing migration version %03d", ErrVersionConflict, prev+1)
			}
		}
		byVersion[v] = migration
	}

	for _, a := range applied {
		v, err := strconv.Atoi(a.Version)
		if err != nil {
			return fmt.Errorf("%w: applied version %q is not numeric", ErrVersionConflict, a.Version)
		}
		file, ok := byVersion[v]
		if !ok {
			return fmt.Errorf("%w: applied migration %s has no file", ErrVersionConflict, a.Version)
		}
		if m.verifyChecksums && a.Checksum != "" && a.Checksum != file.Checksum {
			return NewMigrationError(a.Version, file.FilePath, "verify checksum", ErrChecksumMismatch)
		}
	}
	return nil
}
