package sqlite

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/example/todo-crud/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Migrations returns the schema files compiled into the binary.
func Migrations() fs.FS {
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Migrate applies pending migrations to the pool's database. When dir is
// empty the embedded schema is used.
func Migrate(ctx context.Context, pool *ConnectionPool, dir string, logger *slog.Logger) ([]migration.Migration, error) {
	files := Migrations()
	if dir != "" {
		files = os.DirFS(dir)
	}
	manager := migration.NewManager(migration.NewFileScanner(files), migration.NewSQLiteExecutor(pool.DB()), logger)
	applied, err := manager.RunMigrations(ctx)
	if err != nil {
		return applied, fmt.Errorf("migrate: %w", err)
	}
	return applied, nil
}

// MigrationStatus reports applied and pending migrations without running any.
func MigrationStatus(ctx context.Context, pool *ConnectionPool, dir string, logger *slog.Logger) (migration.Status, error) {
	files := Migrations()
	if dir != "" {
		files = os.DirFS(dir)
	}
	manager := migration.NewManager(migration.NewFileScanner(files), migration.NewSQLiteExecutor(pool.DB()), logger)
	return manager.Status(ctx)
}
