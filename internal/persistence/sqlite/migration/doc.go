// Package migration applies versioned SQL files to a SQLite database.
//
// Migration files are named {version}_{description}.sql (for example
// "001_create_users.sql") and are read from an fs.FS, so they can live on disk
// or be embedded in the binary. Applied versions are tracked in the
// schema_migrations table together with the file checksum.
//
//	manager := migration.NewManager(migration.NewFileScanner(files), migration.NewSQLiteExecutor(db), logger)
//	applied, err := manager.RunMigrations(ctx)
package migration
