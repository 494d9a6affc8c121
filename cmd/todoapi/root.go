package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/example/todo-crud/internal/application"
	"github.com/example/todo-crud/internal/config"
	"github.com/example/todo-crud/internal/logging"
	"github.com/example/todo-crud/internal/persistence/sqlite"
)

// app holds what every subcommand shares once the configuration is loaded.
type app struct {
	configFile string
	cfg        config.Config
	logger     *slog.Logger
	hashParams application.Argon2idParams
}

func newRootCommand() *cobra.Command {
	a := &app{hashParams: application.DefaultArgon2idParams}

	root := &cobra.Command{
		Use:   "todoapi",
		Short: "todoapi serves to-do lists over HTTP",
		Long: `todoapi exposes to-do lists and items through a generic CRUD API backed
by SQLite. Settings come from todoapi.yaml, --config and TODOAPI_ variables.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default: ./todoapi.yaml)")

	root.AddCommand(newServeCommand(a))
	root.AddCommand(newMigrateCommand(a))
	root.AddCommand(newUserCommand(a))
	return root
}

func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger.With("app", "todoapi")
	return nil
}

// openStore opens the configured database and, when migrate is set, applies
// pending migrations before returning.
func (a *app) openStore(ctx context.Context, migrate bool) (*sqlite.ConnectionPool, error) {
	sqliteCfg := sqlite.DefaultConfig(a.cfg.SQLiteDSN)
	if a.cfg.SQLiteDSN == sqlite.MemoryDSN {
		sqliteCfg = sqlite.MemoryConfig()
	}

	pool, err := sqlite.Open(ctx, sqliteCfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if !migrate {
		return pool, nil
	}
	if _, err := sqlite.Migrate(ctx, pool, a.cfg.MigrationDir, a.logger); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return pool, nil
}

func (a *app) closeStore(pool *sqlite.ConnectionPool) {
	if err := pool.Close(); err != nil {
		a.logger.Error("failed to close storage", "error", err)
	}
}
