package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/todo-crud/internal/application"
	httptransport "github.com/example/todo-crud/internal/http"
	"github.com/example/todo-crud/internal/persistence/sqlite"
	"github.com/example/todo-crud/internal/todo"
)

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long:  `Apply pending migrations and serve the API until interrupted.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pool, err := a.openStore(ctx, true)
			if err != nil {
				return err
			}
			defer a.closeStore(pool)

			listener, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.HTTPPort))
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			return a.serve(ctx, listener, a.buildHandler(pool))
		},
	}
}

// buildHandler wires repositories, services and handlers into the router.
func (a *app) buildHandler(pool *sqlite.ConnectionPool) http.Handler {
	logger := a.logger
	users := newUserStoreAdapter(sqlite.NewUserRepository(pool))
	sessions := newSessionRepositoryAdapter(sqlite.NewSessionRepository(pool))

	params := a.hashParams
	authService := application.NewAuthService(users, sessions, application.AuthOptions{
		SessionTTL: a.cfg.SessionTTL,
		HashParams: &params,
	}, logger)
	userService := application.NewUserService(users, a.hashParams, time.Now, logger)

	lists := sqlite.NewListTable(pool)
	items := sqlite.NewItemTable(pool)

	return httptransport.NewRouter(httptransport.RouterConfig{
		Auth:  httptransport.NewAuthHandler(authService, logger),
		Users: httptransport.NewUserHandler(userService, logger),
		Resources: map[string]httptransport.ResourceHandler{
			"lists": httptransport.NewCrudHandler[todo.List]("lists", todo.NewListLogic(lists, items, pool, logger), logger),
			"items": httptransport.NewCrudHandler[todo.Item]("items", todo.NewItemLogic(items, lists, logger), logger),
		},
		Protect:    httptransport.RequireSession(authService, logger),
		Middleware: []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})
}

// serve runs the server on listener until ctx is cancelled, then drains
// in-flight requests for up to the configured shutdown timeout.
func (a *app) serve(ctx context.Context, listener net.Listener, handler http.Handler) error {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("todo API listening", "addr", listener.Addr().String())
		errCh <- server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down", "timeout", a.cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
