package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/todo-crud/internal/persistence"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// newTestPool opens a migrated database in a temporary directory.
func newTestPool(t *testing.T) *ConnectionPool {
	t.Helper()
	ctx := context.Background()

	pool, err := Open(ctx, DefaultConfig(filepath.Join(t.TempDir(), "todo.db")), testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	_, err = Migrate(ctx, pool, "", testLogger)
	require.NoError(t, err)
	return pool
}

func createTestUser(t *testing.T, pool *ConnectionPool, email string) persistence.User {
	t.Helper()
	user, err := NewUserRepository(pool).CreateUser(context.Background(), persistence.User{
		Email:        email,
		DisplayName:  email,
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	return user
}
