package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/todo-crud/internal/persistence"
	"github.com/example/todo-crud/internal/persistence/sqlite"
	"github.com/example/todo-crud/internal/todo"
)

// SQLiteHarness provides repository access backed by a temporary, migrated
// SQLite database for integration-style tests.
type SQLiteHarness struct {
	Pool     *sqlite.ConnectionPool
	Users    *sqlite.UserRepository
	Sessions *sqlite.SessionRepository
	Lists    *sqlite.Table[todo.List]
	Items    *sqlite.Table[todo.Item]
	Logger   *slog.Logger

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may invoke Close, but the helper also
// registers a cleanup callback with tb.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(tb.TempDir(), "todo.db")

	pool, err := sqlite.Open(ctx, sqlite.DefaultConfig(path), logger)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	if _, err := sqlite.Migrate(ctx, pool, "", logger); err != nil {
		_ = pool.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Pool:     pool,
		Users:    sqlite.NewUserRepository(pool),
		Sessions: sqlite.NewSessionRepository(pool),
		Lists:    sqlite.NewListTable(pool),
		Items:    sqlite.NewItemTable(pool),
		Logger:   logger,
		cleanup: func() {
			_ = pool.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// CreateUser stores a user fixture and returns it with its assigned id.
func (h *SQLiteHarness) CreateUser(tb testing.TB, opts ...UserOption) UserFixture {
	tb.Helper()
	fixture := NewUserFixture(opts...)
	stored, err := h.Users.CreateUser(context.Background(), fixture.Persistence())
	if err != nil {
		tb.Fatalf("failed to create user: %v", err)
	}
	fixture.User = stored
	return fixture
}

// CreateList stores a list owned by ownerID together with items holding texts.
func (h *SQLiteHarness) CreateList(tb testing.TB, ownerID int64, texts ...string) todo.List {
	tb.Helper()
	ctx := context.Background()

	list := NewList(ownerID)
	id, err := h.Lists.Insert(ctx, list)
	if err != nil {
		tb.Fatalf("failed to create list: %v", err)
	}
	list.ID = id
	for _, item := range NewItems(id, texts...) {
		if item.ID, err = h.Items.Insert(ctx, item); err != nil {
			tb.Fatalf("failed to create item: %v", err)
		}
		list.Items = append(list.Items, item)
	}
	return list
}

// StoreSession persists a session fixture.
func (h *SQLiteHarness) StoreSession(tb testing.TB, fixture SessionFixture) persistence.Session {
	tb.Helper()
	stored, err := h.Sessions.CreateSession(context.Background(), fixture.Persistence())
	if err != nil {
		tb.Fatalf("failed to create session: %v", err)
	}
	return stored
}
