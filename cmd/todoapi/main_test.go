package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/todo-crud/internal/application"
	"github.com/example/todo-crud/internal/config"
	"github.com/example/todo-crud/internal/persistence"
	"github.com/example/todo-crud/internal/persistence/sqlite"
)

var fastHash = application.Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func writeConfig(t *testing.T, values map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	var b strings.Builder
	for k, v := range values {
		fmt.Fprintf(&b, "%s: %q\n", k, v)
	}
	if _, ok := values["sqlite_dsn"]; !ok {
		fmt.Fprintf(&b, "sqlite_dsn: %q\n", filepath.Join(dir, "todo.db"))
	}
	path := filepath.Join(dir, "todoapi.yaml")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrateCommand(t *testing.T) {
	path := writeConfig(t, nil)

	out, err := execute(t, "--config", path, "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "current version: none")
	assert.Contains(t, out, "pending")

	out, err = execute(t, "--config", path, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "applied 4 migration(s)")
	assert.Contains(t, out, "current version: 004")

	out, err = execute(t, "--config", path, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "applied 0 migration(s)")
}

func TestUserAddCommand(t *testing.T) {
	path := writeConfig(t, nil)

	out, err := execute(t, "--config", path, "user", "add",
		"--email", "Root@Example.com", "--name", "Root", "--password", "correct horse", "--admin")
	require.NoError(t, err)
	assert.Contains(t, out, "<root@example.com> admin=true")

	_, err = execute(t, "--config", path, "user", "add",
		"--email", "root@example.com", "--name", "Again", "--password", "correct horse")
	assert.ErrorIs(t, err, application.ErrAlreadyExists)

	_, err = execute(t, "--config", path, "user", "add", "--email", "x@example.com", "--name", "X", "--password", "short")
	var vErr *application.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestRootCommand_InvalidConfig(t *testing.T) {
	path := writeConfig(t, map[string]string{"log_level": "loud"})

	_, err := execute(t, "--config", path, "migrate", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
}

func newTestApp(t *testing.T) (*app, *sqlite.ConnectionPool) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := &app{
		cfg: config.Config{
			SQLiteDSN:       sqlite.MemoryDSN,
			SessionTTL:      time.Hour,
			ShutdownTimeout: time.Second,
		},
		logger:     logger,
		hashParams: fastHash,
	}
	pool, err := a.openStore(context.Background(), true)
	require.NoError(t, err)
	t.Cleanup(func() { a.closeStore(pool) })
	return a, pool
}

type client struct {
	t       *testing.T
	handler http.Handler
	token   string
}

func (c *client) call(method, target, contentType, body string) *httptest.ResponseRecorder {
	c.t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

func TestBuildHandler_EndToEnd(t *testing.T) {
	a, pool := newTestApp(t)
	c := &client{t: t, handler: a.buildHandler(pool)}

	rec := c.call(http.MethodPost, "/users", "application/json",
		`{"email":"ann@example.com","display_name":"Ann","password":"long password"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = c.call(http.MethodGet, "/lists/mine", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = c.call(http.MethodPost, "/sessions", "application/json", `{"email":"ann@example.com","password":"long password"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	c.token = rec.Header().Get("X-Session-Token")
	require.NotEmpty(t, c.token)

	rec = c.call(http.MethodGet, "/auth/whoami", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ann@example.com")

	rec = c.call(http.MethodPost, "/lists", "application/json", `{"name":"chores"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Result int64 `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = c.call(http.MethodPost, "/items", "application/json", fmt.Sprintf(`{"listId":%d,"text":"dishes"}`, created.Result))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = c.call(http.MethodGet, "/lists/mine", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dishes")

	rec = c.call(http.MethodGet, "/users", "", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = c.call(http.MethodDelete, "/sessions/current", "", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = c.call(http.MethodGet, "/lists/mine", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServe_GracefulShutdown(t *testing.T) {
	a, _ := newTestApp(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- a.serve(ctx, listener, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
	}()

	resp, err := http.Get("http://" + listener.Addr().String() + "/")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestMapStoreError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, mapStoreError(nil))
	assert.ErrorIs(t, mapStoreError(persistence.ErrNotFound), application.ErrNotFound)
	assert.ErrorIs(t, mapStoreError(persistence.ErrNotFound), persistence.ErrNotFound)
	assert.ErrorIs(t, mapStoreError(fmt.Errorf("wrap: %w", persistence.ErrDuplicate)), application.ErrAlreadyExists)

	other := errors.New("boom")
	assert.Same(t, other, mapStoreError(other))
}

func TestUserStoreAdapter_UpdatePasswordHash(t *testing.T) {
	_, pool := newTestApp(t)
	ctx := context.Background()
	repo := sqlite.NewUserRepository(pool)
	adapter := newUserStoreAdapter(repo)

	user, err := adapter.CreateUser(ctx, application.User{Email: "u@example.com", DisplayName: "U"}, "old")
	require.NoError(t, err)
	require.NoError(t, adapter.UpdatePasswordHash(ctx, user.ID, "new"))

	creds, err := adapter.GetUserCredentialsByEmail(ctx, "u@example.com")
	require.NoError(t, err)
	assert.Equal(t, "new", creds.PasswordHash)

	assert.ErrorIs(t, adapter.UpdatePasswordHash(ctx, 999, "x"), application.ErrNotFound)
}
