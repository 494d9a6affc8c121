package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/todo-crud/internal/application"
	"github.com/example/todo-crud/internal/persistence"
	"github.com/example/todo-crud/internal/persistence/sqlite"
	"github.com/example/todo-crud/internal/todo"
)

// tokenIsUserID treats the bearer token as the user id.
type tokenIsUserID struct{}

func (tokenIsUserID) ValidateSession(_ context.Context, token string) (application.Principal, error) {
	id, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return application.Principal{}, application.ErrUnauthorized
	}
	return application.Principal{UserID: id}, nil
}

type todoServer struct {
	handler    http.Handler
	alice, bob int64
}

func newTodoServer(t *testing.T) todoServer {
	t.Helper()
	ctx := context.Background()
	logger := discardLogger()

	pool, err := sqlite.Open(ctx, sqlite.MemoryConfig(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	_, err = sqlite.Migrate(ctx, pool, "", logger)
	require.NoError(t, err)

	users := sqlite.NewUserRepository(pool)
	alice, err := users.CreateUser(ctx, persistence.User{Email: "alice@example.com", PasswordHash: "h"})
	require.NoError(t, err)
	bob, err := users.CreateUser(ctx, persistence.User{Email: "bob@example.com", PasswordHash: "h"})
	require.NoError(t, err)

	lists := sqlite.NewListTable(pool)
	items := sqlite.NewItemTable(pool)
	router := NewRouter(RouterConfig{
		Auth: NewAuthHandler(&authServiceStub{err: application.ErrInvalidCredentials}, logger),
		Resources: map[string]ResourceHandler{
			"lists": NewCrudHandler[todo.List]("lists", todo.NewListLogic(lists, items, pool, logger), logger),
			"items": NewCrudHandler[todo.Item]("items", todo.NewItemLogic(items, lists, logger), logger),
		},
		Protect:    RequireSession(tokenIsUserID{}, logger),
		Middleware: []func(http.Handler) http.Handler{RequestLogger(logger)},
	})
	return todoServer{handler: router, alice: alice.ID, bob: bob.ID}
}

func (s todoServer) do(t *testing.T, user int64, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if user != 0 {
		req.Header.Set("Authorization", "Bearer "+strconv.FormatInt(user, 10))
	}
	if method == http.MethodPatch {
		req.Header.Set("Content-Type", "application/json-patch+json")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func resultOf[R any](t *testing.T, rec *httptest.ResponseRecorder) R {
	t.Helper()
	var out R
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Result, &out), rec.Body.String())
	return out
}

func TestRouter_TodoLifecycle(t *testing.T) {
	t.Parallel()
	s := newTodoServer(t)

	rec := s.do(t, s.alice, http.MethodPost, "/lists", `{"name":"groceries","ownerId":999}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	listID := resultOf[int64](t, rec)
	target := "/lists?ids=" + strconv.FormatInt(listID, 10)

	rec = s.do(t, s.alice, http.MethodPost, "/items", `{"listId":`+strconv.FormatInt(listID, 10)+`,"text":"milk"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, s.alice, http.MethodGet, target, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	lists := resultOf[[]todo.List](t, rec)
	require.Len(t, lists, 1)
	assert.Equal(t, s.alice, lists[0].OwnerID)
	require.Len(t, lists[0].Items, 1)
	assert.Equal(t, "milk", lists[0].Items[0].Text)

	rec = s.do(t, s.alice, http.MethodPatch, "/lists?id="+strconv.FormatInt(listID, 10), `[{"op":"replace","path":"/name","value":"food"}]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, s.alice, http.MethodGet, "/lists/mine", "")
	require.Equal(t, http.StatusOK, rec.Code)
	mine := resultOf[[]todo.List](t, rec)
	require.Len(t, mine, 1)
	assert.Equal(t, "food", mine[0].Name)

	rec = s.do(t, s.alice, http.MethodDelete, "/lists?id="+strconv.FormatInt(listID, 10), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resultOf[bool](t, rec))
}

func TestRouter_EnforcesOwnershipAndSessions(t *testing.T) {
	t.Parallel()
	s := newTodoServer(t)

	rec := s.do(t, s.alice, http.MethodPost, "/lists", `{"name":"private"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := strconv.FormatInt(resultOf[int64](t, rec), 10)

	rec = s.do(t, s.bob, http.MethodGet, "/lists?ids="+id, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Successful)
	assert.NotEmpty(t, env.Errors)

	rec = s.do(t, s.bob, http.MethodPost, "/items", `{"listId":`+id+`,"text":"sneaky"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "listId", decodeEnvelope(t, rec).Errors[0].Field)

	rec = s.do(t, s.alice, http.MethodPost, "/lists", `{"name":""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, s.alice, http.MethodGet, "/lists", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, s.alice, http.MethodGet, "/items/mine", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = s.do(t, 0, http.MethodGet, "/lists?ids="+id, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_LoginIsNotProtected(t *testing.T) {
	t.Parallel()
	s := newTodoServer(t)

	rec := s.do(t, 0, http.MethodPost, "/sessions", `{"email":"alice@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "AUTH_INVALID_CREDENTIALS")

	rec = s.do(t, 0, http.MethodGet, "/sessions", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}
