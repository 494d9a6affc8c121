package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/todo-crud/internal/persistence"
	"github.com/example/todo-crud/internal/todo"
)

func TestUserRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestPool(t))

	created, err := repo.CreateUser(ctx, persistence.User{
		Email:        "  Alice@Example.com ",
		DisplayName:  "Alice",
		PasswordHash: "hash",
		IsAdmin:      true,
	})
	require.NoError(t, err)
	assert.Positive(t, created.ID)
	assert.Equal(t, "alice@example.com", created.Email)
	assert.False(t, created.CreatedAt.IsZero())

	byID, err := repo.GetUser(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, byID)

	byEmail, err := repo.GetUserByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
	assert.True(t, byEmail.IsAdmin)
}

func TestUserRepository_Errors(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestPool(t))

	_, err := repo.CreateUser(ctx, persistence.User{Email: "a@example.com"})
	assert.ErrorIs(t, err, persistence.ErrConstraintViolation)

	_, err = repo.CreateUser(ctx, persistence.User{Email: "a@example.com", PasswordHash: "x"})
	require.NoError(t, err)
	_, err = repo.CreateUser(ctx, persistence.User{Email: "A@example.com", PasswordHash: "y"})
	assert.ErrorIs(t, err, persistence.ErrDuplicate)

	_, err = repo.GetUser(ctx, 999)
	assert.ErrorIs(t, err, persistence.ErrNotFound)
	_, err = repo.GetUserByEmail(ctx, "")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteUser(ctx, 999), persistence.ErrNotFound)
	assert.ErrorIs(t, repo.UpdateUser(ctx, persistence.User{ID: 999, PasswordHash: "x"}), persistence.ErrNotFound)
}

func TestUserRepository_UpdateAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestPool(t))

	first, err := repo.CreateUser(ctx, persistence.User{Email: "first@example.com", PasswordHash: "x"})
	require.NoError(t, err)
	_, err = repo.CreateUser(ctx, persistence.User{Email: "second@example.com", PasswordHash: "x"})
	require.NoError(t, err)

	first.DisplayName = "First"
	require.NoError(t, repo.UpdateUser(ctx, first))

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "First", users[0].DisplayName)
	assert.Equal(t, "second@example.com", users[1].Email)
}

func TestUserRepository_DeleteCascadesToLists(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	repo := NewUserRepository(pool)
	alice := createTestUser(t, pool, "alice@example.com")

	lists := NewListTable(pool)
	listID, err := lists.Insert(ctx, todo.List{OwnerID: alice.ID, Name: "groceries"})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteUser(ctx, alice.ID))

	_, err = lists.FindByID(ctx, listID)
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}
