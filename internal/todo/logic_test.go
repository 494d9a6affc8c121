package todo_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/todo-crud/internal/crud"
	"github.com/example/todo-crud/internal/persistence"
	"github.com/example/todo-crud/internal/persistence/sqlite"
	"github.com/example/todo-crud/internal/todo"
)

type fixture struct {
	lists      *todo.ListLogic
	items      *crud.Logic[todo.Item]
	alice, bob crud.Identity
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	pool, err := sqlite.Open(ctx, sqlite.MemoryConfig(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	_, err = sqlite.Migrate(ctx, pool, "", logger)
	require.NoError(t, err)

	users := sqlite.NewUserRepository(pool)
	ids := make([]crud.Identity, 0, 2)
	for _, email := range []string{"alice@example.com", "bob@example.com"} {
		u, err := users.CreateUser(ctx, persistence.User{Email: email, PasswordHash: "hash"})
		require.NoError(t, err)
		ids = append(ids, crud.Identity(strconv.FormatInt(u.ID, 10)))
	}

	listTable := sqlite.NewListTable(pool)
	itemTable := sqlite.NewItemTable(pool)
	return fixture{
		lists: todo.NewListLogic(listTable, itemTable, pool, logger),
		items: todo.NewItemLogic(itemTable, listTable, logger),
		alice: ids[0],
		bob:   ids[1],
	}
}

func (f fixture) createList(t *testing.T, owner crud.Identity, name string) int64 {
	t.Helper()
	res, err := f.lists.Create(context.Background(), crud.CrudParam[todo.List]{
		Requester: owner,
		Entity:    &todo.List{Name: name},
	})
	require.NoError(t, err)
	require.True(t, res.Successful, res.String())
	return res.Result
}

func (f fixture) createItem(t *testing.T, owner crud.Identity, listID int64, text string) int64 {
	t.Helper()
	res, err := f.items.Create(context.Background(), crud.CrudParam[todo.Item]{
		Requester: owner,
		Entity:    &todo.Item{ListID: listID, Text: text},
	})
	require.NoError(t, err)
	require.True(t, res.Successful, res.String())
	return res.Result
}

func TestListLogic_CreateStampsOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	bobID, _ := crud.RequesterID(f.bob)
	res, err := f.lists.Create(ctx, crud.CrudParam[todo.List]{
		Requester: f.alice,
		Entity:    &todo.List{Name: "groceries", OwnerID: bobID, Items: []todo.Item{{Text: "ignored"}}},
	})
	require.NoError(t, err)
	require.True(t, res.Successful)

	got, err := f.lists.GetByID(ctx, crud.CrudParam[todo.List]{Requester: f.alice, EntityIDs: []int64{res.Result}})
	require.NoError(t, err)
	require.True(t, got.Successful)
	require.Len(t, got.Result, 1)
	aliceID, _ := crud.RequesterID(f.alice)
	assert.Equal(t, aliceID, got.Result[0].OwnerID)
	assert.Empty(t, got.Result[0].Items)
}

func TestListLogic_CreateRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.lists.Create(ctx, crud.CrudParam[todo.List]{Requester: crud.Identity("alice"), Entity: &todo.List{Name: "x"}})
	require.NoError(t, err)
	assert.False(t, res.Successful)
	assert.Equal(t, []string{crud.RequesterField}, crud.Errors(res.Errors).Fields())

	res, err = f.lists.Create(ctx, crud.CrudParam[todo.List]{Requester: f.alice, Entity: &todo.List{}})
	require.NoError(t, err)
	assert.False(t, res.Successful)
	assert.NotEmpty(t, res.Errors)

	_, err = f.lists.Create(ctx, crud.CrudParam[todo.List]{Requester: f.alice})
	var paramErr *crud.ParameterError
	assert.ErrorAs(t, err, &paramErr)
}

func TestListLogic_ReadsLoadItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	groceries := f.createList(t, f.alice, "groceries")
	chores := f.createList(t, f.alice, "chores")
	f.createList(t, f.bob, "bob's list")
	f.createItem(t, f.alice, groceries, "milk")
	f.createItem(t, f.alice, groceries, "eggs")
	f.createItem(t, f.alice, chores, "laundry")

	mine, err := f.lists.GetByOwnerID(ctx, crud.CrudParam[todo.List]{Requester: f.alice})
	require.NoError(t, err)
	require.True(t, mine.Successful)
	require.Len(t, mine.Result, 2)
	assert.Equal(t, "groceries", mine.Result[0].Name)
	require.Len(t, mine.Result[0].Items, 2)
	assert.Equal(t, "milk", mine.Result[0].Items[0].Text)
	require.Len(t, mine.Result[1].Items, 1)
	assert.Equal(t, "laundry", mine.Result[1].Items[0].Text)
}

func TestListLogic_OwnershipIsEnforced(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	aliceList := f.createList(t, f.alice, "alice")
	bobList := f.createList(t, f.bob, "bob")

	got, err := f.lists.GetByID(ctx, crud.CrudParam[todo.List]{Requester: f.alice, EntityIDs: []int64{aliceList, bobList}})
	require.NoError(t, err)
	assert.False(t, got.Successful)
	assert.Equal(t, []string{"entityIds"}, crud.Errors(got.Errors).Fields())

	upd, err := f.lists.Update(ctx, crud.CrudParam[todo.List]{Requester: f.alice, Entity: &todo.List{ID: bobList, Name: "stolen"}})
	require.NoError(t, err)
	assert.False(t, upd.Successful)
	assert.Equal(t, []string{"id"}, crud.Errors(upd.Errors).Fields())

	del, err := f.lists.Delete(ctx, crud.CrudParam[todo.List]{Requester: f.alice, EntityIDs: []int64{bobList}})
	require.NoError(t, err)
	assert.False(t, del.Successful)

	del, err = f.lists.Delete(ctx, crud.CrudParam[todo.List]{Requester: f.alice, EntityIDs: []int64{aliceList, aliceList}})
	require.NoError(t, err)
	assert.True(t, del.Successful)
	assert.True(t, del.Result)
}

func TestListLogic_PartialUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.createList(t, f.alice, "draft")

	res, err := f.lists.PartialUpdate(ctx, crud.CrudParam[todo.List]{
		Requester: f.alice,
		EntityIDs: []int64{id},
		Patch:     json.RawMessage(`[{"op":"replace","path":"/name","value":"final"}]`),
	})
	require.NoError(t, err)
	require.True(t, res.Successful, res.String())
	assert.True(t, res.Result)

	got, err := f.lists.GetByID(ctx, crud.CrudParam[todo.List]{Requester: f.alice, EntityIDs: []int64{id}})
	require.NoError(t, err)
	assert.Equal(t, "final", got.Result[0].Name)

	res, err = f.lists.PartialUpdate(ctx, crud.CrudParam[todo.List]{
		Requester: f.bob,
		EntityIDs: []int64{id},
		Patch:     json.RawMessage(`[{"op":"replace","path":"/name","value":"bob was here"}]`),
	})
	require.NoError(t, err)
	assert.False(t, res.Successful)
}

func TestItemLogic_ParentListOwnership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	aliceList := f.createList(t, f.alice, "alice")
	itemID := f.createItem(t, f.alice, aliceList, "water plants")

	res, err := f.items.Create(ctx, crud.CrudParam[todo.Item]{
		Requester: f.bob,
		Entity:    &todo.Item{ListID: aliceList, Text: "sneaky"},
	})
	require.NoError(t, err)
	assert.False(t, res.Successful)
	assert.Equal(t, []string{"listId"}, crud.Errors(res.Errors).Fields())

	got, err := f.items.GetByID(ctx, crud.CrudParam[todo.Item]{Requester: f.bob, EntityIDs: []int64{itemID}})
	require.NoError(t, err)
	assert.False(t, got.Successful)

	got, err = f.items.GetByID(ctx, crud.CrudParam[todo.Item]{Requester: f.alice, EntityIDs: []int64{itemID}})
	require.NoError(t, err)
	require.True(t, got.Successful)
	assert.Equal(t, "water plants", got.Result[0].Text)

	patched, err := f.items.PartialUpdate(ctx, crud.CrudParam[todo.Item]{
		Requester: f.alice,
		EntityIDs: []int64{itemID},
		Patch:     json.RawMessage(`[{"op":"replace","path":"/done","value":true}]`),
	})
	require.NoError(t, err)
	assert.True(t, patched.Successful, patched.String())

	del, err := f.items.Delete(ctx, crud.CrudParam[todo.Item]{Requester: f.bob, EntityIDs: []int64{itemID}})
	require.NoError(t, err)
	assert.False(t, del.Successful)

	_, err = f.items.GetByOwnerID(ctx, crud.CrudParam[todo.Item]{Requester: f.alice})
	assert.ErrorIs(t, err, crud.ErrVerbNotConfigured)
}

func TestItemLogic_CreateIgnoresPayloadID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	aliceList := f.createList(t, f.alice, "alice")
	bobList := f.createList(t, f.bob, "bob")
	aliceItem := f.createItem(t, f.alice, aliceList, "water plants")
	bobItem := f.createItem(t, f.bob, bobList, "feed cat")

	res, err := f.items.Create(ctx, crud.CrudParam[todo.Item]{
		Requester: f.bob,
		Entity:    &todo.Item{ID: bobItem, ListID: aliceList, Text: "planted by bob"},
	})
	require.NoError(t, err)
	assert.False(t, res.Successful)
	assert.Equal(t, []string{"listId"}, crud.Errors(res.Errors).Fields())

	lists, err := f.lists.GetByID(ctx, crud.CrudParam[todo.List]{Requester: f.alice, EntityIDs: []int64{aliceList}})
	require.NoError(t, err)
	require.True(t, lists.Successful, lists.String())
	require.Len(t, lists.Result[0].Items, 1)
	assert.Equal(t, aliceItem, lists.Result[0].Items[0].ID)

	res, err = f.items.Create(ctx, crud.CrudParam[todo.Item]{
		Requester: f.alice,
		Entity:    &todo.Item{ID: bobItem, ListID: aliceList, Text: "stray id"},
	})
	require.NoError(t, err)
	assert.True(t, res.Successful, res.String())
	assert.NotEqual(t, bobItem, res.Result)
}

func TestItemLogic_PartialUpdateHidesForeignItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	aliceList := f.createList(t, f.alice, "alice")
	itemID := f.createItem(t, f.alice, aliceList, "water plants")
	patch := json.RawMessage(`[{"op":"replace","path":"/text","value":"bob was here"}]`)

	foreign, err := f.items.PartialUpdate(ctx, crud.CrudParam[todo.Item]{Requester: f.bob, EntityIDs: []int64{itemID}, Patch: patch})
	require.NoError(t, err)
	missing, err := f.items.PartialUpdate(ctx, crud.CrudParam[todo.Item]{Requester: f.bob, EntityIDs: []int64{itemID + 100}, Patch: patch})
	require.NoError(t, err)

	assert.False(t, foreign.Successful)
	assert.Equal(t, []string{"listId"}, crud.Errors(foreign.Errors).Fields())
	assert.Equal(t, foreign.Errors, missing.Errors)
}

func TestItemRules(t *testing.T) {
	tests := []struct {
		name    string
		item    todo.Item
		wantErr bool
	}{
		{name: "valid", item: todo.Item{ListID: 1, Text: "buy milk"}},
		{name: "missing list", item: todo.Item{Text: "buy milk"}, wantErr: true},
		{name: "empty text", item: todo.Item{ListID: 1}, wantErr: true},
		{name: "text too long", item: todo.Item{ListID: 1, Text: string(make([]byte, 501))}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := todo.ItemRules(context.Background(), &tt.item)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
