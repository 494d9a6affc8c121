package sqlite

import "github.com/example/todo-crud/internal/todo"

// NewListTable returns the store for to-do lists.
func NewListTable(pool *ConnectionPool) *Table[todo.List] {
	return NewTable[todo.List](pool, TableSpec{
		Name:        "todo_lists",
		Columns:     []string{"id", "owner_id", "name"},
		OwnerColumn: "owner_id",
	})
}

// NewItemTable returns the store for to-do items. It also serves as the
// todo.ItemFinder used to eager-load list items.
func NewItemTable(pool *ConnectionPool) *Table[todo.Item] {
	return NewTable[todo.Item](pool, TableSpec{
		Name:      "todo_items",
		Columns:   []string{"id", "list_id", "text", "done"},
		Immutable: []string{"list_id"},
	})
}
