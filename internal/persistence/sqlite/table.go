package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/VauntDev/tqla"
	"github.com/blockloop/scan/v2"

	"github.com/example/todo-crud/internal/crud"
	"github.com/example/todo-crud/internal/persistence"
)

var tq = mustCompiler(tqla.New())

// mustCompiler panics when the template compiler cannot be built, which only
// happens with invalid options.
func mustCompiler[C any](c C, err error) C {
	if err != nil {
		panic(fmt.Sprintf("sqlite: init tqla: %v", err))
	}
	return c
}

// TableSpec describes how an entity maps onto one table. Column names must match
// the `db` tags of the entity type.
type TableSpec struct {
	Name string
	// Columns lists every column read back into the entity. The id column is
	// assigned by SQLite and never written.
	Columns []string
	// OwnerColumn is the column compared by owner predicates. Empty when the
	// table is not owner scoped. It is written on insert only.
	OwnerColumn string
	// Immutable lists further columns written on insert only.
	Immutable []string
}

// Table is a crud.Store backed by one SQLite table. Predicates are rendered
// with tqla templates and rows are scanned with blockloop/scan.
type Table[T crud.Entity] struct {
	spec     TableSpec
	helper   *QueryHelper
	retry    *RetryHelper
	mapper   *ErrorMapper
	insert   []string
	update   []string
	where    string
	selectFn string
}

// NewTable binds spec to pool.
func NewTable[T crud.Entity](pool *ConnectionPool, spec TableSpec) *Table[T] {
	t := &Table[T]{
		spec:   spec,
		helper: NewQueryHelper(pool),
		retry:  NewRetryHelper(DefaultRetryConfig()),
		mapper: NewErrorMapper(),
	}
	for _, col := range spec.Columns {
		if col == "id" {
			continue
		}
		t.insert = append(t.insert, col)
		if col != spec.OwnerColumn && !slices.Contains(spec.Immutable, col) {
			t.update = append(t.update, col)
		}
	}

	where := "WHERE 1 = 1{{ if .IDs }} AND id IN ({{ range $i, $id := .IDs }}{{ if $i }}, {{ end }}{{ $id }}{{ end }}){{ end }}"
	if spec.OwnerColumn != "" {
		where += fmt.Sprintf("{{ if .Owned }} AND %s = {{ .OwnerID }}{{ end }}", spec.OwnerColumn)
	}
	t.where = where
	t.selectFn = fmt.Sprintf("SELECT %s FROM %s", strings.Join(spec.Columns, ", "), spec.Name)
	return t
}

// Name returns the table name.
func (t *Table[T]) Name() string {
	return t.spec.Name
}

type predicateArgs struct {
	IDs     []int64
	Owned   bool
	OwnerID int64
}

func (t *Table[T]) compile(prefix string, pred crud.Predicate, suffix string) (string, []any, error) {
	args := predicateArgs{IDs: pred.IDs}
	if pred.OwnerID != nil {
		if t.spec.OwnerColumn == "" {
			return "", nil, fmt.Errorf("sqlite: table %s has no owner column", t.spec.Name)
		}
		args.Owned = true
		args.OwnerID = *pred.OwnerID
	}
	query, values, err := tq.Compile(prefix+" "+t.where+suffix, args)
	if err != nil {
		return "", nil, fmt.Errorf("sqlite: compile %s query: %w", t.spec.Name, err)
	}
	return query, values, nil
}

// Insert writes entity and returns the id SQLite assigned.
func (t *Table[T]) Insert(ctx context.Context, entity T) (int64, error) {
	values, err := scan.Values(t.insert, &entity)
	if err != nil {
		return 0, fmt.Errorf("sqlite: extract %s values: %w", t.spec.Name, err)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.spec.Name, strings.Join(t.insert, ", "), placeholders(len(t.insert)))

	var res sql.Result
	err = t.retry.WithRetry(ctx, func() error {
		var execErr error
		res, execErr = t.helper.Exec(ctx, query, values...)
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("sqlite: insert into %s: %w", t.spec.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlite: read %s id: %w", t.spec.Name, err)
	}
	return id, nil
}

// FindAll returns the rows matching pred ordered by id.
func (t *Table[T]) FindAll(ctx context.Context, pred crud.Predicate) ([]T, error) {
	query, args, err := t.compile(t.selectFn, pred, " ORDER BY id")
	if err != nil {
		return nil, err
	}
	return t.queryAll(ctx, query, args)
}

// FindByColumn returns the rows whose column value is in values. It serves
// child lookups such as loading items by list id.
func (t *Table[T]) FindByColumn(ctx context.Context, column string, values []int64) ([]T, error) {
	if !slices.Contains(t.spec.Columns, column) {
		return nil, fmt.Errorf("sqlite: table %s has no column %q", t.spec.Name, column)
	}
	if len(values) == 0 {
		return []T{}, nil
	}
	tpl := fmt.Sprintf("%s WHERE %s IN ({{ range $i, $v := .Values }}{{ if $i }}, {{ end }}{{ $v }}{{ end }}) ORDER BY id",
		t.selectFn, column)
	query, args, err := tq.Compile(tpl, struct{ Values []int64 }{values})
	if err != nil {
		return nil, fmt.Errorf("sqlite: compile %s query: %w", t.spec.Name, err)
	}
	return t.queryAll(ctx, query, args)
}

func (t *Table[T]) queryAll(ctx context.Context, query string, args []any) ([]T, error) {
	rows, err := t.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query %s: %w", t.spec.Name, t.mapper.MapError(err))
	}
	defer rows.Close()

	out := []T{}
	if err := scan.Rows(&out, rows); err != nil {
		return nil, fmt.Errorf("sqlite: scan %s: %w", t.spec.Name, t.mapper.MapError(err))
	}
	return out, nil
}

// FindByID returns the row with id. A missing row yields an error matching
// both crud.ErrNotFound and persistence.ErrNotFound.
func (t *Table[T]) FindByID(ctx context.Context, id int64) (T, error) {
	var entity T
	query, args, err := t.compile(t.selectFn, crud.ByIDs(id), "")
	if err != nil {
		return entity, err
	}
	rows, err := t.helper.Query(ctx, query, args...)
	if err != nil {
		return entity, fmt.Errorf("sqlite: query %s: %w", t.spec.Name, t.mapper.MapError(err))
	}
	defer rows.Close()

	err = scan.Row(&entity, rows)
	if errors.Is(err, sql.ErrNoRows) {
		return entity, fmt.Errorf("sqlite: %s %d: %w: %w", t.spec.Name, id, crud.ErrNotFound, persistence.ErrNotFound)
	}
	if err != nil {
		return entity, fmt.Errorf("sqlite: scan %s: %w", t.spec.Name, t.mapper.MapError(err))
	}
	return entity, nil
}

// Update overwrites the writable columns of the row matching entity's id. It
// reports false when no row matched.
func (t *Table[T]) Update(ctx context.Context, entity T) (bool, error) {
	values, err := scan.Values(t.update, &entity)
	if err != nil {
		return false, fmt.Errorf("sqlite: extract %s values: %w", t.spec.Name, err)
	}
	assignments := make([]string, len(t.update))
	for i, col := range t.update {
		assignments[i] = col + " = ?"
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", t.spec.Name, strings.Join(assignments, ", "))
	values = append(values, entity.EntityID())

	return t.affect(ctx, "update", query, values)
}

// Delete removes the rows matching pred and reports whether any row went away.
func (t *Table[T]) Delete(ctx context.Context, pred crud.Predicate) (bool, error) {
	query, args, err := t.compile("DELETE FROM "+t.spec.Name, pred, "")
	if err != nil {
		return false, err
	}
	return t.affect(ctx, "delete from", query, args)
}

// Count returns the number of rows matching pred.
func (t *Table[T]) Count(ctx context.Context, pred crud.Predicate) (int, error) {
	query, args, err := t.compile("SELECT COUNT(*) FROM "+t.spec.Name, pred, "")
	if err != nil {
		return 0, err
	}
	var n int
	if err := t.helper.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count %s: %w", t.spec.Name, t.mapper.MapError(err))
	}
	return n, nil
}

func (t *Table[T]) affect(ctx context.Context, op, query string, args []any) (bool, error) {
	var res sql.Result
	err := t.retry.WithRetry(ctx, func() error {
		var execErr error
		res, execErr = t.helper.Exec(ctx, query, args...)
		return execErr
	})
	if err != nil {
		return false, fmt.Errorf("sqlite: %s %s: %w", op, t.spec.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: %s %s rows affected: %w", op, t.spec.Name, err)
	}
	return n > 0, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
