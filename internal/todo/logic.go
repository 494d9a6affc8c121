package todo

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/example/todo-crud/internal/crud"
)

// ItemFinder loads items by a foreign key column.
type ItemFinder interface {
	FindByColumn(ctx context.Context, column string, values []int64) ([]Item, error)
}

// Transactor runs fn inside a read-only transaction so a list and its items
// are read from one snapshot.
type Transactor interface {
	WithReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ListLogic is the CRUD logic for lists. Create stamps the owner from the
// requester; everything else is the generic behaviour with ownership enabled.
type ListLogic struct {
	*crud.Logic[List]
}

// NewListLogic wires list CRUD with ownership checks and an item-loading read
// selector. tx may be nil.
func NewListLogic(lists crud.Store[List], items ItemFinder, tx Transactor, logger *slog.Logger) *ListLogic {
	logic := crud.NewLogic(lists,
		crud.WithEntityName[List]("todo_list"),
		crud.WithLogger[List](logger),
		crud.WithReadSelector[List](selectWithItems(items, tx)),
	)
	crud.EnableOwnership(logic)

	create := logic.Validator(crud.VerbCreate)
	create.Authority = crud.RequesterInteger[List]()
	logic.SetValidator(crud.VerbCreate, create)

	return &ListLogic{Logic: logic}
}

// Create inserts a list owned by the requester. A client supplied owner or
// item collection is ignored.
func (l *ListLogic) Create(ctx context.Context, param crud.CrudParam[List]) (crud.APIResult[int64], error) {
	if param.Entity != nil {
		list := *param.Entity
		list.OwnerID, _ = crud.RequesterID(param.Requester)
		list.Items = nil
		param.Entity = &list
	}
	return l.Logic.Create(ctx, param)
}

func selectWithItems(items ItemFinder, tx Transactor) crud.ReadSelector[List] {
	return func(ctx context.Context, store crud.Store[List], pred crud.Predicate) ([]List, error) {
		var lists []List
		load := func(ctx context.Context) error {
			var err error
			lists, err = store.FindAll(ctx, pred)
			if err != nil || len(lists) == 0 || items == nil {
				return err
			}

			ids := make([]int64, len(lists))
			for i, list := range lists {
				ids[i] = list.ID
			}
			children, err := items.FindByColumn(ctx, "list_id", ids)
			if err != nil {
				return fmt.Errorf("load items: %w", err)
			}

			byList := make(map[int64][]Item, len(lists))
			for _, item := range children {
				byList[item.ListID] = append(byList[item.ListID], item)
			}
			for i := range lists {
				lists[i].Items = byList[lists[i].ID]
			}
			return nil
		}

		var err error
		if tx == nil {
			err = load(ctx)
		} else {
			err = tx.WithReadOnlyTransaction(ctx, load)
		}
		return lists, err
	}
}

const reasonListNotOwned = "you can only access items of lists owned by you"

// NewItemLogic wires item CRUD with fluent rule validation. Access to an item
// requires owning the list it belongs to.
func NewItemLogic(items crud.Store[Item], lists crud.Store[List], logger *slog.Logger) *crud.Logic[Item] {
	logic := crud.NewLogic(items,
		crud.WithEntityName[Item]("todo_item"),
		crud.WithLogger[Item](logger),
		crud.WithEntityRules[Item](ItemRules),
	)

	for _, verb := range []crud.Verb{crud.VerbCreate, crud.VerbGetByID, crud.VerbUpdate, crud.VerbPartialUpdate, crud.VerbDelete} {
		v := logic.Validator(verb)
		// Create inserts into the payload list; an id in the payload is ignored.
		v.Authority = parentListOwnership(items, lists, verb != crud.VerbCreate)
		logic.SetValidator(verb, v)
	}
	return logic
}

// parentListOwnership passes when every list touched by the request belongs to
// the requester. Requested ids that match no item fail the same way as items
// in foreign lists.
// With storedList set, an entity payload is checked against the list its
// stored row belongs to, since updates never move an item between lists.
func parentListOwnership(items crud.Store[Item], lists crud.Store[List], storedList bool) crud.ValidationFunc[Item] {
	return func(ctx context.Context, param crud.CrudParam[Item], errs *crud.Errors) (bool, error) {
		ownerID, ok := crud.RequesterID(param.Requester)
		if !ok {
			errs.Add(crud.RequesterField, "requester identity must be an integer")
			return false, nil
		}

		listIDs := map[int64]struct{}{}
		if len(param.EntityIDs) > 0 {
			stored, err := items.FindAll(ctx, crud.ByIDs(param.EntityIDs...))
			if err != nil {
				return false, fmt.Errorf("todo: load items for ownership: %w", err)
			}
			if len(stored) != len(slices.Compact(slices.Sorted(slices.Values(param.EntityIDs)))) {
				errs.Add("listId", reasonListNotOwned)
				return false, nil
			}
			for _, item := range stored {
				listIDs[item.ListID] = struct{}{}
			}
		}
		if param.Entity != nil {
			listID := param.Entity.ListID
			if storedList && param.Entity.ID != 0 {
				stored, err := items.FindAll(ctx, crud.ByIDs(param.Entity.ID))
				if err != nil {
					return false, fmt.Errorf("todo: load item for ownership: %w", err)
				}
				if len(stored) == 1 {
					listID = stored[0].ListID
				}
			}
			listIDs[listID] = struct{}{}
		}
		if len(listIDs) == 0 {
			return true, nil
		}

		ids := make([]int64, 0, len(listIDs))
		for id := range listIDs {
			ids = append(ids, id)
		}
		owned, err := lists.Count(ctx, crud.Predicate{IDs: ids, OwnerID: &ownerID})
		if err != nil {
			return false, fmt.Errorf("todo: count owned lists: %w", err)
		}
		if owned != len(ids) {
			errs.Add("listId", reasonListNotOwned)
			return false, nil
		}
		return true, nil
	}
}
