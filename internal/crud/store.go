package crud

import "context"

// Entity is implemented by every type the library manages.
type Entity interface {
	EntityID() int64
}

// OwnedEntity is an Entity that records the id of the user owning it.
type OwnedEntity interface {
	Entity
	EntityOwnerID() int64
}

// Predicate filters store rows. Empty fields match everything.
type Predicate struct {
	IDs     []int64
	OwnerID *int64
}

// ByIDs matches rows whose id is in ids.
func ByIDs(ids ...int64) Predicate {
	return Predicate{IDs: ids}
}

// ByOwner matches rows owned by ownerID.
func ByOwner(ownerID int64) Predicate {
	return Predicate{OwnerID: &ownerID}
}

// Store is the persistence seam for one entity type. FindByID returns
// ErrNotFound when the row is absent.
type Store[T any] interface {
	Insert(ctx context.Context, entity T) (int64, error)
	FindAll(ctx context.Context, pred Predicate) ([]T, error)
	FindByID(ctx context.Context, id int64) (T, error)
	Update(ctx context.Context, entity T) (bool, error)
	Delete(ctx context.Context, pred Predicate) (bool, error)
	Count(ctx context.Context, pred Predicate) (int, error)
}

// ReadSelector loads the entities GetByID and GetByOwnerID return. Entity types
// replace it to eager-load children.
type ReadSelector[T any] func(ctx context.Context, store Store[T], pred Predicate) ([]T, error)

// SelectAll is the default ReadSelector.
func SelectAll[T any](ctx context.Context, store Store[T], pred Predicate) ([]T, error) {
	return store.FindAll(ctx, pred)
}
