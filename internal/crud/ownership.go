package crud

import (
	"context"
	"errors"
	"fmt"
)

const (
	// RequesterField is the field reported when the requester identity is not an integer.
	RequesterField = "requester"

	reasonRequesterNotInteger = "requester identity must be an integer"
	reasonReadOwnership       = "you can only access entities owned by you"
	reasonUpdateOwnership     = "this action can be performed only on entities owned by you"
)

// RequesterInteger fails when the requester identity cannot be parsed as an
// integer user id.
func RequesterInteger[T any]() ValidationFunc[T] {
	return func(_ context.Context, param CrudParam[T], errs *Errors) (bool, error) {
		if _, ok := RequesterID(param.Requester); !ok {
			errs.Add(RequesterField, reasonRequesterNotInteger)
			return false, nil
		}
		return true, nil
	}
}

// ReadDeleteOwnership passes only when every requested id is owned by the
// requester. Owning a subset of the ids rejects the whole request.
func ReadDeleteOwnership[T OwnedEntity](store Store[T]) ValidationFunc[T] {
	return func(ctx context.Context, param CrudParam[T], errs *Errors) (bool, error) {
		ownerID, ok := RequesterID(param.Requester)
		if !ok {
			errs.Add(RequesterField, reasonRequesterNotInteger)
			return false, nil
		}
		ids := distinctIDs(param.EntityIDs)
		owned, err := store.Count(ctx, Predicate{IDs: ids, OwnerID: &ownerID})
		if err != nil {
			return false, fmt.Errorf("crud: count owned entities: %w", err)
		}
		if owned != len(ids) {
			errs.Add("entityIds", reasonReadOwnership)
			return false, nil
		}
		return true, nil
	}
}

// UpdateOwnership passes only when the stored entity addressed by the payload id
// is owned by the requester. A missing entity fails the same way.
func UpdateOwnership[T OwnedEntity](store Store[T]) ValidationFunc[T] {
	return func(ctx context.Context, param CrudParam[T], errs *Errors) (bool, error) {
		ownerID, ok := RequesterID(param.Requester)
		if !ok {
			errs.Add(RequesterField, reasonRequesterNotInteger)
			return false, nil
		}
		if param.Entity == nil {
			errs.Add("entity", "entity is required")
			return false, nil
		}
		stored, err := store.FindByID(ctx, (*param.Entity).EntityID())
		if errors.Is(err, ErrNotFound) {
			errs.Add("id", reasonUpdateOwnership)
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("crud: load entity for ownership: %w", err)
		}
		if stored.EntityOwnerID() != ownerID {
			errs.Add("id", reasonUpdateOwnership)
			return false, nil
		}
		return true, nil
	}
}

// EnableOwnership installs owner-based authority checks on GetByID, Delete,
// PartialUpdate and Update, and enables GetByOwnerID. PartialUpdate is checked
// before the entity is loaded, so missing and foreign ids are rejected alike.
// Call it once while wiring, before serving.
func EnableOwnership[T OwnedEntity](l *Logic[T]) {
	l.validators[VerbGetByID].Authority = ReadDeleteOwnership(l.store)
	l.validators[VerbDelete].Authority = ReadDeleteOwnership(l.store)
	l.validators[VerbPartialUpdate].Authority = ReadDeleteOwnership(l.store)
	l.validators[VerbUpdate].Authority = UpdateOwnership(l.store)
	l.validators[VerbGetByOwnerID].Authority = RequesterInteger[T]()
	l.ownerScoped = true
}
