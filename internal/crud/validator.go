package crud

import (
	"bytes"
	"context"
	"fmt"
)

// ValidationFunc checks one aspect of a request and appends failures to errs.
// It returns false when the request must be rejected. A non-nil error means the
// check itself could not run, typically because the store failed.
type ValidationFunc[T any] func(ctx context.Context, param CrudParam[T], errs *Errors) (bool, error)

// Stage names the position of a check in the validator chain.
type Stage int

const (
	StageNone Stage = iota
	StageParameter
	StageEntity
	StageAuthority
)

func (s Stage) String() string {
	switch s {
	case StageParameter:
		return "parameter"
	case StageEntity:
		return "entity"
	case StageAuthority:
		return "authority"
	}
	return "none"
}

// Validator holds the three replaceable checks for one verb. A nil slot passes.
type Validator[T any] struct {
	Parameter ValidationFunc[T]
	Entity    ValidationFunc[T]
	Authority ValidationFunc[T]
}

// Validate runs parameter, entity and authority checks in order and stops at
// the first failing stage.
func (v Validator[T]) Validate(ctx context.Context, param CrudParam[T]) (bool, Errors, error) {
	stage, errs, err := v.run(ctx, param)
	return stage == StageNone && err == nil, errs, err
}

// run returns the failed stage, or StageNone when every check passed.
func (v Validator[T]) run(ctx context.Context, param CrudParam[T]) (Stage, Errors, error) {
	var errs Errors
	chain := []struct {
		stage Stage
		check ValidationFunc[T]
	}{
		{StageParameter, v.Parameter},
		{StageEntity, v.Entity},
		{StageAuthority, v.Authority},
	}
	for _, link := range chain {
		if link.check == nil {
			continue
		}
		ok, err := link.check(ctx, param, &errs)
		if err != nil {
			return link.stage, errs, err
		}
		if !ok {
			if len(errs) == 0 {
				errs.Add("", fmt.Sprintf("%s validation failed", link.stage))
			}
			return link.stage, errs, nil
		}
	}
	return StageNone, errs, nil
}

// Validators is the per-verb validator table for one entity type.
type Validators[T any] [verbCount]Validator[T]

// All combines checks into one that stops at the first failure.
func All[T any](checks ...ValidationFunc[T]) ValidationFunc[T] {
	return func(ctx context.Context, param CrudParam[T], errs *Errors) (bool, error) {
		for _, check := range checks {
			if check == nil {
				continue
			}
			ok, err := check(ctx, param, errs)
			if err != nil || !ok {
				return ok, err
			}
		}
		return true, nil
	}
}

// Require fails with reason on field unless cond holds.
func Require[T any](field, reason string, cond func(CrudParam[T]) bool) ValidationFunc[T] {
	return func(_ context.Context, param CrudParam[T], errs *Errors) (bool, error) {
		if cond(param) {
			return true, nil
		}
		errs.Add(field, reason)
		return false, nil
	}
}

// InRange fails unless min <= value(param) <= max.
func InRange[T any](field string, value func(CrudParam[T]) int, min, max int) ValidationFunc[T] {
	return func(_ context.Context, param CrudParam[T], errs *Errors) (bool, error) {
		n := value(param)
		if n < min || n > max {
			if min == max {
				errs.Add(field, fmt.Sprintf("must be exactly %d", min))
			} else {
				errs.Add(field, fmt.Sprintf("must be between %d and %d", min, max))
			}
			return false, nil
		}
		return true, nil
	}
}

// RequesterPresent fails when the request carries no requester.
func RequesterPresent[T any]() ValidationFunc[T] {
	return Require[T]("requester", "requester is required", func(p CrudParam[T]) bool {
		return p.Requester != nil
	})
}

// EntityPresent fails when the request carries no entity payload.
func EntityPresent[T any]() ValidationFunc[T] {
	return Require[T]("entity", "entity is required", func(p CrudParam[T]) bool {
		return p.Entity != nil
	})
}

// EntityIDsPresent fails when the request targets no ids.
func EntityIDsPresent[T any]() ValidationFunc[T] {
	return Require[T]("entityIds", "at least one entity id is required", func(p CrudParam[T]) bool {
		return len(p.EntityIDs) > 0
	})
}

// SingleEntityID fails unless the request targets exactly one id.
func SingleEntityID[T any]() ValidationFunc[T] {
	return InRange[T]("entityIds", func(p CrudParam[T]) int { return len(p.EntityIDs) }, 1, 1)
}

// PatchPresent fails unless the request carries a patch document shaped as a
// JSON array of operations. A JSON null would otherwise decode to an empty patch.
func PatchPresent[T any]() ValidationFunc[T] {
	return Require[T]("patch", "patch document must be a JSON array of operations", func(p CrudParam[T]) bool {
		doc := bytes.TrimSpace(p.Patch)
		return len(doc) > 0 && doc[0] == '['
	})
}

// EntityIDPresent fails unless the entity payload carries a non-zero id.
func EntityIDPresent[T Entity]() ValidationFunc[T] {
	return Require[T]("id", "entity id is required", func(p CrudParam[T]) bool {
		return p.Entity != nil && (*p.Entity).EntityID() != 0
	})
}
