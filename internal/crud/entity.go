package crud

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-playground/validator/v10"
)

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return field.Name
		}
		return name
	})
	return v
}

// StructEntityValidation checks the entity payload against its `validate`
// struct tags. Field names in the reported errors follow the json tags.
func StructEntityValidation[T any]() ValidationFunc[T] {
	return func(ctx context.Context, param CrudParam[T], errs *Errors) (bool, error) {
		if param.Entity == nil {
			return true, nil
		}
		err := structValidator.StructCtx(ctx, param.Entity)
		if err == nil {
			return true, nil
		}
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return false, fmt.Errorf("crud: validate entity: %w", err)
		}
		for _, fe := range fieldErrs {
			errs.Add(fe.Field(), describeFieldError(fe))
		}
		return false, nil
	}
}

func describeFieldError(fe validator.FieldError) string {
	text := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		if text {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		if text {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "email":
		return "must be a valid email address"
	}
	return fmt.Sprintf("failed the %q rule", fe.Tag())
}

// Rules validates an entity with ozzo-validation rules and returns the
// validation.Errors produced by ValidateStruct.
type Rules[T any] func(ctx context.Context, entity *T) error

// RuleEntityValidation checks the entity payload with fluent rules instead of
// struct tags. Failures are reported in field name order.
func RuleEntityValidation[T any](rules Rules[T]) ValidationFunc[T] {
	return func(ctx context.Context, param CrudParam[T], errs *Errors) (bool, error) {
		if param.Entity == nil || rules == nil {
			return true, nil
		}
		err := rules(ctx, param.Entity)
		if err == nil {
			return true, nil
		}
		var internal validation.InternalError
		if errors.As(err, &internal) {
			return false, fmt.Errorf("crud: validate entity: %w", internal.InternalError())
		}
		var fieldErrs validation.Errors
		if !errors.As(err, &fieldErrs) {
			errs.Add("entity", err.Error())
			return false, nil
		}
		fields := make([]string, 0, len(fieldErrs))
		for field, fieldErr := range fieldErrs {
			if fieldErr != nil {
				fields = append(fields, field)
			}
		}
		sort.Strings(fields)
		for _, field := range fields {
			errs.Add(field, fieldErrs[field].Error())
		}
		return false, nil
	}
}
