package crud

import (
	"encoding/json"
	"fmt"
)

// ValidationError describes one failed check in free text.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (v ValidationError) String() string {
	if v.Field == "" {
		return v.Reason
	}
	return fmt.Sprintf("%s: %s", v.Field, v.Reason)
}

// Errors is the ordered list a validation stage appends to.
type Errors []ValidationError

// Add appends a field level failure.
func (e *Errors) Add(field, reason string) {
	*e = append(*e, ValidationError{Field: field, Reason: reason})
}

// Fields returns the field names in recorded order.
func (e Errors) Fields() []string {
	fields := make([]string, 0, len(e))
	for _, ve := range e {
		fields = append(fields, ve.Field)
	}
	return fields
}

// APIResult is the response envelope every verb returns.
//
// Successful implies Errors is empty. Update and Delete report a bool Result that
// may be false on a successful call when no row was affected.
type APIResult[R any] struct {
	Result     R                 `json:"result"`
	Successful bool              `json:"successful"`
	Errors     []ValidationError `json:"errors"`
	Messages   []string          `json:"messages"`
}

// Succeeded wraps a result value.
func Succeeded[R any](result R, messages ...string) APIResult[R] {
	return APIResult[R]{
		Result:     result,
		Successful: true,
		Errors:     []ValidationError{},
		Messages:   append([]string{}, messages...),
	}
}

// Rejected wraps validation failures. The result holds the zero value of R.
func Rejected[R any](errs Errors, messages ...string) APIResult[R] {
	out := make([]ValidationError, len(errs))
	copy(out, errs)
	return APIResult[R]{
		Errors:   out,
		Messages: append([]string{}, messages...),
	}
}

// String renders the result as indented JSON.
func (r APIResult[R]) String() string {
	raw, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Sprintf("APIResult{successful=%t errors=%d}", r.Successful, len(r.Errors))
	}
	return string(raw)
}
