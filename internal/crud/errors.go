package crud

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidParameter marks a request envelope the calling code built incorrectly.
	ErrInvalidParameter = errors.New("crud: invalid parameter")
	// ErrNotFound is returned by stores when the requested entity does not exist.
	ErrNotFound = errors.New("crud: not found")
	// ErrVerbNotConfigured is returned when a verb was not enabled for the entity type.
	ErrVerbNotConfigured = errors.New("crud: verb not configured")
)

// ParameterError reports a failed parameter check. It unwraps to ErrInvalidParameter.
type ParameterError struct {
	Verb   Verb
	Errors Errors
}

func (e *ParameterError) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Errors) == 0 {
		return fmt.Sprintf("crud: %s: invalid parameter", e.Verb)
	}
	parts := make([]string, 0, len(e.Errors))
	for _, ve := range e.Errors {
		parts = append(parts, ve.String())
	}
	return fmt.Sprintf("crud: %s: invalid parameter: %s", e.Verb, strings.Join(parts, "; "))
}

func (e *ParameterError) Unwrap() error {
	return ErrInvalidParameter
}

// ErrorKind maps crud errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, ErrVerbNotConfigured):
		return "verb_not_configured"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	}
	return "store"
}
