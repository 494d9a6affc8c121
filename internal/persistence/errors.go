package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique constraint rejects the write.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a record fails a CHECK or NOT NULL constraint.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when a referenced record is missing or still referenced.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
	// ErrLocked is returned when the database stayed busy past the retry budget.
	ErrLocked = errors.New("persistence: database locked")
)
