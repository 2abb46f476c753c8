package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a uniqueness constraint rejects a write.
	ErrDuplicate = errors.New("duplicate")

	// ErrForeignKeyViolation is returned when a referenced entity is missing.
	ErrForeignKeyViolation = errors.New("foreign key violation")
)
