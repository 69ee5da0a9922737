package repositories

import "errors"

var (
	// ErrNotFound is wrapped by every lookup that matched no record.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is wrapped when a unique field is already taken.
	ErrDuplicate = errors.New("duplicate record")
)
