package repository

import "errors"

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// ErrVersionConflict is returned when an optimistic-concurrency precondition
// fails: the row exists but its version no longer matches the caller's.
var ErrVersionConflict = errors.New("version conflict")

// ErrDuplicateCode is returned when an insert violates the unique constraint
// on active item codes.
var ErrDuplicateCode = errors.New("duplicate item code")
