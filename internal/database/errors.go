package database

import "errors"

// Store errors the rest of the system is expected to branch on. Repositories
// wrap these with fmt.Errorf("...: %w", ...) so errors.Is works through the
// chain; anything not matching one of them is an infrastructure failure.
var (
	// ErrNotFound is returned when no row matches the lookup.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned when an insert violates the unique
	// index on users.email. The index, not the caller's pre-check, is the
	// authority.
	ErrDuplicateEmail = errors.New("email already exists")
)
