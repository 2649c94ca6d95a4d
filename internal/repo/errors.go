package repo

import "errors"

var (
	// ErrNotFound is returned when no row matches within the site scope.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned on unique-constraint violations, e.g. a second
	// checklist for the same lease.
	ErrConflict = errors.New("conflict")
)
