package store

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned when an insert collides with an existing email.
	ErrDuplicateEmail = errors.New("duplicate email")

	// ErrDuplicateUSN is returned when an insert collides with an existing USN.
	ErrDuplicateUSN = errors.New("duplicate usn")
)
