package storage

import "errors"

var (
	// ErrMismatch is returned when a written field does not read back equal.
	ErrMismatch = errors.New("write verification failed")

	// ErrAddress is returned for addresses or slots outside the store.
	ErrAddress = errors.New("address out of range")

	// ErrNotPresent is returned when a stored record fails validation.
	ErrNotPresent = errors.New("record not present")
)
