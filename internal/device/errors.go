package device

import "errors"

// Validation errors. They are reported to the command source and leave
// state unchanged.
var (
	// ErrInvalidPin is returned for pins outside the assignable range.
	ErrInvalidPin = errors.New("invalid pin")

	// ErrUnknownType is returned for unknown device kind or level tags.
	ErrUnknownType = errors.New("unknown device type")

	// ErrOutOfRange is returned for missing or out-of-range numeric options.
	ErrOutOfRange = errors.New("option out of range")
)
