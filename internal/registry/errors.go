package registry

import "errors"

var (
	// ErrCapacity is returned when adding to a full collection.
	ErrCapacity = errors.New("registry full")

	// ErrNotFound is returned when removing a pin that is not registered.
	ErrNotFound = errors.New("device not found")

	// ErrPinInUse is returned when a pin is already registered as the other
	// kind of device.
	ErrPinInUse = errors.New("pin already in use")
)
