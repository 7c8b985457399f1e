// Package gpio provides pin I/O with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "github.com/sweeney/relay-lights/internal/device"

// Pins reads and drives board pins.
type Pins interface {
	// SetupInput configures pin as an input with the internal pull-up enabled.
	SetupInput(pin device.Pin) error

	// SetupOutput configures pin as an output driven to initial.
	SetupOutput(pin device.Pin, initial device.Level) error

	// Read returns the raw level of an input pin.
	Read(pin device.Pin) (device.Level, error)

	// Write drives an output pin.
	Write(pin device.Pin, level device.Level) error

	// Close releases GPIO resources.
	Close() error
}

// DefaultChip is the character device used when none is configured.
const DefaultChip = "gpiochip0"
