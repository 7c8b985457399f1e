//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/relay-lights/internal/device"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// Chip is not available on non-Linux platforms.
type Chip struct{}

// NewChip returns an error on non-Linux platforms.
func NewChip(name string, table map[device.Pin]int) (*Chip, error) {
	return nil, errUnsupported
}

// SetupInput is not implemented on non-Linux platforms.
func (c *Chip) SetupInput(pin device.Pin) error { return errUnsupported }

// SetupOutput is not implemented on non-Linux platforms.
func (c *Chip) SetupOutput(pin device.Pin, initial device.Level) error { return errUnsupported }

// Read is not implemented on non-Linux platforms.
func (c *Chip) Read(pin device.Pin) (device.Level, error) { return device.Low, errUnsupported }

// Write is not implemented on non-Linux platforms.
func (c *Chip) Write(pin device.Pin, level device.Level) error { return errUnsupported }

// Close is not implemented on non-Linux platforms.
func (c *Chip) Close() error { return nil }
