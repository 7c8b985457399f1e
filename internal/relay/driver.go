// Package relay drives relay outputs from a light mode.
package relay

import (
	"errors"
	"fmt"

	"github.com/sweeney/relay-lights/internal/device"
)

// Writer drives output pins.
type Writer interface {
	Write(pin device.Pin, level device.Level) error
}

// Driver maps a mode bitmask onto relay outputs.
type Driver struct {
	pins Writer
}

// NewDriver creates a Driver writing through pins.
func NewDriver(pins Writer) *Driver {
	return &Driver{pins: pins}
}

// Pattern returns which relays are energized for the given light state and
// mode. Bit i of mode controls relays[i]; an off light energizes nothing.
func Pattern(count int, on bool, mode uint8) []bool {
	out := make([]bool, count)
	if !on {
		return out
	}
	for i := range out {
		out[i] = i < 8 && mode&(1<<i) != 0
	}
	return out
}

// OutputLevel returns the pin level that puts r into the given state.
func OutputLevel(r device.Relay, energized bool) device.Level {
	if energized {
		return r.ActiveLevel
	}
	return r.ActiveLevel.Invert()
}

// Apply drives every relay to the pattern for (on, mode) and records each
// relay's state in place. All relays are written even if one write fails;
// the failures are returned joined.
func (d *Driver) Apply(relays []device.Relay, on bool, mode uint8) error {
	var errs []error
	for i, energized := range Pattern(len(relays), on, mode) {
		r := &relays[i]
		if err := d.pins.Write(r.Pin, OutputLevel(*r, energized)); err != nil {
			errs = append(errs, fmt.Errorf("relay %s: %w", r.Pin, err))
			continue
		}
		r.On = energized
	}
	return errors.Join(errs...)
}

// Off drives a single relay to its released level.
func (d *Driver) Off(r *device.Relay) error {
	if err := d.pins.Write(r.Pin, OutputLevel(*r, false)); err != nil {
		return fmt.Errorf("relay %s: %w", r.Pin, err)
	}
	r.On = false
	return nil
}
