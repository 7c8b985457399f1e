package button

import (
	"github.com/sweeney/relay-lights/internal/clock"
	"github.com/sweeney/relay-lights/internal/device"
)

// Machine advances classified buttons once per cycle.
type Machine struct {
	sampler *Sampler
}

// NewMachine creates a Machine that samples through sampler.
func NewMachine(sampler *Sampler) *Machine {
	return &Machine{sampler: sampler}
}

// Update takes one debounced sample of b and advances it.
// Returns true when the button produced a transition.
func (m *Machine) Update(b *device.Button) (bool, error) {
	level, err := m.sampler.Sample(b.Pin)
	if err != nil {
		return false, err
	}
	return Step(b, level, m.sampler.Clock().Now()), nil
}

// Step applies a debounced level observed at now to b.
//
// Latching buttons are engaged exactly while the level equals the active
// level, and every raw change is a transition. Momentary buttons toggle on
// the release edge (leaving the active level); the press edge is observed
// but changes nothing. Returns true when a transition occurred, in which
// case the state timestamps have been rotated.
func Step(b *device.Button, level device.Level, now clock.Millis) bool {
	changed := false

	switch b.Class {
	case device.Latching:
		b.Engaged = level == b.ActiveLevel
		if level != b.LastRawLevel {
			rotate(b, now)
			changed = true
		}

	case device.Momentary:
		if level != b.LastRawLevel && b.LastRawLevel == b.ActiveLevel {
			b.Engaged = !b.Engaged
			rotate(b, now)
			changed = true
		}
	}

	b.LastRawLevel = level
	return changed
}

func rotate(b *device.Button, now clock.Millis) {
	b.PreviousStateEnteredAt = b.StateEnteredAt
	b.StateEnteredAt = now
}

// Gap returns the time between the last two transitions of b.
func Gap(b device.Button) clock.Millis {
	return b.StateEnteredAt.Since(b.PreviousStateEnteredAt)
}
