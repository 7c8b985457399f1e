// Package light contains the light state machine: button transitions become
// on/off toggles and mode changes, and an adaptive timer switches a
// forgotten light off. This package has NO I/O; time is passed in as
// clock.Millis and persistence goes through the Saver interface.
package light

import (
	"time"

	"github.com/sweeney/relay-lights/internal/clock"
	"github.com/sweeney/relay-lights/internal/device"
)

// EventType is a light state transition.
type EventType string

const (
	EventOn              EventType = "LIGHT_ON"
	EventOff             EventType = "LIGHT_OFF"
	EventMode            EventType = "MODE_CHANGED"
	EventTimeout         EventType = "TIMEOUT"
	EventTimeoutAdjusted EventType = "TIMEOUT_ADJUSTED"
	EventAverageUpdated  EventType = "AVERAGE_UPDATED"
)

// Event describes a transition and the light state right after it.
type Event struct {
	At             clock.Millis
	Type           EventType
	On             bool
	Mode           uint8
	TimeoutMinutes int
	DeltaMinutes   int8
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	On       int
	Off      int
	Mode     int
	Timeouts int
}

// Saver persists the light record.
type Saver interface {
	SaveLight(rec device.LightRecord) error
}

// Controller tuning.
const (
	// RingSize is the number of on-durations folded into the average at once.
	RingSize = 4

	// MaxDeltaMinutes bounds the adaptive timeout adjustment.
	MaxDeltaMinutes = 31
)

// Settings are the fixed timing parameters of a Controller.
type Settings struct {
	// DoubleClickWindow is the largest gap between two transitions that is
	// read as a double actuation.
	DoubleClickWindow time.Duration

	// Cooldown is how long after a timeout a manual re-on counts as the
	// timeout being too aggressive.
	Cooldown time.Duration

	// MinTimeoutMinutes is the floor of the effective timeout.
	MinTimeoutMinutes int

	// MinDurationMinutes drops shorter on-durations from learning.
	MinDurationMinutes int
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		DoubleClickWindow:  400 * time.Millisecond,
		Cooldown:           2 * time.Minute,
		MinTimeoutMinutes:  5,
		MinDurationMinutes: 1,
	}
}

// State is a point-in-time view of the controller.
type State struct {
	On               bool
	Mode             uint8
	MaxMode          uint8
	AverageOnMinutes uint16
	TimeoutMinutes   int
	DeltaMinutes     int8
	CooldownSeconds  uint16
	LastChangedAt    clock.Millis
	TimeoutPending   bool
	Counts           EventCounts
}
