// Package device contains the data model shared by every controller
// component: pins, buttons, relays and the persisted configuration.
// This package has NO dependencies beyond the clock.
package device

import "github.com/sweeney/relay-lights/internal/clock"

// Capacity of the button and relay collections.
const (
	MaxButtons = 5
	MaxRelays  = 5
)

// MaxAverageMinutes bounds the learned average on-duration (one day).
const MaxAverageMinutes = 24 * 60

// Level is an electrical level on a pin.
type Level uint8

const (
	Low  Level = 0
	High Level = 1
)

// Invert returns the opposite level.
func (l Level) Invert() Level {
	if l == High {
		return Low
	}
	return High
}

// String returns "H" or "L", the form used on the command channel.
func (l Level) String() string {
	if l == High {
		return "H"
	}
	return "L"
}

// LevelOf converts a boolean reading to a Level.
func LevelOf(high bool) Level {
	if high {
		return High
	}
	return Low
}

// ParseLevel parses "H" or "L" (case-insensitive).
func ParseLevel(s string) (Level, error) {
	switch s {
	case "H", "h":
		return High, nil
	case "L", "l":
		return Low, nil
	}
	return Low, ErrUnknownType
}

// Class is the mechanical class of a button. The numeric values are the
// tags stored in the persisted button record.
type Class uint8

const (
	Undefined Class = 0
	Latching  Class = 1
	Momentary Class = 2
)

// String returns the single-letter class code.
func (c Class) String() string {
	switch c {
	case Latching:
		return "L"
	case Momentary:
		return "M"
	}
	return "U"
}

// Valid reports whether c is a persisted (classified) class.
func (c Class) Valid() bool {
	return c == Latching || c == Momentary
}

// Kind distinguishes buttons from relays on the command channel.
type Kind string

const (
	KindButton Kind = "B"
	KindRelay  Kind = "R"
)

// ParseKind parses a device kind tag.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindButton, KindRelay:
		return Kind(s), nil
	}
	return "", ErrUnknownType
}

// Button is a registered input.
type Button struct {
	Pin         Pin
	Class       Class
	ActiveLevel Level // level that means "pressed"

	// Runtime-only fields, reset on load.
	Engaged                bool
	LastRawLevel           Level
	StateEnteredAt         clock.Millis
	PreviousStateEnteredAt clock.Millis
}

// Relay is a registered output.
type Relay struct {
	Pin         Pin
	ActiveLevel Level // level that energizes the relay
	On          bool
}

// Config is the process-wide persisted configuration.
type Config struct {
	// InitialLightState is the light state applied at boot.
	InitialLightState bool
	// DefaultModeOnTurnOn is selected when the light is switched on by a
	// single actuation. Zero keeps the current mode.
	DefaultModeOnTurnOn uint8
	// LatchingFollowsPosition makes latching buttons assert on/off from the
	// switch position instead of toggling on either edge.
	LatchingFollowsPosition bool
}

// DefaultConfig returns the configuration used when none is persisted.
func DefaultConfig() Config {
	return Config{}
}

// LightRecord holds the persisted part of the light state.
type LightRecord struct {
	AverageOnMinutes uint16
	Mode             uint8
}

// MaxMode returns the largest valid mode for relayCount relays
// (2^relayCount - 1). It is never below 1.
func MaxMode(relayCount int) uint8 {
	if relayCount <= 0 {
		return 1
	}
	if relayCount >= 8 {
		return 0xFF
	}
	return uint8(1<<relayCount - 1)
}

// ClampMode clamps mode into [1, maxMode].
func ClampMode(mode, maxMode uint8) uint8 {
	if maxMode < 1 {
		maxMode = 1
	}
	if mode < 1 {
		return 1
	}
	if mode > maxMode {
		return maxMode
	}
	return mode
}
