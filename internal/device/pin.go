package device

import (
	"fmt"
	"strconv"
	"strings"
)

// Pin is a board pin number. Digital pins D0..D13 are 0..13 and analog
// pins A0..A5 are 14..19. Pins 0 and 1 carry the serial link and are
// reserved.
type Pin uint8

const (
	digitalPins = 14
	analogPins  = 6

	// MinPin and MaxPin bound the assignable range.
	MinPin Pin = 2
	MaxPin Pin = digitalPins + analogPins - 1

	firstAnalog Pin = digitalPins
)

// Valid reports whether p is inside the assignable range.
func (p Pin) Valid() bool {
	return p >= MinPin && p <= MaxPin
}

// Analog reports whether p is one of the A<n> pins.
func (p Pin) Analog() bool {
	return p >= firstAnalog
}

// String returns the board name, e.g. "D2" or "A0".
func (p Pin) String() string {
	if p.Analog() {
		return "A" + strconv.Itoa(int(p-firstAnalog))
	}
	return "D" + strconv.Itoa(int(p))
}

// ParsePin parses a pin reference. "A<n>" maps to the analog range, while
// "D<n>" and bare integers map to the digital range. Pins outside the
// assignable range return ErrInvalidPin.
func ParsePin(s string) (Pin, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidPin
	}

	var (
		base  Pin
		limit int
		num   = s
	)
	switch s[0] {
	case 'A', 'a':
		base, limit, num = firstAnalog, analogPins, s[1:]
	case 'D', 'd':
		limit, num = digitalPins, s[1:]
	default:
		limit = digitalPins
	}

	n, err := strconv.Atoi(num)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPin, s)
	}
	return PinFromIndex(base, n, limit, s)
}

// DigitalPin maps a bare integer to the digital range.
func DigitalPin(n int) (Pin, error) {
	return PinFromIndex(0, n, digitalPins, strconv.Itoa(n))
}

// PinFromIndex validates index n within a bank of limit pins starting at base.
func PinFromIndex(base Pin, n, limit int, ref string) (Pin, error) {
	if n < 0 || n >= limit {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPin, ref)
	}
	p := base + Pin(n)
	if !p.Valid() {
		return 0, fmt.Errorf("%w: %q is reserved", ErrInvalidPin, ref)
	}
	return p, nil
}
