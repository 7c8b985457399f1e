package gpio

import (
	"errors"
	"sort"

	"github.com/sweeney/relay-lights/internal/clock"
	"github.com/sweeney/relay-lights/internal/device"
)

// Edge is a scripted level change on an input pin.
type Edge struct {
	At    clock.Millis
	Level device.Level
}

// Write records a single call to Write.
type Write struct {
	Pin   device.Pin
	Level device.Level
}

// FakePins is a test double. Inputs return a scripted level that depends on
// the current time of Clock; outputs are recorded.
type FakePins struct {
	// Clock is read (without advancing) to pick the scripted level.
	Clock *clock.Fake

	// Inputs and Outputs track configured pin modes.
	Inputs  map[device.Pin]bool
	Outputs map[device.Pin]device.Level

	// Writes contains every Write call in order.
	Writes []Write

	// ReadError, if set, will be returned by Read().
	ReadError error

	// Closed tracks if Close was called.
	Closed bool

	levels  map[device.Pin]device.Level
	scripts map[device.Pin][]Edge
}

// NewFakePins creates FakePins driven by clk.
func NewFakePins(clk *clock.Fake) *FakePins {
	return &FakePins{
		Clock:   clk,
		Inputs:  make(map[device.Pin]bool),
		Outputs: make(map[device.Pin]device.Level),
		levels:  make(map[device.Pin]device.Level),
		scripts: make(map[device.Pin][]Edge),
	}
}

// Set fixes the level of an input pin and drops any script for it.
func (f *FakePins) Set(pin device.Pin, level device.Level) {
	f.levels[pin] = level
	delete(f.scripts, pin)
}

// Script schedules level changes on an input pin. Before the first edge the
// pin reads the level given by Set (Low by default).
func (f *FakePins) Script(pin device.Pin, edges ...Edge) {
	s := append(f.scripts[pin], edges...)
	sort.SliceStable(s, func(i, j int) bool { return s[i].At < s[j].At })
	f.scripts[pin] = s
}

// SetupInput marks pin as an input.
func (f *FakePins) SetupInput(pin device.Pin) error {
	f.Inputs[pin] = true
	return nil
}

// SetupOutput marks pin as an output at initial.
func (f *FakePins) SetupOutput(pin device.Pin, initial device.Level) error {
	delete(f.Inputs, pin)
	f.Outputs[pin] = initial
	return nil
}

// Read returns the scripted level of pin at the current clock time.
func (f *FakePins) Read(pin device.Pin) (device.Level, error) {
	if f.ReadError != nil {
		return device.Low, f.ReadError
	}
	level := f.levels[pin]
	for _, e := range f.scripts[pin] {
		if e.At > f.Clock.T {
			break
		}
		level = e.Level
	}
	return level, nil
}

// Write records the output level.
func (f *FakePins) Write(pin device.Pin, level device.Level) error {
	if _, ok := f.Outputs[pin]; !ok {
		return errors.New("pin not configured as output")
	}
	f.Outputs[pin] = level
	f.Writes = append(f.Writes, Write{Pin: pin, Level: level})
	return nil
}

// Close marks the pins as closed.
func (f *FakePins) Close() error {
	f.Closed = true
	return nil
}
