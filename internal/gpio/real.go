//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/relay-lights/internal/device"
)

// Chip drives board pins through a Linux GPIO character device.
// Board pins are mapped to line offsets by the lines table; pins missing
// from the table use their own number as the offset.
type Chip struct {
	chip  *gpiocdev.Chip
	lines map[device.Pin]*gpiocdev.Line
	table map[device.Pin]int
}

// NewChip opens the named GPIO chip.
func NewChip(name string, table map[device.Pin]int) (*Chip, error) {
	chip, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &Chip{
		chip:  chip,
		lines: make(map[device.Pin]*gpiocdev.Line),
		table: table,
	}, nil
}

func (c *Chip) offset(pin device.Pin) int {
	if off, ok := c.table[pin]; ok {
		return off
	}
	return int(pin)
}

// SetupInput requests the line as an input with pull-up, or reconfigures it
// if it was already requested.
func (c *Chip) SetupInput(pin device.Pin) error {
	if line, ok := c.lines[pin]; ok {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
			return fmt.Errorf("reconfigure input pin %s: %w", pin, err)
		}
		return nil
	}

	line, err := c.chip.RequestLine(c.offset(pin), gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		return fmt.Errorf("request input pin %s: %w", pin, err)
	}
	c.lines[pin] = line
	return nil
}

// SetupOutput requests the line as an output driven to initial.
func (c *Chip) SetupOutput(pin device.Pin, initial device.Level) error {
	if line, ok := c.lines[pin]; ok {
		if err := line.Reconfigure(gpiocdev.AsOutput(int(initial))); err != nil {
			return fmt.Errorf("reconfigure output pin %s: %w", pin, err)
		}
		return nil
	}

	line, err := c.chip.RequestLine(c.offset(pin), gpiocdev.AsOutput(int(initial)))
	if err != nil {
		return fmt.Errorf("request output pin %s: %w", pin, err)
	}
	c.lines[pin] = line
	return nil
}

// Read returns the raw level of pin.
func (c *Chip) Read(pin device.Pin) (device.Level, error) {
	line, ok := c.lines[pin]
	if !ok {
		return device.Low, fmt.Errorf("read pin %s: not configured", pin)
	}
	v, err := line.Value()
	if err != nil {
		return device.Low, fmt.Errorf("read pin %s: %w", pin, err)
	}
	return device.LevelOf(v != 0), nil
}

// Write drives pin to level.
func (c *Chip) Write(pin device.Pin, level device.Level) error {
	line, ok := c.lines[pin]
	if !ok {
		return fmt.Errorf("write pin %s: not configured", pin)
	}
	if err := line.SetValue(int(level)); err != nil {
		return fmt.Errorf("write pin %s: %w", pin, err)
	}
	return nil
}

// Close releases every line and the chip.
// Lines are first reconfigured to input with pull-down (the Pi boot default)
// so relays are released and early boot sees a clean state.
func (c *Chip) Close() error {
	var errs []error

	for pin, line := range c.lines {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %s: %w", pin, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %s: %w", pin, err))
		}
	}
	c.lines = make(map[device.Pin]*gpiocdev.Line)

	if c.chip != nil {
		if err := c.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		c.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
