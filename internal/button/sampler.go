// Package button turns raw pin levels into button state: it debounces
// readings, discovers the class and polarity of newly wired buttons, and
// advances the per-button state machine.
package button

import (
	"fmt"
	"time"

	"github.com/sweeney/relay-lights/internal/clock"
	"github.com/sweeney/relay-lights/internal/device"
)

// Reader reads raw pin levels.
type Reader interface {
	Read(pin device.Pin) (device.Level, error)
}

// DefaultSampleWindow is the debounce window used when none is configured.
const DefaultSampleWindow = 5 * time.Millisecond

// maxReads bounds a single Sample call independently of the clock.
const maxReads = 4096

// Sampler debounces a pin by polling it for a fixed window and returning the
// majority level. Sample is the only blocking primitive used per cycle: it
// returns after the window elapses or maxReads reads, whichever comes first.
type Sampler struct {
	pins   Reader
	clock  clock.Clock
	window clock.Millis
}

// NewSampler creates a Sampler polling pins for window per sample.
func NewSampler(pins Reader, clk clock.Clock, window time.Duration) *Sampler {
	return &Sampler{
		pins:   pins,
		clock:  clk,
		window: clock.FromDuration(window),
	}
}

// Clock returns the clock the sampler measures its window with.
func (s *Sampler) Clock() clock.Clock {
	return s.clock
}

// Sample returns the debounced level of pin. Ties round toward High.
// Failed reads are skipped; an error is returned only when every read in
// the window failed.
func (s *Sampler) Sample(pin device.Pin) (device.Level, error) {
	start := s.clock.Now()

	var (
		high, total int
		lastErr     error
	)
	for n := 0; n < maxReads; n++ {
		level, err := s.pins.Read(pin)
		if err != nil {
			lastErr = err
		} else {
			total++
			if level == device.High {
				high++
			}
		}
		if s.clock.Now().Since(start) >= s.window {
			break
		}
	}

	if total == 0 {
		return device.Low, fmt.Errorf("sample pin %s: %w", pin, lastErr)
	}
	return device.LevelOf(2*high >= total), nil
}
