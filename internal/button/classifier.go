package button

import (
	"fmt"
	"time"

	"github.com/sweeney/relay-lights/internal/clock"
	"github.com/sweeney/relay-lights/internal/device"
)

// DefaultClassifyWindow is how long the classifier waits for the second
// edge of a momentary press.
const DefaultClassifyWindow = 300 * time.Millisecond

// Classifier discovers the class and active level of an unclassified button
// by watching the first press.
//
// The first level observed is the baseline. The first change from baseline
// is taken as the press, and its level becomes the active level. A second
// change inside the window means the button sprang back (Momentary);
// otherwise the switch stayed put (Latching). A button already held when
// classification starts is learned with an inverted active level; this is
// not corrected.
type Classifier struct {
	sampler *Sampler

	window           clock.Millis
	firstEdgeTimeout clock.Millis
}

// NewClassifier creates a Classifier. A zero firstEdgeTimeout waits for the
// first edge indefinitely.
func NewClassifier(sampler *Sampler, window, firstEdgeTimeout time.Duration) *Classifier {
	return &Classifier{
		sampler:          sampler,
		window:           clock.FromDuration(window),
		firstEdgeTimeout: clock.FromDuration(firstEdgeTimeout),
	}
}

// Classify blocks until the button on pin has been classified.
// It cannot be cancelled; it returns ErrNoEdge if the first edge does not
// arrive within the first-edge timeout.
func (c *Classifier) Classify(pin device.Pin) (device.Button, error) {
	clk := c.sampler.Clock()

	baseline, err := c.sampler.Sample(pin)
	if err != nil {
		return device.Button{}, fmt.Errorf("classify: %w", err)
	}

	start := clk.Now()
	var active device.Level
	for {
		level, err := c.sampler.Sample(pin)
		if err != nil {
			return device.Button{}, fmt.Errorf("classify: %w", err)
		}
		if level != baseline {
			active = level
			break
		}
		if c.firstEdgeTimeout > 0 && clk.Now().Since(start) >= c.firstEdgeTimeout {
			return device.Button{}, fmt.Errorf("classify pin %s: %w", pin, ErrNoEdge)
		}
	}

	edgeAt := clk.Now()
	class := device.Latching
	for clk.Now().Since(edgeAt) < c.window {
		level, err := c.sampler.Sample(pin)
		if err != nil {
			return device.Button{}, fmt.Errorf("classify: %w", err)
		}
		if level != active {
			class = device.Momentary
			break
		}
	}

	current, err := c.sampler.Sample(pin)
	if err != nil {
		return device.Button{}, fmt.Errorf("classify: %w", err)
	}

	now := clk.Now()
	return device.Button{
		Pin:                    pin,
		Class:                  class,
		ActiveLevel:            active,
		LastRawLevel:           current,
		StateEnteredAt:         now,
		PreviousStateEnteredAt: now,
	}, nil
}
