// Package controller wires the button, light, relay and protocol packages
// into the boot sequence and the single main cycle.
package controller

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/relay-lights/internal/button"
	"github.com/sweeney/relay-lights/internal/clock"
	"github.com/sweeney/relay-lights/internal/device"
	"github.com/sweeney/relay-lights/internal/gpio"
	"github.com/sweeney/relay-lights/internal/light"
	"github.com/sweeney/relay-lights/internal/protocol"
	"github.com/sweeney/relay-lights/internal/registry"
	"github.com/sweeney/relay-lights/internal/relay"
	"github.com/sweeney/relay-lights/internal/storage"
	"github.com/sweeney/relay-lights/internal/transport"
)

// Options configures a Controller.
type Options struct {
	Pins    gpio.Pins
	Clock   clock.Clock
	Codec   *storage.Codec
	Sources *transport.Multi

	Light            light.Settings
	SampleWindow     time.Duration
	ClassifyWindow   time.Duration
	FirstEdgeTimeout time.Duration
}

// Controller owns every piece of process state. It is not safe for
// concurrent use: Boot and Step must be called from one goroutine.
type Controller struct {
	pins    gpio.Pins
	clock   clock.Clock
	codec   *storage.Codec
	sources *transport.Multi

	sampler    *button.Sampler
	machine    *button.Machine
	registry   *registry.Registry
	light      *light.Controller
	relays     *relay.Driver
	dispatcher *protocol.Dispatcher
}

// New creates a Controller. Nothing is read from the store until Load or
// Boot is called.
func New(opts Options) *Controller {
	sources := opts.Sources
	if sources == nil {
		sources = transport.NewMulti()
	}

	sampler := button.NewSampler(opts.Pins, opts.Clock, opts.SampleWindow)
	c := &Controller{
		pins:     opts.Pins,
		clock:    opts.Clock,
		codec:    opts.Codec,
		sources:  sources,
		sampler:  sampler,
		machine:  button.NewMachine(sampler),
		registry: registry.New(opts.Codec),
		light:    light.New(opts.Light, opts.Codec),
		relays:   relay.NewDriver(opts.Pins),
	}
	c.dispatcher = protocol.NewDispatcher(protocol.Deps{
		Registry:   c.registry,
		Light:      c.light,
		Relays:     c.relays,
		Classifier: button.NewClassifier(sampler, opts.ClassifyWindow, opts.FirstEdgeTimeout),
		Pins:       opts.Pins,
		Store:      opts.Codec,
		Clock:      opts.Clock,
	})
	return c
}

// Load restores the persisted configuration, light record and registry
// without touching any pin. Absent records fall back to defaults.
func (c *Controller) Load() error {
	cfg, err := c.codec.LoadConfig()
	if errors.Is(err, storage.ErrNotPresent) {
		log.Info().Msg("no stored config, using defaults")
		cfg = device.DefaultConfig()
	} else if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rec, err := c.codec.LoadLight()
	if errors.Is(err, storage.ErrNotPresent) {
		rec = device.LightRecord{Mode: 1}
	} else if err != nil {
		return fmt.Errorf("load light: %w", err)
	}

	if err := c.registry.Load(); err != nil {
		// A failed rewrite of the compacted layout still leaves a usable
		// registry in memory.
		if !errors.Is(err, storage.ErrMismatch) {
			return err
		}
		log.Warn().Err(err).Msg("compacted registry not saved")
	}

	c.light.Restore(cfg, rec, device.MaxMode(c.registry.RelayCount()), c.clock.Now())
	return nil
}

// Boot loads the persisted state and configures every registered pin:
// buttons become pulled-up inputs seeded with their current level, and
// relays are driven off. The configured initial light state is applied on
// the first Step.
func (c *Controller) Boot() error {
	if err := c.Load(); err != nil {
		return err
	}

	now := c.clock.Now()
	buttons := c.registry.Buttons()
	for i := range buttons {
		b := &buttons[i]
		if err := c.pins.SetupInput(b.Pin); err != nil {
			return fmt.Errorf("setup button %s: %w", b.Pin, err)
		}
		level, err := c.sampler.Sample(b.Pin)
		if err != nil {
			return fmt.Errorf("sample button %s: %w", b.Pin, err)
		}
		b.LastRawLevel = level
		b.Engaged = b.Class == device.Latching && level == b.ActiveLevel
		b.StateEnteredAt = now
		b.PreviousStateEnteredAt = now
	}

	relays := c.registry.Relays()
	for i := range relays {
		r := &relays[i]
		if err := c.pins.SetupOutput(r.Pin, relay.OutputLevel(*r, false)); err != nil {
			return fmt.Errorf("setup relay %s: %w", r.Pin, err)
		}
		r.On = false
	}

	st := c.light.Snapshot()
	log.Info().
		Int("buttons", len(buttons)).
		Int("relays", len(relays)).
		Bool("on", st.On).
		Uint8("mode", st.Mode).
		Uint16("average", st.AverageOnMinutes).
		Msg("booted")
	return nil
}

// Step runs one main cycle: sample and advance every button, feed the
// transitions to the light, run the timeout check, drive the relays if the
// light changed, then handle at most one command record. It returns the
// light events of the cycle.
func (c *Controller) Step() []light.Event {
	var events []light.Event

	buttons := c.registry.Buttons()
	for i := range buttons {
		b := &buttons[i]
		changed, err := c.machine.Update(b)
		if err != nil {
			log.Error().Err(err).Str("pin", b.Pin.String()).Msg("button sample failed")
			continue
		}
		if changed {
			events = append(events, c.light.OnButtonTransition(*b, b.StateEnteredAt)...)
		}
	}

	events = append(events, c.light.Tick(c.clock.Now())...)

	if c.light.PendingApply() {
		if err := c.relays.Apply(c.registry.Relays(), c.light.On(), c.light.Mode()); err != nil {
			log.Error().Err(err).Msg("relay apply failed")
		}
		c.light.ClearPending()
	}

	if rec, ok := c.sources.Poll(); ok {
		res := c.dispatcher.Handle(rec.Line)
		events = append(events, res.Events...)
		if res.Reply != "" {
			if err := rec.Source.Reply(res.Reply); err != nil {
				log.Error().Err(err).Str("source", rec.Source.Name()).Msg("reply failed")
			}
		}
	}

	return events
}

// Handle applies one command record outside the cycle and returns its
// reply.
func (c *Controller) Handle(line []byte) protocol.Result {
	return c.dispatcher.Handle(line)
}

// LightState returns the current light state.
func (c *Controller) LightState() light.State {
	return c.light.Snapshot()
}

// Buttons returns a copy of the registered buttons.
func (c *Controller) Buttons() []device.Button {
	return append([]device.Button(nil), c.registry.Buttons()...)
}

// Relays returns a copy of the registered relays.
func (c *Controller) Relays() []device.Relay {
	return append([]device.Relay(nil), c.registry.Relays()...)
}

// Config returns the process configuration.
func (c *Controller) Config() device.Config {
	return c.light.Config()
}

// StatusText renders the status block, button listing and relay listing.
func (c *Controller) StatusText() string {
	return protocol.StatusText(c.registry.ButtonCount(), c.registry.RelayCount(), c.light.Snapshot()) + "\n" +
		protocol.ButtonsText(c.registry.Buttons()) + "\n" +
		protocol.RelaysText(c.registry.Relays())
}

// Counts returns the number of registered buttons and relays.
func (c *Controller) Counts() (buttons, relays int) {
	return c.registry.ButtonCount(), c.registry.RelayCount()
}
