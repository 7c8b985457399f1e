package protocol

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/relay-lights/internal/clock"
	"github.com/sweeney/relay-lights/internal/device"
	"github.com/sweeney/relay-lights/internal/light"
	"github.com/sweeney/relay-lights/internal/registry"
	"github.com/sweeney/relay-lights/internal/relay"
	"github.com/sweeney/relay-lights/internal/storage"
)

// Pins configures pin directions for newly registered devices.
type Pins interface {
	SetupInput(pin device.Pin) error
	SetupOutput(pin device.Pin, initial device.Level) error
}

// Classifier discovers the class of a newly wired button. It blocks until
// the button has been actuated.
type Classifier interface {
	Classify(pin device.Pin) (device.Button, error)
}

// Store persists the configuration and can wipe the whole store.
type Store interface {
	SaveConfig(cfg device.Config) error
	Clear() error
}

// Deps are the collaborators a Dispatcher mutates.
type Deps struct {
	Registry   *registry.Registry
	Light      *light.Controller
	Relays     *relay.Driver
	Classifier Classifier
	Pins       Pins
	Store      Store
	Clock      clock.Clock
}

// Result is the outcome of one record.
type Result struct {
	// Reply is sent back on the source the record arrived on. Empty for
	// ignored records.
	Reply string

	// Events are the light transitions caused by the record.
	Events []light.Event
}

// Dispatcher applies command-channel records. It is not safe for
// concurrent use; the controller calls it from its single cycle.
type Dispatcher struct {
	Deps
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(d Deps) *Dispatcher {
	return &Dispatcher{Deps: d}
}

// Handle parses and applies one record. Malformed records and unknown
// actions are logged and ignored.
func (d *Dispatcher) Handle(line []byte) Result {
	msg, err := Parse(line)
	if errors.Is(err, ErrParse) {
		log.Debug().Err(err).Msg("dropping malformed record")
		return Result{}
	}
	if err != nil {
		return Result{Reply: errorReply(err)}
	}
	return d.Dispatch(msg)
}

// Dispatch applies a parsed message.
func (d *Dispatcher) Dispatch(msg Message) Result {
	switch {
	case msg.Device != nil:
		if msg.Device.Kind == device.KindButton {
			return d.addButton(msg.Device.Pin)
		}
		return d.addRelay(msg.Device.Pin, msg.Device.Level)
	case msg.Command != nil:
		return d.command(msg.Command)
	}
	return Result{}
}

func (d *Dispatcher) command(cmd *Command) Result {
	now := d.Clock.Now()

	switch cmd.Action {
	case ActionStatus:
		return Result{Reply: StatusText(d.Registry.ButtonCount(), d.Registry.RelayCount(), d.Light.Snapshot())}

	case ActionButtons:
		return Result{Reply: ButtonsText(d.Registry.Buttons())}

	case ActionRelays:
		return Result{Reply: RelaysText(d.Registry.Relays())}

	case ActionRemove:
		if cmd.Target == nil {
			return Result{Reply: errorReply(fmt.Errorf("%w: remove requires a device", device.ErrOutOfRange))}
		}
		return d.remove(*cmd.Target, now)

	case ActionLightState:
		n, err := intOption(cmd.Options, 0, 0, 1)
		if err != nil {
			return Result{Reply: errorReply(err)}
		}
		return Result{Reply: ReplyOK, Events: d.Light.SetState(n == 1, now)}

	case ActionLightMode:
		if len(cmd.Options) == 0 {
			events, err := d.Light.CycleMode(now)
			return Result{Reply: reply(err), Events: events}
		}
		n, err := intOption(cmd.Options, 0, 1, int(d.Light.Snapshot().MaxMode))
		if err != nil {
			return Result{Reply: errorReply(err)}
		}
		events, err := d.Light.SetMode(uint8(n), now)
		return Result{Reply: reply(err), Events: events}

	case ActionSetTimeout:
		n, err := intOption(cmd.Options, 0, 0, device.MaxAverageMinutes)
		if err != nil {
			return Result{Reply: errorReply(err)}
		}
		return Result{Reply: reply(d.Light.SetAverage(uint16(n)))}

	case ActionClearROM:
		return d.clear(now)

	case ActionSetConfig:
		ch, err := parseConfig(d.Light.Config(), cmd.Options)
		if err != nil {
			return Result{Reply: errorReply(err)}
		}
		if ch.cooldown != nil {
			d.Light.SetCooldown(*ch.cooldown)
		}
		if !ch.persist {
			return Result{Reply: ReplyOK}
		}
		d.Light.SetConfig(ch.cfg)
		return Result{Reply: reply(d.Store.SaveConfig(ch.cfg))}
	}

	log.Debug().Str("action", cmd.Action).Msg("ignoring unknown action")
	return Result{}
}

func (d *Dispatcher) addButton(pin device.Pin) Result {
	if err := d.Registry.CheckButton(pin); err != nil {
		return Result{Reply: errorReply(err)}
	}
	if err := d.Pins.SetupInput(pin); err != nil {
		return Result{Reply: errorReply(err)}
	}

	log.Info().Str("pin", pin.String()).Msg("classifying button, actuate it now")
	b, err := d.Classifier.Classify(pin)
	if err != nil {
		log.Warn().Err(err).Str("pin", pin.String()).Msg("button classification failed")
		return Result{Reply: errorReply(err)}
	}

	slot, err := d.Registry.AddButton(b)
	if err == nil || errors.Is(err, storage.ErrMismatch) {
		log.Info().
			Str("pin", pin.String()).
			Str("class", b.Class.String()).
			Str("active", b.ActiveLevel.String()).
			Int("slot", slot).
			Msg("button registered")
	}
	return Result{Reply: reply(err)}
}

func (d *Dispatcher) addRelay(pin device.Pin, level device.Level) Result {
	if err := d.Registry.CheckRelay(pin); err != nil {
		return Result{Reply: errorReply(err)}
	}

	r := device.Relay{Pin: pin, ActiveLevel: level}
	if err := d.Pins.SetupOutput(pin, relay.OutputLevel(r, false)); err != nil {
		return Result{Reply: errorReply(err)}
	}

	slot, err := d.Registry.AddRelay(r)
	if err != nil && !errors.Is(err, storage.ErrMismatch) {
		return Result{Reply: errorReply(err)}
	}
	log.Info().Str("pin", pin.String()).Str("active", level.String()).Int("slot", slot).Msg("relay registered")

	events := d.Light.SetMaxMode(device.MaxMode(d.Registry.RelayCount()), d.Clock.Now())
	return Result{Reply: reply(err), Events: events}
}

func (d *Dispatcher) remove(ref DeviceRef, now clock.Millis) Result {
	if ref.Kind == device.KindRelay {
		if i := d.Registry.FindRelay(ref.Pin); i >= 0 {
			if err := d.Relays.Off(&d.Registry.Relays()[i]); err != nil {
				log.Error().Err(err).Msg("failed to release removed relay")
			}
		}
	}

	err := d.Registry.Remove(ref.Kind, ref.Pin)
	if err != nil && !errors.Is(err, storage.ErrMismatch) {
		return Result{Reply: errorReply(err)}
	}
	log.Info().Str("pin", ref.Pin.String()).Str("kind", string(ref.Kind)).Msg("device removed")

	var events []light.Event
	if ref.Kind == device.KindRelay {
		events = d.Light.SetMaxMode(device.MaxMode(d.Registry.RelayCount()), now)
	}
	return Result{Reply: reply(err), Events: events}
}

// clear releases every relay, wipes the store and returns the registry and
// light to their unconfigured state.
func (d *Dispatcher) clear(now clock.Millis) Result {
	relays := d.Registry.Relays()
	for i := range relays {
		if err := d.Relays.Off(&relays[i]); err != nil {
			log.Error().Err(err).Msg("failed to release relay")
		}
	}

	err := d.Store.Clear()
	d.Registry.Reset()
	d.Light.Reset(now)
	d.Light.SetConfig(device.DefaultConfig())
	log.Warn().Err(err).Msg("persistent storage cleared")
	return Result{Reply: reply(err)}
}

func reply(err error) string {
	if err == nil {
		return ReplyOK
	}
	return errorReply(err)
}

func errorReply(err error) string {
	if errors.Is(err, storage.ErrMismatch) {
		return ReplyNotSaved
	}
	return "error: " + err.Error()
}
