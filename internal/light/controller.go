package light

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/relay-lights/internal/button"
	"github.com/sweeney/relay-lights/internal/clock"
	"github.com/sweeney/relay-lights/internal/device"
)

// Controller owns the light state.
type Controller struct {
	settings    Settings
	doubleClick clock.Millis
	saver       Saver
	cfg         device.Config

	on            bool
	mode          uint8
	maxMode       uint8
	lastChangedAt clock.Millis
	pendingApply  bool

	timeoutLearner
	counts  EventCounts
	saveErr error
}

// New creates a Controller with the light off in mode 1.
func New(settings Settings, saver Saver) *Controller {
	c := &Controller{
		settings:    settings,
		doubleClick: clock.FromDuration(settings.DoubleClickWindow),
		saver:       saver,
		mode:        1,
		maxMode:     1,
	}
	c.timeoutLearner.init(settings)
	return c
}

// Restore sets the boot state: persisted average and mode, the configured
// initial light state, and the mode range for the registered relays.
func (c *Controller) Restore(cfg device.Config, rec device.LightRecord, maxMode uint8, now clock.Millis) {
	c.cfg = cfg
	c.maxMode = maxMode
	c.mode = device.ClampMode(rec.Mode, maxMode)
	c.average = rec.AverageOnMinutes
	c.on = cfg.InitialLightState
	c.lastChangedAt = now
	c.pendingApply = true
}

// Reset returns the controller to its unconfigured state.
func (c *Controller) Reset(now clock.Millis) {
	counts := c.counts
	*c = *New(c.settings, c.saver)
	c.counts = counts
	c.lastChangedAt = now
	c.pendingApply = true
}

// Config returns the current configuration.
func (c *Controller) Config() device.Config {
	return c.cfg
}

// SetConfig replaces the configuration. Persisting it is the caller's job.
func (c *Controller) SetConfig(cfg device.Config) {
	c.cfg = cfg
}

// SetMaxMode updates the mode range after relays were added or removed,
// clamping the current mode into it.
func (c *Controller) SetMaxMode(maxMode uint8, now clock.Millis) []Event {
	c.maxMode = maxMode
	c.pendingApply = true
	if clamped := device.ClampMode(c.mode, maxMode); clamped != c.mode {
		return c.setModeValue(clamped, now)
	}
	return nil
}

// OnButtonTransition interprets a button transition.
//
// For momentary buttons, a transition closer than the double-click window
// to the previous one is a double actuation: the mode cycles back by one
// and the light is switched on if it was off. Any other transition toggles
// the light. Latching buttons always toggle, unless the configuration asks
// them to follow the switch position.
func (c *Controller) OnButtonTransition(b device.Button, now clock.Millis) []Event {
	switch b.Class {
	case device.Momentary:
		if button.Gap(b) <= c.doubleClick {
			events := c.setModeValue(CycleModeBack(c.mode, c.maxMode), now)
			return append(events, c.turnOn(now, false)...)
		}
		return c.toggle(now)

	case device.Latching:
		if c.cfg.LatchingFollowsPosition {
			if b.Engaged {
				return c.turnOn(now, true)
			}
			return c.turnOff(now, false)
		}
		return c.toggle(now)
	}
	return nil
}

// SetState switches the light on or off directly. State changes are not
// persisted.
func (c *Controller) SetState(on bool, now clock.Millis) []Event {
	if on {
		return c.turnOn(now, false)
	}
	return c.turnOff(now, false)
}

// SetMode selects mode, clamped into [1, maxMode], and persists it.
func (c *Controller) SetMode(mode uint8, now clock.Millis) ([]Event, error) {
	events := c.setModeValue(device.ClampMode(mode, c.maxMode), now)
	return events, c.saveErr
}

// CycleMode steps the mode back by one and persists it.
func (c *Controller) CycleMode(now clock.Millis) ([]Event, error) {
	events := c.setModeValue(CycleModeBack(c.mode, c.maxMode), now)
	return events, c.saveErr
}

// SetAverage replaces the learned average on-duration and persists it.
func (c *Controller) SetAverage(minutes uint16) error {
	if minutes > device.MaxAverageMinutes {
		return fmt.Errorf("%w: average %d", device.ErrOutOfRange, minutes)
	}
	c.average = minutes
	c.resetRing()
	return c.save()
}

// SetCooldown changes the timeout cooldown. It is not persisted.
func (c *Controller) SetCooldown(seconds uint16) {
	c.cooldown = clock.FromDuration(time.Duration(seconds) * time.Second)
}

// Tick runs the timeout check. Called once per cycle.
func (c *Controller) Tick(now clock.Millis) []Event {
	var events []Event

	if dir, ok := c.resolveCooldown(now); ok {
		events = append(events, c.event(now, EventTimeoutAdjusted))
		log.Info().Int("direction", dir).Int8("delta", c.delta).Msg("timeout adjusted")
	}

	if c.on && c.average != 0 {
		limit := clock.Millis(c.timeoutMinutes()) * 60_000
		if now.Since(c.lastChangedAt) > limit {
			events = append(events, c.turnOff(now, true)...)
			c.fire(now)
			c.counts.Timeouts++
			events = append(events, c.event(now, EventTimeout))
			log.Info().Int("timeout_minutes", c.timeoutMinutes()).Msg("light timed out")
		}
	}

	return events
}

// PendingApply reports whether the relays need to be driven.
func (c *Controller) PendingApply() bool {
	return c.pendingApply
}

// ClearPending marks the relays as driven.
func (c *Controller) ClearPending() {
	c.pendingApply = false
}

// On reports whether the light is on.
func (c *Controller) On() bool {
	return c.on
}

// Mode returns the current mode.
func (c *Controller) Mode() uint8 {
	return c.mode
}

// Snapshot returns the current controller state.
func (c *Controller) Snapshot() State {
	return State{
		On:               c.on,
		Mode:             c.mode,
		MaxMode:          c.maxMode,
		AverageOnMinutes: c.average,
		TimeoutMinutes:   c.timeoutMinutes(),
		DeltaMinutes:     c.delta,
		CooldownSeconds:  uint16(c.cooldown / 1000),
		LastChangedAt:    c.lastChangedAt,
		TimeoutPending:   c.fired,
		Counts:           c.counts,
	}
}

// Record returns the persisted part of the state.
func (c *Controller) Record() device.LightRecord {
	return device.LightRecord{AverageOnMinutes: c.average, Mode: c.mode}
}

// CycleModeBack returns the mode before mode, wrapping from 1 to maxMode.
func CycleModeBack(mode, maxMode uint8) uint8 {
	if maxMode < 1 {
		maxMode = 1
	}
	if mode <= 1 || mode > maxMode {
		return maxMode
	}
	return mode - 1
}

func (c *Controller) toggle(now clock.Millis) []Event {
	if c.on {
		return c.turnOff(now, false)
	}
	return c.turnOn(now, true)
}

func (c *Controller) turnOn(now clock.Millis, applyDefault bool) []Event {
	if c.on {
		return nil
	}

	var events []Event
	if c.resolveReOn(now) {
		events = append(events, c.event(now, EventTimeoutAdjusted))
		log.Info().Int8("delta", c.delta).Msg("timeout adjusted after re-on")
	}

	c.on = true
	c.lastChangedAt = now
	c.pendingApply = true
	c.counts.On++

	if applyDefault && c.cfg.DefaultModeOnTurnOn != 0 {
		events = append(events, c.setModeValue(device.ClampMode(c.cfg.DefaultModeOnTurnOn, c.maxMode), now)...)
	}
	return append(events, c.event(now, EventOn))
}

// turnOff switches the light off. Forced (timeout) offs are not learned.
func (c *Controller) turnOff(now clock.Millis, forced bool) []Event {
	if !c.on {
		return nil
	}

	var events []Event
	if !forced {
		minutes := int(now.Since(c.lastChangedAt) / 60_000)
		if c.learn(minutes) {
			events = append(events, c.event(now, EventAverageUpdated))
			if err := c.save(); err != nil {
				log.Warn().Err(err).Msg("failed to save learned average")
			}
		}
	}

	c.on = false
	c.lastChangedAt = now
	c.pendingApply = true
	c.counts.Off++
	return append(events, c.event(now, EventOff))
}

// setModeValue stores mode and persists it. The save result is kept in
// saveErr for callers that report it.
func (c *Controller) setModeValue(mode uint8, now clock.Millis) []Event {
	c.saveErr = nil
	if mode == c.mode {
		return nil
	}
	c.mode = mode
	c.pendingApply = true
	c.counts.Mode++
	if err := c.save(); err != nil {
		c.saveErr = err
		log.Warn().Err(err).Uint8("mode", mode).Msg("failed to save mode")
	}
	return []Event{c.event(now, EventMode)}
}

func (c *Controller) save() error {
	if c.saver == nil {
		return nil
	}
	return c.saver.SaveLight(c.Record())
}

func (c *Controller) event(now clock.Millis, t EventType) Event {
	return Event{
		At:             now,
		Type:           t,
		On:             c.on,
		Mode:           c.mode,
		TimeoutMinutes: c.timeoutMinutes(),
		DeltaMinutes:   c.delta,
	}
}
