// Package registry holds the bounded button and relay collections and keeps
// their persisted slots in step with memory.
package registry

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/relay-lights/internal/device"
	"github.com/sweeney/relay-lights/internal/storage"
)

// Codec persists registry records.
type Codec interface {
	LoadCounts() (buttons, relays int, err error)
	LoadButton(slot int) (device.Button, error)
	LoadRelay(slot int) (device.Relay, error)
	SaveCounts(buttons, relays int) error
	SaveButton(slot int, b device.Button) error
	SaveRelay(slot int, r device.Relay) error
	Erase(e storage.Entity, slot int) error
}

// Registry owns the buttons and relays.
//
// Additions and removals are committed in memory first and then persisted.
// A persistence failure is returned wrapped (errors.Is(err,
// storage.ErrMismatch)) with the in-memory change kept; validation and
// capacity failures change nothing.
type Registry struct {
	codec   Codec
	buttons *arena[device.Button]
	relays  *arena[device.Relay]
}

// New creates an empty Registry.
func New(codec Codec) *Registry {
	return &Registry{
		codec:   codec,
		buttons: newArena(device.MaxButtons, func(b device.Button) device.Pin { return b.Pin }),
		relays:  newArena(device.MaxRelays, func(r device.Relay) device.Pin { return r.Pin }),
	}
}

// Load replaces the collections with the persisted ones. Invalid or
// duplicate records are dropped and the remaining entries compacted; if
// anything was dropped the compacted layout is written back.
func (r *Registry) Load() error {
	r.buttons.reset()
	r.relays.reset()

	nb, nr, err := r.codec.LoadCounts()
	if errors.Is(err, storage.ErrNotPresent) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}

	dropped := 0
	for i := 0; i < nb; i++ {
		b, err := r.codec.LoadButton(i)
		if err != nil || r.buttons.find(b.Pin) >= 0 {
			log.Warn().Int("slot", i).Err(err).Msg("dropping stored button")
			dropped++
			continue
		}
		r.buttons.put(b)
	}
	for i := 0; i < nr; i++ {
		rel, err := r.codec.LoadRelay(i)
		if err != nil || r.relays.find(rel.Pin) >= 0 || r.buttons.find(rel.Pin) >= 0 {
			log.Warn().Int("slot", i).Err(err).Msg("dropping stored relay")
			dropped++
			continue
		}
		r.relays.put(rel)
	}

	if dropped > 0 {
		return r.rewrite(nb, nr)
	}
	return nil
}

// rewrite persists the full in-memory layout, erasing slots beyond the
// populated prefix up to the previous counts.
func (r *Registry) rewrite(prevButtons, prevRelays int) error {
	for i, b := range r.buttons.items {
		if err := r.codec.SaveButton(i, b); err != nil {
			return err
		}
	}
	for i := r.buttons.len(); i < prevButtons; i++ {
		if err := r.codec.Erase(storage.EntityButton, i); err != nil {
			return err
		}
	}
	for i, rel := range r.relays.items {
		if err := r.codec.SaveRelay(i, rel); err != nil {
			return err
		}
	}
	for i := r.relays.len(); i < prevRelays; i++ {
		if err := r.codec.Erase(storage.EntityRelay, i); err != nil {
			return err
		}
	}
	return r.saveCounts()
}

// CheckButton reports whether a button on pin could be added, without
// changing anything. Callers use it before the blocking classification.
func (r *Registry) CheckButton(pin device.Pin) error {
	if !pin.Valid() {
		return fmt.Errorf("%w: %s", device.ErrInvalidPin, pin)
	}
	if r.relays.find(pin) >= 0 {
		return fmt.Errorf("%w: %s is a relay", ErrPinInUse, pin)
	}
	if r.buttons.find(pin) < 0 && r.buttons.full() {
		return ErrCapacity
	}
	return nil
}

// CheckRelay reports whether a relay on pin could be added.
func (r *Registry) CheckRelay(pin device.Pin) error {
	if !pin.Valid() {
		return fmt.Errorf("%w: %s", device.ErrInvalidPin, pin)
	}
	if r.buttons.find(pin) >= 0 {
		return fmt.Errorf("%w: %s is a button", ErrPinInUse, pin)
	}
	if r.relays.find(pin) < 0 && r.relays.full() {
		return ErrCapacity
	}
	return nil
}

// AddButton registers a classified button, replacing any button already on
// the same pin. Returns the slot it occupies.
func (r *Registry) AddButton(b device.Button) (int, error) {
	if err := r.CheckButton(b.Pin); err != nil {
		return 0, err
	}
	if !b.Class.Valid() {
		return 0, fmt.Errorf("%w: class %s", device.ErrUnknownType, b.Class)
	}

	slot, replaced, err := r.buttons.put(b)
	if err != nil {
		return 0, err
	}
	if err := r.codec.SaveButton(slot, b); err != nil {
		return slot, err
	}
	if !replaced {
		return slot, r.saveCounts()
	}
	return slot, nil
}

// AddRelay registers a relay, replacing any relay already on the same pin.
// Returns the slot it occupies.
func (r *Registry) AddRelay(rel device.Relay) (int, error) {
	if err := r.CheckRelay(rel.Pin); err != nil {
		return 0, err
	}
	if rel.ActiveLevel > device.High {
		return 0, fmt.Errorf("%w: level %d", device.ErrUnknownType, rel.ActiveLevel)
	}

	slot, replaced, err := r.relays.put(rel)
	if err != nil {
		return 0, err
	}
	if err := r.codec.SaveRelay(slot, rel); err != nil {
		return slot, err
	}
	if !replaced {
		return slot, r.saveCounts()
	}
	return slot, nil
}

// Remove unregisters the device of kind on pin, compacting the collection
// and erasing the freed persisted slot.
func (r *Registry) Remove(kind device.Kind, pin device.Pin) error {
	switch kind {
	case device.KindButton:
		slot, err := r.buttons.remove(pin)
		if err != nil {
			return fmt.Errorf("remove button %s: %w", pin, err)
		}
		for i := slot; i < r.buttons.len(); i++ {
			if err := r.codec.SaveButton(i, r.buttons.items[i]); err != nil {
				return err
			}
		}
		if err := r.codec.Erase(storage.EntityButton, r.buttons.len()); err != nil {
			return err
		}

	case device.KindRelay:
		slot, err := r.relays.remove(pin)
		if err != nil {
			return fmt.Errorf("remove relay %s: %w", pin, err)
		}
		for i := slot; i < r.relays.len(); i++ {
			if err := r.codec.SaveRelay(i, r.relays.items[i]); err != nil {
				return err
			}
		}
		if err := r.codec.Erase(storage.EntityRelay, r.relays.len()); err != nil {
			return err
		}

	default:
		return fmt.Errorf("%w: %q", device.ErrUnknownType, kind)
	}

	return r.saveCounts()
}

// Reset empties both collections in memory only.
func (r *Registry) Reset() {
	r.buttons.reset()
	r.relays.reset()
}

func (r *Registry) saveCounts() error {
	return r.codec.SaveCounts(r.buttons.len(), r.relays.len())
}

// ButtonCount returns the number of registered buttons.
func (r *Registry) ButtonCount() int { return r.buttons.len() }

// RelayCount returns the number of registered relays.
func (r *Registry) RelayCount() int { return r.relays.len() }

// Buttons returns the registered buttons in slot order. The slice aliases
// the registry; callers may update runtime fields in place but must not
// change pins or grow it.
func (r *Registry) Buttons() []device.Button {
	return r.buttons.items
}

// Relays returns the registered relays in slot order, aliasing the registry
// like Buttons. The relay driver updates On in place.
func (r *Registry) Relays() []device.Relay {
	return r.relays.items
}

// FindButton returns the slot of the button on pin, or -1.
func (r *Registry) FindButton(pin device.Pin) int {
	return r.buttons.find(pin)
}

// FindRelay returns the slot of the relay on pin, or -1.
func (r *Registry) FindRelay(pin device.Pin) int {
	return r.relays.find(pin)
}
