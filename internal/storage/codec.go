package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/sweeney/relay-lights/internal/device"
)

// Config record flag bits.
const (
	flagInitialOn      byte = 1 << 0
	flagLatchingFollow byte = 1 << 1
	configFlagMask          = flagInitialOn | flagLatchingFollow
)

// Codec encodes controller entities into a Store following a Layout.
//
// Saves write each field and read it back; the first field that does not
// compare equal fails the save with ErrMismatch. Multi-field records are not
// written atomically. Loads range-check every field and report ErrNotPresent
// for the whole record if any field is invalid.
type Codec struct {
	store  Store
	layout Layout
}

// NewCodec creates a Codec. The store must be large enough for the layout.
func NewCodec(store Store, layout Layout) (*Codec, error) {
	if store.Size() < layout.Size() {
		return nil, fmt.Errorf("%w: layout needs %d bytes, store has %d", ErrAddress, layout.Size(), store.Size())
	}
	return &Codec{store: store, layout: layout}, nil
}

// Layout returns the layout the codec writes.
func (c *Codec) Layout() Layout {
	return c.layout
}

// SaveConfig persists cfg.
func (c *Codec) SaveConfig(cfg device.Config) error {
	var flags byte
	if cfg.InitialLightState {
		flags |= flagInitialOn
	}
	if cfg.LatchingFollowsPosition {
		flags |= flagLatchingFollow
	}
	return c.save(EntityConfig, 0, []byte{flags}, []byte{cfg.DefaultModeOnTurnOn})
}

// LoadConfig reads the persisted configuration.
func (c *Codec) LoadConfig() (device.Config, error) {
	rec, err := c.read(EntityConfig, 0)
	if err != nil {
		return device.Config{}, err
	}
	flags, mode := rec[0], rec[1]
	if flags&^configFlagMask != 0 || mode > device.MaxMode(device.MaxRelays) {
		return device.Config{}, fmt.Errorf("load config: %w", ErrNotPresent)
	}
	return device.Config{
		InitialLightState:       flags&flagInitialOn != 0,
		DefaultModeOnTurnOn:     mode,
		LatchingFollowsPosition: flags&flagLatchingFollow != 0,
	}, nil
}

// SaveLight persists the average duration and mode.
func (c *Codec) SaveLight(rec device.LightRecord) error {
	avg := make([]byte, 2)
	binary.LittleEndian.PutUint16(avg, rec.AverageOnMinutes)
	return c.save(EntityLight, 0, avg, []byte{rec.Mode})
}

// LoadLight reads the persisted light fields.
func (c *Codec) LoadLight() (device.LightRecord, error) {
	raw, err := c.read(EntityLight, 0)
	if err != nil {
		return device.LightRecord{}, err
	}
	rec := device.LightRecord{
		AverageOnMinutes: binary.LittleEndian.Uint16(raw[0:2]),
		Mode:             raw[2],
	}
	if rec.AverageOnMinutes > device.MaxAverageMinutes || rec.Mode < 1 || rec.Mode > device.MaxMode(device.MaxRelays) {
		return device.LightRecord{}, fmt.Errorf("load light: %w", ErrNotPresent)
	}
	return rec, nil
}

// SaveCounts persists the device counts.
func (c *Codec) SaveCounts(buttons, relays int) error {
	return c.save(EntityCounts, 0, []byte{byte(buttons)}, []byte{byte(relays)})
}

// LoadCounts reads the persisted device counts.
func (c *Codec) LoadCounts() (buttons, relays int, err error) {
	raw, err := c.read(EntityCounts, 0)
	if err != nil {
		return 0, 0, err
	}
	buttons, relays = int(raw[0]), int(raw[1])
	if buttons > c.layout.Region(EntityButton).Slots || relays > c.layout.Region(EntityRelay).Slots {
		return 0, 0, fmt.Errorf("load counts: %w", ErrNotPresent)
	}
	return buttons, relays, nil
}

// SaveButton persists the identity of b in slot. Runtime fields are not
// stored.
func (c *Codec) SaveButton(slot int, b device.Button) error {
	return c.save(EntityButton, slot, []byte{byte(b.Pin)}, []byte{byte(b.Class)}, []byte{byte(b.ActiveLevel)})
}

// LoadButton reads the button in slot with its runtime fields reset.
func (c *Codec) LoadButton(slot int) (device.Button, error) {
	raw, err := c.read(EntityButton, slot)
	if err != nil {
		return device.Button{}, err
	}
	pin, class, level := device.Pin(raw[0]), device.Class(raw[1]), raw[2]
	if !pin.Valid() || !class.Valid() || level > 1 {
		return device.Button{}, fmt.Errorf("load button %d: %w", slot, ErrNotPresent)
	}
	return device.Button{Pin: pin, Class: class, ActiveLevel: device.Level(level)}, nil
}

// SaveRelay persists the identity of r in slot.
func (c *Codec) SaveRelay(slot int, r device.Relay) error {
	return c.save(EntityRelay, slot, []byte{byte(r.Pin)}, []byte{byte(r.ActiveLevel)})
}

// LoadRelay reads the relay in slot.
func (c *Codec) LoadRelay(slot int) (device.Relay, error) {
	raw, err := c.read(EntityRelay, slot)
	if err != nil {
		return device.Relay{}, err
	}
	pin, level := device.Pin(raw[0]), raw[1]
	if !pin.Valid() || level > 1 {
		return device.Relay{}, fmt.Errorf("load relay %d: %w", slot, ErrNotPresent)
	}
	return device.Relay{Pin: pin, ActiveLevel: device.Level(level)}, nil
}

// Erase resets slot of entity e to erased bytes.
func (c *Codec) Erase(e Entity, slot int) error {
	size := c.layout.Region(e).RecordSize
	blank := make([]byte, size)
	for i := range blank {
		blank[i] = Erased
	}
	return c.save(e, slot, blank)
}

// Clear erases the whole store. Stores that can fill themselves in one
// write do so; every byte is still read back.
func (c *Codec) Clear() error {
	f, ok := c.store.(Filler)
	if !ok {
		for addr := 0; addr < c.store.Size(); addr++ {
			if err := c.writeVerify(addr, []byte{Erased}); err != nil {
				return fmt.Errorf("clear: %w", err)
			}
		}
		return nil
	}

	if err := f.Fill(Erased); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	for addr := 0; addr < c.store.Size(); addr++ {
		got, err := c.store.Get(addr)
		if err != nil {
			return fmt.Errorf("clear: %w", err)
		}
		if got != Erased {
			return fmt.Errorf("clear: %w at %d: read %#02x", ErrMismatch, addr, got)
		}
	}
	return nil
}

// save writes fields back to back starting at the slot offset.
func (c *Codec) save(e Entity, slot int, fields ...[]byte) error {
	addr, err := c.layout.Offset(e, slot)
	if err != nil {
		return err
	}
	for _, f := range fields {
		if err := c.writeVerify(addr, f); err != nil {
			return fmt.Errorf("save %s %d: %w", e, slot, err)
		}
		addr += len(f)
	}
	return nil
}

// writeVerify writes one field and reads it back.
func (c *Codec) writeVerify(addr int, field []byte) error {
	for i, b := range field {
		if err := c.store.Put(addr+i, b); err != nil {
			return err
		}
	}
	for i, want := range field {
		got, err := c.store.Get(addr + i)
		if err != nil {
			return err
		}
		if got != want {
			return fmt.Errorf("%w at %d: wrote %#02x, read %#02x", ErrMismatch, addr+i, want, got)
		}
	}
	return nil
}

func (c *Codec) read(e Entity, slot int) ([]byte, error) {
	addr, err := c.layout.Offset(e, slot)
	if err != nil {
		return nil, err
	}
	raw := make([]byte, c.layout.Region(e).RecordSize)
	for i := range raw {
		if raw[i], err = c.store.Get(addr + i); err != nil {
			return nil, fmt.Errorf("load %s %d: %w", e, slot, err)
		}
	}
	return raw, nil
}
