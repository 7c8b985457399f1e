// Package protocol parses command-channel records and dispatches them to the
// registry and light controller.
//
// Each record is one JSON object on its own line. Device records register a
// button or relay:
//
//	{"pin": 2, "device": "B"}
//	{"pin": "A0", "device": "R", "type": "H"}
//
// Command records name an action with optional arguments:
//
//	{"action": "light_mode", "options": [3]}
//	{"action": "remove", "device": {"pin": 2, "device": "B"}}
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/sweeney/relay-lights/internal/device"
)

// Command actions.
const (
	ActionStatus     = "status"
	ActionButtons    = "buttons"
	ActionRelays     = "relays"
	ActionRemove     = "remove"
	ActionLightState = "light_state"
	ActionLightMode  = "light_mode"
	ActionSetTimeout = "set_timeout"
	ActionClearROM   = "clear_rom"
	ActionSetConfig  = "set_config"
)

// DeviceMessage registers or replaces a device.
type DeviceMessage struct {
	Pin  device.Pin
	Kind device.Kind
	// Level is the relay active level. Ignored for buttons.
	Level device.Level
}

// Command is an action record.
type Command struct {
	Action  string
	Options []any
	// Target is the device named by a remove command.
	Target *DeviceRef
}

// DeviceRef names a registered device.
type DeviceRef struct {
	Pin  device.Pin
	Kind device.Kind
}

// Message is a parsed record: exactly one of Device or Command is set.
type Message struct {
	Device  *DeviceMessage
	Command *Command
}

// PinRef is a pin reference as it appears on the wire: a bare integer, or a
// string such as "A0" or "D13".
type PinRef struct {
	Pin device.Pin
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *PinRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		pin, err := device.ParsePin(s)
		if err != nil {
			return err
		}
		p.Pin = pin
		return nil
	}

	n, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("%w: %s", device.ErrInvalidPin, data)
	}
	pin, err := device.DigitalPin(n)
	if err != nil {
		return err
	}
	p.Pin = pin
	return nil
}

type wireRecord struct {
	Action  string          `json:"action"`
	Options []any           `json:"options"`
	Pin     *PinRef         `json:"pin"`
	Device  json.RawMessage `json:"device"`
	Type    string          `json:"type"`
}

type wireDevice struct {
	Pin    *PinRef `json:"pin"`
	Device string  `json:"device"`
}

// Parse decodes one record. Malformed records return an error wrapping
// ErrParse; records that are well formed but name an invalid pin or type
// return the validation error from package device.
func Parse(line []byte) (Message, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Message{}, fmt.Errorf("%w: empty record", ErrParse)
	}

	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	var rec wireRecord
	if err := dec.Decode(&rec); err != nil {
		return Message{}, wrapDecode(err)
	}
	if dec.More() {
		return Message{}, fmt.Errorf("%w: trailing data", ErrParse)
	}

	if rec.Action != "" {
		return parseCommand(rec)
	}
	return parseDevice(rec)
}

func parseCommand(rec wireRecord) (Message, error) {
	cmd := &Command{Action: rec.Action, Options: rec.Options}
	if len(rec.Device) > 0 && !bytes.Equal(rec.Device, []byte("null")) {
		var d wireDevice
		if err := json.Unmarshal(rec.Device, &d); err != nil {
			return Message{}, wrapDecode(err)
		}
		if d.Pin == nil {
			return Message{}, fmt.Errorf("%w: device without pin", ErrParse)
		}
		kind, err := device.ParseKind(d.Device)
		if err != nil {
			return Message{}, fmt.Errorf("%w: %q", err, d.Device)
		}
		cmd.Target = &DeviceRef{Pin: d.Pin.Pin, Kind: kind}
	}
	return Message{Command: cmd}, nil
}

func parseDevice(rec wireRecord) (Message, error) {
	if rec.Pin == nil || len(rec.Device) == 0 {
		return Message{}, fmt.Errorf("%w: neither action nor device", ErrParse)
	}

	var tag string
	if err := json.Unmarshal(rec.Device, &tag); err != nil {
		return Message{}, fmt.Errorf("%w: device must be a string", ErrParse)
	}
	kind, err := device.ParseKind(tag)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %q", err, tag)
	}

	msg := &DeviceMessage{Pin: rec.Pin.Pin, Kind: kind}
	if kind == device.KindRelay {
		if rec.Type == "" {
			return Message{}, fmt.Errorf("%w: relay requires type", device.ErrUnknownType)
		}
		level, err := device.ParseLevel(rec.Type)
		if err != nil {
			return Message{}, fmt.Errorf("%w: %q", err, rec.Type)
		}
		msg.Level = level
	}
	return Message{Device: msg}, nil
}

// wrapDecode keeps pin validation errors raised inside PinRef and reports
// everything else as a parse failure.
func wrapDecode(err error) error {
	if errors.Is(err, device.ErrInvalidPin) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrParse, err)
}
