package protocol

import (
	"fmt"
	"strings"

	"github.com/sweeney/relay-lights/internal/device"
	"github.com/sweeney/relay-lights/internal/light"
)

// Reply lines.
const (
	ReplyOK       = "ok"
	ReplyNotSaved = "error: not saved"
)

// StatusText formats the status reply.
func StatusText(buttons, relays int, s light.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "buttons: %d\n", buttons)
	fmt.Fprintf(&b, "relays: %d\n", relays)
	fmt.Fprintf(&b, "state: %s\n", onOff(s.On))
	fmt.Fprintf(&b, "mode: %d\n", s.Mode)
	fmt.Fprintf(&b, "average: %d\n", s.AverageOnMinutes)
	fmt.Fprintf(&b, "timeout: %d", s.TimeoutMinutes)
	return b.String()
}

// ButtonsText lists buttons one per line as "slot: pin class level".
func ButtonsText(buttons []device.Button) string {
	var b strings.Builder
	fmt.Fprintf(&b, "buttons: %d", len(buttons))
	for i, btn := range buttons {
		fmt.Fprintf(&b, "\n%d: %s %s %s", i, btn.Pin, btn.Class, btn.ActiveLevel)
	}
	return b.String()
}

// RelaysText lists relays one per line as "slot: pin level state".
func RelaysText(relays []device.Relay) string {
	var b strings.Builder
	fmt.Fprintf(&b, "relays: %d", len(relays))
	for i, r := range relays {
		fmt.Fprintf(&b, "\n%d: %s %s %s", i, r.Pin, r.ActiveLevel, onOff(r.On))
	}
	return b.String()
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
