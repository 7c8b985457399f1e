package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Light         LightJSON  `json:"light"`
	Buttons       int        `json:"buttons"`
	Relays        int        `json:"relays"`
	LastEvent     *EventJSON `json:"last_event,omitempty"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"event_counts"`
	Config        ConfigJSON `json:"config"`
}

// LightJSON is the JSON representation of the light state.
type LightJSON struct {
	State            string `json:"state"`
	Mode             uint8  `json:"mode"`
	MaxMode          uint8  `json:"max_mode"`
	AverageOnMinutes uint16 `json:"average_on_minutes"`
	TimeoutMinutes   int    `json:"timeout_minutes"`
	DeltaMinutes     int8   `json:"delta_minutes"`
	CooldownSeconds  uint16 `json:"cooldown_seconds"`
}

// EventJSON is the most recent light event.
type EventJSON struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	On       int `json:"on"`
	Off      int `json:"off"`
	Mode     int `json:"mode"`
	Timeouts int `json:"timeouts"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	CycleMs     int64  `json:"cycle_ms"`
	SampleMs    int64  `json:"sample_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	SerialPort  string `json:"serial_port,omitempty"`
	StorePath   string `json:"store_path,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	state := "OFF"
	if snap.Light.On {
		state = "ON"
	}

	inner := StatusInner{
		Light: LightJSON{
			State:            state,
			Mode:             snap.Light.Mode,
			MaxMode:          snap.Light.MaxMode,
			AverageOnMinutes: snap.Light.AverageOnMinutes,
			TimeoutMinutes:   snap.Light.TimeoutMinutes,
			DeltaMinutes:     snap.Light.DeltaMinutes,
			CooldownSeconds:  snap.Light.CooldownSeconds,
		},
		Buttons:       snap.Buttons,
		Relays:        snap.Relays,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			On:       snap.Light.Counts.On,
			Off:      snap.Light.Counts.Off,
			Mode:     snap.Light.Counts.Mode,
			Timeouts: snap.Light.Counts.Timeouts,
		},
		Config: ConfigJSON{
			CycleMs:     snap.Config.CycleMs,
			SampleMs:    snap.Config.SampleMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			SerialPort:  snap.Config.SerialPort,
			StorePath:   snap.Config.StorePath,
		},
	}
	if snap.LastEvent != "" {
		inner.LastEvent = &EventJSON{
			Event:     string(snap.LastEvent),
			Timestamp: snap.LastEventAt.UTC().Format(time.RFC3339),
		}
	}
	return inner
}

// FormatJSON returns the indented JSON status (no event/reason), as printed
// by -print-state.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
