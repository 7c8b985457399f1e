// Package mqtt provides MQTT publishing of light events and status, and an
// MQTT command channel, with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sweeney/relay-lights/internal/light"
)

// DefaultTopicPrefix is the topic root used when none is configured.
const DefaultTopicPrefix = "home/relay-lights"

// Topics are the topics the daemon publishes and subscribes to.
type Topics struct {
	Events  string // light events
	System  string // lifecycle events and status heartbeats
	Command string // incoming command records
	Reply   string // command replies
}

// NewTopics derives the topic set from prefix.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{
		Events:  prefix + "/events",
		System:  prefix + "/system",
		Command: prefix + "/command",
		Reply:   prefix + "/reply",
	}
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a light event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event light.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Light LightPayload `json:"light"`
}

// LightPayload contains the light event details.
type LightPayload struct {
	Timestamp      string `json:"timestamp"`
	Event          string `json:"event"`
	State          string `json:"state"`
	Mode           uint8  `json:"mode"`
	TimeoutMinutes int    `json:"timeout_minutes"`
	DeltaMinutes   int8   `json:"delta_minutes"`
}

// FormatPayload creates the JSON payload for a light event observed at ts.
func FormatPayload(event light.Event, ts time.Time) ([]byte, error) {
	state := "OFF"
	if event.On {
		state = "ON"
	}
	payload := Payload{
		Light: LightPayload{
			Timestamp:      ts.UTC().Format(time.RFC3339),
			Event:          string(event.Type),
			State:          state,
			Mode:           event.Mode,
			TimeoutMinutes: event.TimeoutMinutes,
			DeltaMinutes:   event.DeltaMinutes,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// WillPayload is the last-will message the broker publishes on the system
// topic if the daemon disappears without a SHUTDOWN.
func WillPayload() []byte {
	data, _ := json.Marshal(SystemPayload{System: SystemPayloadInner{Event: "OFFLINE", Reason: "LWT"}})
	return data
}
