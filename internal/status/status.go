// Package status keeps the daemon state shown in heartbeats and lifecycle
// events. The main loop writes it; the MQTT side reads snapshots.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/relay-lights/internal/light"
)

// Config is the part of the daemon configuration reported in status.
type Config struct {
	CycleMs     int64
	SampleMs    int64
	HeartbeatMs int64
	Broker      string
	SerialPort  string
	StorePath   string
}

// Snapshot is a copy of the tracked state at one instant.
type Snapshot struct {
	Light   light.State
	Buttons int
	Relays  int

	// LastEvent is the most recent light event, zero before the first one.
	LastEvent   light.EventType
	LastEventAt time.Time

	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker for a daemon started at startTime.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{StartTime: startTime, Config: cfg},
		now:  time.Now,
	}
}

// Update records the light state and registry counts after a cycle.
func (t *Tracker) Update(state light.State, buttons, relays int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Light = state
	t.snap.Buttons = buttons
	t.snap.Relays = relays
}

// Observe remembers the last of events, stamped with the current time.
func (t *Tracker) Observe(events []light.Event) {
	if len(events) == 0 {
		return
	}
	at := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.LastEvent = events[len(events)-1].Type
	t.snap.LastEventAt = at
}

// SetMQTTConnected records the broker connection state.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.MQTTConnected = connected
}

// Snapshot returns a copy of the state with Now set to the current time.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
