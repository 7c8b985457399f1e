package internal

import (
	"strings"
	"testing"
	"time"

	"github.com/sweeney/relay-lights/internal/clock"
	"github.com/sweeney/relay-lights/internal/controller"
	"github.com/sweeney/relay-lights/internal/device"
	"github.com/sweeney/relay-lights/internal/gpio"
	"github.com/sweeney/relay-lights/internal/light"
	"github.com/sweeney/relay-lights/internal/mqtt"
	"github.com/sweeney/relay-lights/internal/storage"
	"github.com/sweeney/relay-lights/internal/transport"
)

const pinA0 device.Pin = 14

// system is a controller over fakes that can be rebooted on the same store.
type system struct {
	t     *testing.T
	mem   *storage.MemStore
	clk   *clock.Fake
	pins  *gpio.FakePins
	src   *transport.Fake
	ctrl  *controller.Controller
	pub   *mqtt.FakePublisher
	start clock.Millis
}

func newSystem(t *testing.T) *system {
	t.Helper()
	s := &system{t: t, mem: storage.NewMemStore(storage.DefaultSize), pub: mqtt.NewFakePublisher()}
	s.boot()
	return s
}

// boot starts a fresh controller on the existing store, as after a power cycle.
func (s *system) boot() {
	s.t.Helper()
	s.clk = clock.NewFake(s.start, 1)
	s.pins = gpio.NewFakePins(s.clk)
	s.src = transport.NewFake()

	codec, err := storage.NewCodec(s.mem, storage.NewLayout(device.MaxButtons, device.MaxRelays))
	if err != nil {
		s.t.Fatalf("NewCodec: %v", err)
	}
	s.ctrl = controller.New(controller.Options{
		Pins:           s.pins,
		Clock:          s.clk,
		Codec:          codec,
		Sources:        transport.NewMulti(s.src),
		Light:          light.DefaultSettings(),
		SampleWindow:   5 * time.Millisecond,
		ClassifyWindow: 300 * time.Millisecond,
	})
	if err := s.ctrl.Boot(); err != nil {
		s.t.Fatalf("Boot: %v", err)
	}
}

// send delivers one record, runs one cycle and returns the reply.
func (s *system) send(line string) string {
	s.t.Helper()
	before := len(s.src.Replies)
	s.src.Send(line)
	s.step()
	if len(s.src.Replies) == before {
		return ""
	}
	return s.src.LastReply()
}

func (s *system) mustOK(line string) {
	s.t.Helper()
	if got := s.send(line); got != "ok" {
		s.t.Fatalf("%s: reply %q, want ok", line, got)
	}
}

func (s *system) step() {
	for _, e := range s.ctrl.Step() {
		if err := s.pub.Publish(e); err != nil {
			s.t.Fatalf("publish: %v", err)
		}
	}
}

func (s *system) runFor(d clock.Millis) {
	end := s.clk.T + d
	for s.clk.T < end {
		s.step()
	}
}

// addMomentary registers pin as a button that is tapped during classification.
func (s *system) addMomentary(pin device.Pin) {
	s.t.Helper()
	t0 := s.clk.T
	s.pins.Script(pin,
		gpio.Edge{At: t0 + 100, Level: device.High},
		gpio.Edge{At: t0 + 180, Level: device.Low},
	)
	s.mustOK(`{"pin": ` + strings.TrimPrefix(pin.String(), "D") + `, "device": "B"}`)
}

// tap presses and releases pin starting after ms milliseconds.
func (s *system) tap(pin device.Pin, after clock.Millis) {
	t0 := s.clk.T
	s.pins.Script(pin,
		gpio.Edge{At: t0 + after, Level: device.High},
		gpio.Edge{At: t0 + after + 80, Level: device.Low},
	)
	s.runFor(after + 500)
}

func TestIntegrationMomentaryButtonDrivesRelay(t *testing.T) {
	s := newSystem(t)
	s.mustOK(`{"pin": "A0", "device": "R", "type": "H"}`)
	s.addMomentary(2)

	if s.pins.Outputs[pinA0] != device.Low {
		t.Fatalf("relay should start released, got %v", s.pins.Outputs[pinA0])
	}

	s.tap(2, 1000)
	if !s.ctrl.LightState().On {
		t.Fatal("light should be on after first press")
	}
	if s.pins.Outputs[pinA0] != device.High {
		t.Errorf("A0 = %v after first press, want High", s.pins.Outputs[pinA0])
	}

	s.tap(2, 1000)
	if s.ctrl.LightState().On {
		t.Fatal("light should be off after second press")
	}
	if s.pins.Outputs[pinA0] != device.Low {
		t.Errorf("A0 = %v after second press, want Low", s.pins.Outputs[pinA0])
	}

	var on, off int
	for _, e := range s.pub.Events {
		switch e.Type {
		case light.EventOn:
			on++
		case light.EventOff:
			off++
		}
	}
	if on != 1 || off != 1 {
		t.Errorf("published on=%d off=%d, want 1/1", on, off)
	}
}

func TestIntegrationDoubleTapCyclesMode(t *testing.T) {
	s := newSystem(t)
	s.mustOK(`{"pin": "A0", "device": "R", "type": "H"}`)
	s.mustOK(`{"pin": "A1", "device": "R", "type": "H"}`)
	s.addMomentary(2)

	// Two releases 200ms apart read as a double actuation.
	t0 := s.clk.T
	s.pins.Script(2,
		gpio.Edge{At: t0 + 1000, Level: device.High},
		gpio.Edge{At: t0 + 1080, Level: device.Low},
		gpio.Edge{At: t0 + 1200, Level: device.High},
		gpio.Edge{At: t0 + 1280, Level: device.Low},
	)
	s.runFor(2000)

	st := s.ctrl.LightState()
	if !st.On || st.Mode != 3 {
		t.Fatalf("after double tap: on=%v mode=%d, want on mode 3", st.On, st.Mode)
	}
	if s.pins.Outputs[pinA0] != device.High || s.pins.Outputs[15] != device.High {
		t.Errorf("outputs = %v, want both relays energized", s.pins.Outputs)
	}
}

func TestIntegrationLightModeWraps(t *testing.T) {
	s := newSystem(t)
	for _, pin := range []string{"A0", "A1", "A2"} {
		s.mustOK(`{"pin": "` + pin + `", "device": "R", "type": "H"}`)
	}
	if st := s.ctrl.LightState(); st.Mode != 1 || st.MaxMode != 7 {
		t.Fatalf("mode %d/%d, want 1/7", st.Mode, st.MaxMode)
	}

	s.mustOK(`{"action": "light_mode"}`)
	if got := s.ctrl.LightState().Mode; got != 7 {
		t.Errorf("mode = %d, want 7", got)
	}
	s.mustOK(`{"action": "light_mode", "options": [3]}`)
	s.mustOK(`{"action": "light_mode"}`)
	if got := s.ctrl.LightState().Mode; got != 2 {
		t.Errorf("mode = %d, want 2", got)
	}
}

func TestIntegrationRemoveCompactsAndSurvivesReboot(t *testing.T) {
	s := newSystem(t)
	s.addMomentary(2)
	s.addMomentary(3)

	s.mustOK(`{"action": "remove", "device": {"pin": 2, "device": "B"}}`)
	if got := s.send(`{"action": "buttons"}`); got != "buttons: 1\n0: D3 M H" {
		t.Fatalf("buttons = %q", got)
	}

	s.boot()
	buttons := s.ctrl.Buttons()
	if len(buttons) != 1 || buttons[0].Pin != 3 || buttons[0].Class != device.Momentary {
		t.Errorf("buttons after reboot = %+v", buttons)
	}
}

func TestIntegrationPersistedStateAcrossReboot(t *testing.T) {
	s := newSystem(t)
	s.mustOK(`{"pin": "A0", "device": "R", "type": "L"}`)
	s.mustOK(`{"pin": "A1", "device": "R", "type": "H"}`)
	s.mustOK(`{"action": "light_mode", "options": [2]}`)
	s.mustOK(`{"action": "set_timeout", "options": [25]}`)
	s.mustOK(`{"action": "set_config", "options": ["initial_state", 1]}`)

	s.boot()
	s.step()

	st := s.ctrl.LightState()
	if !st.On || st.Mode != 2 || st.AverageOnMinutes != 25 || st.MaxMode != 3 {
		t.Fatalf("state after reboot: %+v", st)
	}
	// Mode 2 energizes only the second relay; the first is active-low.
	if s.pins.Outputs[pinA0] != device.High || s.pins.Outputs[15] != device.High {
		t.Errorf("outputs = %v", s.pins.Outputs)
	}
}

func TestIntegrationClearROM(t *testing.T) {
	s := newSystem(t)
	s.mustOK(`{"pin": "A0", "device": "R", "type": "H"}`)
	s.mustOK(`{"action": "light_state", "options": [1]}`)
	s.step()

	s.mustOK(`{"action": "clear_rom"}`)
	if s.pins.Outputs[pinA0] != device.Low {
		t.Errorf("relay not released by clear_rom: %v", s.pins.Outputs[pinA0])
	}
	if !strings.HasPrefix(s.send(`{"action": "status"}`), "buttons: 0\nrelays: 0\nstate: off\nmode: 1") {
		t.Errorf("status after clear: %q", s.src.LastReply())
	}

	for i, b := range s.mem.Bytes() {
		if b != storage.Erased {
			t.Fatalf("byte %d = %#x after clear, want erased", i, b)
		}
	}

	s.boot()
	if nb, nr := s.ctrl.Counts(); nb != 0 || nr != 0 {
		t.Errorf("devices after reboot: %d/%d", nb, nr)
	}
}

func TestIntegrationRejectedCommandsChangeNothing(t *testing.T) {
	s := newSystem(t)
	s.mustOK(`{"pin": "A0", "device": "R", "type": "H"}`)

	for _, line := range []string{
		`{"pin": "A0", "device": "B"}`,
		`{"pin": 1, "device": "R", "type": "H"}`,
		`{"pin": 5, "device": "R", "type": "Z"}`,
		`{"action": "light_mode", "options": [2]}`,
		`{"action": "set_timeout", "options": [5000]}`,
	} {
		if got := s.send(line); !strings.HasPrefix(got, "error: ") {
			t.Errorf("%s: reply %q, want error", line, got)
		}
	}
	if got := s.send(`{"action": nope}`); got != "" {
		t.Errorf("malformed record got reply %q", got)
	}

	if got := s.send(`{"action": "relays"}`); got != "relays: 1\n0: A0 H off" {
		t.Errorf("relays = %q", got)
	}
}
