package controller

import (
	"strings"
	"testing"
	"time"

	"github.com/sweeney/relay-lights/internal/clock"
	"github.com/sweeney/relay-lights/internal/device"
	"github.com/sweeney/relay-lights/internal/gpio"
	"github.com/sweeney/relay-lights/internal/light"
	"github.com/sweeney/relay-lights/internal/registry"
	"github.com/sweeney/relay-lights/internal/storage"
	"github.com/sweeney/relay-lights/internal/transport"
)

const pinA0 device.Pin = 14

type fixture struct {
	c     *Controller
	clk   *clock.Fake
	pins  *gpio.FakePins
	mem   *storage.MemStore
	codec *storage.Codec
	src   *transport.Fake
}

func newCodec(t *testing.T, mem *storage.MemStore) *storage.Codec {
	t.Helper()
	codec, err := storage.NewCodec(mem, storage.NewLayout(device.MaxButtons, device.MaxRelays))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return codec
}

// setup creates a controller over mem. The store can be seeded before Boot.
func setup(t *testing.T, mem *storage.MemStore) *fixture {
	t.Helper()
	clk := clock.NewFake(0, 1)
	pins := gpio.NewFakePins(clk)
	codec := newCodec(t, mem)
	src := transport.NewFake()

	c := New(Options{
		Pins:           pins,
		Clock:          clk,
		Codec:          codec,
		Sources:        transport.NewMulti(src),
		Light:          light.DefaultSettings(),
		SampleWindow:   5 * time.Millisecond,
		ClassifyWindow: 300 * time.Millisecond,
	})
	return &fixture{c: c, clk: clk, pins: pins, mem: mem, codec: codec, src: src}
}

// seed registers devices directly in the store.
func seed(t *testing.T, mem *storage.MemStore, buttons []device.Button, relays []device.Relay) {
	t.Helper()
	reg := registry.New(newCodec(t, mem))
	for _, b := range buttons {
		if _, err := reg.AddButton(b); err != nil {
			t.Fatalf("AddButton: %v", err)
		}
	}
	for _, r := range relays {
		if _, err := reg.AddRelay(r); err != nil {
			t.Fatalf("AddRelay: %v", err)
		}
	}
}

func (f *fixture) boot(t *testing.T) {
	t.Helper()
	if err := f.c.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}
}

// runUntil steps the controller until the clock passes end.
func (f *fixture) runUntil(end clock.Millis) []light.Event {
	var events []light.Event
	for f.clk.T < end {
		events = append(events, f.c.Step()...)
	}
	return events
}

func countEvents(events []light.Event, typ light.EventType) int {
	n := 0
	for _, e := range events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func TestLoadDefaultsWithoutTouchingPins(t *testing.T) {
	f := setup(t, storage.NewMemStore(storage.DefaultSize))
	seed(t, f.mem, []device.Button{{Pin: 2, Class: device.Momentary, ActiveLevel: device.High}}, nil)

	if err := f.c.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(f.pins.Inputs) != 0 || len(f.pins.Outputs) != 0 {
		t.Errorf("Load configured pins: inputs=%v outputs=%v", f.pins.Inputs, f.pins.Outputs)
	}

	st := f.c.LightState()
	if st.On || st.Mode != 1 || st.AverageOnMinutes != 0 {
		t.Errorf("default light state: %+v", st)
	}
	if f.c.Config() != device.DefaultConfig() {
		t.Errorf("config: %+v", f.c.Config())
	}
	if len(f.c.Buttons()) != 1 {
		t.Errorf("buttons: %+v", f.c.Buttons())
	}
}

func TestBootConfiguresPinsAndDrivesRelaysOff(t *testing.T) {
	f := setup(t, storage.NewMemStore(storage.DefaultSize))
	seed(t, f.mem,
		[]device.Button{{Pin: 2, Class: device.Momentary, ActiveLevel: device.High}},
		[]device.Relay{{Pin: pinA0, ActiveLevel: device.High}, {Pin: 13, ActiveLevel: device.Low}},
	)
	f.boot(t)

	if !f.pins.Inputs[2] {
		t.Error("button pin not configured as input")
	}
	if lvl, ok := f.pins.Outputs[pinA0]; !ok || lvl != device.Low {
		t.Errorf("A0 output = %v (configured %v), want Low", lvl, ok)
	}
	if lvl, ok := f.pins.Outputs[13]; !ok || lvl != device.High {
		t.Errorf("D13 output = %v (configured %v), want High", lvl, ok)
	}
	if st := f.c.LightState(); st.MaxMode != 3 {
		t.Errorf("MaxMode = %d, want 3", st.MaxMode)
	}
}

func TestBootAppliesInitialLightState(t *testing.T) {
	mem := storage.NewMemStore(storage.DefaultSize)
	codec := newCodec(t, mem)
	if err := codec.SaveConfig(device.Config{InitialLightState: true}); err != nil {
		t.Fatal(err)
	}
	if err := codec.SaveLight(device.LightRecord{AverageOnMinutes: 20, Mode: 2}); err != nil {
		t.Fatal(err)
	}
	seed(t, mem, nil, []device.Relay{{Pin: pinA0, ActiveLevel: device.High}, {Pin: 13, ActiveLevel: device.High}})

	f := setup(t, mem)
	f.boot(t)

	st := f.c.LightState()
	if !st.On || st.Mode != 2 || st.AverageOnMinutes != 20 {
		t.Fatalf("restored state: %+v", st)
	}

	f.c.Step()

	// Mode 2 energizes the second relay only.
	if f.pins.Outputs[pinA0] != device.Low || f.pins.Outputs[13] != device.High {
		t.Errorf("outputs after first step: %v", f.pins.Outputs)
	}
	relays := f.c.Relays()
	if relays[0].On || !relays[1].On {
		t.Errorf("relay states: %+v", relays)
	}
}

func TestMomentaryPressTogglesLightAndRelay(t *testing.T) {
	f := setup(t, storage.NewMemStore(storage.DefaultSize))
	seed(t, f.mem,
		[]device.Button{{Pin: 2, Class: device.Momentary, ActiveLevel: device.High}},
		[]device.Relay{{Pin: pinA0, ActiveLevel: device.High}},
	)
	f.boot(t)

	f.pins.Script(2,
		gpio.Edge{At: 1000, Level: device.High},
		gpio.Edge{At: 1100, Level: device.Low},
	)
	events := f.runUntil(2000)
	if countEvents(events, light.EventOn) != 1 {
		t.Fatalf("expected one LIGHT_ON, got %+v", events)
	}
	if f.pins.Outputs[pinA0] != device.High {
		t.Errorf("A0 = %v after first press, want High", f.pins.Outputs[pinA0])
	}

	f.pins.Script(2,
		gpio.Edge{At: 3000, Level: device.High},
		gpio.Edge{At: 3100, Level: device.Low},
	)
	events = f.runUntil(4000)
	if countEvents(events, light.EventOff) != 1 {
		t.Fatalf("expected one LIGHT_OFF, got %+v", events)
	}
	if f.pins.Outputs[pinA0] != device.Low {
		t.Errorf("A0 = %v after second press, want Low", f.pins.Outputs[pinA0])
	}
}

func TestHeldLatchingSwitchAtBootIsNotATransition(t *testing.T) {
	f := setup(t, storage.NewMemStore(storage.DefaultSize))
	seed(t, f.mem, []device.Button{{Pin: 4, Class: device.Latching, ActiveLevel: device.Low}}, nil)
	f.pins.Set(4, device.Low)
	f.boot(t)

	if b := f.c.Buttons()[0]; !b.Engaged || b.LastRawLevel != device.Low {
		t.Errorf("button not seeded from pin: %+v", b)
	}
	if events := f.runUntil(500); len(events) != 0 {
		t.Errorf("unexpected events: %+v", events)
	}
	if f.c.LightState().On {
		t.Error("light switched on without a transition")
	}
}

func TestStepHandlesOneRecordPerCycle(t *testing.T) {
	f := setup(t, storage.NewMemStore(storage.DefaultSize))
	f.boot(t)

	f.src.Send(`{"pin": "A0", "device": "R", "type": "H"}`)
	f.src.Send(`{"action": "relays"}`)

	f.c.Step()
	if len(f.src.Replies) != 1 || f.src.Replies[0] != "ok" {
		t.Fatalf("replies after one step: %q", f.src.Replies)
	}
	if lvl, ok := f.pins.Outputs[pinA0]; !ok || lvl != device.Low {
		t.Errorf("new relay not driven off: %v %v", lvl, ok)
	}

	f.c.Step()
	if got := f.src.LastReply(); got != "relays: 1\n0: A0 H off" {
		t.Errorf("relays reply = %q", got)
	}
}

func TestIgnoredRecordGetsNoReply(t *testing.T) {
	f := setup(t, storage.NewMemStore(storage.DefaultSize))
	f.boot(t)

	f.src.Send(`not json`)
	f.src.Send(`{"action": "dance"}`)
	f.c.Step()
	f.c.Step()

	if len(f.src.Replies) != 0 {
		t.Errorf("replies = %q", f.src.Replies)
	}
}

func TestCommandChangesReachRelaysNextCycle(t *testing.T) {
	f := setup(t, storage.NewMemStore(storage.DefaultSize))
	seed(t, f.mem, nil, []device.Relay{{Pin: pinA0, ActiveLevel: device.High}})
	f.boot(t)

	f.src.Send(`{"action": "light_state", "options": [1]}`)
	events := f.c.Step()
	if countEvents(events, light.EventOn) != 1 {
		t.Fatalf("events = %+v", events)
	}

	f.c.Step()
	if f.pins.Outputs[pinA0] != device.High {
		t.Errorf("A0 = %v, want High", f.pins.Outputs[pinA0])
	}
}

func TestStepRunsTimeout(t *testing.T) {
	f := setup(t, storage.NewMemStore(storage.DefaultSize))
	seed(t, f.mem, nil, []device.Relay{{Pin: pinA0, ActiveLevel: device.High}})
	f.boot(t)

	f.src.Send(`{"action": "set_timeout", "options": [5]}`)
	f.src.Send(`{"action": "light_state", "options": [1]}`)
	f.c.Step()
	f.c.Step()
	f.c.Step()

	f.clk.Advance(6 * 60_000)
	events := f.c.Step()
	if countEvents(events, light.EventTimeout) != 1 {
		t.Fatalf("expected TIMEOUT, got %+v", events)
	}
	if f.c.LightState().On {
		t.Error("light still on after timeout")
	}
	if f.pins.Outputs[pinA0] != device.Low {
		t.Errorf("A0 = %v after timeout, want Low", f.pins.Outputs[pinA0])
	}
}

func TestAddButtonClassifiesDuringStep(t *testing.T) {
	f := setup(t, storage.NewMemStore(storage.DefaultSize))
	f.boot(t)

	t0 := f.clk.T
	f.pins.Script(3,
		gpio.Edge{At: t0 + 100, Level: device.High},
		gpio.Edge{At: t0 + 200, Level: device.Low},
	)
	f.src.Send(`{"pin": 3, "device": "B"}`)
	f.c.Step()

	if got := f.src.LastReply(); got != "ok" {
		t.Fatalf("reply = %q", got)
	}
	buttons := f.c.Buttons()
	if len(buttons) != 1 || buttons[0].Class != device.Momentary || buttons[0].ActiveLevel != device.High {
		t.Errorf("buttons = %+v", buttons)
	}
}

func TestReplyErrorDoesNotStopCycle(t *testing.T) {
	f := setup(t, storage.NewMemStore(storage.DefaultSize))
	f.boot(t)
	f.src.ReplyError = errTest

	f.src.Send(`{"action": "status"}`)
	f.c.Step()
	f.c.Step()
}

func TestStatusText(t *testing.T) {
	f := setup(t, storage.NewMemStore(storage.DefaultSize))
	seed(t, f.mem,
		[]device.Button{{Pin: 2, Class: device.Momentary, ActiveLevel: device.High}},
		[]device.Relay{{Pin: pinA0, ActiveLevel: device.High}},
	)
	if err := f.c.Load(); err != nil {
		t.Fatal(err)
	}

	got := f.c.StatusText()
	for _, want := range []string{"buttons: 1", "relays: 1", "state: off", "mode: 1", "0: D2 M H", "0: A0 H off"} {
		if !strings.Contains(got, want) {
			t.Errorf("status text missing %q:\n%s", want, got)
		}
	}
}

type testError string

func (e testError) Error() string { return string(e) }

const errTest = testError("link down")
