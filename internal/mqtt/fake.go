package mqtt

import (
	"time"

	"github.com/sweeney/relay-lights/internal/light"
)

// FakePublisher records what would have gone to the broker. Like
// RealPublisher it is also a command source: records queued with Command
// are returned by Poll and replies are captured.
type FakePublisher struct {
	Events   []light.Event
	Payloads [][]byte

	SystemEvents   []SystemEvent
	SystemPayloads [][]byte

	// Commands are returned by Poll in order; Replies records Reply calls.
	Commands [][]byte
	Replies  []string

	PublishError       error
	PublishSystemError error

	Closed    bool
	Connected bool

	// Now stamps light payloads. Defaults to time.Now.
	Now func() time.Time
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records event and its payload.
func (f *FakePublisher) Publish(event light.Event) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	payload, err := FormatPayload(event, now())
	if err != nil {
		return err
	}
	f.Events = append(f.Events, event)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem records event and its payload.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// Command queues a record as if it arrived on the command topic.
func (f *FakePublisher) Command(line string) {
	f.Commands = append(f.Commands, []byte(line))
}

// Name identifies the fake as a command source.
func (f *FakePublisher) Name() string { return "mqtt" }

// Poll pops the next queued command.
func (f *FakePublisher) Poll() ([]byte, bool) {
	if len(f.Commands) == 0 {
		return nil, false
	}
	line := f.Commands[0]
	f.Commands = f.Commands[1:]
	return line, true
}

// Reply records text.
func (f *FakePublisher) Reply(text string) error {
	f.Replies = append(f.Replies, text)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected returns Connected.
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}
