package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/sweeney/relay-lights/internal/light"
	"github.com/sweeney/relay-lights/internal/transport"
)

// DefaultClientID is the client id used when none is configured.
const DefaultClientID = "relay-lights"

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	Topics     Topics
	BufferSize int
}

// RealPublisher publishes to an actual MQTT broker and doubles as a command
// source: records published on the command topic are queued for the main
// cycle and replies go out on the reply topic.
//
// Messages published while the connection is down are queued in an
// outbox and replayed in order after reconnecting.
type RealPublisher struct {
	client paho.Client
	broker string
	topics Topics
	now    func() time.Time

	mu     sync.Mutex
	buffer *outbox

	commands *transport.Queue
}

// NewRealPublisher creates a publisher for the given broker. If the broker
// cannot be reached within the connect timeout the publisher is still
// returned; it keeps retrying in the background and buffers until then.
func NewRealPublisher(opts Options) (*RealPublisher, error) {
	if opts.ClientID == "" {
		opts.ClientID = DefaultClientID
	}
	if opts.Topics == (Topics{}) {
		opts.Topics = NewTopics(DefaultTopicPrefix)
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}

	p := &RealPublisher{
		broker:   opts.Broker,
		topics:   opts.Topics,
		now:      time.Now,
		buffer:   newOutbox(opts.BufferSize),
		commands: transport.NewQueue("mqtt", transport.DefaultQueueSize),
	}

	co := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(opts.Topics.System, string(WillPayload()), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn().Err(err).Str("broker", opts.Broker).Msg("mqtt connection lost")
		})

	p.client = paho.NewClient(co)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		log.Warn().Str("broker", opts.Broker).Msg("mqtt broker not reachable yet, buffering until connected")
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func (p *RealPublisher) onConnect(c paho.Client) {
	log.Info().Str("broker", p.broker).Msg("mqtt connected")

	token := c.Subscribe(p.topics.Command, 1, func(_ paho.Client, m paho.Message) {
		p.commands.Push(m.Payload())
	})
	go func() {
		if token.WaitTimeout(publishTimeout) && token.Error() != nil {
			log.Error().Err(token.Error()).Str("topic", p.topics.Command).Msg("mqtt subscribe failed")
		}
	}()

	go p.flush()
}

// flush replays buffered messages after a reconnect.
func (p *RealPublisher) flush() {
	p.mu.Lock()
	msgs := p.buffer.drain()
	p.mu.Unlock()

	if len(msgs) > 0 {
		log.Info().Int("count", len(msgs)).Msg("replaying buffered mqtt messages")
	}
	for _, m := range msgs {
		if err := p.publish(m.topic, m.qos, m.retained, m.payload); err != nil {
			log.Error().Err(err).Str("topic", m.topic).Msg("mqtt replay failed")
		}
	}
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buffer.add(pending{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		return nil
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Publish sends a light event to the MQTT broker.
func (p *RealPublisher) Publish(event light.Event) error {
	payload, err := FormatPayload(event, p.now())
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.publish(p.topics.Events, 0, false, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) so lifecycle events are delivered
	return p.publish(p.topics.System, 1, event.Retained, payload)
}

// IsConnected reports whether the client currently has a broker connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Name returns the command source name.
func (p *RealPublisher) Name() string {
	return "mqtt"
}

// Poll returns the next command record received on the command topic.
func (p *RealPublisher) Poll() ([]byte, bool) {
	return p.commands.Poll()
}

// Reply publishes text on the reply topic.
func (p *RealPublisher) Reply(text string) error {
	return p.publish(p.topics.Reply, 1, false, []byte(text))
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
