package mqtt

import "github.com/rs/zerolog/log"

// DefaultBufferSize is the number of messages held while disconnected.
const DefaultBufferSize = 100

// pending is a serialized message waiting for the broker.
type pending struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds messages published while the broker is unreachable, oldest
// first. When full the oldest message is dropped. A retained message
// replaces any retained message already queued for its topic, since the
// broker would only keep the last one anyway.
//
// Not safe for concurrent use; the caller must synchronize.
type outbox struct {
	msgs     []pending
	capacity int
	dropped  int
}

func newOutbox(capacity int) *outbox {
	if capacity < 1 {
		capacity = 1
	}
	return &outbox{capacity: capacity}
}

func (o *outbox) add(msg pending) {
	if msg.retained {
		for i := range o.msgs {
			if o.msgs[i].retained && o.msgs[i].topic == msg.topic {
				o.msgs = append(o.msgs[:i], o.msgs[i+1:]...)
				break
			}
		}
	}

	if len(o.msgs) == o.capacity {
		if o.dropped == 0 {
			log.Warn().Int("capacity", o.capacity).Msg("mqtt buffer full, dropping oldest")
		}
		o.dropped++
		o.msgs = o.msgs[1:]
	}
	o.msgs = append(o.msgs, msg)
}

// drain returns the queued messages in publish order and empties the
// outbox.
func (o *outbox) drain() []pending {
	if len(o.msgs) == 0 {
		return nil
	}
	if o.dropped > 0 {
		log.Warn().Int("dropped", o.dropped).Msg("mqtt messages lost while disconnected")
	}
	out := o.msgs
	o.msgs = nil
	o.dropped = 0
	return out
}

func (o *outbox) len() int {
	return len(o.msgs)
}
