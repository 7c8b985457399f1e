package light

import (
	"github.com/sweeney/relay-lights/internal/clock"
	"github.com/sweeney/relay-lights/internal/device"
)

// timeoutLearner holds the adaptive auto-off state.
//
// The effective timeout is average+delta minutes, floored at the minimum.
// A zero average disables the timeout until a full ring of on-durations has
// been learned. After a timeout fires, a manual re-on inside the cooldown
// raises delta; staying off past the cooldown lowers it. The step grows
// with |delta| and delta stays within ±MaxDeltaMinutes.
type timeoutLearner struct {
	average     uint16
	delta       int8
	cooldown    clock.Millis
	minTimeout  int
	minDuration int

	fired   bool
	firedAt clock.Millis

	ring   [RingSize]uint16
	filled int
}

func (t *timeoutLearner) init(s Settings) {
	t.cooldown = clock.FromDuration(s.Cooldown)
	t.minTimeout = s.MinTimeoutMinutes
	t.minDuration = s.MinDurationMinutes
}

func (t *timeoutLearner) timeoutMinutes() int {
	m := int(t.average) + int(t.delta)
	if m < t.minTimeout {
		return t.minTimeout
	}
	return m
}

func (t *timeoutLearner) fire(now clock.Millis) {
	t.fired = true
	t.firedAt = now
}

// resolveReOn settles a fired timeout when the light is switched back on.
func (t *timeoutLearner) resolveReOn(now clock.Millis) bool {
	if !t.fired {
		return false
	}
	t.fired = false
	if now.Since(t.firedAt) <= t.cooldown {
		t.adjust(1)
	} else {
		t.adjust(-1)
	}
	return true
}

// resolveCooldown settles a fired timeout once the cooldown has passed with
// the light still off.
func (t *timeoutLearner) resolveCooldown(now clock.Millis) (int, bool) {
	if !t.fired || now.Since(t.firedAt) <= t.cooldown {
		return 0, false
	}
	t.fired = false
	t.adjust(-1)
	return -1, true
}

func (t *timeoutLearner) adjust(dir int) {
	d := int(t.delta)
	mag := d
	if mag < 0 {
		mag = -mag
	}
	d += dir * (1 + mag/4)
	if d > MaxDeltaMinutes {
		d = MaxDeltaMinutes
	}
	if d < -MaxDeltaMinutes {
		d = -MaxDeltaMinutes
	}
	t.delta = int8(d)
}

// learn records an on-duration. Returns true when the ring filled and the
// average was updated.
func (t *timeoutLearner) learn(minutes int) bool {
	if minutes < t.minDuration {
		return false
	}
	if minutes > device.MaxAverageMinutes {
		minutes = device.MaxAverageMinutes
	}
	t.ring[t.filled] = uint16(minutes)
	t.filled++
	if t.filled < RingSize {
		return false
	}

	sum := int(t.average)
	for _, d := range t.ring {
		sum += int(d)
	}
	avg := sum / (RingSize + 1)
	if avg > device.MaxAverageMinutes {
		avg = device.MaxAverageMinutes
	}
	t.average = uint16(avg)
	t.resetRing()
	return true
}

func (t *timeoutLearner) resetRing() {
	t.ring = [RingSize]uint16{}
	t.filled = 0
}
