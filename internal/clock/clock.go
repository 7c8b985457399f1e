// Package clock provides the wrapping millisecond counter used for every
// timeout in the controller. All elapsed-time computations go through
// Millis.Since so that counter wraparound is handled by unsigned modular
// arithmetic.
package clock

import "time"

// Millis is a monotonic millisecond counter that wraps after ~49.7 days.
type Millis uint32

// Since returns the milliseconds elapsed from earlier to m.
// Correct across a single wraparound of the counter.
func (m Millis) Since(earlier Millis) Millis {
	return m - earlier
}

// Add returns m advanced by d milliseconds, wrapping as needed.
func (m Millis) Add(d Millis) Millis {
	return m + d
}

// Duration converts an interval expressed in Millis to a time.Duration.
func (m Millis) Duration() time.Duration {
	return time.Duration(m) * time.Millisecond
}

// FromDuration converts d to Millis, truncating sub-millisecond precision.
func FromDuration(d time.Duration) Millis {
	return Millis(d / time.Millisecond)
}

// Clock reports the current counter value.
type Clock interface {
	Now() Millis
}

// Real is a Clock backed by the monotonic system clock.
type Real struct {
	start time.Time
}

// NewReal returns a Clock whose counter starts at zero now.
func NewReal() *Real {
	return &Real{start: time.Now()}
}

// Now returns milliseconds since the clock was created, modulo 2^32.
func (r *Real) Now() Millis {
	return Millis(uint64(time.Since(r.start) / time.Millisecond))
}
