package clock

// Fake is a test clock. Each call to Now returns the current value and then
// advances it by Step, which lets busy-wait loops make progress in tests.
// Not safe for concurrent use.
type Fake struct {
	T    Millis
	Step Millis
}

// NewFake creates a Fake starting at start that advances by step per read.
func NewFake(start, step Millis) *Fake {
	return &Fake{T: start, Step: step}
}

// Now returns the current time and advances the clock by Step.
func (f *Fake) Now() Millis {
	t := f.T
	f.T += f.Step
	return t
}

// Advance moves the clock forward by d without a read.
func (f *Fake) Advance(d Millis) {
	f.T += d
}

// Set moves the clock to t.
func (f *Fake) Set(t Millis) {
	f.T = t
}
