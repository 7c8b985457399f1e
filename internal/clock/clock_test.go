package clock

import (
	"testing"
	"time"
)

func TestSinceAcrossWraparound(t *testing.T) {
	tests := []struct {
		name    string
		earlier Millis
		now     Millis
		want    Millis
	}{
		{"simple", 100, 350, 250},
		{"zero", 42, 42, 0},
		{"wrap", 0xFFFFFF00, 0x00000100, 0x200},
		{"wrap at max", 0xFFFFFFFF, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.now.Since(tt.earlier); got != tt.want {
				t.Errorf("Since: got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAddWraps(t *testing.T) {
	m := Millis(0xFFFFFFF0)
	if got := m.Add(0x20); got != 0x10 {
		t.Errorf("Add: got %#x, want 0x10", got)
	}
}

func TestDurationConversions(t *testing.T) {
	if got := FromDuration(1500 * time.Millisecond); got != 1500 {
		t.Errorf("FromDuration: got %d, want 1500", got)
	}
	if got := Millis(250).Duration(); got != 250*time.Millisecond {
		t.Errorf("Duration: got %v, want 250ms", got)
	}
}

func TestFakeAdvancesPerRead(t *testing.T) {
	f := NewFake(10, 2)

	if got := f.Now(); got != 10 {
		t.Errorf("first read: got %d, want 10", got)
	}
	if got := f.Now(); got != 12 {
		t.Errorf("second read: got %d, want 12", got)
	}

	f.Advance(100)
	if got := f.Now(); got != 114 {
		t.Errorf("after advance: got %d, want 114", got)
	}

	f.Set(5)
	if got := f.Now(); got != 5 {
		t.Errorf("after set: got %d, want 5", got)
	}
}

func TestRealIsMonotonic(t *testing.T) {
	r := NewReal()
	a := r.Now()
	time.Sleep(2 * time.Millisecond)
	b := r.Now()
	if b.Since(a) < 1 {
		t.Errorf("expected clock to advance, got %d -> %d", a, b)
	}
}
