package registry

import "github.com/sweeney/relay-lights/internal/device"

// arena is a fixed-capacity collection keyed by pin. Entries always form a
// dense prefix: removal shifts later entries down by one slot.
type arena[T any] struct {
	items []T
	key   func(T) device.Pin
}

func newArena[T any](capacity int, key func(T) device.Pin) *arena[T] {
	return &arena[T]{
		items: make([]T, 0, capacity),
		key:   key,
	}
}

func (a *arena[T]) len() int { return len(a.items) }

func (a *arena[T]) full() bool { return len(a.items) == cap(a.items) }

// find returns the slot holding pin, or -1.
func (a *arena[T]) find(pin device.Pin) int {
	for i, it := range a.items {
		if a.key(it) == pin {
			return i
		}
	}
	return -1
}

// put replaces the entry with the same pin or appends a new one.
func (a *arena[T]) put(item T) (slot int, replaced bool, err error) {
	if i := a.find(a.key(item)); i >= 0 {
		a.items[i] = item
		return i, true, nil
	}
	if a.full() {
		return 0, false, ErrCapacity
	}
	a.items = append(a.items, item)
	return len(a.items) - 1, false, nil
}

// remove deletes the entry for pin and compacts. Returns its former slot.
func (a *arena[T]) remove(pin device.Pin) (int, error) {
	i := a.find(pin)
	if i < 0 {
		return 0, ErrNotFound
	}
	copy(a.items[i:], a.items[i+1:])
	var zero T
	a.items[len(a.items)-1] = zero
	a.items = a.items[:len(a.items)-1]
	return i, nil
}

func (a *arena[T]) reset() {
	clear(a.items)
	a.items = a.items[:0]
}
