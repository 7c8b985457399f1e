// Package storage persists the controller state in a flat byte-addressable
// store, the way an EEPROM would hold it. The layout has no headers or magic
// numbers: every record lives at an offset computed from record sizes.
package storage

import "fmt"

// Erased is the value of a byte that has never been written.
const Erased byte = 0xFF

// DefaultSize is the store size used when none is configured.
const DefaultSize = 1024

// Store is a flat byte-addressable memory.
type Store interface {
	// Size returns the number of addressable bytes.
	Size() int

	// Get returns the byte at addr.
	Get(addr int) (byte, error)

	// Put writes b at addr.
	Put(addr int, b byte) error
}

// Filler is implemented by stores that can set every byte in one write.
type Filler interface {
	Fill(b byte) error
}

// MemStore is an in-memory Store, used in tests and when no backing file is
// configured. Not safe for concurrent use.
type MemStore struct {
	data []byte

	// Stuck makes reads of an address return a fixed value, simulating a
	// cell that does not take writes.
	Stuck map[int]byte
}

// NewMemStore creates an erased MemStore of size bytes.
func NewMemStore(size int) *MemStore {
	data := make([]byte, size)
	for i := range data {
		data[i] = Erased
	}
	return &MemStore{data: data, Stuck: make(map[int]byte)}
}

// Size returns the number of addressable bytes.
func (m *MemStore) Size() int {
	return len(m.data)
}

// Get returns the byte at addr.
func (m *MemStore) Get(addr int) (byte, error) {
	if addr < 0 || addr >= len(m.data) {
		return 0, fmt.Errorf("%w: %d", ErrAddress, addr)
	}
	if b, ok := m.Stuck[addr]; ok {
		return b, nil
	}
	return m.data[addr], nil
}

// Put writes b at addr.
func (m *MemStore) Put(addr int, b byte) error {
	if addr < 0 || addr >= len(m.data) {
		return fmt.Errorf("%w: %d", ErrAddress, addr)
	}
	m.data[addr] = b
	return nil
}

// Bytes returns a copy of the store contents.
func (m *MemStore) Bytes() []byte {
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out
}

// Fill sets every byte to b.
func (m *MemStore) Fill(b byte) error {
	for i := range m.data {
		m.data[i] = b
	}
	return nil
}
