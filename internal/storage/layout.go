package storage

import "fmt"

// Entity identifies a kind of persisted record.
type Entity int

const (
	EntityConfig Entity = iota
	EntityLight
	EntityCounts
	EntityButton
	EntityRelay

	numEntities
)

func (e Entity) String() string {
	switch e {
	case EntityConfig:
		return "config"
	case EntityLight:
		return "light"
	case EntityCounts:
		return "counts"
	case EntityButton:
		return "button"
	case EntityRelay:
		return "relay"
	}
	return fmt.Sprintf("entity(%d)", int(e))
}

// Record sizes in bytes.
const (
	configRecordSize = 2 // flags, default mode
	lightRecordSize  = 3 // average minutes (little endian uint16), mode
	countsRecordSize = 2 // buttons, relays
	buttonRecordSize = 3 // pin, class tag, active level
	relayRecordSize  = 2 // pin, active level
)

// Region is one row of the layout table.
type Region struct {
	Entity     Entity
	RecordSize int
	Slots      int
	Base       int
}

// Layout maps every entity slot to its offset in the store.
//
//	[config][light][counts][button 0..N-1][relay 0..M-1]
type Layout struct {
	regions [numEntities]Region
	size    int
}

// NewLayout builds the layout table for the given capacities.
func NewLayout(maxButtons, maxRelays int) Layout {
	rows := []Region{
		{Entity: EntityConfig, RecordSize: configRecordSize, Slots: 1},
		{Entity: EntityLight, RecordSize: lightRecordSize, Slots: 1},
		{Entity: EntityCounts, RecordSize: countsRecordSize, Slots: 1},
		{Entity: EntityButton, RecordSize: buttonRecordSize, Slots: maxButtons},
		{Entity: EntityRelay, RecordSize: relayRecordSize, Slots: maxRelays},
	}

	var l Layout
	offset := 0
	for _, r := range rows {
		r.Base = offset
		l.regions[r.Entity] = r
		offset += r.RecordSize * r.Slots
	}
	l.size = offset
	return l
}

// Size returns the number of bytes the layout occupies.
func (l Layout) Size() int {
	return l.size
}

// Region returns the layout row for e.
func (l Layout) Region(e Entity) Region {
	return l.regions[e]
}

// Offset returns the address of slot for entity e.
func (l Layout) Offset(e Entity, slot int) (int, error) {
	if e < 0 || e >= numEntities {
		return 0, fmt.Errorf("%w: unknown entity %d", ErrAddress, int(e))
	}
	r := l.regions[e]
	if slot < 0 || slot >= r.Slots {
		return 0, fmt.Errorf("%w: %s slot %d", ErrAddress, e, slot)
	}
	return r.Base + r.RecordSize*slot, nil
}
