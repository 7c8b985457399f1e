// Package transport carries command-channel records between the controller
// and its clients. Sources are polled from the main cycle and never block
// it: records arrive on background goroutines and wait in a Queue until the
// next Poll.
package transport

import (
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// DefaultQueueSize is the number of records a source holds between polls.
const DefaultQueueSize = 16

// Source is a command channel.
type Source interface {
	// Name identifies the source in logs.
	Name() string

	// Poll returns the next pending record without blocking.
	Poll() ([]byte, bool)

	// Reply sends text back to the client. Multi-line text is sent as is.
	Reply(text string) error
}

// Queue is a bounded, concurrency-safe record buffer. Push never blocks;
// records arriving while the queue is full are dropped.
type Queue struct {
	name    string
	ch      chan []byte
	dropped atomic.Uint64
}

// NewQueue creates a Queue holding up to size records.
func NewQueue(name string, size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{name: name, ch: make(chan []byte, size)}
}

// Push enqueues a copy of line. Returns false if the queue was full.
func (q *Queue) Push(line []byte) bool {
	rec := make([]byte, len(line))
	copy(rec, line)

	select {
	case q.ch <- rec:
		return true
	default:
		n := q.dropped.Add(1)
		log.Warn().Str("source", q.name).Uint64("dropped", n).Msg("command queue full, dropping record")
		return false
	}
}

// Poll returns the oldest record without blocking.
func (q *Queue) Poll() ([]byte, bool) {
	select {
	case rec := <-q.ch:
		return rec, true
	default:
		return nil, false
	}
}

// Dropped returns the number of records dropped because the queue was full.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Record is a polled record and the source it arrived on.
type Record struct {
	Line   []byte
	Source Source
}

// Multi fans in several sources. Poll takes at most one record per call and
// rotates the starting source so that one busy source cannot starve the
// others.
type Multi struct {
	sources []Source
	next    int
}

// NewMulti creates a Multi over sources. Nil sources are skipped.
func NewMulti(sources ...Source) *Multi {
	m := &Multi{}
	for _, s := range sources {
		if s != nil {
			m.sources = append(m.sources, s)
		}
	}
	return m
}

// Len returns the number of sources.
func (m *Multi) Len() int {
	return len(m.sources)
}

// Poll returns the next pending record from any source.
func (m *Multi) Poll() (Record, bool) {
	n := len(m.sources)
	for i := 0; i < n; i++ {
		s := m.sources[(m.next+i)%n]
		if line, ok := s.Poll(); ok {
			m.next = (m.next + i + 1) % n
			return Record{Line: line, Source: s}, true
		}
	}
	return Record{}, false
}
