// Package serial provides a line-oriented command transport over a serial
// port.
package serial

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog/log"
	bugst "go.bug.st/serial"

	"github.com/sweeney/relay-lights/internal/transport"
)

// DefaultBaud is the baud rate used when none is configured.
const DefaultBaud = 9600

// maxLine bounds a single record.
const maxLine = 4096

// Port reads newline-terminated records from a serial port on a background
// goroutine and writes replies back on the same port.
type Port struct {
	name  string
	rw    io.ReadWriteCloser
	queue *transport.Queue

	mu   sync.Mutex // serializes writes
	done chan struct{}
}

// Open opens path at baud (8N1) and starts reading.
func Open(path string, baud int) (*Port, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	mode := &bugst.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	}
	port, err := bugst.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", path, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		log.Warn().Err(err).Str("port", path).Msg("failed to reset serial input buffer")
	}

	log.Info().Str("port", path).Int("baud", baud).Msg("serial port opened")
	return newPort("serial:"+path, port), nil
}

func newPort(name string, rw io.ReadWriteCloser) *Port {
	p := &Port{
		name:  name,
		rw:    rw,
		queue: transport.NewQueue(name, transport.DefaultQueueSize),
		done:  make(chan struct{}),
	}
	go p.readLoop()
	return p
}

func (p *Port) readLoop() {
	defer close(p.done)

	scanner := bufio.NewScanner(p.rw)
	scanner.Buffer(make([]byte, 0, 256), maxLine)
	for scanner.Scan() {
		line := bytes.TrimRight(scanner.Bytes(), "\r")
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		log.Debug().Str("source", p.name).Bytes("rx", line).Msg("record received")
		p.queue.Push(line)
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		log.Error().Err(err).Str("source", p.name).Msg("serial read stopped")
	}
}

// Name returns the source name.
func (p *Port) Name() string {
	return p.name
}

// Poll returns the next received record without blocking.
func (p *Port) Poll() ([]byte, bool) {
	return p.queue.Poll()
}

// Reply writes text followed by a newline.
func (p *Port) Reply(text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := io.WriteString(p.rw, text+"\n"); err != nil {
		return fmt.Errorf("serial reply: %w", err)
	}
	return nil
}

// Close closes the port and waits for the reader to stop.
func (p *Port) Close() error {
	err := p.rw.Close()
	<-p.done
	return err
}
