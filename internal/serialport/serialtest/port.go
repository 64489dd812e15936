// Package serialtest provides an in-memory serial port for tests.
package serialtest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/oshokin/alarm-bridge/internal/serialport"
	"github.com/oshokin/alarm-bridge/internal/syncutil"
)

// ErrNoSuchPort is returned by Bank.Open for unknown names.
var ErrNoSuchPort = errors.New("no such port")

// defaultReadTimeout is used until SetReadTimeout is called.
const defaultReadTimeout = 5 * time.Millisecond

// Port is a scripted serial port. Bytes pushed with Push are returned by
// Read in order; a Read with nothing queued waits for the read timeout and
// returns 0, nil like go.bug.st/serial does.
type Port struct {
	// WriteErr, when set, fails every Write.
	WriteErr error
	// ResetErr, when set, fails ResetInputBuffer.
	ResetErr error

	name    string
	chunks  chan []byte
	errs    chan error
	closing chan struct{}

	mu          syncutil.Mutex
	written     bytes.Buffer
	readTimeout time.Duration
	resets      int
	closed      bool
}

// NewPort returns an open port.
func NewPort(name string) *Port {
	return &Port{
		name:        name,
		chunks:      make(chan []byte, 64), //nolint:mnd // generous for scripted tests
		errs:        make(chan error, 8),   //nolint:mnd // generous for scripted tests
		closing:     make(chan struct{}),
		readTimeout: defaultReadTimeout,
	}
}

// Push queues bytes for Read. Each call is returned by a separate Read.
func (p *Port) Push(data string) {
	p.chunks <- []byte(data)
}

// FailRead queues err as the result of a future Read.
func (p *Port) FailRead(err error) {
	p.errs <- err
}

// Read returns the next queued chunk or error.
func (p *Port) Read(b []byte) (int, error) {
	p.mu.Lock()
	timeout := p.readTimeout
	p.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.closing:
		return 0, fmt.Errorf("read %s: %w", p.name, os.ErrClosed)
	case err := <-p.errs:
		return 0, err
	case chunk := <-p.chunks:
		return copy(b, chunk), nil
	case <-timer.C:
		return 0, nil
	}
}

// Write records b.
func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, fmt.Errorf("write %s: %w", p.name, os.ErrClosed)
	}

	if p.WriteErr != nil {
		return 0, p.WriteErr
	}

	return p.written.Write(b)
}

// Close closes the port. Reads in flight return os.ErrClosed.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("close %s: %w", p.name, os.ErrClosed)
	}

	p.closed = true
	close(p.closing)

	return nil
}

// Unplug simulates the device going away.
func (p *Port) Unplug() {
	_ = p.Close()
}

// SetReadTimeout sets how long an idle Read waits.
func (p *Port) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t > 0 {
		p.readTimeout = t
	}

	return nil
}

// ResetInputBuffer drops queued chunks.
func (p *Port) ResetInputBuffer() error {
	if p.ResetErr != nil {
		return p.ResetErr
	}

	p.mu.Lock()
	p.resets++
	p.mu.Unlock()

	for {
		select {
		case <-p.chunks:
		default:
			return nil
		}
	}
}

// ResetOutputBuffer is a no-op.
func (*Port) ResetOutputBuffer() error {
	return nil
}

// Drain is a no-op.
func (*Port) Drain() error {
	return nil
}

// Written returns everything written so far.
func (p *Port) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.written.String()
}

// Lines returns the written tokens, one per line.
func (p *Port) Lines() []string {
	return strings.Fields(p.Written())
}

// Closed reports whether Close was called.
func (p *Port) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.closed
}

// Resets returns how many times the input buffer was reset.
func (p *Port) Resets() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.resets
}

// Bank maps port names to ports. Names not in the bank fail to open.
type Bank struct {
	mu     syncutil.Mutex
	ports  map[string]*Port
	opened []string
}

// NewBank returns a bank holding ports.
func NewBank(ports ...*Port) *Bank {
	b := &Bank{ports: make(map[string]*Port, len(ports))}
	for _, p := range ports {
		b.ports[p.name] = p
	}

	return b
}

// Open implements serialport.Factory.
//
//nolint:ireturn // matches serialport.Factory.
func (b *Bank) Open(name string, _ *serial.Mode) (serialport.Port, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.opened = append(b.opened, name)

	p, ok := b.ports[name]
	if !ok || p.Closed() {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchPort, name)
	}

	return p, nil
}

// Opened returns every name passed to Open, in order.
func (b *Bank) Opened() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]string(nil), b.opened...)
}

// Replace swaps in a fresh port under the same name, as after a replug.
func (b *Bank) Replace(p *Port) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ports[p.name] = p
}
