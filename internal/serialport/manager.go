package serialport

import (
	"context"
	"fmt"
	"iter"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/oshokin/alarm-bridge/internal/logger"
	"github.com/oshokin/alarm-bridge/internal/protocol"
	"github.com/oshokin/alarm-bridge/internal/syncutil"
)

// LineHandler consumes decoded lines. HandleLine is called from the read loop
// in the order lines were received.
type LineHandler interface {
	HandleLine(ctx context.Context, line protocol.Line)
	// ResetLink is called before the first line of every new link.
	ResetLink()
}

const (
	// readBufferSize bounds a single read. The controller sends short lines.
	readBufferSize = 1024
	// shutdownDrain gives the device time to read the shutdown notice before close.
	shutdownDrain = 200 * time.Millisecond
)

// Options configures a Manager.
type Options struct {
	// Candidates lists ports to probe in order. Required.
	Candidates func(ctx context.Context) iter.Seq[string]
	// Open opens a port. Nil uses OpenPort.
	Open Factory
	// Handler receives every decoded line. Required.
	Handler LineHandler
	// Clock drives every sleep. Nil uses the real clock.
	Clock clockwork.Clock
	// BaudRate is the line speed.
	BaudRate int
	// ReadTimeout bounds a single poll and therefore how long Disconnect waits.
	ReadTimeout time.Duration
	// WriteTimeout bounds the shutdown notice.
	WriteTimeout time.Duration
	// SettleDelay is waited after opening, before the greeting.
	SettleDelay time.Duration
	// PingDelay is waited after the probe greeting, before the read loop starts.
	PingDelay time.Duration
	// PollInterval is slept between polls.
	PollInterval time.Duration
	// ErrorBackoff is slept after a failed read.
	ErrorBackoff time.Duration
}

// link is one open port and its read loop.
type link struct {
	port    Port
	name    string
	decoder *protocol.LineDecoder
	// stop asks the read loop to exit at its next poll boundary.
	stop chan struct{}
	// done is closed when the read loop has exited.
	done chan struct{}
	// readErrors counts consecutive failed reads.
	readErrors atomic.Int64
	// writeMu serializes writes and the final close.
	writeMu syncutil.Mutex
	closed  bool
}

// Manager is the connection manager.
type Manager struct {
	opts  Options
	clock clockwork.Clock
	//nolint:containedctx // logging scope of read loops, which outlive the Connect call.
	ctx context.Context

	// connectMu serializes Connect calls.
	connectMu syncutil.Mutex
	// mu guards link.
	mu   syncutil.Mutex
	link *link
}

// NewManager creates a disconnected Manager. ctx scopes the logging of every
// read loop it starts.
func NewManager(ctx context.Context, opts Options) *Manager {
	m := &Manager{
		opts:  opts,
		clock: opts.Clock,
		ctx:   logger.WithName(context.WithoutCancel(ctx), "serial"),
	}

	if m.opts.Open == nil {
		m.opts.Open = OpenPort
	}

	if m.clock == nil {
		m.clock = clockwork.NewRealClock()
	}

	return m
}

// Connect opens the first candidate that accepts the greeting and starts its
// read loop. It returns the port name. When a link is already open Connect
// returns its name without probing.
func (m *Manager) Connect(ctx context.Context) (string, error) {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	if name, ok := m.Port(); ok {
		return name, nil
	}

	for name := range m.opts.Candidates(ctx) {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		logger.InfoKV(ctx, "Trying serial port", "port", name, "baud_rate", m.opts.BaudRate)

		l, err := m.open(ctx, name)
		if err != nil {
			logger.WarnKV(ctx, "Failed to connect", "port", name, "error", err)

			continue
		}

		m.start(l)

		logger.InfoKV(ctx, "Connected", "port", name, "baud_rate", m.opts.BaudRate)
		logPortDetails(ctx, name)

		if err := m.Send(ctx, protocol.TokenReady); err != nil {
			logger.WarnKV(ctx, "Ready notice not sent", "port", name, "error", err)
		}

		return name, nil
	}

	logger.ErrorKV(ctx, "Could not connect to any serial port")

	return "", ErrNoPortAvailable
}

// open opens and greets one candidate.
func (m *Manager) open(ctx context.Context, name string) (*link, error) {
	port, err := m.opts.Open(name, Mode(m.opts.BaudRate))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPortUnavailable, err)
	}

	fail := func(step string, err error) (*link, error) {
		if closeErr := port.Close(); closeErr != nil {
			logger.DebugKV(ctx, "Close failed candidate", "port", name, "error", closeErr)
		}

		return nil, fmt.Errorf("%w: %s: %w", ErrPortUnavailable, step, err)
	}

	if err := port.SetReadTimeout(m.opts.ReadTimeout); err != nil {
		return fail("set read timeout", err)
	}

	if err := m.sleep(ctx, m.opts.SettleDelay); err != nil {
		return fail("settle", err)
	}

	if err := port.ResetInputBuffer(); err != nil {
		return fail("reset input buffer", err)
	}

	if err := port.ResetOutputBuffer(); err != nil {
		return fail("reset output buffer", err)
	}

	if _, err := port.Write(protocol.Frame(protocol.TokenPing)); err != nil {
		return fail("greeting", err)
	}

	if err := m.sleep(ctx, m.opts.PingDelay); err != nil {
		return fail("greeting", err)
	}

	return &link{
		port:    port,
		name:    name,
		decoder: protocol.NewLineDecoder(),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// start installs l as the current link and runs its read loop.
func (m *Manager) start(l *link) {
	m.opts.Handler.ResetLink()

	m.mu.Lock()
	m.link = l
	m.mu.Unlock()

	go m.readLoop(logger.WithKV(m.ctx, "port", l.name), l)
}

// readLoop polls the port until it is stopped or the link closes.
func (m *Manager) readLoop(ctx context.Context, l *link) {
	defer close(l.done)

	logger.InfoKV(ctx, "Listening for device commands")

	buf := make([]byte, readBufferSize)

	for {
		select {
		case <-l.stop:
			return
		default:
		}

		n, err := l.port.Read(buf)
		if err != nil {
			if isClosed(err) {
				logger.WarnKV(ctx, "Serial link closed", "error", err)
				m.drop(ctx, l)

				return
			}

			count := l.readErrors.Add(1)
			logger.ErrorKV(ctx, "Serial read error", "error", err, "consecutive_errors", count)

			if !m.pause(l, m.opts.ErrorBackoff) {
				return
			}

			continue
		}

		l.readErrors.Store(0)

		if n > 0 {
			logger.DebugKV(ctx, "Bytes received", "count", n)

			for line := range l.decoder.Feed(buf[:n]) {
				m.opts.Handler.HandleLine(ctx, line)
			}

			if dropped := l.decoder.TakeDiscarded(); dropped > 0 {
				logger.WarnKV(ctx, "Discarded unterminated serial data, check the baud rate",
					"bytes", dropped, "limit", protocol.MaxPending)
			}
		}

		if !m.pause(l, m.opts.PollInterval) {
			return
		}
	}
}

// pause sleeps d and reports false if the loop was stopped meanwhile.
func (m *Manager) pause(l *link, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	select {
	case <-l.stop:
		return false
	case <-m.clock.After(d):
		return true
	}
}

// drop forgets l after its port reported itself closed.
func (m *Manager) drop(ctx context.Context, l *link) {
	m.mu.Lock()
	if m.link == l {
		m.link = nil
	}
	m.mu.Unlock()

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if l.closed {
		return
	}

	l.closed = true

	if err := l.port.Close(); err != nil {
		logger.DebugKV(ctx, "Close dropped port", "error", err)
	}
}

// Disconnect stops the read loop, sends the shutdown notice and closes the
// port. It is a no-op when no link is open.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	l := m.link
	m.link = nil
	m.mu.Unlock()

	if l == nil {
		return nil
	}

	close(l.stop)
	<-l.done

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if l.closed {
		return nil
	}

	m.sendShutdown(ctx, l)

	l.closed = true

	if err := l.port.Close(); err != nil {
		return fmt.Errorf("close %s: %w", l.name, err)
	}

	logger.InfoKV(ctx, "Serial port closed", "port", l.name)

	return nil
}

// sendShutdown writes the shutdown notice, giving up after WriteTimeout.
// The caller holds l.writeMu.
func (m *Manager) sendShutdown(ctx context.Context, l *link) {
	written := make(chan error, 1)

	go func() {
		_, err := l.port.Write(protocol.Frame(protocol.TokenShutdown))
		if err == nil {
			err = l.port.Drain()
		}

		written <- err
	}()

	select {
	case err := <-written:
		if err != nil {
			logger.WarnKV(ctx, "Shutdown notice not sent", "port", l.name, "error", err)

			return
		}

		logger.DebugKV(ctx, "Sent to device", "port", l.name, "token", protocol.TokenShutdown)
		m.clock.Sleep(shutdownDrain)
	case <-m.clock.After(m.opts.WriteTimeout):
		logger.WarnKV(ctx, "Shutdown notice timed out", "port", l.name)
	}
}

// Send writes token followed by the line delimiter.
func (m *Manager) Send(ctx context.Context, token string) error {
	m.mu.Lock()
	l := m.link
	m.mu.Unlock()

	if l == nil {
		return ErrNotConnected
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if l.closed {
		return ErrNotConnected
	}

	if _, err := l.port.Write(protocol.Frame(token)); err != nil {
		return fmt.Errorf("write %s: %w", l.name, err)
	}

	logger.DebugKV(ctx, "Sent to device", "port", l.name, "token", token)

	return nil
}

// Port returns the name of the open port.
func (m *Manager) Port() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.link == nil {
		return "", false
	}

	return m.link.name, true
}

// Connected reports whether a link is open.
func (m *Manager) Connected() bool {
	_, ok := m.Port()

	return ok
}

// ReadErrors returns the consecutive failed reads on the open link.
func (m *Manager) ReadErrors() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.link == nil {
		return 0
	}

	return m.link.readErrors.Load()
}

// Done returns a channel closed when the current link's read loop exits.
// With no link open the channel is already closed.
func (m *Manager) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.link == nil {
		closed := make(chan struct{})
		close(closed)

		return closed
	}

	return m.link.done
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.clock.After(d):
		return nil
	}
}
