package serialport

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.bug.st/serial"
)

// Port is the subset of serial.Port the bridge uses. It exists so tests can
// substitute an in-memory port.
type Port interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() error
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	ResetOutputBuffer() error
	Drain() error
}

// Factory opens a port by name.
type Factory func(name string, mode *serial.Mode) (Port, error)

var (
	// ErrPortUnavailable is logged for a candidate that could not be opened or greeted.
	ErrPortUnavailable = errors.New("port unavailable")
	// ErrNoPortAvailable is returned by Connect when every candidate failed.
	ErrNoPortAvailable = errors.New("no serial port available")
	// ErrNotConnected is returned by Send when no link is open.
	ErrNotConnected = errors.New("serial link not connected")
)

// OpenPort is the Factory backed by go.bug.st/serial.
//
//nolint:ireturn // Factory returns the Port interface so tests can substitute ports.
func OpenPort(name string, mode *serial.Mode) (Port, error) {
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}

	return port, nil
}

// Mode returns 8-N-1 framing at the given baud rate.
func Mode(baudRate int) *serial.Mode {
	return &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8, //nolint:mnd // 8-N-1
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// isClosed reports whether err means the link is gone for good rather than a
// transient read failure.
func isClosed(err error) bool {
	var portErr *serial.PortError
	if errors.As(err, &portErr) && portErr.Code() == serial.PortClosed {
		return true
	}

	return errors.Is(err, os.ErrClosed)
}
