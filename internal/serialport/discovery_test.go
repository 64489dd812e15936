package serialport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// stubPort is a Port that only records Close.
type stubPort struct {
	closed bool
}

func (*stubPort) Read([]byte) (int, error)           { return 0, nil }
func (*stubPort) Write(b []byte) (int, error)        { return len(b), nil }
func (p *stubPort) Close() error                     { p.closed = true; return nil }
func (*stubPort) SetReadTimeout(time.Duration) error { return nil }
func (*stubPort) ResetInputBuffer() error            { return nil }
func (*stubPort) ResetOutputBuffer() error           { return nil }
func (*stubPort) Drain() error                       { return nil }

func devFs(t *testing.T, names ...string) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	for _, name := range names {
		require.NoError(t, afero.WriteFile(fs, name, nil, 0o600))
	}

	return fs
}

// TestDiscovery_GlobOrder lists each pattern's matches in turn, without duplicates.
func TestDiscovery_GlobOrder(t *testing.T) {
	t.Parallel()

	d := &Discovery{
		Fs:       devFs(t, "/dev/ttyUSB1", "/dev/ttyUSB0", "/dev/ttyACM0", "/dev/tty0"),
		Patterns: []string{"/dev/ttyUSB*", "/dev/ttyACM*", "/dev/ttyUSB0"},
	}

	got := slices.Collect(d.globCandidates(t.Context()))
	require.Equal(t, []string{"/dev/ttyUSB0", "/dev/ttyUSB1", "/dev/ttyACM0"}, got)
}

// TestDiscovery_GlobEmpty yields nothing when no device is plugged in.
func TestDiscovery_GlobEmpty(t *testing.T) {
	t.Parallel()

	d := &Discovery{Fs: devFs(t), Patterns: []string{"/dev/ttyUSB*"}}
	require.Empty(t, slices.Collect(d.globCandidates(t.Context())))
}

// TestDiscovery_Pinned uses the pinned port only.
func TestDiscovery_Pinned(t *testing.T) {
	t.Parallel()

	d := &Discovery{
		Fs:       devFs(t, "/dev/ttyUSB0"),
		Pinned:   "/dev/ttyS4",
		Patterns: []string{"/dev/ttyUSB*"},
	}

	require.Equal(t, []string{"/dev/ttyS4"}, slices.Collect(d.Candidates(t.Context())))
}

// TestDiscovery_ComProbing yields ports that open and closes them again.
func TestDiscovery_ComProbing(t *testing.T) {
	t.Parallel()

	probed := make(map[string]*stubPort)
	open := func(name string, mode *serial.Mode) (Port, error) {
		require.Equal(t, 9600, mode.BaudRate)

		if name != "COM3" && name != "COM5" {
			return nil, fmt.Errorf("open %s: access denied", name)
		}

		p := new(stubPort)
		probed[name] = p

		return p, nil
	}

	d := &Discovery{Open: open, ComFirst: 1, ComLast: 6, BaudRate: 9600}

	require.Equal(t, []string{"COM3", "COM5"}, slices.Collect(d.comCandidates(t.Context())))
	require.True(t, probed["COM3"].closed)
	require.True(t, probed["COM5"].closed)
}

// TestDiscovery_ComProbingLazy stops probing once the consumer stops.
func TestDiscovery_ComProbingLazy(t *testing.T) {
	t.Parallel()

	var calls int

	open := func(string, *serial.Mode) (Port, error) {
		calls++

		return new(stubPort), nil
	}

	d := &Discovery{Open: open, ComFirst: 1, ComLast: 20}

	for name := range d.comCandidates(t.Context()) {
		require.Equal(t, "COM1", name)

		break
	}

	require.Equal(t, 1, calls)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.Empty(t, slices.Collect(d.comCandidates(ctx)))
}

// TestIsClosed separates a gone link from transient read errors.
func TestIsClosed(t *testing.T) {
	t.Parallel()

	require.True(t, isClosed(fmt.Errorf("read: %w", os.ErrClosed)))
	require.False(t, isClosed(errors.New("input/output error")))
	require.False(t, isClosed(&serial.PortError{}))
}
