package serialport

import (
	"context"
	"fmt"
	"iter"

	"github.com/spf13/afero"

	"github.com/oshokin/alarm-bridge/internal/logger"
)

// Discovery lists candidate ports for the current platform.
type Discovery struct {
	// Fs is searched for device files. Nil uses the OS filesystem.
	Fs afero.Fs
	// Open probes COM ports on windows. Nil uses OpenPort.
	Open Factory
	// Pinned, when set, is the only candidate.
	Pinned string
	// Patterns are glob patterns of device files.
	Patterns []string
	// ComFirst and ComLast bound the COM numbers probed.
	ComFirst int
	ComLast  int
	// BaudRate is used when probing.
	BaudRate int
}

// Candidates returns the port names to try, in probing order. The sequence is
// lazy: globbing or probing happens as it is consumed.
func (d *Discovery) Candidates(ctx context.Context) iter.Seq[string] {
	if d.Pinned != "" {
		return func(yield func(string) bool) {
			yield(d.Pinned)
		}
	}

	return d.platformCandidates(ctx)
}

// globCandidates yields device files matching each pattern in turn, each
// pattern's matches in lexical order and every file once.
func (d *Discovery) globCandidates(ctx context.Context) iter.Seq[string] {
	fs := d.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	return func(yield func(string) bool) {
		seen := make(map[string]struct{})

		for _, pattern := range d.Patterns {
			matches, err := afero.Glob(fs, pattern)
			if err != nil {
				logger.WarnKV(ctx, "Bad port pattern", "pattern", pattern, "error", err)

				continue
			}

			for _, name := range matches {
				if _, dup := seen[name]; dup {
					continue
				}

				seen[name] = struct{}{}

				if !yield(name) {
					return
				}
			}
		}
	}
}

// comCandidates yields every COM port in range that can be opened, closing
// it again right away.
func (d *Discovery) comCandidates(ctx context.Context) iter.Seq[string] {
	open := d.Open
	if open == nil {
		open = OpenPort
	}

	return func(yield func(string) bool) {
		for i := d.ComFirst; i <= d.ComLast; i++ {
			if ctx.Err() != nil {
				return
			}

			name := fmt.Sprintf("COM%d", i)

			port, err := open(name, Mode(d.BaudRate))
			if err != nil {
				logger.DebugKV(ctx, "COM port skipped", "port", name, "error", err)

				continue
			}

			if err := port.Close(); err != nil {
				logger.DebugKV(ctx, "Close probed port", "port", name, "error", err)
			}

			if !yield(name) {
				return
			}
		}
	}
}
