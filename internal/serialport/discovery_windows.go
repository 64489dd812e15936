//go:build windows

package serialport

import (
	"context"
	"iter"
)

func (d *Discovery) platformCandidates(ctx context.Context) iter.Seq[string] {
	return d.comCandidates(ctx)
}
