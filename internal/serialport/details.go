package serialport

import (
	"context"

	"go.bug.st/serial/enumerator"

	"github.com/oshokin/alarm-bridge/internal/logger"
)

// logPortDetails logs the USB identity of the connected port, when the
// platform can tell.
func logPortDetails(ctx context.Context, name string) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		logger.DebugKV(ctx, "Port details unavailable", "port", name, "error", err)

		return
	}

	for _, p := range ports {
		if p.Name != name || !p.IsUSB {
			continue
		}

		logger.InfoKV(ctx, "USB serial device",
			"port", p.Name,
			"vid", p.VID,
			"pid", p.PID,
			"serial_number", p.SerialNumber,
			"product", p.Product)

		return
	}
}
