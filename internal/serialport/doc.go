// Package serialport owns the serial link to the call-button controller.
//
// Discovery lists candidate ports for the current platform. Manager probes
// them in order, greets the device, runs the read loop that feeds complete
// lines to a LineHandler, and serializes writes. At most one link is open.
package serialport
