// Package alarm implements the alarm state machine: one process-wide alarm
// that is either idle or active, with idempotent start and stop transitions.
//
// Machine is not synchronized. The engine package owns one under its lock so
// the duplicate check and the activation happen atomically.
package alarm
