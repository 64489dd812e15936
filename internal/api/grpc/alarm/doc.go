// Package alarm implements the gRPC transport for the alarm bridge.
//
// It converts between domain values and the Struct messages of the
// AlarmBridge service and maps serial link errors to status codes.
package alarm
