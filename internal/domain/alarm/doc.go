// Package alarm contains core domain types for the alarm business logic.
//
// It defines State (whether an alarm is active and who it is for), DeviceInfo
// (what the remote device announced during its handshake) and Event (what the
// core tells its collaborators), with Clone helpers to avoid leaking internal
// references.
package alarm
