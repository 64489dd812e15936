package alarm

import (
	"maps"
	"time"
)

// Placeholders used when neither the trigger nor the last handshake carried a value.
const (
	UnknownPatient = "Unknown Patient"
	UnknownRoom    = "Unknown Room"
	UnknownDevice  = "Unknown"
)

// Placeholders published for a handshake that omitted a key.
const (
	UnknownHandshakeDevice = "UNKNOWN"
	UnknownHandshakeValue  = "Unknown"
)

// State represents the alarm status at a specific point in time.
// When Active is false the detail fields are stale and must be ignored.
type State struct {
	// ActivatedAt is when the alarm became active.
	ActivatedAt time.Time
	// ID identifies one activation.
	ID string
	// Source names what raised the alarm (e.g. "Button Press").
	Source string
	// Patient is the patient the alarm is for.
	Patient string
	// Room is where the patient is.
	Room string
	// Device is the identifier of the device that raised it.
	Device string
	// Active indicates whether the alarm is currently active.
	Active bool
}

// Clone returns a copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}

	cloned := *s

	return &cloned
}

// DeviceInfo is the identity the device announced in its last handshake.
type DeviceInfo struct {
	// Fields holds every key received, including unrecognized ones.
	Fields map[string]string
	// DeviceID is the DEVICE_ID key.
	DeviceID string
	// Patient is the PATIENT key.
	Patient string
	// Room is the ROOM key.
	Room string
}

// Handshake keys with a meaning for the core. Others are passed through.
const (
	KeyDeviceID = "DEVICE_ID"
	KeyPatient  = "PATIENT"
	KeyRoom     = "ROOM"
)

// NewDeviceInfo builds DeviceInfo from handshake fields, substituting placeholders for missing keys.
func NewDeviceInfo(fields map[string]string) *DeviceInfo {
	info := &DeviceInfo{
		Fields:   make(map[string]string, len(fields)),
		DeviceID: UnknownHandshakeDevice,
		Patient:  UnknownHandshakeValue,
		Room:     UnknownHandshakeValue,
	}

	maps.Copy(info.Fields, fields)

	if v, ok := fields[KeyDeviceID]; ok {
		info.DeviceID = v
	}

	if v, ok := fields[KeyPatient]; ok {
		info.Patient = v
	}

	if v, ok := fields[KeyRoom]; ok {
		info.Room = v
	}

	return info
}

// Clone returns a deep copy of the device info.
func (d *DeviceInfo) Clone() *DeviceInfo {
	if d == nil {
		return nil
	}

	cloned := *d
	cloned.Fields = make(map[string]string, len(d.Fields))
	maps.Copy(cloned.Fields, d.Fields)

	return &cloned
}
