package alarm

import "time"

// EventKind tags an Event.
type EventKind string

// Event kinds emitted to collaborators.
const (
	EventAlarmActivated    EventKind = "alarm_activated"
	EventAlarmDeactivated  EventKind = "alarm_deactivated"
	EventHandshakeComplete EventKind = "handshake_complete"
	EventLineReceived      EventKind = "line_received"
)

// Event is a flat tagged value. Only the fields meaningful for Kind are set:
//   - alarm_activated: AlarmID, Source, Patient, Room, Device
//   - handshake_complete: Device, Patient, Room, Fields
//   - line_received: Raw
type Event struct {
	// Timestamp is when the core produced the event.
	Timestamp time.Time `json:"timestamp"`
	// Fields holds every handshake key for handshake_complete.
	Fields map[string]string `json:"fields,omitempty"`
	// Kind tags the event.
	Kind EventKind `json:"kind"`
	// AlarmID identifies the activation.
	AlarmID string `json:"alarm_id,omitempty"`
	// Source names what raised the alarm.
	Source string `json:"source,omitempty"`
	// Patient is the patient name.
	Patient string `json:"patient,omitempty"`
	// Room is the room.
	Room string `json:"room,omitempty"`
	// Device is the device identifier.
	Device string `json:"device,omitempty"`
	// Raw is the received line.
	Raw string `json:"raw,omitempty"`
}

// ActivatedEvent builds the alarm_activated event for an active state.
func ActivatedEvent(s *State) Event {
	return Event{
		Kind:      EventAlarmActivated,
		Timestamp: s.ActivatedAt,
		AlarmID:   s.ID,
		Source:    s.Source,
		Patient:   s.Patient,
		Room:      s.Room,
		Device:    s.Device,
	}
}

// HandshakeEvent builds the handshake_complete event.
func HandshakeEvent(info *DeviceInfo, at time.Time) Event {
	return Event{
		Kind:      EventHandshakeComplete,
		Timestamp: at,
		Device:    info.DeviceID,
		Patient:   info.Patient,
		Room:      info.Room,
		Fields:    info.Clone().Fields,
	}
}
