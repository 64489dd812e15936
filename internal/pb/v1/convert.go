package pb

import (
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/alarm-bridge/internal/domain/alarm"
)

// Keys of the Struct messages exchanged over the service.
const (
	KeyActive      = "active"
	KeyAlarmID     = "alarm_id"
	KeySource      = "source"
	KeyPatient     = "patient"
	KeyRoom        = "room"
	KeyDeviceID    = "device_id"
	KeyActivatedAt = "activated_at"
	KeyFields      = "fields"
	KeyKind        = "kind"
	KeyTimestamp   = "timestamp"
	KeyRaw         = "raw"
	KeyDetails     = "details"
	KeyRequestedBy = "requested_by"
	KeyHostname    = "hostname"
	KeyUsername    = "username"
	KeyAlarm       = "alarm"
	KeyDevice      = "device"
	KeyHandshake   = "handshake"
	KeyConnected   = "connected"
	KeyPort        = "port"
	KeyPaused      = "paused"
	KeyActivated   = "activated"
	KeyStopped     = "stopped"
)

// Actor identifies who issued a control request.
type Actor struct {
	// Hostname is the machine the request came from.
	Hostname string
	// Username is the operator account.
	Username string
}

// ActorToValue encodes an actor.
func ActorToValue(a *Actor) *structpb.Value {
	if a == nil {
		return structpb.NewNullValue()
	}

	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		KeyHostname: structpb.NewStringValue(a.Hostname),
		KeyUsername: structpb.NewStringValue(a.Username),
	}})
}

// ActorFromStruct reads the requested_by member of a request, nil when absent.
func ActorFromStruct(s *structpb.Struct) *Actor {
	v := s.GetFields()[KeyRequestedBy].GetStructValue()
	if v == nil {
		return nil
	}

	return &Actor{
		Hostname: v.GetFields()[KeyHostname].GetStringValue(),
		Username: v.GetFields()[KeyUsername].GetStringValue(),
	}
}

// StateToStruct encodes an alarm state. An inactive state carries only "active".
func StateToStruct(s domain.State) *structpb.Struct {
	fields := map[string]*structpb.Value{
		KeyActive: structpb.NewBoolValue(s.Active),
	}

	if !s.Active {
		return &structpb.Struct{Fields: fields}
	}

	fields[KeyAlarmID] = structpb.NewStringValue(s.ID)
	fields[KeySource] = structpb.NewStringValue(s.Source)
	fields[KeyPatient] = structpb.NewStringValue(s.Patient)
	fields[KeyRoom] = structpb.NewStringValue(s.Room)
	fields[KeyDeviceID] = structpb.NewStringValue(s.Device)
	fields[KeyActivatedAt] = structpb.NewStringValue(formatTime(s.ActivatedAt))

	return &structpb.Struct{Fields: fields}
}

// StateFromStruct decodes an alarm state.
func StateFromStruct(s *structpb.Struct) domain.State {
	f := s.GetFields()
	if !f[KeyActive].GetBoolValue() {
		return domain.State{}
	}

	return domain.State{
		Active:      true,
		ID:          f[KeyAlarmID].GetStringValue(),
		Source:      f[KeySource].GetStringValue(),
		Patient:     f[KeyPatient].GetStringValue(),
		Room:        f[KeyRoom].GetStringValue(),
		Device:      f[KeyDeviceID].GetStringValue(),
		ActivatedAt: parseTime(f[KeyActivatedAt].GetStringValue()),
	}
}

// DeviceInfoToStruct encodes device info. A nil info encodes as nil.
func DeviceInfoToStruct(info *domain.DeviceInfo) *structpb.Struct {
	if info == nil {
		return nil
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		KeyDeviceID: structpb.NewStringValue(info.DeviceID),
		KeyPatient:  structpb.NewStringValue(info.Patient),
		KeyRoom:     structpb.NewStringValue(info.Room),
		KeyFields:   structpb.NewStructValue(stringsToStruct(info.Fields)),
	}}
}

// DeviceInfoFromStruct decodes device info. The raw fields are authoritative;
// the top-level members are used only when they are absent.
func DeviceInfoFromStruct(s *structpb.Struct) *domain.DeviceInfo {
	if s == nil {
		return nil
	}

	f := s.GetFields()
	if raw, ok := f[KeyFields]; ok {
		return domain.NewDeviceInfo(structToStrings(raw.GetStructValue()))
	}

	raw := make(map[string]string, len(f))

	for key, member := range map[string]string{
		domain.KeyDeviceID: KeyDeviceID,
		domain.KeyPatient:  KeyPatient,
		domain.KeyRoom:     KeyRoom,
	} {
		if v, ok := f[member]; ok {
			raw[key] = v.GetStringValue()
		}
	}

	return domain.NewDeviceInfo(raw)
}

// EventToStruct encodes a collaborator event, omitting empty members.
func EventToStruct(ev domain.Event) *structpb.Struct {
	fields := map[string]*structpb.Value{
		KeyKind:      structpb.NewStringValue(string(ev.Kind)),
		KeyTimestamp: structpb.NewStringValue(formatTime(ev.Timestamp)),
	}

	for key, value := range map[string]string{
		KeyAlarmID:  ev.AlarmID,
		KeySource:   ev.Source,
		KeyPatient:  ev.Patient,
		KeyRoom:     ev.Room,
		KeyDeviceID: ev.Device,
		KeyRaw:      ev.Raw,
	} {
		if value != "" {
			fields[key] = structpb.NewStringValue(value)
		}
	}

	if len(ev.Fields) > 0 {
		fields[KeyFields] = structpb.NewStructValue(stringsToStruct(ev.Fields))
	}

	return &structpb.Struct{Fields: fields}
}

// EventFromStruct decodes a collaborator event.
func EventFromStruct(s *structpb.Struct) domain.Event {
	f := s.GetFields()

	ev := domain.Event{
		Kind:      domain.EventKind(f[KeyKind].GetStringValue()),
		Timestamp: parseTime(f[KeyTimestamp].GetStringValue()),
		AlarmID:   f[KeyAlarmID].GetStringValue(),
		Source:    f[KeySource].GetStringValue(),
		Patient:   f[KeyPatient].GetStringValue(),
		Room:      f[KeyRoom].GetStringValue(),
		Device:    f[KeyDeviceID].GetStringValue(),
		Raw:       f[KeyRaw].GetStringValue(),
	}

	if raw := f[KeyFields].GetStructValue(); raw != nil {
		ev.Fields = structToStrings(raw)
	}

	return ev
}

func stringsToStruct(m map[string]string) *structpb.Struct {
	fields := make(map[string]*structpb.Value, len(m))
	for k, v := range m {
		fields[k] = structpb.NewStringValue(v)
	}

	return &structpb.Struct{Fields: fields}
}

func structToStrings(s *structpb.Struct) map[string]string {
	m := make(map[string]string, len(s.GetFields()))
	for k, v := range s.GetFields() {
		m[k] = v.GetStringValue()
	}

	return m
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}

	return t
}
