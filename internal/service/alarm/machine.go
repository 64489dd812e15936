package alarm

import (
	"fmt"
	"strings"
	"time"

	domain "github.com/oshokin/alarm-bridge/internal/domain/alarm"
)

// Payload keys looked up in trigger details, lower-case first.
const (
	detailPatient  = "patient"
	detailRoom     = "room"
	detailDeviceID = "device_id"
)

// Trigger carries everything an IDLE -> ACTIVE transition needs.
type Trigger struct {
	// At is the activation time.
	At time.Time
	// Details is the trigger payload, possibly nil.
	Details map[string]any
	// Fallback is the last handshake device info, nil when none was received.
	Fallback *domain.DeviceInfo
	// ID identifies the activation.
	ID string
	// Source names what raised the alarm.
	Source string
}

// Machine owns the alarm state.
type Machine struct {
	state domain.State
}

// NewMachine returns an idle machine.
func NewMachine() *Machine {
	return &Machine{}
}

// Active reports whether an alarm is active.
func (m *Machine) Active() bool {
	return m.state.Active
}

// State returns a copy of the current state.
func (m *Machine) State() domain.State {
	return m.state
}

// Start activates the alarm. It returns the new state and true on the
// IDLE -> ACTIVE transition, or the untouched state and false when an alarm
// was already active.
func (m *Machine) Start(t Trigger) (domain.State, bool) {
	if m.state.Active {
		return m.state, false
	}

	fallbackPatient, fallbackRoom, fallbackDevice := domain.UnknownPatient, domain.UnknownRoom, domain.UnknownDevice
	if t.Fallback != nil {
		fallbackPatient, fallbackRoom, fallbackDevice = t.Fallback.Patient, t.Fallback.Room, t.Fallback.DeviceID
	}

	m.state = domain.State{
		Active:      true,
		ActivatedAt: t.At,
		ID:          t.ID,
		Source:      t.Source,
		Patient:     lookup(t.Details, detailPatient, fallbackPatient),
		Room:        lookup(t.Details, detailRoom, fallbackRoom),
		Device:      lookup(t.Details, detailDeviceID, fallbackDevice),
	}

	return m.state, true
}

// Stop deactivates the alarm and clears the details. It reports false when
// no alarm was active.
func (m *Machine) Stop() bool {
	if !m.state.Active {
		return false
	}

	m.state = domain.State{}

	return true
}

// lookup returns details[key], then details[KEY], then fallback.
func lookup(details map[string]any, key, fallback string) string {
	for _, k := range []string{key, strings.ToUpper(key)} {
		v, ok := details[k]
		if !ok || v == nil {
			continue
		}

		if s, isString := v.(string); isString {
			return s
		}

		return fmt.Sprint(v)
	}

	return fallback
}
