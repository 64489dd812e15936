package alarm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/alarm-bridge/internal/domain/alarm"
)

var activatedAt = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

// TestMachine_StartFromPayload fills every field from the trigger details.
func TestMachine_StartFromPayload(t *testing.T) {
	t.Parallel()

	m := NewMachine()

	state, started := m.Start(Trigger{
		At:      activatedAt,
		ID:      "a1",
		Source:  "JSON Command",
		Details: map[string]any{"command": "PLAY_ALARM", "patient": "John", "room": "204", "device_id": "ESP01"},
	})

	require.True(t, started)
	require.True(t, m.Active())
	require.Equal(t, domain.State{
		Active:      true,
		ActivatedAt: activatedAt,
		ID:          "a1",
		Source:      "JSON Command",
		Patient:     "John",
		Room:        "204",
		Device:      "ESP01",
	}, state)
}

// TestMachine_StartUpperCaseKeys falls back to upper-case payload keys.
func TestMachine_StartUpperCaseKeys(t *testing.T) {
	t.Parallel()

	m := NewMachine()

	state, _ := m.Start(Trigger{Details: map[string]any{"PATIENT": "Jane", "ROOM": 12.0}})
	require.Equal(t, "Jane", state.Patient)
	require.Equal(t, "12", state.Room)
	require.Equal(t, domain.UnknownDevice, state.Device)
}

// TestMachine_StartFallsBackToDeviceInfo uses the last handshake per missing field.
func TestMachine_StartFallsBackToDeviceInfo(t *testing.T) {
	t.Parallel()

	m := NewMachine()
	info := domain.NewDeviceInfo(map[string]string{"DEVICE_ID": "ESP01", "PATIENT": "Jane Doe", "ROOM": "204"})

	state, _ := m.Start(Trigger{
		Source:   "Custom Command",
		Details:  map[string]any{"room": "ICU"},
		Fallback: info,
	})

	require.Equal(t, "Jane Doe", state.Patient)
	require.Equal(t, "ICU", state.Room)
	require.Equal(t, "ESP01", state.Device)
}

// TestMachine_StartWithoutAnyInfo uses the documented placeholders.
func TestMachine_StartWithoutAnyInfo(t *testing.T) {
	t.Parallel()

	m := NewMachine()

	state, _ := m.Start(Trigger{Source: "JSON Command", Details: map[string]any{"command": "PLAY_ALARM"}})
	require.Equal(t, domain.UnknownPatient, state.Patient)
	require.Equal(t, domain.UnknownRoom, state.Room)
	require.Equal(t, domain.UnknownDevice, state.Device)
}

// TestMachine_DuplicateStart leaves the first activation untouched.
func TestMachine_DuplicateStart(t *testing.T) {
	t.Parallel()

	m := NewMachine()

	first, started := m.Start(Trigger{ID: "first", Source: "Button Press"})
	require.True(t, started)

	second, started := m.Start(Trigger{ID: "second", Source: "Manual Test", Details: map[string]any{"patient": "X"}})
	require.False(t, started)
	require.Equal(t, first, second)
	require.Equal(t, first, m.State())
}

// TestMachine_Stop clears the state and is a no-op while idle.
func TestMachine_Stop(t *testing.T) {
	t.Parallel()

	m := NewMachine()
	require.False(t, m.Stop())

	m.Start(Trigger{ID: "a1", Source: "Button Press"})
	require.True(t, m.Stop())
	require.False(t, m.Active())
	require.Equal(t, domain.State{}, m.State())
	require.False(t, m.Stop())
}
