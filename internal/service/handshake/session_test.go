package handshake

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSession_Roundtrip collects a block and returns it on End.
func TestSession_Roundtrip(t *testing.T) {
	t.Parallel()

	s := NewSession()
	require.Equal(t, Idle, s.State())

	s.Begin()
	require.True(t, s.Collecting())
	require.True(t, s.Field("DEVICE_ID", "ESP01"))
	require.True(t, s.Field("PATIENT", "Jane Doe"))
	require.True(t, s.Field("ROOM", "204"))

	fields, complete := s.End()
	require.True(t, complete)
	require.Equal(t, map[string]string{
		"DEVICE_ID": "ESP01",
		"PATIENT":   "Jane Doe",
		"ROOM":      "204",
	}, fields)
	require.Equal(t, Idle, s.State())
}

// TestSession_FieldWhileIdleIsIgnored verifies fields outside a block are dropped.
func TestSession_FieldWhileIdleIsIgnored(t *testing.T) {
	t.Parallel()

	s := NewSession()
	require.False(t, s.Field("DEVICE_ID", "ESP01"))

	s.Begin()
	fields, complete := s.End()
	require.True(t, complete)
	require.Empty(t, fields)
}

// TestSession_BeginRestarts verifies a second Begin discards what was collected.
func TestSession_BeginRestarts(t *testing.T) {
	t.Parallel()

	s := NewSession()
	s.Begin()
	s.Field("DEVICE_ID", "OLD")
	s.Begin()
	s.Field("ROOM", "204")

	fields, _ := s.End()
	require.Equal(t, map[string]string{"ROOM": "204"}, fields)
}

// TestSession_EndWhileIdle verifies a stray end marker completes nothing.
func TestSession_EndWhileIdle(t *testing.T) {
	t.Parallel()

	s := NewSession()
	fields, complete := s.End()
	require.False(t, complete)
	require.Nil(t, fields)

	s.Begin()
	s.Reset()
	require.Equal(t, "IDLE", s.State().String())
}
