package device

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/alarm-bridge/internal/domain/alarm"
)

// TestFileRepository_NotFound verifies Load returns ErrNotFound for a missing file.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(afero.NewMemMapFs(), "/var/lib/alarm-bridge/device.json")

	info, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, info)
}

// TestFileRepository_SaveLoad_Roundtrip ensures Save followed by Load returns equal info.
func TestFileRepository_SaveLoad_Roundtrip(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	repo := NewFileRepository(fs, "/var/lib/alarm-bridge/device.json")

	want := domain.NewDeviceInfo(map[string]string{
		domain.KeyDeviceID: "ESP01",
		domain.KeyPatient:  "Jane Doe",
		domain.KeyRoom:     "204",
		"FIRMWARE":         "1.2",
	})

	require.NoError(t, repo.Save(context.Background(), want))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, want, got)

	exists, err := afero.Exists(fs, "/var/lib/alarm-bridge/device.json.tmp")
	require.NoError(t, err)
	require.False(t, exists)
}

// TestFileRepository_SaveOverwrites keeps only the latest handshake.
func TestFileRepository_SaveOverwrites(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(afero.NewMemMapFs(), "device.json")

	require.NoError(t, repo.Save(context.Background(), domain.NewDeviceInfo(map[string]string{domain.KeyRoom: "204"})))
	require.NoError(t, repo.Save(context.Background(), domain.NewDeviceInfo(map[string]string{domain.KeyRoom: "305"})))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "305", got.Room)
	require.Equal(t, map[string]string{domain.KeyRoom: "305"}, got.Fields)
}

// TestFileRepository_Corrupt reports a decode error.
func TestFileRepository_Corrupt(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "device.json", []byte("{not json"), 0o600))

	_, err := NewFileRepository(fs, "device.json").Load(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}
