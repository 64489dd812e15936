package device

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/alarm-bridge/internal/config"
	domain "github.com/oshokin/alarm-bridge/internal/domain/alarm"
	pb "github.com/oshokin/alarm-bridge/internal/pb/v1"
	"github.com/oshokin/alarm-bridge/internal/syncutil"
)

// ErrNotFound is returned when nothing has been saved yet.
var ErrNotFound = errors.New("device info not found")

// FileRepository stores device info as protobuf JSON on disk.
type FileRepository struct {
	fs   afero.Fs
	path string
	// mu serializes access to the file.
	mu syncutil.Mutex
}

// NewFileRepository creates a repository for path on fs. A nil fs uses the OS filesystem.
func NewFileRepository(fs afero.Fs, path string) *FileRepository {
	if fs == nil {
		fs = afero.NewOsFs()
	}

	return &FileRepository{
		fs:   fs,
		path: filepath.Clean(path),
	}
}

// Load reads the saved device info.
func (r *FileRepository) Load(_ context.Context) (*domain.DeviceInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := afero.ReadFile(r.fs, r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read device file: %w", err)
	}

	var s structpb.Struct
	if err = protojson.Unmarshal(contents, &s); err != nil {
		return nil, fmt.Errorf("decode device file: %w", err)
	}

	return pb.DeviceInfoFromStruct(&s), nil
}

// Save replaces the file with info. The new contents are written to a
// temporary file first and renamed over the old one.
func (r *FileRepository) Save(_ context.Context, info *domain.DeviceInfo) error {
	if info == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	marshalOptions := protojson.MarshalOptions{
		Multiline:       true,
		EmitUnpopulated: true,
	}

	data, err := marshalOptions.Marshal(pb.DeviceInfoToStruct(info))
	if err != nil {
		return fmt.Errorf("encode device info: %w", err)
	}

	if err = r.fs.MkdirAll(filepath.Dir(r.path), config.DefaultDirPermissions); err != nil {
		return fmt.Errorf("create device directory: %w", err)
	}

	tmp := r.path + ".tmp"

	if err = afero.WriteFile(r.fs, tmp, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write device file: %w", err)
	}

	if err = r.fs.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace device file: %w", err)
	}

	return nil
}
