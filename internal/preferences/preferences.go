package preferences

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

const keyCloudSyncEnabled = "cloud_sync_enabled"

// File is a YAML preference file. Values are read once by Open and written
// through on every change.
type File struct {
	mu               sync.Mutex
	path             string
	cloudSyncEnabled bool
}

// Open reads the preference file at path. A missing file yields defaults.
func Open(path string) (*File, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("preferences: path is required")
	}
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading preferences %s: %w", path, err)
		}
	}
	return &File{
		path:             path,
		cloudSyncEnabled: v.GetBool(keyCloudSyncEnabled),
	}, nil
}

// Path reports the backing file.
func (f *File) Path() string {
	return f.path
}

// CloudSyncEnabled reports the stored flag; true until set otherwise.
func (f *File) CloudSyncEnabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cloudSyncEnabled
}

// SetCloudSyncEnabled persists the flag. The in-memory value only changes
// once the file is written.
func (f *File) SetCloudSyncEnabled(enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating preferences directory %s: %w", dir, err)
	}
	v := newViper(f.path)
	v.Set(keyCloudSyncEnabled, enabled)
	if err := v.WriteConfigAs(f.path); err != nil {
		return fmt.Errorf("writing preferences to %s: %w", f.path, err)
	}
	f.cloudSyncEnabled = enabled
	return nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault(keyCloudSyncEnabled, true)
	return v
}
