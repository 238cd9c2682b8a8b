// Package store persists the shutdown settings as a flat string map. Two
// backends exist: a YAML file next to the server (the default) and a
// PostgreSQL table shared by a fleet of servers.
package store

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"autoshutdown/internal/types"
)

const fileHeader = "# auto-shutdown config\n"

// FileStore keeps settings in a YAML file. Save merges into the existing
// file; unknown keys are preserved.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a FileStore at path. The file is created on first
// Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads all settings. A missing file yields an empty map.
func (s *FileStore) Load(_ context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Save merges settings into the file.
func (s *FileStore) Save(_ context.Context, settings map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read()
	if err != nil {
		return err
	}
	maps.Copy(current, settings)

	var buf bytes.Buffer
	buf.WriteString(fileHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(current); err != nil {
		return writeErr(err)
	}
	if err := enc.Close(); err != nil {
		return writeErr(err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return writeErr(err)
	}

	// Atomic replace: temp file in the same directory, then rename.
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return writeErr(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return writeErr(err)
	}
	if err := tmp.Close(); err != nil {
		return writeErr(err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return writeErr(err)
	}
	return nil
}

func (s *FileStore) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, readErr(err)
	}

	settings := map[string]string{}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, readErr(err)
	}
	return settings, nil
}

func readErr(err error) error {
	return types.NewAppError(types.ErrCodeInternalPersistenceRead, "failed to read config file", err)
}

func writeErr(err error) error {
	return types.NewAppError(types.ErrCodeInternalPersistenceWrite, "failed to write config file", err)
}
