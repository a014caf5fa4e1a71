// Package settings is a small string key-value store kept in a YAML file.
package settings

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

type fileData struct {
	Values map[string]string `yaml:"values"`
}

// FileStore caches the file in memory and rewrites it on every SetItem.
type FileStore struct {
	path   string
	logger *log.Logger

	mu     sync.RWMutex
	values map[string]string

	// saveMu orders file writes so the last SetItem wins on disk.
	saveMu sync.Mutex
}

// Open loads path. A missing file starts an empty store; an unreadable or
// corrupt one is reported but still yields a usable empty store.
func Open(path string, logger *log.Logger) (*FileStore, error) {
	if logger == nil {
		panic("settings: logger cannot be nil")
	}
	s := &FileStore{path: path, logger: logger, values: make(map[string]string)}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Printf("Settings: %s does not exist yet", path)
			return s, nil
		}
		return s, fmt.Errorf("read settings file: %w", err)
	}

	var data fileData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return s, fmt.Errorf("parse settings yaml: %w", err)
	}
	for k, v := range data.Values {
		s.values[k] = v
	}
	logger.Printf("Settings: loaded %d values from %s", len(s.values), path)
	return s, nil
}

func (s *FileStore) GetItem(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// SetItem updates the value and persists the file. Write failures are
// logged; the in-memory value is kept either way.
func (s *FileStore) SetItem(key, value string) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	s.values[key] = value
	snapshot := make(map[string]string, len(s.values))
	for k, v := range s.values {
		snapshot[k] = v
	}
	s.mu.Unlock()

	if err := s.save(snapshot); err != nil {
		s.logger.Printf("Settings: save %s failed: %v", s.path, err)
	}
}

func (s *FileStore) save(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	raw, err := yaml.Marshal(fileData{Values: values})
	if err != nil {
		return fmt.Errorf("marshal settings yaml: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}
	return nil
}
