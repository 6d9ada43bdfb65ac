package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"book-library/internal/logging"
)

// Store loads, serves and persists Settings.
type Store struct {
	path      string
	validator *Validator

	mu       sync.RWMutex
	current  Settings
	onChange []func(Settings)
}

// Open reads the settings file at path. A missing file yields the
// defaults; rootOverride, when non-empty, replaces root_path (used for the
// LIBRARY_DIR environment variable). Validation failures of a loaded file
// are logged rather than fatal so an operator can fix them over the API.
func Open(path, rootOverride string) (*Store, error) {
	s := &Store{path: path, validator: NewValidator(), current: Defaults()}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var loaded Settings
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			return nil, fmt.Errorf("parse settings %s: %w", path, err)
		}
		loaded.fillDefaults()
		s.current = loaded
	case errors.Is(err, os.ErrNotExist):
		logging.Info("Settings file %s not found, using defaults", path)
	default:
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}

	if rootOverride != "" {
		s.current.RootPath = rootOverride
	}

	if err := s.validator.Validate(s.current); err != nil {
		logging.Warn("Settings need attention: %v", err)
	}

	return s, nil
}

// Path returns the settings file location.
func (s *Store) Path() string {
	return s.path
}

// Get returns a copy of the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.clone()
}

// Validate checks candidate settings without applying them.
func (s *Store) Validate(candidate Settings) error {
	return s.validator.Validate(candidate)
}

// Update validates next, writes it to disk and makes it current. The
// version is carried over when next leaves it empty. Change listeners run
// after the store lock is released.
func (s *Store) Update(next Settings) (Settings, error) {
	s.mu.Lock()
	if next.Version == "" {
		next.Version = s.current.Version
	}
	if next.IgnoredFileTypes == nil {
		next.IgnoredFileTypes = []string{}
	}
	if err := s.validator.Validate(next); err != nil {
		s.mu.Unlock()
		return Settings{}, err
	}
	if err := s.writeLocked(next); err != nil {
		s.mu.Unlock()
		return Settings{}, err
	}
	s.current = next.clone()
	listeners := append([]func(Settings){}, s.onChange...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(next.clone())
	}
	return next.clone(), nil
}

// OnChange registers fn to be called after every successful Update.
func (s *Store) OnChange(fn func(Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Save writes the current settings to disk.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writeLocked(s.current)
}

// writeLocked replaces the file atomically via a temp file and rename.
func (s *Store) writeLocked(v Settings) error {
	if s.path == "" {
		return nil
	}

	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
