// Package prefs persists user preferences for the orchestration core.
package prefs

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"stevedore/internal/engine"
)

// Preferences are the persisted user choices consulted during engine
// selection.
type Preferences struct {
	SelectedRuntimeID string      `yaml:"selected_runtime_id,omitempty"`
	PreferredKind     engine.Kind `yaml:"preferred_kind,omitempty"`
}

// FileStore reads and writes preferences as a YAML file.
type FileStore struct {
	path    string
	logger  *slog.Logger
	mu      sync.Mutex
	pending sync.WaitGroup
}

// DefaultPath returns the preference file location under the user config dir.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "stevedore", "preferences.yaml"), nil
}

// NewFileStore creates a store backed by the given file path.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger.With("component", "prefs"),
	}
}

// Preferences loads the current preferences. A missing or unreadable file
// yields the zero value.
func (s *FileStore) Preferences() Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileStore) load() Preferences {
	var p Preferences
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read preferences", "path", s.path, "error", err)
		}
		return p
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		s.logger.Warn("failed to parse preferences", "path", s.path, "error", err)
		return Preferences{}
	}
	return p
}

// PersistSelection records the selected engine id as a detached task. Write
// failures are logged, never surfaced: losing a saved preference must not
// unwind an in-memory selection.
func (s *FileStore) PersistSelection(id string) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.write(func(p *Preferences) { p.SelectedRuntimeID = id }); err != nil {
			s.logger.Warn("failed to persist engine selection", "runtime", id, "error", err)
		}
	}()
}

// SetPreferredKind records the preferred engine family, synchronously.
func (s *FileStore) SetPreferredKind(kind engine.Kind) error {
	return s.write(func(p *Preferences) { p.PreferredKind = kind })
}

func (s *FileStore) write(mutate func(*Preferences)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.load()
	mutate(&p)

	data, err := yaml.Marshal(&p)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create preference dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace preferences: %w", err)
	}
	return nil
}

// Flush blocks until all detached writes have finished. Used on shutdown and
// in tests.
func (s *FileStore) Flush() {
	s.pending.Wait()
}
