package prefs

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"stevedore/internal/engine"
)

func testStore(t *testing.T) *FileStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "preferences.yaml")
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewFileStore(path, logger)
}

func TestMissingFileYieldsZeroValue(t *testing.T) {
	s := testStore(t)
	p := s.Preferences()
	if p.SelectedRuntimeID != "" || p.PreferredKind != "" {
		t.Errorf("preferences = %+v, want zero value", p)
	}
}

func TestPersistSelectionRoundTrip(t *testing.T) {
	s := testStore(t)
	s.PersistSelection("podman-rootless")
	s.Flush()

	p := s.Preferences()
	if p.SelectedRuntimeID != "podman-rootless" {
		t.Errorf("selected = %q, want podman-rootless", p.SelectedRuntimeID)
	}
}

func TestPersistSelectionKeepsOtherFields(t *testing.T) {
	s := testStore(t)
	if err := s.SetPreferredKind(engine.KindPodman); err != nil {
		t.Fatalf("set preferred kind: %v", err)
	}
	s.PersistSelection("docker")
	s.Flush()

	p := s.Preferences()
	if p.PreferredKind != engine.KindPodman {
		t.Errorf("preferred kind = %q, want podman", p.PreferredKind)
	}
	if p.SelectedRuntimeID != "docker" {
		t.Errorf("selected = %q, want docker", p.SelectedRuntimeID)
	}
}

func TestPersistToUnwritablePathIsSwallowed(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s := NewFileStore(string([]byte{0}), logger)
	s.PersistSelection("docker") // must not panic or surface the failure
	s.Flush()
}

func TestCorruptFileYieldsZeroValue(t *testing.T) {
	s := testStore(t)
	if err := os.WriteFile(s.path, []byte("{not yaml: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	p := s.Preferences()
	if p.SelectedRuntimeID != "" {
		t.Errorf("preferences = %+v, want zero value for corrupt file", p)
	}
}
