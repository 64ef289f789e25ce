package selector

import (
	"log/slog"
	"os"
	"testing"

	"stevedore/internal/engine"
	"stevedore/internal/prefs"
	"stevedore/internal/registry"
)

type fakePrefs struct {
	p         prefs.Preferences
	persisted []string
}

func (f *fakePrefs) Preferences() prefs.Preferences { return f.p }
func (f *fakePrefs) PersistSelection(id string)     { f.persisted = append(f.persisted, id) }

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testSelector(runtimes []engine.Runtime, p prefs.Preferences) (*Selector, *registry.Store, *fakePrefs) {
	store := registry.NewStore(testLogger())
	store.SetRuntimes(runtimes)
	fp := &fakePrefs{p: p}
	return New(store, fp, testLogger()), store, fp
}

func runtimes3() []engine.Runtime {
	return []engine.Runtime{
		{ID: "a", Kind: engine.KindDocker, Status: engine.StatusStopped},
		{ID: "b", Kind: engine.KindPodman, Status: engine.StatusRunning},
		{ID: "c", Kind: engine.KindPodman, Status: engine.StatusStopped},
	}
}

func TestAutoSelectFirstRunning(t *testing.T) {
	s, store, _ := testSelector(runtimes3(), prefs.Preferences{})
	chosen := s.AutoSelect()
	if chosen == nil || chosen.ID != "b" {
		t.Fatalf("chosen = %+v, want b", chosen)
	}
	if store.Selected().ID != "b" {
		t.Error("selection not written to registry")
	}
}

func TestAutoSelectPersistedWinsRegardlessOfStatus(t *testing.T) {
	s, _, _ := testSelector(runtimes3(), prefs.Preferences{SelectedRuntimeID: "c"})
	chosen := s.AutoSelect()
	if chosen == nil || chosen.ID != "c" {
		t.Fatalf("chosen = %+v, want persisted c", chosen)
	}
}

func TestAutoSelectStalePersistedIDFallsThrough(t *testing.T) {
	s, _, _ := testSelector(runtimes3(), prefs.Preferences{SelectedRuntimeID: "gone"})
	chosen := s.AutoSelect()
	if chosen == nil || chosen.ID != "b" {
		t.Fatalf("chosen = %+v, want b via first-running rule", chosen)
	}
}

func TestAutoSelectPreferredKind(t *testing.T) {
	runtimes := []engine.Runtime{
		{ID: "a", Kind: engine.KindDocker, Status: engine.StatusStopped},
		{ID: "c", Kind: engine.KindPodman, Status: engine.StatusStopped},
	}
	s, _, _ := testSelector(runtimes, prefs.Preferences{PreferredKind: engine.KindPodman})
	chosen := s.AutoSelect()
	if chosen == nil || chosen.ID != "c" {
		t.Fatalf("chosen = %+v, want preferred-kind c", chosen)
	}
}

func TestAutoSelectFallsBackToFirst(t *testing.T) {
	runtimes := []engine.Runtime{
		{ID: "a", Kind: engine.KindDocker, Status: engine.StatusStopped},
		{ID: "c", Kind: engine.KindPodman, Status: engine.StatusStopped},
	}
	s, _, _ := testSelector(runtimes, prefs.Preferences{})
	chosen := s.AutoSelect()
	if chosen == nil || chosen.ID != "a" {
		t.Fatalf("chosen = %+v, want first element a", chosen)
	}
}

func TestAutoSelectEmptyListIsNoOp(t *testing.T) {
	s, store, fp := testSelector(nil, prefs.Preferences{})
	if chosen := s.AutoSelect(); chosen != nil {
		t.Errorf("chosen = %+v, want nil", chosen)
	}
	if store.Selected() != nil {
		t.Error("no selection should be written")
	}
	if len(fp.persisted) != 0 {
		t.Error("nothing should be persisted")
	}
}

func TestAutoSelectNeverRunsWithExistingSelection(t *testing.T) {
	s, store, fp := testSelector(runtimes3(), prefs.Preferences{})
	a := store.Runtimes()[0]
	store.SetSelected(&a)

	chosen := s.AutoSelect()
	if chosen == nil || chosen.ID != "a" {
		t.Fatalf("chosen = %+v, want existing selection a", chosen)
	}
	if len(fp.persisted) != 0 {
		t.Error("existing selection must not be re-persisted")
	}
}

func TestAutoSelectPersistsChoice(t *testing.T) {
	s, _, fp := testSelector(runtimes3(), prefs.Preferences{})
	s.AutoSelect()
	if len(fp.persisted) != 1 || fp.persisted[0] != "b" {
		t.Errorf("persisted = %v, want [b]", fp.persisted)
	}
}
