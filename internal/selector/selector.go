// Package selector elects the active container engine when none is chosen.
package selector

import (
	"log/slog"

	"stevedore/internal/engine"
	"stevedore/internal/prefs"
	"stevedore/internal/registry"
)

// PreferenceStore is the persistence collaborator consulted for and updated
// with the user's engine choice.
type PreferenceStore interface {
	Preferences() prefs.Preferences
	PersistSelection(id string)
}

// Selector picks an active engine exactly once per "no selection but engines
// exist" transition. Re-selection only happens after an explicit clear.
type Selector struct {
	store  *registry.Store
	prefs  PreferenceStore
	logger *slog.Logger
}

// New creates a selector over the given registry and preference store.
func New(store *registry.Store, prefStore PreferenceStore, logger *slog.Logger) *Selector {
	return &Selector{
		store:  store,
		prefs:  prefStore,
		logger: logger.With("component", "selector"),
	}
}

// AutoSelect applies the selection rules, first match wins:
//
//  1. a persisted engine id that is present in the current list
//  2. the first engine in list order that is running
//  3. an engine of the persisted preferred kind
//  4. the first engine in the list
//
// The choice is written to the registry and persisted fire-and-forget. With
// an existing selection or an empty list it is a no-op.
func (s *Selector) AutoSelect() *engine.Runtime {
	if selected := s.store.Selected(); selected != nil {
		return selected
	}
	runtimes := s.store.Runtimes()
	if len(runtimes) == 0 {
		return nil
	}

	p := s.prefs.Preferences()
	chosen, rule := choose(runtimes, p)

	s.store.SetSelected(&chosen)
	s.prefs.PersistSelection(chosen.ID)
	s.logger.Info("engine selected",
		"runtime", chosen.ID,
		"kind", chosen.Kind,
		"status", chosen.Status,
		"rule", rule,
	)
	return &chosen
}

func choose(runtimes []engine.Runtime, p prefs.Preferences) (engine.Runtime, string) {
	if p.SelectedRuntimeID != "" {
		for _, rt := range runtimes {
			if rt.ID == p.SelectedRuntimeID {
				return rt, "persisted"
			}
		}
	}
	for _, rt := range runtimes {
		if rt.Status == engine.StatusRunning {
			return rt, "first-running"
		}
	}
	if p.PreferredKind != "" {
		for _, rt := range runtimes {
			if rt.Kind == p.PreferredKind {
				return rt, "preferred-kind"
			}
		}
	}
	return runtimes[0], "first"
}
