// Package registry holds the canonical in-memory engine state shared by the
// orchestration components. The store does no I/O; every mutation is
// synchronous and cannot fail.
package registry

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"stevedore/internal/engine"
)

// ErrNoActiveRuntime is returned by operations that require a selected engine
// when none is selected.
var ErrNoActiveRuntime = errors.New("no active engine selected")

// Store is the canonical registry of detected engines, the active selection,
// detection flags, and the per-container in-flight lease set.
type Store struct {
	mu        sync.RWMutex
	runtimes  []engine.Runtime
	selected  *engine.Runtime // copy, never a pointer into runtimes
	detecting bool
	lastError string
	inflight  map[string]engine.Op
	occupancy []func(count int)
	logger    *slog.Logger
}

// NewStore creates an empty registry store.
func NewStore(logger *slog.Logger) *Store {
	return &Store{
		inflight: make(map[string]engine.Op),
		logger:   logger.With("component", "registry"),
	}
}

// OnOccupancyChange registers a callback invoked after any mutation that
// changes the number of known engines. Callbacks run outside the store lock.
func (s *Store) OnOccupancyChange(fn func(count int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.occupancy = append(s.occupancy, fn)
}

func (s *Store) notifyOccupancy(count int) {
	s.mu.RLock()
	callbacks := s.occupancy
	s.mu.RUnlock()
	for _, fn := range callbacks {
		fn(count)
	}
}

// SetRuntimes replaces the engine list wholesale. A selection whose id
// survives the replacement is refreshed from the new list; one whose id
// vanished is cleared.
func (s *Store) SetRuntimes(runtimes []engine.Runtime) {
	s.mu.Lock()
	before := len(s.runtimes)
	s.runtimes = make([]engine.Runtime, len(runtimes))
	copy(s.runtimes, runtimes)

	if s.selected != nil {
		found := false
		for _, rt := range s.runtimes {
			if rt.ID == s.selected.ID {
				cp := rt
				s.selected = &cp
				found = true
				break
			}
		}
		if !found {
			s.logger.Info("selected engine vanished from detection", "runtime", s.selected.ID)
			s.selected = nil
		}
	}
	after := len(s.runtimes)
	s.mu.Unlock()

	if before != after {
		s.notifyOccupancy(after)
	}
}

// SetSelected records the active engine. The store keeps its own copy.
func (s *Store) SetSelected(rt *engine.Runtime) {
	s.mu.Lock()
	if rt == nil {
		s.selected = nil
	} else {
		cp := *rt
		s.selected = &cp
	}
	s.mu.Unlock()
}

// SetDetecting toggles the detection-in-progress flag.
func (s *Store) SetDetecting(detecting bool) {
	s.mu.Lock()
	s.detecting = detecting
	s.mu.Unlock()
}

// SetError records the last registry-level error text; empty clears it.
func (s *Store) SetError(text string) {
	s.mu.Lock()
	s.lastError = text
	s.mu.Unlock()
}

// UpdateStatus overwrites the status, last-checked time, and error text of
// the engine with the given id. The selection is a copy, so a matching
// selected engine is overwritten independently. Unknown ids are a no-op.
func (s *Store) UpdateStatus(id string, status engine.Status, at time.Time, errText string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.runtimes {
		if s.runtimes[i].ID != id {
			continue
		}
		s.runtimes[i].Status = status
		s.runtimes[i].LastChecked = at
		s.runtimes[i].Error = errText
		if s.selected != nil && s.selected.ID == id {
			s.selected.Status = status
			s.selected.LastChecked = at
			s.selected.Error = errText
		}
		return
	}
	// A late update from a torn-down subscription may reference an engine
	// that a newer detection cycle removed.
	s.logger.Debug("status update for unknown engine", "runtime", id, "status", status)
}

// AddRuntime appends an engine, overwriting any existing entry with the same
// id so ids stay unique within a snapshot.
func (s *Store) AddRuntime(rt engine.Runtime) {
	s.mu.Lock()
	before := len(s.runtimes)
	replaced := false
	for i := range s.runtimes {
		if s.runtimes[i].ID == rt.ID {
			s.runtimes[i] = rt
			replaced = true
			break
		}
	}
	if !replaced {
		s.runtimes = append(s.runtimes, rt)
	}
	if s.selected != nil && s.selected.ID == rt.ID {
		cp := rt
		s.selected = &cp
	}
	after := len(s.runtimes)
	s.mu.Unlock()

	if before != after {
		s.notifyOccupancy(after)
	}
}

// RemoveRuntime deletes an engine by id, clearing the selection if it matches.
func (s *Store) RemoveRuntime(id string) {
	s.mu.Lock()
	before := len(s.runtimes)
	kept := s.runtimes[:0]
	for _, rt := range s.runtimes {
		if rt.ID != id {
			kept = append(kept, rt)
		}
	}
	s.runtimes = kept
	if s.selected != nil && s.selected.ID == id {
		s.selected = nil
	}
	after := len(s.runtimes)
	s.mu.Unlock()

	if before != after {
		s.notifyOccupancy(after)
	}
}

// Clear resets engines, selection, flags, and the error slot. In-flight
// leases are left alone so every acquisition still sees its matching release.
func (s *Store) Clear() {
	s.mu.Lock()
	before := len(s.runtimes)
	s.runtimes = nil
	s.selected = nil
	s.detecting = false
	s.lastError = ""
	s.mu.Unlock()

	if before != 0 {
		s.notifyOccupancy(0)
	}
}

// Runtimes returns a copy of the engine list.
func (s *Store) Runtimes() []engine.Runtime {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]engine.Runtime, len(s.runtimes))
	copy(result, s.runtimes)
	return result
}

// Selected returns a copy of the active engine, or nil.
func (s *Store) Selected() *engine.Runtime {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return nil
	}
	cp := *s.selected
	return &cp
}

// Detecting reports whether a detection cycle is in progress.
func (s *Store) Detecting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.detecting
}

// LastError returns the registry-level error slot.
func (s *Store) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// Len returns the number of known engines.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runtimes)
}

// Acquire marks a container id in flight for the given operation. It returns
// false, without side effects, when the id is already held.
func (s *Store) Acquire(id string, op engine.Op) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.inflight[id]; held {
		return false
	}
	s.inflight[id] = op
	return true
}

// Release clears the in-flight mark for a container id.
func (s *Store) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, id)
}

// InFlight reports the operation currently holding the given container id.
func (s *Store) InFlight(id string) (engine.Op, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	op, held := s.inflight[id]
	return op, held
}
