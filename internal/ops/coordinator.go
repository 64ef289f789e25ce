// Package ops executes container lifecycle operations against the active
// engine. A per-container lease gives every operation single-flight
// semantics: a duplicate request while the first is pending is dropped, not
// queued.
package ops

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"stevedore/internal/engine"
	"stevedore/internal/events"
	"stevedore/internal/registry"
)

// BackendError wraps an opaque upstream failure from the engine.
type BackendError struct {
	Op          engine.Op
	ContainerID string
	Err         error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.ContainerID, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Refresher is the snapshot cache notified after successful operations.
// Satisfied by inventory.Cache.
type Refresher interface {
	Refresh(ctx context.Context, opts engine.ListOptions) error
	Deselect(id string)
}

// Coordinator runs one lifecycle operation against one container id.
type Coordinator struct {
	store   *registry.Store
	backend engine.Backend
	cache   Refresher
	emitter *events.Emitter
	logger  *slog.Logger

	mu        sync.Mutex
	lastError string
}

// NewCoordinator creates a coordinator over the given collaborators.
func NewCoordinator(store *registry.Store, backend engine.Backend, cache Refresher, emitter *events.Emitter, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:   store,
		backend: backend,
		cache:   cache,
		emitter: emitter,
		logger:  logger.With("component", "ops"),
	}
}

// Request executes op against one container. A request for an id already in
// flight returns nil immediately with no backend call: a second click while
// the first is pending has zero additional effect. On success the cache is
// refreshed once; a successful remove also clears a matching container
// selection. On failure the error is recorded and returned; the caller owns
// user-facing reporting. The in-flight lease is released on every path.
func (c *Coordinator) Request(ctx context.Context, id string, op engine.Op, args engine.OpArgs) error {
	selected := c.store.Selected()
	if selected == nil {
		return registry.ErrNoActiveRuntime
	}

	result := c.execute(ctx, *selected, id, op, args)
	if result.Skipped {
		return nil
	}
	if !result.Ok {
		c.mu.Lock()
		c.lastError = result.Error
		c.mu.Unlock()
		return &BackendError{Op: op, ContainerID: id, Err: fmt.Errorf("%s", result.Error)}
	}

	c.mu.Lock()
	c.lastError = ""
	c.mu.Unlock()

	if op == engine.OpRemove {
		c.cache.Deselect(id)
	}
	if err := c.cache.Refresh(ctx, engine.ListOptions{All: true}); err != nil {
		c.logger.Warn("post-operation refresh failed", "op", op, "container", id, "error", err)
	}
	return nil
}

// execute performs the leased backend call and returns the per-container
// outcome. It never refreshes the cache; Request and BatchExecutor decide
// when a refresh happens.
func (c *Coordinator) execute(ctx context.Context, rt engine.Runtime, id string, op engine.Op, args engine.OpArgs) engine.OperationResult {
	if !c.store.Acquire(id, op) {
		held, _ := c.store.InFlight(id)
		c.logger.Debug("operation already in flight, dropping request",
			"container", id, "requested", op, "held_by", held)
		c.emitter.Emit(events.Event{
			Type:      events.OperationSkipped,
			Runtime:   rt.ID,
			Container: id,
			Fields:    map[string]string{"op": string(op)},
		})
		return engine.OperationResult{ID: id, Ok: true, Skipped: true}
	}

	err := c.dispatch(ctx, rt, id, op, args)
	c.store.Release(id)

	if err != nil {
		c.emitter.Emit(events.Event{
			Type:      events.OperationFailed,
			Runtime:   rt.ID,
			Container: id,
			Fields:    map[string]string{"op": string(op), "error": err.Error()},
		})
		return engine.OperationResult{ID: id, Error: err.Error()}
	}

	c.emitter.Emit(events.Event{
		Type:      events.OperationSucceeded,
		Runtime:   rt.ID,
		Container: id,
		Fields:    map[string]string{"op": string(op)},
	})
	return engine.OperationResult{ID: id, Ok: true}
}

func (c *Coordinator) dispatch(ctx context.Context, rt engine.Runtime, id string, op engine.Op, args engine.OpArgs) error {
	switch op {
	case engine.OpStart:
		return c.backend.StartContainer(ctx, rt, id)
	case engine.OpStop:
		return c.backend.StopContainer(ctx, rt, id, args.Timeout)
	case engine.OpRestart:
		return c.backend.RestartContainer(ctx, rt, id, args.Timeout)
	case engine.OpPause:
		return c.backend.PauseContainer(ctx, rt, id)
	case engine.OpUnpause:
		return c.backend.UnpauseContainer(ctx, rt, id)
	case engine.OpRemove:
		return c.backend.RemoveContainer(ctx, rt, id, args.Force, args.RemoveVolumes)
	default:
		return fmt.Errorf("unknown operation %q", op)
	}
}

// LastError returns the shared error slot from the most recent failed
// operation; empty after a success.
func (c *Coordinator) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}
