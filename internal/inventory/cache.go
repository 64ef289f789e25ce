// Package inventory caches the latest container snapshot for the active
// engine. Snapshots are replaced wholesale on every fetch, never patched.
package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"stevedore/internal/engine"
	"stevedore/internal/events"
	"stevedore/internal/registry"
)

// Cache holds the last fetched container list and an optional auto-refresh
// loop.
type Cache struct {
	store   *registry.Store
	backend engine.Backend
	emitter *events.Emitter
	logger  *slog.Logger

	mu         sync.Mutex
	containers []engine.Container
	fetchedAt  time.Time
	loading    bool
	lastError  string
	selected   string // selected/displayed container id

	refreshCancel context.CancelFunc
	loops         atomic.Int32
}

// New creates an empty cache over the given registry and backend.
func New(store *registry.Store, backend engine.Backend, emitter *events.Emitter, logger *slog.Logger) *Cache {
	return &Cache{
		store:   store,
		backend: backend,
		emitter: emitter,
		logger:  logger.With("component", "inventory"),
	}
}

// Refresh fetches the container list from the active engine and replaces the
// snapshot. Errors propagate to the caller; the error slot records them.
func (c *Cache) Refresh(ctx context.Context, opts engine.ListOptions) error {
	selected := c.store.Selected()
	if selected == nil {
		return registry.ErrNoActiveRuntime
	}

	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()

	containers, err := c.backend.ListContainers(ctx, *selected, opts)

	c.mu.Lock()
	c.loading = false
	if err != nil {
		c.lastError = err.Error()
		c.mu.Unlock()
		c.emitter.Emit(events.Event{
			Type:    events.RefreshFailed,
			Runtime: selected.ID,
			Fields:  map[string]string{"error": err.Error()},
		})
		return fmt.Errorf("refresh containers: %w", err)
	}
	c.containers = containers
	c.fetchedAt = time.Now()
	c.lastError = ""
	count := len(containers)
	c.mu.Unlock()

	c.emitter.Emit(events.Event{
		Type:    events.SnapshotRefreshed,
		Runtime: selected.ID,
		Fields:  map[string]string{"count": fmt.Sprint(count)},
	})
	return nil
}

// StartAutoRefresh installs a repeating refresh with the given interval and
// options. A prior loop, if any, is cancelled first so no timer ever leaks.
// Tick errors are logged and swallowed; one transient failure never halts
// future ticks.
func (c *Cache) StartAutoRefresh(ctx context.Context, interval time.Duration, opts engine.ListOptions) {
	c.mu.Lock()
	if c.refreshCancel != nil {
		c.refreshCancel()
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.refreshCancel = cancel
	c.mu.Unlock()

	c.logger.Info("auto-refresh started", "interval", interval)
	go c.refreshLoop(loopCtx, interval, opts)
}

// StopAutoRefresh cancels the refresh loop. Idempotent.
func (c *Cache) StopAutoRefresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refreshCancel == nil {
		return
	}
	c.refreshCancel()
	c.refreshCancel = nil
	c.logger.Info("auto-refresh stopped")
}

func (c *Cache) refreshLoop(ctx context.Context, interval time.Duration, opts engine.ListOptions) {
	c.loops.Add(1)
	defer c.loops.Add(-1)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx, opts); err != nil {
				c.logger.Warn("auto-refresh tick failed", "error", err)
			}
		}
	}
}

// Containers returns a copy of the current snapshot.
func (c *Cache) Containers() []engine.Container {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]engine.Container, len(c.containers))
	copy(result, c.containers)
	return result
}

// Loading reports whether a fetch is in progress.
func (c *Cache) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// LastError returns the error slot from the most recent fetch.
func (c *Cache) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// FetchedAt returns the time of the last successful fetch.
func (c *Cache) FetchedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchedAt
}

// SelectContainer records the container the presentation layer is focused on.
func (c *Cache) SelectContainer(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = id
}

// SelectedContainer returns the focused container id, or "".
func (c *Cache) SelectedContainer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Deselect clears the focus only when it matches the given id, so a removed
// container never leaves a dangling reference.
func (c *Cache) Deselect(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == id {
		c.selected = ""
	}
}
