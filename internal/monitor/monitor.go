// Package monitor keeps engine health fresh by bridging the backend's pushed
// status events into the registry. The subscription's lifetime tracks
// registry occupancy: it opens when the first engine appears and closes when
// the last one goes away.
package monitor

import (
	"context"
	"log/slog"
	"sync"

	"stevedore/internal/engine"
	"stevedore/internal/events"
	"stevedore/internal/registry"
)

const defaultQueueSize = 64

// Config tunes the monitor.
type Config struct {
	// QueueSize bounds the pending-update channel. When full, new updates
	// are dropped; health updates are last-write-wins so a fresher one
	// always follows.
	QueueSize int
}

// Monitor bridges the backend status subscription into registry updates.
type Monitor struct {
	store   *registry.Store
	backend engine.Backend
	emitter *events.Emitter
	logger  *slog.Logger

	updates chan engine.StatusUpdate

	mu          sync.Mutex
	active      bool
	started     bool
	unsubscribe engine.UnsubscribeFunc
	runCtx      context.Context
	cancel      context.CancelFunc
	dropped     int
}

// New creates a monitor over the given store and backend.
func New(store *registry.Store, backend engine.Backend, emitter *events.Emitter, cfg Config, logger *slog.Logger) *Monitor {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	return &Monitor{
		store:   store,
		backend: backend,
		emitter: emitter,
		logger:  logger.With("component", "monitor"),
		updates: make(chan engine.StatusUpdate, cfg.QueueSize),
	}
}

// Start launches the single consumer goroutine and hooks registry occupancy.
// The monitor activates immediately if engines are already registered.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.runCtx, m.cancel = context.WithCancel(ctx)
	runCtx := m.runCtx
	m.mu.Unlock()

	go m.consume(runCtx)
	m.store.OnOccupancyChange(m.onOccupancy)
	m.onOccupancy(m.store.Len())
}

// Stop tears the monitor down: subscription closed, polling stopped, consumer
// goroutine cancelled. Idempotent.
func (m *Monitor) Stop() {
	m.deactivate()
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.started = false
	m.mu.Unlock()
}

// Active reports whether the subscription is open.
func (m *Monitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Only the empty↔non-empty edge matters: occupancy moving between non-zero
// counts never restarts the subscription.
func (m *Monitor) onOccupancy(count int) {
	if count > 0 {
		m.activate()
	} else {
		m.deactivate()
	}
}

func (m *Monitor) activate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active || !m.started {
		return
	}
	m.active = true

	if err := m.backend.StartPolling(m.runCtx); err != nil {
		m.logger.Warn("failed to start health polling", "error", err)
	}
	unsub, err := m.backend.SubscribeStatus(m.enqueue)
	if err != nil {
		m.logger.Error("failed to subscribe to status updates", "error", err)
		return
	}
	m.unsubscribe = unsub
	m.logger.Info("status monitor active")
}

func (m *Monitor) deactivate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return
	}
	m.active = false

	// Close the subscription before stopping the poller so a final poll tick
	// cannot land after teardown. Both calls are best-effort.
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	if err := m.backend.StopPolling(context.Background()); err != nil {
		m.logger.Warn("failed to stop health polling", "error", err)
	}
	m.logger.Info("status monitor inactive")
}

// enqueue is the subscription handler. It never blocks the backend: when the
// queue is full the update is dropped and counted.
func (m *Monitor) enqueue(update engine.StatusUpdate) {
	select {
	case m.updates <- update:
	default:
		m.mu.Lock()
		m.dropped++
		dropped := m.dropped
		m.mu.Unlock()
		m.logger.Warn("status update queue full, dropping update",
			"runtime", update.RuntimeID,
			"dropped_total", dropped,
		)
	}
}

func (m *Monitor) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case update := <-m.updates:
			m.apply(update)
		}
	}
}

// apply is last-write-wins: no reordering, no deduplication. Updates for
// engines a newer detection cycle removed are a safe no-op inside the store.
func (m *Monitor) apply(update engine.StatusUpdate) {
	m.store.UpdateStatus(update.RuntimeID, update.Status, update.Timestamp, update.Error)
	m.emitter.Emit(events.Event{
		Type:    events.EngineStatusChanged,
		Runtime: update.RuntimeID,
		Fields:  map[string]string{"status": string(update.Status)},
	})
}
