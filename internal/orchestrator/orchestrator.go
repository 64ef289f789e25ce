// Package orchestrator wires the orchestration core together and drives the
// detection → selection → monitoring control flow.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"stevedore/internal/engine"
	"stevedore/internal/events"
	"stevedore/internal/inventory"
	"stevedore/internal/metrics"
	"stevedore/internal/monitor"
	"stevedore/internal/ops"
	"stevedore/internal/registry"
	"stevedore/internal/selector"
)

// Orchestrator owns the core components and their wiring.
type Orchestrator struct {
	Store       *registry.Store
	Backend     engine.Backend
	Selector    *selector.Selector
	Monitor     *monitor.Monitor
	Cache       *inventory.Cache
	Coordinator *ops.Coordinator
	Batch       *ops.BatchExecutor
	Emitter     *events.Emitter

	logger *slog.Logger
}

// New builds the component graph over the given backend and preference store.
func New(backend engine.Backend, prefStore selector.PreferenceStore, logger *slog.Logger) *Orchestrator {
	emitter := events.NewEmitter(logger)
	metrics.RegisterEventHandler(emitter)

	store := registry.NewStore(logger)
	cache := inventory.New(store, backend, emitter, logger)
	coord := ops.NewCoordinator(store, backend, cache, emitter, logger)

	return &Orchestrator{
		Store:       store,
		Backend:     backend,
		Selector:    selector.New(store, prefStore, logger),
		Monitor:     monitor.New(store, backend, emitter, monitor.Config{}, logger),
		Cache:       cache,
		Coordinator: coord,
		Batch:       ops.NewBatchExecutor(coord, cache, emitter, logger),
		Emitter:     emitter,
		logger:      logger.With("component", "orchestrator"),
	}
}

// Start launches the status monitor. It activates as soon as detection
// registers the first engine.
func (o *Orchestrator) Start(ctx context.Context) {
	o.Monitor.Start(ctx)
}

// Stop tears down the monitor and any auto-refresh loop.
func (o *Orchestrator) Stop() {
	o.Cache.StopAutoRefresh()
	o.Monitor.Stop()
}

// Detect runs one detection cycle, replaces the registry snapshot, and runs
// auto-selection when no engine is chosen yet.
func (o *Orchestrator) Detect(ctx context.Context, force bool) (*engine.DetectionResult, error) {
	o.Store.SetDetecting(true)
	defer o.Store.SetDetecting(false)

	result, err := o.Backend.Detect(ctx, force)
	if err != nil {
		o.Store.SetError(err.Error())
		return nil, fmt.Errorf("engine detection: %w", err)
	}
	o.Store.SetError("")
	o.Store.SetRuntimes(result.Runtimes)

	o.Emitter.Emit(events.Event{
		Type:   events.EngineDetected,
		Fields: map[string]string{"count": fmt.Sprint(len(result.Runtimes))},
	})
	for _, derr := range result.Errors {
		o.logger.Warn("engine probe failed", "kind", derr.Kind, "error", derr.Error)
	}

	if chosen := o.Selector.AutoSelect(); chosen != nil {
		o.Emitter.Emit(events.Event{Type: events.EngineSelected, Runtime: chosen.ID})
	}
	return result, nil
}
