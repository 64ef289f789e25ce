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

// BatchExecutor fans one operation out across many containers. Outcomes are
// independent and order-preserving; one failing container never aborts or
// delays its siblings.
type BatchExecutor struct {
	coord   *Coordinator
	cache   Refresher
	emitter *events.Emitter
	logger  *slog.Logger
}

// NewBatchExecutor creates an executor sharing the coordinator's single-flight
// leases.
func NewBatchExecutor(coord *Coordinator, cache Refresher, emitter *events.Emitter, logger *slog.Logger) *BatchExecutor {
	return &BatchExecutor{
		coord:   coord,
		cache:   cache,
		emitter: emitter,
		logger:  logger.With("component", "batch"),
	}
}

// Execute dispatches op against every id concurrently and joins all outcomes.
// Results match the input order. The cache is refreshed exactly once after
// every outcome is known, never once per item. For remove, args.Force and
// args.RemoveVolumes apply uniformly to every id. Selection cleanup for
// batch-processed containers is the caller's responsibility.
func (b *BatchExecutor) Execute(ctx context.Context, ids []string, op engine.Op, args engine.OpArgs) ([]engine.OperationResult, error) {
	selected := b.coord.store.Selected()
	if selected == nil {
		return nil, registry.ErrNoActiveRuntime
	}

	results := make([]engine.OperationResult, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			results[i] = b.coord.execute(ctx, *selected, id, op, args)
		}(i, id)
	}
	wg.Wait()

	succeeded, failed, skipped := 0, 0, 0
	for _, r := range results {
		switch {
		case r.Skipped:
			skipped++
		case r.Ok:
			succeeded++
		default:
			failed++
		}
	}
	b.logger.Info("batch complete",
		"op", op,
		"total", len(ids),
		"succeeded", succeeded,
		"failed", failed,
		"skipped", skipped,
	)
	b.emitter.Emit(events.Event{
		Type:    events.BatchCompleted,
		Runtime: selected.ID,
		Fields: map[string]string{
			"op":        string(op),
			"total":     fmt.Sprint(len(ids)),
			"succeeded": fmt.Sprint(succeeded),
			"failed":    fmt.Sprint(failed),
			"skipped":   fmt.Sprint(skipped),
		},
	})

	if err := b.cache.Refresh(ctx, engine.ListOptions{All: true}); err != nil {
		b.logger.Warn("post-batch refresh failed", "op", op, "error", err)
	}
	return results, nil
}
