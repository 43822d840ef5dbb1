package worker

import (
	"context"
	"time"

	"github.com/athenaeum-lab/mnemosyne/pkg/service/sqlbridge"
	"github.com/athenaeum-lab/mnemosyne/pkg/utils/logging"
)

// SchemaRefreshWorker periodically re-analyzes relational source
// schemas so connections excluded by an earlier analysis failure get a
// chance to rejoin query planning.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - For future horizontal scaling, implement distributed locking or leader election
type SchemaRefreshWorker struct {
	coordinator *sqlbridge.Coordinator
	interval    time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
}

func NewSchemaRefreshWorker(coordinator *sqlbridge.Coordinator, interval time.Duration) *SchemaRefreshWorker {
	return &SchemaRefreshWorker{
		coordinator: coordinator,
		interval:    interval,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start begins the background refresh loop. Does not block startup;
// the coordinator already ran its initial analysis at construction.
func (w *SchemaRefreshWorker) Start(ctx context.Context) error {
	logging.Default().Info("schema refresh worker starting",
		"interval", w.interval.String())

	go w.run(ctx)

	return nil
}

// Stop signals the worker to stop and waits for completion
func (w *SchemaRefreshWorker) Stop() {
	logging.Default().Info("schema refresh worker stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("schema refresh worker stopped")
}

func (w *SchemaRefreshWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			w.coordinator.RefreshSchemas(ctx)

			healthy := 0
			for _, schema := range w.coordinator.Schemas() {
				if schema.Healthy() {
					healthy++
				}
			}
			logging.Default().Info("schema refresh completed",
				"healthy_connections", healthy,
				"duration", time.Since(start).String())

		case <-w.stopCh:
			logging.Default().Info("schema refresh worker received stop signal")
			return

		case <-ctx.Done():
			logging.Default().Info("schema refresh worker context cancelled")
			return
		}
	}
}
