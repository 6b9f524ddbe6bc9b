package marketsync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/owlcraft/storefront/jobs"
)

// SyncJob processes scheduled catalog sync tasks.
type SyncJob struct {
	engine  *Engine
	sources map[string]Source
	logger  *slog.Logger
}

// NewSyncJob constructs a job handler.
func NewSyncJob(engine *Engine, sources map[string]Source, logger *slog.Logger) *SyncJob {
	return &SyncJob{engine: engine, sources: sources, logger: logger}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *SyncJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload jobs.CatalogSyncPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	src, ok := j.sources[payload.Source]
	if !ok {
		j.logger.Error("sync task for unknown source", slog.String("source", payload.Source))
		return asynq.SkipRetry
	}

	run := j.engine.SyncSource(ctx, src)
	if run.ItemsAcquired == 0 {
		// Surfaced as a task failure so asynq retries later. The catalog
		// itself was left untouched by the zero-acquisition guard.
		j.logger.Warn("scheduled sync acquired nothing", slog.String("source", src.Name), slog.String("run_id", run.RunID))
		return fmt.Errorf("sync %s: zero acquisition", src.Name)
	}
	return nil
}
