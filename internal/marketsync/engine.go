package marketsync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/owlcraft/storefront/internal/catalog"
)

// Store is the catalog collaborator the engine writes through. Upsert is the
// unit of atomicity; no cross-item transaction is assumed.
type Store interface {
	UpsertByExternalID(ctx context.Context, p catalog.Product) (catalog.Product, error)
	ListActiveExternalIDs(ctx context.Context, source string) (map[string]struct{}, error)
	DeactivateByExternalIDs(ctx context.Context, source string, ids []string) (int64, error)
}

// Acquirer produces the product set for one source. Implemented by Chain.
type Acquirer interface {
	Acquire(ctx context.Context, src Source) []catalog.Product
}

// SyncRun is the ephemeral summary of one acquisition+reconciliation cycle.
// It is returned to the caller and cached for the status endpoint, never
// persisted as its own entity.
type SyncRun struct {
	Source        string        `json:"source"`
	RunID         string        `json:"run_id"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	ItemsAcquired int           `json:"total"`
	Succeeded     int           `json:"success"`
	Failed        int           `json:"failed"`
	Deactivated   int           `json:"deactivated"`
	Errors        []string      `json:"errors,omitempty"`
	Note          string        `json:"note,omitempty"`
	Log           []string      `json:"log,omitempty"`
}

// Metrics receives engine outcomes; satisfied by observability.SyncMetrics.
type Metrics interface {
	ObserveRun(source string, run SyncRun)
}

// Engine drives one full synchronization: acquire, upsert, reconcile.
type Engine struct {
	store   Store
	chain   Acquirer
	status  *StatusCache
	metrics Metrics
	logger  *slog.Logger
}

func NewEngine(store Store, chain Acquirer, status *StatusCache, metrics Metrics, logger *slog.Logger) *Engine {
	return &Engine{store: store, chain: chain, status: status, metrics: metrics, logger: logger}
}

// SyncSource runs one synchronous sync for the source. Individual item
// failures are counted and skipped; the run itself never fails once the
// source config is valid. Re-running with an unchanged remote catalog is
// idempotent: the external id is the sole upsert key.
func (e *Engine) SyncSource(ctx context.Context, src Source) SyncRun {
	run := SyncRun{
		Source:    src.Name,
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}

	buf := newLogBuffer(e.logger.Handler())
	logger := slog.New(buf).With("source", src.Name, "run_id", run.RunID)
	logger.Info("sync started")

	products := e.chain.Acquire(withRunLogger(ctx, logger), src)
	run.ItemsAcquired = len(products)

	if len(products) == 0 {
		// The central safety invariant: an empty acquisition means the
		// scraping strategies failed, not that the shop delisted everything.
		// Deactivation is skipped so a healthy catalog survives a bad run.
		run.Note = "no products acquired; source may be unreachable or its layout changed - deactivation skipped"
		logger.Warn("zero acquisition", "note", run.Note)
		e.finish(ctx, &run, buf)
		return run
	}

	acquired := make(map[string]struct{}, len(products))
	for _, p := range products {
		acquired[p.ExternalID] = struct{}{}
		if _, err := e.store.UpsertByExternalID(ctx, p); err != nil {
			run.Failed++
			run.Errors = append(run.Errors, fmt.Sprintf("%s: %v", p.ExternalID, err))
			logger.Error("upsert failed", "external_id", p.ExternalID, "error", err)
			continue
		}
		run.Succeeded++
	}

	existing, err := e.store.ListActiveExternalIDs(ctx, src.Name)
	if err != nil {
		run.Errors = append(run.Errors, fmt.Sprintf("list active ids: %v", err))
		logger.Error("list active ids failed", "error", err)
		e.finish(ctx, &run, buf)
		return run
	}

	var missing []string
	for id := range existing {
		if _, ok := acquired[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		count, err := e.store.DeactivateByExternalIDs(ctx, src.Name, missing)
		if err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("deactivate: %v", err))
			logger.Error("deactivation failed", "error", err)
		} else {
			run.Deactivated = int(count)
			logger.Info("deactivated delisted products", "count", count)
		}
	}

	e.finish(ctx, &run, buf)
	return run
}

// SyncAll runs every source concurrently. Runs share no state besides the
// catalog store, which serializes conflicting writes itself.
func (e *Engine) SyncAll(ctx context.Context, sources []Source) []SyncRun {
	runs := make([]SyncRun, len(sources))
	g, ctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			runs[i] = e.SyncSource(ctx, src)
			return nil
		})
	}
	_ = g.Wait()
	return runs
}

func (e *Engine) finish(ctx context.Context, run *SyncRun, buf *logBuffer) {
	run.Duration = time.Since(run.StartedAt)
	run.Log = buf.Lines()
	if e.metrics != nil {
		e.metrics.ObserveRun(run.Source, *run)
	}
	if e.status != nil {
		if err := e.status.Save(ctx, *run); err != nil {
			e.logger.Warn("save sync status", "source", run.Source, "error", err)
		}
	}
	e.logger.Info("sync finished",
		"source", run.Source,
		"run_id", run.RunID,
		"total", run.ItemsAcquired,
		"success", run.Succeeded,
		"failed", run.Failed,
		"deactivated", run.Deactivated,
		"duration", run.Duration,
	)
}
