package marketsync

import (
	"context"
	"log/slog"
	"time"

	"github.com/owlcraft/storefront/internal/catalog"
)

// Strategy is one self-contained way of obtaining products from a source.
// An error or an empty result both mean "this strategy yielded nothing";
// the chain moves on either way.
type Strategy interface {
	Name() string
	Acquire(ctx context.Context, src Source) ([]catalog.Product, error)
}

// Chain tries acquisition strategies in strict priority order and
// short-circuits on the first one that yields at least one normalized
// product. A fully exhausted chain returns an empty set, never an error:
// callers must treat zero products as an operational signal, not a crash.
type Chain struct {
	strategies []Strategy
	backfill   *detailBackfill
	logger     *slog.Logger
}

// NewChain wires the production strategy order: API probe, browser capture,
// DOM heuristics, then detail-page image backfill over the winning set.
func NewChain(logger *slog.Logger, fetcher Fetcher, newBrowser BrowserFactory) *Chain {
	return &Chain{
		strategies: []Strategy{
			&apiStrategy{fetcher: fetcher, logger: logger},
			&browserStrategy{newBrowser: newBrowser, logger: logger},
			&domStrategy{newBrowser: newBrowser, logger: logger},
		},
		backfill: &detailBackfill{fetcher: fetcher, logger: logger},
		logger:   logger,
	}
}

// NewChainWith builds a chain from explicit strategies; used by tests and by
// the bulk importer, which bypasses acquisition entirely.
func NewChainWith(logger *slog.Logger, backfill *detailBackfill, strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies, backfill: backfill, logger: logger}
}

// Acquire runs the chain under the source's hard wall-clock budget. Partial
// results accumulated before a timeout are kept and returned.
func (c *Chain) Acquire(ctx context.Context, src Source) []catalog.Product {
	budget := src.AcquireBudget
	if budget <= 0 {
		budget = 90 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	// Under an engine run this resolves to the per-run logger, so strategy
	// diagnostics land in the log handed back to the caller.
	logger := runLogger(ctx, c.logger)

	for _, st := range c.strategies {
		if ctx.Err() != nil {
			logger.Warn("acquisition budget exhausted", "source", src.Name, "strategy", st.Name())
			return nil
		}
		products, err := st.Acquire(ctx, src)
		if err != nil {
			logger.Warn("strategy failed", "source", src.Name, "strategy", st.Name(), "error", err)
			continue
		}
		if len(products) == 0 {
			logger.Info("strategy yielded nothing", "source", src.Name, "strategy", st.Name())
			continue
		}
		logger.Info("strategy succeeded", "source", src.Name, "strategy", st.Name(), "products", len(products))
		if c.backfill != nil {
			c.backfill.Run(ctx, src, products)
		}
		return products
	}

	logger.Warn("all acquisition strategies exhausted", "source", src.Name)
	return nil
}

// politeDelay sleeps between page requests unless the context runs out first.
// This pacing is an anti-blocking heuristic, not a correctness requirement.
func politeDelay(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
