package app

import (
	"github.com/owlcraft/storefront/internal/marketsync"
)

// Sources builds the marketplace source configs enabled by configuration,
// keyed by source name.
func Sources(cfg *Config) map[string]marketsync.Source {
	sources := make(map[string]marketsync.Source)
	if cfg.ShopeeShopID > 0 {
		src := applyOverrides(cfg, marketsync.ShopeeSource(cfg.ShopeeShopID, cfg.ShopeeSlug))
		sources[src.Name] = src
	}
	if cfg.PinkoiStore != "" {
		src := applyOverrides(cfg, marketsync.PinkoiSource(cfg.PinkoiStore))
		sources[src.Name] = src
	}
	return sources
}

func applyOverrides(cfg *Config, src marketsync.Source) marketsync.Source {
	if cfg.SyncBudget > 0 {
		src.AcquireBudget = cfg.SyncBudget
	}
	if cfg.SyncPageDelay > 0 {
		src.PageDelay = cfg.SyncPageDelay
	}
	if cfg.DetailVisitCap > 0 {
		src.DetailVisitCap = cfg.DetailVisitCap
	}
	return src
}
