package marketsync

import (
	"context"
	"log/slog"

	"github.com/owlcraft/storefront/internal/catalog"
)

// apiStrategy probes the source's candidate listing endpoints directly,
// driving pagination page by page. The cheapest strategy, and the first
// casualty when the marketplace tightens its anti-bot wall.
type apiStrategy struct {
	fetcher Fetcher
	logger  *slog.Logger
}

func (s *apiStrategy) Name() string { return "api" }

func (s *apiStrategy) Acquire(ctx context.Context, src Source) ([]catalog.Product, error) {
	for _, template := range src.EndpointTemplates {
		items := s.paginate(ctx, src, template)
		if len(items) == 0 {
			continue
		}
		if products := NormalizeAll(items, src); len(products) > 0 {
			return products, nil
		}
	}
	return nil, nil
}

// paginate walks one endpoint in increasing page order, accumulating raw
// items. Stop conditions, first one wins: short page, empty extraction, page
// ceiling, context expiry. A failure on the first page abandons the endpoint;
// a failure mid-way keeps what was already accumulated.
func (s *apiStrategy) paginate(ctx context.Context, src Source, template string) []RawItem {
	maxPages := src.MaxPages
	if maxPages <= 0 {
		maxPages = 30
	}

	logger := runLogger(ctx, s.logger)

	var items []RawItem
	for page := 0; page < maxPages; page++ {
		if ctx.Err() != nil {
			break
		}
		url := src.EndpointURL(template, page)
		payload, err := s.fetcher.Get(ctx, url)
		if err != nil {
			logger.Debug("page fetch failed", "source", src.Name, "url", url, "error", err)
			break
		}
		pageItems := ExtractItems(payload)
		if len(pageItems) == 0 {
			break
		}
		items = append(items, pageItems...)
		if len(pageItems) < src.PageSize {
			break
		}
		if !politeDelay(ctx, src.PageDelay) {
			break
		}
	}
	return items
}
