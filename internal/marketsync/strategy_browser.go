package marketsync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/owlcraft/storefront/internal/catalog"
)

// browserStrategy loads the storefront in a headless browser and passively
// captures the listing API responses the page itself fires. Scrolling
// triggers lazy loading; document-height stabilization, not a fixed timer,
// decides when the page has given up everything it has.
type browserStrategy struct {
	newBrowser BrowserFactory
	logger     *slog.Logger
}

func (s *browserStrategy) Name() string { return "browser" }

func (s *browserStrategy) Acquire(ctx context.Context, src Source) ([]catalog.Product, error) {
	if s.newBrowser == nil {
		return nil, nil
	}
	logger := runLogger(ctx, s.logger)
	browser, err := s.newBrowser()
	if err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			logger.Warn("close browser", "source", src.Name, "error", err)
		}
	}()

	page, err := browser.Open(ctx, src.StorefrontURL, src.ListingPathHints)
	if err != nil {
		return nil, fmt.Errorf("open storefront: %w", err)
	}
	defer page.Close()

	scrollUntilStable(ctx, page, src)

	var items []RawItem
	for _, payload := range page.Captured() {
		items = append(items, ExtractItems(payload)...)
	}
	return NormalizeAll(items, src), nil
}

// scrollUntilStable performs bounded scroll-wait-measure cycles until the
// document height stops growing twice in a row or the attempt budget runs
// out. Failures are tolerated: whatever responses were captured still count.
func scrollUntilStable(ctx context.Context, page Page, src Source) {
	attempts := src.ScrollAttempts
	if attempts <= 0 {
		attempts = 8
	}
	lastHeight, err := page.Height()
	if err != nil {
		return
	}
	stable := 0
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			return
		}
		if err := page.ScrollBottom(); err != nil {
			return
		}
		if !politeDelay(ctx, src.ScrollWait) {
			return
		}
		height, err := page.Height()
		if err != nil {
			return
		}
		if height == lastHeight {
			stable++
			if stable >= 2 {
				return
			}
		} else {
			stable = 0
		}
		lastHeight = height
	}
}
