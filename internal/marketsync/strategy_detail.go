package marketsync

import (
	"context"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/owlcraft/storefront/internal/catalog"
)

// detailBackfill visits detail pages for acquired items that are still
// missing an image and re-applies the DOM image heuristic. Only runs when
// the image-less subset is small enough to keep total runtime bounded.
type detailBackfill struct {
	fetcher Fetcher
	logger  *slog.Logger
}

func (b *detailBackfill) Run(ctx context.Context, src Source, products []catalog.Product) {
	if b == nil || b.fetcher == nil {
		return
	}
	limit := src.DetailVisitCap
	if limit <= 0 {
		limit = 10
	}

	var missing []int
	for i, p := range products {
		if p.ImageURL == "" && p.SourceURL != "" {
			missing = append(missing, i)
		}
	}
	if len(missing) == 0 || len(missing) > limit {
		if len(missing) > limit {
			runLogger(ctx, b.logger).Info("skipping image backfill, subset above cap",
				"source", src.Name, "missing", len(missing), "cap", limit)
		}
		return
	}

	for _, i := range missing {
		if ctx.Err() != nil {
			return
		}
		p := &products[i]
		img := b.detailImage(ctx, src, p)
		if img == "" {
			continue
		}
		p.ImageURL = img
		p.ImageURLs = append([]string{img}, p.ImageURLs...)
		politeDelay(ctx, src.PageDelay)
	}
}

func (b *detailBackfill) detailImage(ctx context.Context, src Source, p *catalog.Product) string {
	payload, err := b.fetcher.Get(ctx, p.SourceURL)
	if err != nil {
		runLogger(ctx, b.logger).Debug("detail page fetch failed", "source", src.Name, "url", p.SourceURL, "error", err)
		return ""
	}
	return DetailPageImage(string(payload), src, p.ExternalID)
}

// DetailPageImage extracts the primary image from product detail markup:
// Open Graph metadata first, then the usual gallery selectors.
func DetailPageImage(html string, src Source, externalID string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	if og, ok := doc.Find(`meta[property="og:image"]`).First().Attr("content"); ok && og != "" {
		return resolveImageURL(og, src, externalID)
	}
	for _, selector := range []string{
		"[class*='gallery'] img",
		"[class*='product'] img",
		"main img",
		"img",
	} {
		img := doc.Find(selector).First()
		if raw, ok := img.Attr("src"); ok && raw != "" {
			return resolveImageURL(raw, src, externalID)
		}
	}
	return ""
}
