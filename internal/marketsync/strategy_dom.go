package marketsync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/owlcraft/storefront/internal/catalog"
)

// domStrategy scrapes the rendered markup when no network payload yields
// products. Three heuristics in descending reliability: inline script JSON,
// product-card selectors, then bare product anchors with an ancestor walk.
type domStrategy struct {
	newBrowser BrowserFactory
	logger     *slog.Logger
}

func (s *domStrategy) Name() string { return "dom" }

func (s *domStrategy) Acquire(ctx context.Context, src Source) ([]catalog.Product, error) {
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

	page, err := browser.Open(ctx, src.StorefrontURL, nil)
	if err != nil {
		return nil, fmt.Errorf("open storefront: %w", err)
	}
	defer page.Close()

	scrollUntilStable(ctx, page, src)

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return ExtractDOMProducts(html, src), nil
}

// ExtractDOMProducts runs the DOM heuristics over rendered markup and
// normalizes whatever they recover.
func ExtractDOMProducts(html string, src Source) []catalog.Product {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	if items := scriptItems(doc, src); len(items) > 0 {
		if products := NormalizeAll(items, src); len(products) > 0 {
			return products
		}
	}
	if items := cardItems(doc, src); len(items) > 0 {
		if products := NormalizeAll(items, src); len(products) > 0 {
			return products
		}
	}
	return NormalizeAll(anchorItems(doc, src), src)
}

// scriptItems probes inline scripts whose text mentions the source's marker
// keys for embedded listing JSON.
func scriptItems(doc *goquery.Document, src Source) []RawItem {
	var items []RawItem
	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		items = ExtractScriptItems(sel.Text(), src.ScriptKeyHints)
		return len(items) == 0
	})
	return items
}

// cardItems tries the source's product-card selectors in descending order of
// specificity, taking the first selector that matches anything.
func cardItems(doc *goquery.Document, src Source) []RawItem {
	for _, selector := range src.CardSelectors {
		var items []RawItem
		doc.Find(selector).Each(func(_ int, card *goquery.Selection) {
			if item, ok := cardToItem(card, src); ok {
				items = append(items, item)
			}
		})
		if len(items) > 0 {
			return items
		}
	}
	return nil
}

func cardToItem(card *goquery.Selection, src Source) (RawItem, bool) {
	href, _ := card.Find("a").First().Attr("href")
	if href == "" {
		href, _ = card.Attr("href")
	}
	id := externalIDFromURL(href, src)
	if id == "" {
		id, _ = card.Attr("data-item-id")
	}
	if id == "" {
		id, _ = card.Attr("data-tid")
	}
	if id == "" {
		return nil, false
	}
	item := RawItem{
		"id":    id,
		"url":   href,
		"name":  firstText(card, "[class*='name']", "[class*='title']", "h3", "h4"),
		"price": firstText(card, "[class*='price']", "span[data-price]"),
	}
	if img, ok := card.Find("img").First().Attr("src"); ok {
		item["image"] = img
	}
	return item, true
}

// anchorItems is the last resort: every anchor whose href looks like a
// product URL, with name, price and image recovered by walking a bounded
// number of ancestor levels.
func anchorItems(doc *goquery.Document, src Source) []RawItem {
	const ancestorLevels = 4
	var items []RawItem
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		id := externalIDFromURL(href, src)
		if id == "" {
			return
		}
		item := RawItem{"id": id, "url": href}
		node := a
		for level := 0; level < ancestorLevels; level++ {
			if item.Str("name") == "" {
				item["name"] = firstText(node, "[class*='name']", "[class*='title']", "h3", "h4")
			}
			if item.Str("price") == "" {
				item["price"] = firstText(node, "[class*='price']")
			}
			if item.Str("image") == "" {
				if img, ok := node.Find("img").First().Attr("src"); ok {
					item["image"] = img
				}
			}
			if item.Str("name") != "" && item.Str("price") != "" && item.Str("image") != "" {
				break
			}
			node = node.Parent()
			if node.Length() == 0 {
				break
			}
		}
		items = append(items, item)
	})
	return items
}

// externalIDFromURL pulls the marketplace id out of a product URL. Shopee
// encodes "-i.<shopid>.<itemid>", Pinkoi "/product/<tid>".
func externalIDFromURL(href string, src Source) string {
	if href == "" || src.ProductURLPattern == nil {
		return ""
	}
	m := src.ProductURLPattern.FindStringSubmatch(href)
	if m == nil {
		return ""
	}
	if src.Name == catalog.SourceShopee && len(m) >= 3 {
		return m[2]
	}
	return m[len(m)-1]
}

func firstText(sel *goquery.Selection, selectors ...string) string {
	for _, s := range selectors {
		if text := strings.TrimSpace(sel.Find(s).First().Text()); text != "" {
			return text
		}
	}
	return ""
}
