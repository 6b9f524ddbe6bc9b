package marketsync

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"

	"github.com/owlcraft/storefront/internal/catalog"
)

// taggedPrice matches the marketplace encoding "$$TWD$$1860$$".
var taggedPrice = regexp.MustCompile(`\$\$[A-Z]{3}\$\$([0-9][0-9.,]*)\$\$`)

// shapeHandler attempts to read one known raw-item shape into a canonical
// product. ok=false means "not this shape", and the next handler is tried.
type shapeHandler func(item RawItem, src Source) (catalog.Product, bool)

var shapeHandlers = []shapeHandler{
	shopeeItemShape,
	pinkoiItemShape,
	genericItemShape,
}

// Normalize converts a raw item into the canonical product record. ok=false
// means the item lacks a mandatory field (name, positive price, external id)
// and must be silently dropped, never surfaced as an error.
func Normalize(item RawItem, src Source) (catalog.Product, bool) {
	for _, handler := range shapeHandlers {
		p, ok := handler(item, src)
		if !ok {
			continue
		}
		if p.Name == "" || p.Price <= 0 || p.ExternalID == "" {
			return catalog.Product{}, false
		}
		finishProduct(&p, item, src)
		return p, true
	}
	return catalog.Product{}, false
}

// NormalizeAll dedupes then normalizes a batch, dropping unusable items.
func NormalizeAll(items []RawItem, src Source) []catalog.Product {
	out := make([]catalog.Product, 0, len(items))
	for _, item := range DedupeByExternalID(items) {
		if p, ok := Normalize(item, src); ok {
			out = append(out, p)
		}
	}
	return out
}

// shopeeItemShape reads the search_items API record (item_basic already
// unwrapped by extraction). Prices arrive integer-scaled and ratings on a
// 0-50 scale.
func shopeeItemShape(item RawItem, src Source) (catalog.Product, bool) {
	itemID, ok := item.Num("itemid", "item_id")
	if !ok || itemID <= 0 {
		return catalog.Product{}, false
	}
	p := catalog.Product{
		Source:     catalog.SourceShopee,
		ExternalID: strconv.FormatInt(int64(itemID), 10),
		Name:       item.Str("name", "title"),
	}
	if shopID, ok := item.Num("shopid", "shop_id"); ok {
		p.ShopID = int64(shopID)
	} else {
		p.ShopID = src.ShopID
	}

	scale := src.PriceScale
	if scale <= 0 {
		scale = 1
	}
	if v, ok := item.Num("price", "price_min"); ok {
		p.Price = v / scale
	}
	if v, ok := item.Num("price_before_discount", "price_max_before_discount"); ok && v > 0 {
		orig := v / scale
		p.OriginalPrice = &orig
	}
	if v, ok := item.Num("stock"); ok && v > 0 {
		p.Stock = int(v)
	}
	if v, ok := item.Num("historical_sold", "sold"); ok && v > 0 {
		p.SalesCount = int(v)
	}
	if rating := item.Sub("item_rating"); rating != nil {
		if v, ok := rating.Num("rating_star"); ok {
			r := normalizeRating(v)
			p.Rating = &r
		}
	}

	if img := item.Str("image"); img != "" {
		p.ImageURLs = append(p.ImageURLs, resolveImageURL(img, src, p.ExternalID))
	}
	for _, img := range item.Strings("images") {
		u := resolveImageURL(img, src, p.ExternalID)
		if len(p.ImageURLs) == 0 || p.ImageURLs[0] != u {
			p.ImageURLs = append(p.ImageURLs, u)
		}
	}
	return p, true
}

// pinkoiItemShape reads the Pinkoi shop products record. Ids are opaque
// strings ("tid") and prices plain or currency-tagged.
func pinkoiItemShape(item RawItem, src Source) (catalog.Product, bool) {
	tid := item.Str("tid", "product_id")
	if tid == "" {
		return catalog.Product{}, false
	}
	p := catalog.Product{
		Source:     catalog.SourcePinkoi,
		ExternalID: tid,
		Name:       item.Str("title", "name"),
		Category:   item.Str("category", "cid"),
	}
	if v, ok := parsePriceValue(item["price"], 0); ok {
		p.Price = v
	}
	if v, ok := parsePriceValue(item["oprice"], 0); ok && v > 0 {
		p.OriginalPrice = &v
	}
	if v, ok := item.Num("stock", "quantity"); ok && v > 0 {
		p.Stock = int(v)
	}
	if v, ok := item.Num("sold", "sold_count"); ok && v > 0 {
		p.SalesCount = int(v)
	}
	if v, ok := item.Num("review_score", "rating"); ok && v > 0 {
		r := normalizeRating(v)
		p.Rating = &r
	}
	p.Tags = item.Strings("tags")

	for _, key := range []string{"image", "image_url", "cover"} {
		if img := item.Str(key); img != "" {
			p.ImageURLs = append(p.ImageURLs, resolveImageURL(img, src, tid))
			break
		}
	}
	for _, img := range item.Strings("images") {
		p.ImageURLs = append(p.ImageURLs, resolveImageURL(img, src, tid))
	}
	return p, true
}

// genericItemShape covers DOM-scraped and bulk-imported records, which use
// plain field names and string-encoded prices.
func genericItemShape(item RawItem, src Source) (catalog.Product, bool) {
	id := item.ExternalID()
	if id == "" {
		return catalog.Product{}, false
	}
	p := catalog.Product{
		Source:      src.Name,
		ExternalID:  id,
		ShopID:      src.ShopID,
		Name:        item.Str("name", "title"),
		Description: item.Str("description"),
		Category:    item.Str("category"),
	}
	if v, ok := parsePriceValue(item["price"], 0); ok {
		p.Price = v
	}
	if v, ok := parsePriceValue(item["original_price"], 0); ok && v > 0 {
		p.OriginalPrice = &v
	}
	if v, ok := item.Num("stock"); ok && v > 0 {
		p.Stock = int(v)
	}
	if v, ok := item.Num("sales_count", "sold"); ok && v > 0 {
		p.SalesCount = int(v)
	}
	if v, ok := item.Num("rating"); ok && v > 0 {
		r := normalizeRating(v)
		p.Rating = &r
	}
	p.Tags = item.Strings("tags")
	if img := item.Str("image", "image_url"); img != "" {
		p.ImageURLs = append(p.ImageURLs, resolveImageURL(img, src, id))
	}
	for _, img := range item.Strings("image_urls") {
		p.ImageURLs = append(p.ImageURLs, resolveImageURL(img, src, id))
	}
	return p, true
}

// finishProduct fills the derivable fields every shape shares.
func finishProduct(p *catalog.Product, item RawItem, src Source) {
	if p.SourceURL == "" {
		if u := item.Str("url", "source_url"); u != "" {
			p.SourceURL = resolveImageURL(u, src, p.ExternalID)
		} else {
			p.SourceURL = src.ProductURL(p.ExternalID)
		}
	}
	if len(p.ImageURLs) > 0 {
		p.ImageURL = p.ImageURLs[0]
	}
	p.IsActive = true
}

// parsePriceValue handles every price encoding seen in the wild: numbers,
// numeric strings, full-width digits, currency-prefixed strings and the
// "$$CUR$$amount$$" tagged form. scale, when positive, divides raw numeric
// values (Shopee's integer encoding).
func parsePriceValue(v any, scale float64) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return scaledPrice(val, scale)
	case int:
		return scaledPrice(float64(val), scale)
	case int64:
		return scaledPrice(float64(val), scale)
	case string:
		return ParsePriceString(val)
	}
	return 0, false
}

func scaledPrice(v, scale float64) (float64, bool) {
	if v <= 0 {
		return 0, false
	}
	if scale > 1 {
		v /= scale
	}
	return v, true
}

// ParsePriceString parses a display-form price string. Full-width digits are
// folded first; Taiwanese storefronts mix ASCII and full-width freely.
func ParsePriceString(s string) (float64, bool) {
	s = strings.TrimSpace(width.Fold.String(s))
	if s == "" {
		return 0, false
	}
	if m := taggedPrice.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return f, true
}

// normalizeRating maps a source rating onto the 0-5 scale. Shopee reports
// tenths (0-50), which a single division recovers.
func normalizeRating(r float64) float64 {
	if r > 5 {
		r /= 10
	}
	if r > 5 {
		r = 5
	}
	if r < 0 {
		r = 0
	}
	return r
}

// resolveImageURL turns the many shapes marketplace image references take
// into an absolute URL.
func resolveImageURL(raw string, src Source, externalID string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return ""
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return raw
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw
	case strings.HasPrefix(raw, "/"):
		return src.Origin + raw
	}
	// Bare CDN fragment without an extension: render through the source's
	// canonical image template.
	if !strings.Contains(raw, ".") && src.CDNImageTemplate != "" {
		r := strings.NewReplacer("{image}", raw, "{id}", externalID)
		return r.Replace(src.CDNImageTemplate)
	}
	return src.Origin + "/" + raw
}
