package marketsync

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/owlcraft/storefront/internal/catalog"
)

// Source describes one marketplace shop to synchronize. All acquisition
// knobs live here so the strategies stay source-agnostic.
type Source struct {
	Name          string
	ShopID        int64
	StoreSlug     string
	Origin        string
	StorefrontURL string

	// EndpointTemplates are candidate product-listing URLs for the direct API
	// probe, in probe order. Placeholders: {shop_id}, {store}, {limit},
	// {offset}, {page}.
	EndpointTemplates []string
	// ListingPathHints identify product-listing responses during browser
	// capture, matched by substring against response URLs.
	ListingPathHints []string

	PageSize      int
	MaxPages      int
	PageDelay     time.Duration
	AcquireBudget time.Duration

	// PriceScale divides integer-scaled API prices (Shopee encodes 186.00 as
	// 18600000 with scale 100000). Zero means prices arrive unscaled.
	PriceScale float64

	// CDNImageTemplate turns a bare CDN hash into a full image URL;
	// {image} and {id} placeholders.
	CDNImageTemplate string

	ProductURLPattern *regexp.Regexp
	CardSelectors     []string
	ScriptKeyHints    []string

	// DetailVisitCap bounds per-item detail-page visits for image backfill.
	DetailVisitCap int

	ScrollAttempts int
	ScrollWait     time.Duration
}

var (
	shopeeProductURL = regexp.MustCompile(`-i\.(\d+)\.(\d+)(?:\?|$)`)
	pinkoiProductURL = regexp.MustCompile(`/product/([A-Za-z0-9_-]+)`)
)

// ShopeeSource builds the acquisition config for a Shopee shop.
func ShopeeSource(shopID int64, slug string) Source {
	origin := "https://shopee.tw"
	return Source{
		Name:          catalog.SourceShopee,
		ShopID:        shopID,
		StoreSlug:     slug,
		Origin:        origin,
		StorefrontURL: origin + "/" + slug,
		EndpointTemplates: []string{
			origin + "/api/v4/shop/search_items?shopid={shop_id}&limit={limit}&offset={offset}&order=desc&sort_by=pop",
			origin + "/api/v4/search/search_items?match_id={shop_id}&limit={limit}&newest={offset}&page_type=shop",
			origin + "/api/v2/search_items/?shopid={shop_id}&limit={limit}&newest={offset}&order=desc&by=pop",
		},
		ListingPathHints:  []string{"/api/v4/shop/search_items", "/api/v4/search/search_items", "/api/v2/search_items"},
		PageSize:          30,
		MaxPages:          30,
		PageDelay:         350 * time.Millisecond,
		AcquireBudget:     90 * time.Second,
		PriceScale:        100000,
		CDNImageTemplate:  "https://cf.shopee.tw/file/{image}",
		ProductURLPattern: shopeeProductURL,
		CardSelectors: []string{
			"div.shop-search-result-view__item",
			"div[data-sqe='item']",
			"a[data-sqe='link']",
		},
		ScriptKeyHints: []string{"itemid", "shopid", "price_min"},
		DetailVisitCap: 12,
		ScrollAttempts: 10,
		ScrollWait:     800 * time.Millisecond,
	}
}

// PinkoiSource builds the acquisition config for a Pinkoi shop.
func PinkoiSource(store string) Source {
	origin := "https://www.pinkoi.com"
	return Source{
		Name:          catalog.SourcePinkoi,
		StoreSlug:     store,
		Origin:        origin,
		StorefrontURL: origin + "/store/" + store,
		EndpointTemplates: []string{
			origin + "/apiv2/shop/products?store={store}&page={page}",
			origin + "/apiv3/store/get_items?sid={store}&page={page}&limit={limit}",
		},
		ListingPathHints:  []string{"/apiv2/shop/products", "/apiv3/store/get_items", "/browse"},
		PageSize:          60,
		MaxPages:          20,
		PageDelay:         350 * time.Millisecond,
		AcquireBudget:     90 * time.Second,
		CDNImageTemplate:  "https://cdn01.pinkoi.com/product/{id}/0/640x530.jpg",
		ProductURLPattern: pinkoiProductURL,
		CardSelectors: []string{
			"div.shop-item",
			"li[data-item-id]",
			"div[data-tid]",
		},
		ScriptKeyHints: []string{"\"tid\"", "store_id", "irev"},
		DetailVisitCap: 12,
		ScrollAttempts: 10,
		ScrollWait:     800 * time.Millisecond,
	}
}

// EndpointURL renders the nth candidate endpoint for a zero-based page.
func (s Source) EndpointURL(template string, page int) string {
	r := strings.NewReplacer(
		"{shop_id}", strconv.FormatInt(s.ShopID, 10),
		"{store}", s.StoreSlug,
		"{limit}", strconv.Itoa(s.PageSize),
		"{offset}", strconv.Itoa(page*s.PageSize),
		"{page}", strconv.Itoa(page+1),
	)
	return r.Replace(template)
}

// ProductURL derives the canonical listing URL for an external id.
func (s Source) ProductURL(externalID string) string {
	switch s.Name {
	case catalog.SourceShopee:
		return s.Origin + "/product/" + strconv.FormatInt(s.ShopID, 10) + "/" + externalID
	case catalog.SourcePinkoi:
		return s.Origin + "/product/" + externalID
	}
	return s.StorefrontURL
}
