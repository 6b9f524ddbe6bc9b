package catalog

import (
	"time"
)

// Known marketplace sources.
const (
	SourceShopee = "shopee"
	SourcePinkoi = "pinkoi"
)

// Product is the canonical, source-agnostic catalog record. The pair
// (Source, ExternalID) is the sole upsert key; a product without it cannot
// exist in the catalog.
type Product struct {
	ID            int64     `json:"id"`
	Source        string    `json:"source"`
	ExternalID    string    `json:"external_id"`
	ShopID        int64     `json:"shop_id,omitempty"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Category      string    `json:"category,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	Price         float64   `json:"price"`
	OriginalPrice *float64  `json:"original_price,omitempty"`
	ImageURL      string    `json:"image_url,omitempty"`
	ImageURLs     []string  `json:"image_urls,omitempty"`
	SourceURL     string    `json:"source_url,omitempty"`
	Stock         int       `json:"stock"`
	SalesCount    int       `json:"sales_count"`
	Rating        *float64  `json:"rating,omitempty"`
	IsActive      bool      `json:"is_active"`
	LastSyncedAt  time.Time `json:"last_synced_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ValidSource reports whether s names a supported marketplace.
func ValidSource(s string) bool {
	return s == SourceShopee || s == SourcePinkoi
}

// Stats summarizes the catalog for one source.
type Stats struct {
	Source         string     `json:"source"`
	ActiveProducts int        `json:"active_products"`
	TotalProducts  int        `json:"total_products"`
	LastSyncedAt   *time.Time `json:"last_synced_at,omitempty"`
}
