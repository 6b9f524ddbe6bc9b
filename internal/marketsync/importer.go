package marketsync

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ImportRecord is one administrator-supplied product correction. It bypasses
// acquisition but flows through the same normalizer and upsert path as a
// scraped item.
type ImportRecord struct {
	Source        string   `json:"source" validate:"required,oneof=shopee pinkoi"`
	ExternalID    string   `json:"external_id" validate:"required"`
	Name          string   `json:"name" validate:"required"`
	Description   string   `json:"description,omitempty"`
	Category      string   `json:"category,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Price         any      `json:"price" validate:"required"`
	OriginalPrice any      `json:"original_price,omitempty"`
	ImageURL      string   `json:"image_url,omitempty"`
	ImageURLs     []string `json:"image_urls,omitempty"`
	SourceURL     string   `json:"source_url,omitempty"`
	Stock         int      `json:"stock,omitempty" validate:"gte=0"`
	SalesCount    int      `json:"sales_count,omitempty" validate:"gte=0"`
	Rating        float64  `json:"rating,omitempty" validate:"gte=0"`
}

// Importer runs manual bulk imports.
type Importer struct {
	store    Store
	sources  map[string]Source
	validate *validator.Validate
}

func NewImporter(store Store, sources map[string]Source) *Importer {
	return &Importer{
		store:    store,
		sources:  sources,
		validate: validator.New(),
	}
}

// Import normalizes and upserts the given records. Per-record failures are
// counted and reported; they never abort the batch. Reconciliation is not
// part of an import: absent products keep their current state.
func (im *Importer) Import(ctx context.Context, records []ImportRecord) SyncRun {
	run := SyncRun{
		Source:        "import",
		RunID:         uuid.NewString(),
		StartedAt:     time.Now(),
		ItemsAcquired: len(records),
	}

	for i, rec := range records {
		if err := im.validate.Struct(rec); err != nil {
			run.Failed++
			run.Errors = append(run.Errors, fmt.Sprintf("record %d: %v", i, err))
			continue
		}
		src, ok := im.sources[rec.Source]
		if !ok {
			run.Failed++
			run.Errors = append(run.Errors, fmt.Sprintf("record %d: unknown source %q", i, rec.Source))
			continue
		}
		product, ok := Normalize(rec.rawItem(), src)
		if !ok {
			run.Failed++
			run.Errors = append(run.Errors, fmt.Sprintf("record %d (%s): not normalizable", i, rec.ExternalID))
			continue
		}
		if _, err := im.store.UpsertByExternalID(ctx, product); err != nil {
			run.Failed++
			run.Errors = append(run.Errors, fmt.Sprintf("record %d (%s): %v", i, rec.ExternalID, err))
			continue
		}
		run.Succeeded++
	}

	run.Duration = time.Since(run.StartedAt)
	return run
}

// rawItem reshapes the import record into the generic raw-item form.
func (rec ImportRecord) rawItem() RawItem {
	item := RawItem{
		"external_id": rec.ExternalID,
		"name":        rec.Name,
		"price":       rec.Price,
	}
	if rec.Description != "" {
		item["description"] = rec.Description
	}
	if rec.Category != "" {
		item["category"] = rec.Category
	}
	if len(rec.Tags) > 0 {
		item["tags"] = anySlice(rec.Tags)
	}
	if rec.OriginalPrice != nil {
		item["original_price"] = rec.OriginalPrice
	}
	if rec.ImageURL != "" {
		item["image"] = rec.ImageURL
	}
	if len(rec.ImageURLs) > 0 {
		item["image_urls"] = anySlice(rec.ImageURLs)
	}
	if rec.SourceURL != "" {
		item["source_url"] = rec.SourceURL
	}
	if rec.Stock > 0 {
		item["stock"] = float64(rec.Stock)
	}
	if rec.SalesCount > 0 {
		item["sales_count"] = float64(rec.SalesCount)
	}
	if rec.Rating > 0 {
		item["rating"] = rec.Rating
	}
	return item
}

func anySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
