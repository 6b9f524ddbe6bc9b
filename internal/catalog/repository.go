package catalog

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a product id does not exist.
var ErrNotFound = errors.New("product not found")

// ListFilters narrows storefront and admin product queries.
type ListFilters struct {
	Source          string
	Search          string
	Category        string
	IncludeInactive bool
	Page            int
	Limit           int
	SortBy          string
	SortDir         string
}

type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Product, int, error)
	Get(ctx context.Context, id int64) (Product, error)
	UpsertByExternalID(ctx context.Context, p Product) (Product, error)
	ListActiveExternalIDs(ctx context.Context, source string) (map[string]struct{}, error)
	DeactivateByExternalIDs(ctx context.Context, source string, ids []string) (int64, error)
	Stats(ctx context.Context, source string) (Stats, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const productColumns = `id, source, external_id, shop_id, name, description, category, tags, price, original_price, image_url, image_urls, source_url, stock, sales_count, rating, is_active, last_synced_at, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Source, &p.ExternalID, &p.ShopID, &p.Name, &p.Description, &p.Category, &p.Tags, &p.Price, &p.OriginalPrice, &p.ImageURL, &p.ImageURLs, &p.SourceURL, &p.Stock, &p.SalesCount, &p.Rating, &p.IsActive, &p.LastSyncedAt, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if !filters.IncludeInactive {
		where += ` AND is_active = TRUE`
	}
	if filters.Source != "" {
		argCount++
		where += ` AND source = $` + strconv.Itoa(argCount)
		args = append(args, filters.Source)
	}
	if filters.Category != "" {
		argCount++
		where += ` AND category = $` + strconv.Itoa(argCount)
		args = append(args, filters.Category)
	}
	if filters.Search != "" {
		argCount++
		where += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR description ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + productColumns + ` FROM products` + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)

	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	row := r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

// UpsertByExternalID inserts the product or overwrites every mutable field of
// the existing row with the same (source, external_id). The row is always
// re-activated and last_synced_at refreshed.
func (r *repository) UpsertByExternalID(ctx context.Context, p Product) (Product, error) {
	query := `
		INSERT INTO products (source, external_id, shop_id, name, description, category, tags, price, original_price, image_url, image_urls, source_url, stock, sales_count, rating, is_active, last_synced_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, TRUE, $16, $16, $16)
		ON CONFLICT (source, external_id) DO UPDATE SET
			shop_id = EXCLUDED.shop_id,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			tags = EXCLUDED.tags,
			price = EXCLUDED.price,
			original_price = EXCLUDED.original_price,
			image_url = EXCLUDED.image_url,
			image_urls = EXCLUDED.image_urls,
			source_url = EXCLUDED.source_url,
			stock = EXCLUDED.stock,
			sales_count = EXCLUDED.sales_count,
			rating = EXCLUDED.rating,
			is_active = TRUE,
			last_synced_at = EXCLUDED.last_synced_at,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + productColumns
	now := time.Now()
	row := r.db.QueryRow(ctx, query,
		p.Source, p.ExternalID, p.ShopID, p.Name, p.Description, p.Category, p.Tags,
		p.Price, p.OriginalPrice, p.ImageURL, p.ImageURLs, p.SourceURL,
		p.Stock, p.SalesCount, p.Rating, now,
	)
	return scanProduct(row)
}

func (r *repository) ListActiveExternalIDs(ctx context.Context, source string) (map[string]struct{}, error) {
	rows, err := r.db.Query(ctx, `SELECT external_id FROM products WHERE source = $1 AND is_active = TRUE`, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// DeactivateByExternalIDs soft-deletes the listed products. It deliberately
// leaves last_synced_at alone: deactivation is not a resync.
func (r *repository) DeactivateByExternalIDs(ctx context.Context, source string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE products SET is_active = FALSE, updated_at = $3 WHERE source = $1 AND external_id = ANY($2) AND is_active = TRUE`,
		source, ids, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repository) Stats(ctx context.Context, source string) (Stats, error) {
	stats := Stats{Source: source}
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE is_active), COUNT(*), MAX(last_synced_at) FROM products WHERE source = $1`,
		source,
	).Scan(&stats.ActiveProducts, &stats.TotalProducts, &stats.LastSyncedAt)
	return stats, err
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "name":
		return "name " + dir
	case "price":
		return "price " + dir
	case "sales_count":
		return "sales_count " + dir
	case "last_synced_at":
		return "last_synced_at " + dir
	default:
		return "id " + dir
	}
}
