package catalog

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/owlcraft/storefront/internal/platform/httpx"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
	views   *redis.Client
}

func NewHandler(logger *slog.Logger, service *Service, views *redis.Client) *Handler {
	return &Handler{logger: logger, service: service, views: views}
}

// MountRoutes attaches the public storefront product routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Show)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 24
	}

	filters := ListFilters{
		Page:     page,
		Limit:    limit,
		Source:   r.URL.Query().Get("source"),
		Search:   r.URL.Query().Get("search"),
		Category: r.URL.Query().Get("category"),
		SortBy:   r.URL.Query().Get("sort"),
		SortDir:  r.URL.Query().Get("dir"),
	}

	products, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list products failed", "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "failed to load products")
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"products": products,
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return
	}

	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "product not found")
		return
	}

	h.bumpViews(r, product.ID)

	httpx.JSON(w, http.StatusOK, product)
}

// bumpViews records a page view. Best effort: a redis hiccup never fails the
// product request.
func (h *Handler) bumpViews(r *http.Request, id int64) {
	if h.views == nil {
		return
	}
	if err := h.views.Incr(r.Context(), "views:product:"+strconv.FormatInt(id, 10)).Err(); err != nil {
		h.logger.Warn("bump product views", "error", err, "id", id)
	}
}
