package marketsync

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/owlcraft/storefront/internal/catalog"
	"github.com/owlcraft/storefront/internal/platform/httpx"
)

// Handler exposes the admin trigger surface: synchronous sync runs, catalog
// status and manual bulk import.
type Handler struct {
	logger   *slog.Logger
	engine   *Engine
	importer *Importer
	status   *StatusCache
	stats    *catalog.Service
	sources  map[string]Source
}

func NewHandler(logger *slog.Logger, engine *Engine, importer *Importer, status *StatusCache, stats *catalog.Service, sources map[string]Source) *Handler {
	return &Handler{
		logger:   logger,
		engine:   engine,
		importer: importer,
		status:   status,
		stats:    stats,
		sources:  sources,
	}
}

// MountRoutes attaches the admin sync routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sync", h.SyncAll)
	r.Post("/sync/{source}", h.SyncOne)
	r.Get("/sync/{source}/status", h.Status)
	r.Post("/products/import", h.Import)
}

// SyncOne runs one synchronous sync for the named source. An unknown source
// is the only hard error the engine lets out.
func (h *Handler) SyncOne(w http.ResponseWriter, r *http.Request) {
	src, ok := h.sources[chi.URLParam(r, "source")]
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unknown source")
		return
	}
	run := h.engine.SyncSource(r.Context(), src)
	httpx.JSON(w, http.StatusOK, run)
}

// SyncAll runs every configured source. Runs are independent, so they execute
// concurrently; the catalog store serializes conflicting writes.
func (h *Handler) SyncAll(w http.ResponseWriter, r *http.Request) {
	runs := h.engine.SyncAll(r.Context(), sourceList(h.sources))
	httpx.JSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// Status reports catalog-derived state for a source plus the cached summary
// of the most recent run, when one exists. There is no job history.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "source")
	if _, ok := h.sources[name]; !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unknown source")
		return
	}

	stats, err := h.stats.Stats(r.Context(), name)
	if err != nil {
		h.logger.Error("catalog stats failed", "source", name, "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "failed to load catalog stats")
		return
	}

	payload := map[string]any{"catalog": stats}
	if run, ok, err := h.status.Last(r.Context(), name); err != nil {
		h.logger.Warn("load last run", "source", name, "error", err)
	} else if ok {
		payload["last_run"] = run
	}
	httpx.JSON(w, http.StatusOK, payload)
}

// Import accepts pre-shaped product records and pushes them through the
// normal normalize+upsert path.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	var records []ImportRecord
	if err := httpx.DecodeJSON(r, &records); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid import payload")
		return
	}
	if len(records) == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "empty import payload")
		return
	}
	run := h.importer.Import(r.Context(), records)
	httpx.JSON(w, http.StatusOK, run)
}

func sourceList(sources map[string]Source) []Source {
	out := make([]Source, 0, len(sources))
	for _, src := range sources {
		out = append(out, src)
	}
	return out
}
