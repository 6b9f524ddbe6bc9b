package jobmetrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/owlcraft/storefront/internal/marketsync"
)

// Metrics exposes Prometheus collectors for catalog sync runs.
type Metrics struct {
	runs             *prometheus.CounterVec
	itemsAcquired    *prometheus.CounterVec
	upsertFailures   *prometheus.CounterVec
	deactivated      *prometheus.CounterVec
	zeroAcquisitions *prometheus.CounterVec
	duration         *prometheus.HistogramVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the sync metrics against the provided registerer. When
// the registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// ObserveRun records the outcome of one sync run. Satisfies the engine's
// metrics hook.
func (m *Metrics) ObserveRun(source string, run marketsync.SyncRun) {
	if m == nil {
		return
	}
	status := "success"
	if run.Failed > 0 || len(run.Errors) > 0 {
		status = "partial"
	}
	if run.ItemsAcquired == 0 {
		status = "zero_acquisition"
		m.zeroAcquisitions.WithLabelValues(source).Inc()
	}
	m.runs.WithLabelValues(source, status).Inc()
	m.itemsAcquired.WithLabelValues(source).Add(float64(run.ItemsAcquired))
	m.upsertFailures.WithLabelValues(source).Add(float64(run.Failed))
	m.deactivated.WithLabelValues(source).Add(float64(run.Deactivated))
	m.duration.WithLabelValues(source).Observe(run.Duration.Seconds())
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_sync_runs_total",
		Help: "Total sync runs partitioned by source and outcome.",
	}, []string{"source", "status"})
	itemsAcquired := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_sync_items_acquired_total",
		Help: "Products acquired from marketplaces across sync runs.",
	}, []string{"source"})
	upsertFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_sync_upsert_failures_total",
		Help: "Products that failed to persist during sync runs.",
	}, []string{"source"})
	deactivated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_sync_deactivated_total",
		Help: "Products soft-deleted because they vanished from the source.",
	}, []string{"source"})
	zeroAcquisitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_sync_zero_acquisitions_total",
		Help: "Runs where every acquisition strategy came back empty.",
	}, []string{"source"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_sync_duration_seconds",
		Help:    "Duration in seconds of sync runs.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})
	registerer.MustRegister(runs, itemsAcquired, upsertFailures, deactivated, zeroAcquisitions, duration)
	return &Metrics{
		runs:             runs,
		itemsAcquired:    itemsAcquired,
		upsertFailures:   upsertFailures,
		deactivated:      deactivated,
		zeroAcquisitions: zeroAcquisitions,
		duration:         duration,
	}
}
