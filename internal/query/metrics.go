package query

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks fresh cache hits per query class.
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "query_cache_hits_total",
		Help: "Total number of fresh cache hits by query class",
	}, []string{"class"})

	// cacheMisses tracks cache misses (no usable entry) per query class.
	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "query_cache_misses_total",
		Help: "Total number of cache misses by query class",
	}, []string{"class"})

	// staleServes tracks responses served from a stale entry while a
	// background refresh runs.
	staleServes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "query_cache_stale_serves_total",
		Help: "Total number of stale entries served pending refresh",
	}, []string{"class"})

	// refreshes tracks upstream fetches, foreground and background alike.
	refreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "query_cache_refreshes_total",
		Help: "Total number of upstream fetches by query class",
	}, []string{"class"})

	// fetchErrors tracks failed upstream fetches.
	fetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "query_cache_fetch_errors_total",
		Help: "Total number of failed upstream fetches by query class",
	}, []string{"class"})

	// fetchDuration tracks the time spent fetching from the upstream API.
	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "query_cache_fetch_duration_seconds",
		Help:    "Time spent fetching from the upstream API by query class",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
	}, []string{"class"})

	// discardedResults tracks fetch results dropped because a newer fetch
	// for the same key started before they completed.
	discardedResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "query_cache_discarded_results_total",
		Help: "Total number of fetch results discarded by a newer fetch",
	}, []string{"class"})
)

// MetricsRecorder wraps the package counters so callers record through
// one narrow surface and tests stay free of prometheus plumbing.
type MetricsRecorder struct{}

// NewMetricsRecorder creates a metrics recorder.
func NewMetricsRecorder() *MetricsRecorder {
	return &MetricsRecorder{}
}

func (m *MetricsRecorder) RecordHit(class string)        { cacheHits.WithLabelValues(class).Inc() }
func (m *MetricsRecorder) RecordMiss(class string)       { cacheMisses.WithLabelValues(class).Inc() }
func (m *MetricsRecorder) RecordStaleServe(class string) { staleServes.WithLabelValues(class).Inc() }
func (m *MetricsRecorder) RecordRefresh(class string)    { refreshes.WithLabelValues(class).Inc() }
func (m *MetricsRecorder) RecordFetchError(class string) { fetchErrors.WithLabelValues(class).Inc() }
func (m *MetricsRecorder) RecordDiscarded(class string)  { discardedResults.WithLabelValues(class).Inc() }

func (m *MetricsRecorder) RecordFetchDuration(class string, d time.Duration) {
	fetchDuration.WithLabelValues(class).Observe(d.Seconds())
}
