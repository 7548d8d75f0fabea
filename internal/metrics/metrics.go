// Package metrics holds the process-wide prometheus instruments. Collectors
// register on the default registry; /metrics serves it.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts finished requests by HTTP status code.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imgforge_requests_total",
		Help: "Total number of requests by status code.",
	}, []string{"status"})

	// CacheHits counts cache hits by backend.
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imgforge_cache_hits_total",
		Help: "Total number of cache hits by backend.",
	}, []string{"backend"})

	// CacheMisses counts cache misses by backend.
	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imgforge_cache_misses_total",
		Help: "Total number of cache misses by backend.",
	}, []string{"backend"})

	// ProcessedImages counts successful renders by output format.
	ProcessedImages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imgforge_processed_images_total",
		Help: "Total number of processed images by output format.",
	}, []string{"format"})

	// SourceFetches counts upstream fetches by outcome.
	SourceFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imgforge_source_fetches_total",
		Help: "Total number of source image fetches by outcome.",
	}, []string{"outcome"})

	// ProcessingDuration observes pipeline latency by output format.
	ProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "imgforge_processing_duration_seconds",
		Help:    "Image processing duration by output format.",
		Buckets: prometheus.DefBuckets,
	}, []string{"format"})

	// FetchDuration observes upstream fetch latency.
	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "imgforge_source_fetch_duration_seconds",
		Help:    "Source image fetch duration.",
		Buckets: prometheus.DefBuckets,
	})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
