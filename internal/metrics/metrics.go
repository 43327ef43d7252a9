// Package metrics exposes Prometheus counters and histograms for subtitle
// fetching, the analysis store and batch runs.
package metrics

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"muteguard/internal/profanity"
)

const (
	// Namespace for all muteguard metrics
	namespace = "muteguard"
)

// Metrics owns a registry and the collectors registered on it. It satisfies
// the observer interfaces of the client, fetcher, store and processor.
type Metrics struct {
	registry *prometheus.Registry

	// RemoteRequests tracks OpenSubtitles calls by operation and outcome
	RemoteRequests *prometheus.CounterVec
	// RemoteDuration tracks OpenSubtitles call latency
	RemoteDuration *prometheus.HistogramVec
	// RawCacheLookups tracks raw subtitle cache hits and misses
	RawCacheLookups *prometheus.CounterVec
	// StoreLookups tracks analysis store lookups (hit, miss, ghost)
	StoreLookups *prometheus.CounterVec
	// LevelResults tracks per-level batch outcomes
	LevelResults *prometheus.CounterVec
	// BatchDuration tracks end-to-end batch processing time
	BatchDuration prometheus.Histogram
	// CleanupRemoved tracks records and cache entries removed by maintenance
	CleanupRemoved *prometheus.CounterVec
}

// New creates collectors on a fresh registry. Go runtime and process
// collectors are included.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RemoteRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "remote_requests_total",
				Help:      "Total number of OpenSubtitles requests",
			},
			[]string{"operation", "outcome"},
		),
		RemoteDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "remote_request_duration_seconds",
				Help:      "Duration of OpenSubtitles requests in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"operation"},
		),
		RawCacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "raw_cache_lookups_total",
				Help:      "Total number of raw subtitle cache lookups",
			},
			[]string{"result"},
		),
		StoreLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_lookups_total",
				Help:      "Total number of analysis store lookups",
			},
			[]string{"result"},
		),
		LevelResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "level_results_total",
				Help:      "Total number of filter level results by outcome",
			},
			[]string{"level", "outcome"},
		),
		BatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_duration_seconds",
				Help:      "Duration of batch analyses in seconds",
				Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),
		CleanupRemoved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cleanup_removed_total",
				Help:      "Total number of items removed by scheduled maintenance",
			},
			[]string{"target"},
		),
	}
	m.registry.MustRegister(
		m.RemoteRequests,
		m.RemoteDuration,
		m.RawCacheLookups,
		m.StoreLookups,
		m.LevelResults,
		m.BatchDuration,
		m.CleanupRemoved,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry to path in the text exposition format
// read by the node_exporter textfile collector. The file is replaced
// atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) ObserveRequest(operation, outcome string, elapsed time.Duration) {
	m.RemoteRequests.WithLabelValues(operation, outcome).Inc()
	m.RemoteDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveRawCache(result string) {
	m.RawCacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveStoreLookup(result string) {
	m.StoreLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveLevelResult(level profanity.Level, outcome string) {
	m.LevelResults.WithLabelValues(level.String(), outcome).Inc()
}

func (m *Metrics) ObserveBatch(elapsed time.Duration) {
	m.BatchDuration.Observe(elapsed.Seconds())
}

// ObserveCleanup counts items removed from target ("records", "raw_cache", "logs").
func (m *Metrics) ObserveCleanup(target string, removed int) {
	if removed <= 0 {
		return
	}
	m.CleanupRemoved.WithLabelValues(target).Add(float64(removed))
}
