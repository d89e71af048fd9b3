// Package metrics holds the Prometheus collectors for catalog syncs and the
// read-only API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	catalogSyncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flex",
			Subsystem: "catalog",
			Name:      "sync_runs_total",
			Help:      "Total number of exercise catalog sync runs.",
		},
		[]string{"status"},
	)

	catalogSyncRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flex",
			Subsystem: "catalog",
			Name:      "sync_rows_total",
			Help:      "Catalog rows touched by sync runs.",
		},
		[]string{"op"},
	)

	catalogImageDownloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flex",
			Subsystem: "catalog",
			Name:      "image_downloads_total",
			Help:      "Exercise image downloads by result.",
		},
		[]string{"result"},
	)

	catalogSyncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "flex",
			Subsystem: "catalog",
			Name:      "sync_duration_seconds",
			Help:      "Duration of catalog sync runs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
	)

	catalogLastSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "flex",
			Subsystem: "catalog",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful catalog sync.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flex",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flex",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "route"},
	)
)

func init() {
	Registry.MustRegister(
		catalogSyncRuns,
		catalogSyncRows,
		catalogImageDownloads,
		catalogSyncDuration,
		catalogLastSuccess,
		httpRequests,
		httpDuration,
	)
}

// SyncResult is the subset of a sync report the collectors care about.
type SyncResult struct {
	Succeeded        bool
	Created          int
	Updated          int
	Deleted          int
	ImagesDownloaded int
	ImagesFailed     int
	Duration         time.Duration
}

func RecordCatalogSync(r SyncResult) {
	status := "failed"
	if r.Succeeded {
		status = "succeeded"
		catalogLastSuccess.SetToCurrentTime()
	}
	catalogSyncRuns.WithLabelValues(status).Inc()
	catalogSyncRows.WithLabelValues("created").Add(float64(r.Created))
	catalogSyncRows.WithLabelValues("updated").Add(float64(r.Updated))
	catalogSyncRows.WithLabelValues("deleted").Add(float64(r.Deleted))
	catalogImageDownloads.WithLabelValues("ok").Add(float64(r.ImagesDownloaded))
	catalogImageDownloads.WithLabelValues("failed").Add(float64(r.ImagesFailed))
	catalogSyncDuration.Observe(r.Duration.Seconds())
}

func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
