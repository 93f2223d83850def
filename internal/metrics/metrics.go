package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics
var (
	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "iconforge_generation_duration_seconds",
			Help:    "Time spent emitting one set of icons",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source_type", "format", "status"},
	)

	IconsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iconforge_icons_generated_total",
			Help: "Total number of icon artifacts emitted",
		},
		[]string{"source_type", "format"},
	)

	ValidationRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iconforge_validation_rejections_total",
			Help: "Inputs rejected before any processing",
		},
		[]string{"field"},
	)

	ArchivesBuilt = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iconforge_archives_built_total",
			Help: "Icon archives built for download",
		},
		[]string{"status"},
	)

	DatabaseOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iconforge_database_operations_total",
			Help: "Total database operations performed",
		},
		[]string{"operation", "status"},
	)

	OfflineCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iconforge_offline_cache_requests_total",
			Help: "Requests handled by the offline cache middleware",
		},
		[]string{"strategy", "result"},
	)

	OfflineCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "iconforge_offline_cache_entries",
			Help: "Number of entries held by the offline cache worker",
		},
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "iconforge_websocket_connections_active",
			Help: "Number of active worker bridge connections",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "iconforge_sessions_active",
			Help: "Number of browser sessions held in memory",
		},
	)
)

// RecordGeneration records one emitter run
func RecordGeneration(sourceType, format string, count int, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	GenerationDuration.WithLabelValues(sourceType, format, status).Observe(duration.Seconds())
	if err == nil {
		IconsGenerated.WithLabelValues(sourceType, format).Add(float64(count))
	}
}

// RecordDatabaseOperation counts a store call by outcome
func RecordDatabaseOperation(operation string, err error) {
	DatabaseOperations.WithLabelValues(operation, statusLabel(err)).Inc()
}

// RecordArchive counts a built or failed archive
func RecordArchive(err error) {
	ArchivesBuilt.WithLabelValues(statusLabel(err)).Inc()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
