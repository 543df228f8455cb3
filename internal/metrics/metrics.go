package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Source metrics
	LastProcessedBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chainhound_last_processed_block",
			Help: "Exclusive end of the last block range a source dispatched",
		},
		[]string{"source", "network"},
	)

	ChainHead = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chainhound_chain_head_block",
			Help: "Chain head observed by the processors of a network",
		},
		[]string{"network"},
	)

	BlocksScanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainhound_blocks_scanned_total",
			Help: "Total number of blocks scanned",
		},
		[]string{"source", "network"},
	)

	LogsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainhound_logs_dispatched_total",
			Help: "Total number of logs handed to handlers",
		},
		[]string{"source", "network"},
	)

	HandlerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainhound_handler_errors_total",
			Help: "Total number of handler errors and panics",
		},
		[]string{"source", "mode"},
	)

	HandlerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chainhound_handler_duration_seconds",
			Help:    "Duration of a single handler invocation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	RangeProcessingTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chainhound_range_processing_duration_seconds",
			Help:    "Time taken to scan and dispatch one block range",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	SourceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainhound_source_failures_total",
			Help: "Total number of sources that stopped with an error",
		},
		[]string{"source", "network"},
	)

	ActiveSources = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chainhound_active_sources",
			Help: "Number of running sources by kind",
		},
		[]string{"kind"},
	)

	TemplateRegistrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainhound_template_registrations_total",
			Help: "Total number of template sources registered at runtime",
		},
		[]string{"template", "network"},
	)

	// System metrics
	Uptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chainhound_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)

	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chainhound_goroutines",
			Help: "Number of active goroutines",
		},
	)

	MemoryUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chainhound_memory_usage_bytes",
			Help: "Memory usage statistics",
		},
		[]string{"type"},
	)

	startTime = time.Now()
)

func LastProcessedBlockSet(source, network string, blockNum uint64) {
	LastProcessedBlock.WithLabelValues(source, network).Set(float64(blockNum))
}

func ChainHeadSet(network string, blockNum uint64) {
	ChainHead.WithLabelValues(network).Set(float64(blockNum))
}

func BlocksScannedInc(source, network string, count uint64) {
	BlocksScanned.WithLabelValues(source, network).Add(float64(count))
}

func LogsDispatchedInc(source, network string, count int) {
	LogsDispatched.WithLabelValues(source, network).Add(float64(count))
}

func HandlerErrorInc(source, mode string) {
	HandlerErrors.WithLabelValues(source, mode).Inc()
}

func HandlerDurationLog(source string, duration time.Duration) {
	HandlerDuration.WithLabelValues(source).Observe(duration.Seconds())
}

func RangeProcessingTimeLog(source string, duration time.Duration) {
	RangeProcessingTime.WithLabelValues(source).Observe(duration.Seconds())
}

func SourceFailureInc(source, network string) {
	SourceFailures.WithLabelValues(source, network).Inc()
}

func ActiveSourcesInc(kind string) {
	ActiveSources.WithLabelValues(kind).Inc()
}

func ActiveSourcesDec(kind string) {
	ActiveSources.WithLabelValues(kind).Dec()
}

func TemplateRegistrationInc(template, network string) {
	TemplateRegistrations.WithLabelValues(template, network).Inc()
}

// UpdateSystemMetrics updates runtime system metrics.
// This should be called periodically (e.g., every 15 seconds).
func UpdateSystemMetrics() {
	Uptime.Set(time.Since(startTime).Seconds())

	Goroutines.Set(float64(runtime.NumGoroutine()))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	MemoryUsage.WithLabelValues("alloc").Set(float64(m.Alloc))
	MemoryUsage.WithLabelValues("total_alloc").Set(float64(m.TotalAlloc))
	MemoryUsage.WithLabelValues("sys").Set(float64(m.Sys))
	MemoryUsage.WithLabelValues("heap_inuse").Set(float64(m.HeapInuse))
}
