package rpc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPC metrics
	RPCRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainhound_rpc_requests_total",
			Help: "Total number of RPC requests by network and method",
		},
		[]string{"network", "method"},
	)

	RPCErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainhound_rpc_errors_total",
			Help: "Total number of RPC errors by network, method and type",
		},
		[]string{"network", "method", "error_type"},
	)

	RPCDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chainhound_rpc_request_duration_seconds",
			Help:    "Duration of RPC requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"network", "method"},
	)

	RPCRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainhound_rpc_retries_total",
			Help: "Total number of retried RPC requests",
		},
		[]string{"network", "method"},
	)

	RPCRateLimitWaits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainhound_rpc_rate_limit_waits_total",
			Help: "Number of requests delayed by the network rate limiter",
		},
		[]string{"network"},
	)

	ProvidersOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chainhound_rpc_providers_open",
			Help: "Number of networks with an open provider connection",
		},
	)
)

func RPCMethodInc(network, method string) {
	RPCRequests.WithLabelValues(network, method).Inc()
}

func RPCMethodDuration(network, method string, duration time.Duration) {
	RPCDuration.WithLabelValues(network, method).Observe(duration.Seconds())
}

func RPCMethodError(network, method, errorType string) {
	RPCErrors.WithLabelValues(network, method, errorType).Inc()
}

func RPCRetryInc(network, method string) {
	RPCRetries.WithLabelValues(network, method).Inc()
}

func RateLimitWaitInc(network string) {
	RPCRateLimitWaits.WithLabelValues(network).Inc()
}
