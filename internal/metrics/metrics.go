// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ProviderCallDuration tracks model provider latency by call type and result.
	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_call_duration_seconds",
			Help:    "Model provider call duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 45, 60},
		},
		[]string{"call", "result"},
	)

	// RepliesTotal counts chat replies by persona mode and outcome.
	RepliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_replies_total",
			Help: "Chat replies by persona mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	// ProviderFailuresTotal counts classified provider failures.
	ProviderFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_failures_total",
			Help: "Provider failures by classified kind",
		},
		[]string{"kind"},
	)

	// TitlesTotal counts generated session titles by source.
	TitlesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_titles_total",
			Help: "Session titles by source",
		},
		[]string{"source"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordProviderCall records one model call.
func RecordProviderCall(call, result string, duration float64) {
	ProviderCallDuration.WithLabelValues(call, result).Observe(duration)
}

// RecordReply records the outcome of a conversation turn.
func RecordReply(mode, outcome string) {
	RepliesTotal.WithLabelValues(mode, outcome).Inc()
}

// RecordFailure records a classified provider failure.
func RecordFailure(kind string) {
	ProviderFailuresTotal.WithLabelValues(kind).Inc()
}

// RecordTitle records where a session title came from.
func RecordTitle(source string) {
	TitlesTotal.WithLabelValues(source).Inc()
}
