// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "katu"

var (
	// RequestDuration tracks dashboard HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Dashboard HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total dashboard HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total dashboard HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// CompletionDuration tracks completion latency by kind (primary, regenerate).
	CompletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_duration_seconds",
			Help:      "Completion request duration",
			Buckets:   []float64{.25, .5, 1, 2, 4, 8, 15, 30},
		},
		[]string{"kind", "status"},
	)

	// DuplicatesDetected counts primary answers caught by the response window.
	DuplicatesDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_detected_total",
			Help:      "Generated answers flagged as near-duplicates",
		},
	)

	// FallbackResponses counts apologies sent instead of a generated answer.
	FallbackResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_responses_total",
			Help:      "Fallback answers sent after a failed completion",
		},
	)

	// TriggersDropped counts conversation triggers dropped by the in-flight guard.
	TriggersDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_dropped_total",
			Help:      "Conversation triggers dropped while a reply was in flight",
		},
	)

	// HistoryLanes tracks the number of live conversation lanes.
	HistoryLanes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_lanes",
			Help:      "Conversation lanes held in memory",
		},
	)

	// MessagesCounted tracks messages added to the daily counters.
	MessagesCounted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_counted_total",
			Help:      "Guild messages added to the daily counters",
		},
	)

	// CommandsTotal tracks prefix commands by name and outcome.
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Prefix commands executed",
		},
		[]string{"command", "status"},
	)
)

// RecordRequest records metrics for a dashboard request.
func RecordRequest(method, path string, status int, d time.Duration) {
	code := strconv.Itoa(status)
	RequestDuration.WithLabelValues(method, path, code).Observe(d.Seconds())
	RequestsTotal.WithLabelValues(method, path, code).Inc()
}

// RecordCompletion records one completion call.
func RecordCompletion(kind string, d time.Duration, err error) {
	CompletionDuration.WithLabelValues(kind, outcome(err)).Observe(d.Seconds())
}

// RecordCommand records one prefix command.
func RecordCommand(name string, err error) {
	CommandsTotal.WithLabelValues(name, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
