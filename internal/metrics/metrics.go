package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taaskly_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taaskly_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Webhook metrics
	CallbacksRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taaskly_callbacks_recorded_total",
			Help: "Total webhook callbacks persisted for audit",
		},
	)

	SignatureFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taaskly_signature_failures_total",
			Help: "Total xhub signature verification failures",
		},
		[]string{"reason"}, // "missing" or "mismatch"
	)

	EventsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taaskly_events_handled_total",
			Help: "Total webhook events dispatched to a handler",
		},
		[]string{"topic", "kind"},
	)

	DuplicateDeliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taaskly_duplicate_deliveries_total",
			Help: "Total redelivered events skipped by the seen-set",
		},
	)

	CommandsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taaskly_commands_dispatched_total",
			Help: "Total chat commands dispatched",
		},
		[]string{"command"},
	)

	// Graph API metrics
	GraphCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taaskly_graph_calls_total",
			Help: "Total outbound Graph API calls",
		},
		[]string{"path", "status"},
	)

	GraphLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taaskly_graph_latency_seconds",
			Help:    "Outbound Graph API call latency",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)
)
