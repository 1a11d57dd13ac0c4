package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestTransitions counts lifecycle events by type (request.submitted, request.approved, ...)
	RequestTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrportal_request_transitions_total",
			Help: "Total number of request lifecycle transitions",
		},
		[]string{"event"},
	)

	// RequestConflicts counts status writes that lost a compare-and-swap race
	RequestConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hrportal_request_conflicts_total",
			Help: "Status changes skipped because the request moved on concurrently",
		},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrportal_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hrportal_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// WebsocketClients is the number of live snapshot subscribers
	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hrportal_ws_clients",
			Help: "Number of connected websocket subscribers",
		},
	)
)
