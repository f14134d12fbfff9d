package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailbox_gateway_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailbox_gateway_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	AuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailbox_gateway_auth_failures_total",
			Help: "Total rejected credentials",
		},
	)

	// Mailbox metrics
	MailboxOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailbox_gateway_operations_total",
			Help: "Mailbox operations by outcome",
		},
		[]string{"op", "outcome"},
	)

	// Object store metrics
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailbox_gateway_store_latency_seconds",
			Help:    "Object store operation latency",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"driver", "op", "result"},
	)

	WatchSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mailbox_gateway_watch_sessions",
			Help: "Open status watch websockets",
		},
	)
)
