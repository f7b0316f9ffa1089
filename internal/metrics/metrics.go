// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatlens_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "threatlens_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	ThreatsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatlens_threats_ingested_total",
			Help: "Total number of threat records ingested",
		},
		[]string{"type", "outcome"}, // outcome: created, observed, rejected
	)

	AlertsFiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "threatlens_alerts_fired_total",
			Help: "Total number of alert rule triggers",
		},
	)

	AlertsSuppressedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "threatlens_alerts_suppressed_total",
			Help: "Total number of rule matches suppressed by cooldown or inactive state",
		},
	)

	WebhookDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatlens_webhook_deliveries_total",
			Help: "Total number of webhook delivery attempts",
		},
		[]string{"type", "status"}, // status: success, failed
	)

	LookupRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatlens_iplookup_requests_total",
			Help: "Total number of IP lookup requests",
		},
		[]string{"result"}, // result: cache_hit, fetched, failed
	)

	WSClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "threatlens_ws_clients",
			Help: "Number of connected WebSocket clients",
		},
	)
)
