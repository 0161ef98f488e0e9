package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpstreamRequests counts calls to the AMS API by operation and outcome.
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ams",
		Subsystem: "upstream",
		Name:      "requests_total",
		Help:      "Requests issued to the AMS API.",
	}, []string{"operation", "outcome"})

	// UpstreamDuration observes AMS API latency by operation.
	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ams",
		Subsystem: "upstream",
		Name:      "request_duration_seconds",
		Help:      "Latency of AMS API requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	// PushesSent counts web push deliveries by outcome.
	PushesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ams",
		Subsystem: "push",
		Name:      "sent_total",
		Help:      "Web push notifications handed to push services.",
	}, []string{"outcome"})

	// ActiveSessions tracks logins minus logouts served by this process.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ams",
		Subsystem: "session",
		Name:      "active",
		Help:      "Sessions created and not yet destroyed by this process.",
	})
)
