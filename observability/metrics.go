package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type queryMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	queryMetricsOnce sync.Once
	queryRegistry    *queryMetrics
)

// QueryMetrics returns the lazily-initialised registry used to record query
// API activity.
func QueryMetrics() *queryMetrics {
	queryMetricsOnce.Do(func() {
		queryRegistry = &queryMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "revledger",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total query API requests segmented by route and outcome.",
			}, []string{"route", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "revledger",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total query API errors segmented by route and status code.",
			}, []string{"route", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "revledger",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for query API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route", "method"}),
		}
		prometheus.MustRegister(
			queryRegistry.requests,
			queryRegistry.errors,
			queryRegistry.latency,
		)
	})
	return queryRegistry
}

// Observe records the outcome of a query request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *queryMetrics) Observe(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(route, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(route, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(route, method).Observe(duration.Seconds())
}
