package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for calls to the hosted backend
// (identity, data, realtime, storage endpoints).
type Metrics struct {
	apiCalls   *prometheus.CounterVec
	apiLatency *prometheus.HistogramVec
}

// NewMetrics creates a Metrics and registers its collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		apiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fitsutra_api_requests_total",
			Help: "Outbound backend API requests by service, method and status code.",
		}, []string{"service", "method", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fitsutra_api_latency_seconds",
			Help:    "Outbound backend API request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"service", "method"}),
	}
	reg.MustRegister(m.apiCalls, m.apiLatency)
	return m
}

// RecordAPICall records one outbound request. status 0 means the transport
// failed before a response arrived.
func (m *Metrics) RecordAPICall(service, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.apiCalls.WithLabelValues(service, method, strconv.Itoa(status)).Inc()
	m.apiLatency.WithLabelValues(service, method).Observe(d.Seconds())
}

// Handler returns the /metrics endpoint for the given registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
