// Package metrics registers Prometheus collectors for the meter reader service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the service's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	inFlight     prometheus.Gauge

	extractionDuration prometheus.Histogram
	uploadBytes        prometheus.Histogram
}

// New creates and registers the service collectors on a private registry.
func New(service string) *Metrics {
	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{"service": service}

	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "Total HTTP requests by method, route, and status.",
			ConstLabels: labels,
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latency by method and route.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"method", "route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "http_requests_in_flight",
			Help:        "Requests currently being served.",
			ConstLabels: labels,
		}),
		extractionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "meter_extraction_duration_seconds",
			Help:        "End-to-end vision extraction latency per upload.",
			ConstLabels: labels,
			Buckets:     []float64{0.5, 1, 2, 5, 10, 20, 30},
		}),
		uploadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "meter_upload_size_bytes",
			Help:        "Size of accepted meter image uploads.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(16*1024, 4, 6),
		}),
	}

	reg.MustRegister(m.httpRequests, m.httpDuration, m.inFlight, m.extractionDuration, m.uploadBytes)
	return m
}

// Handler exposes the registry for GET /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one completed request.
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncrementInFlight marks a request as started.
func (m *Metrics) IncrementInFlight() { m.inFlight.Inc() }

// DecrementInFlight marks a request as finished.
func (m *Metrics) DecrementInFlight() { m.inFlight.Dec() }

// ObserveExtraction records one vision extraction duration.
func (m *Metrics) ObserveExtraction(d time.Duration) {
	m.extractionDuration.Observe(d.Seconds())
}

// ObserveUploadSize records the byte size of an accepted upload.
func (m *Metrics) ObserveUploadSize(n int) {
	m.uploadBytes.Observe(float64(n))
}
