// Package metrics exposes Prometheus instrumentation for transfers.
//
// A nil *Metrics is valid and records nothing, so callers never need to check
// whether instrumentation was configured.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
)

const namespace = "s3transfer"

// Metrics holds the transfer collectors of one client.
type Metrics struct {
	// Backend request metrics
	RequestsTotal   *prometheus.CounterVec   // s3transfer_backend_requests_total{operation,status}
	RequestDuration *prometheus.HistogramVec // s3transfer_backend_request_duration_seconds{operation}

	// Transfer metrics
	PartsUploaded   prometheus.Counter     // s3transfer_parts_uploaded_total
	RangesFetched   prometheus.Counter     // s3transfer_ranges_fetched_total
	RangeRetries    prometheus.Counter     // s3transfer_range_retries_total
	BytesUploaded   prometheus.Counter     // s3transfer_bytes_uploaded_total
	BytesDownloaded prometheus.Counter     // s3transfer_bytes_downloaded_total
	Sessions        *prometheus.CounterVec // s3transfer_sessions_total{outcome}
}

// New registers the transfer collectors with registry. A nil registry
// disables instrumentation and yields a nil *Metrics.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		return nil
	}
	factory := promauto.With(registry)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Total backend requests by operation and status",
		}, []string{"operation", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Backend request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		PartsUploaded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parts_uploaded_total",
			Help:      "Total multipart parts uploaded",
		}),

		RangesFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ranges_fetched_total",
			Help:      "Total byte ranges fetched",
		}),

		RangeRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "range_retries_total",
			Help:      "Total retried byte range fetch attempts",
		}),

		BytesUploaded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_uploaded_total",
			Help:      "Total bytes sent to the backend",
		}),

		BytesDownloaded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_downloaded_total",
			Help:      "Total bytes received from the backend",
		}),

		Sessions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Multipart upload sessions by terminal outcome",
		}, []string{"outcome"}),
	}
}

// RecordRequest records one backend call.
func (m *Metrics) RecordRequest(operation string, err error, durationSeconds float64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(operation, string(errors.CodeOf(err))).Inc()
	m.RequestDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordPart records an uploaded part of size bytes.
func (m *Metrics) RecordPart(size int) {
	if m == nil {
		return
	}
	m.PartsUploaded.Inc()
	m.BytesUploaded.Add(float64(size))
}

// RecordPut records a single-shot upload of size bytes.
func (m *Metrics) RecordPut(size int) {
	if m == nil {
		return
	}
	m.BytesUploaded.Add(float64(size))
}

// RecordRange records a fetched range of size bytes.
func (m *Metrics) RecordRange(size int) {
	if m == nil {
		return
	}
	m.RangesFetched.Inc()
	m.BytesDownloaded.Add(float64(size))
}

// RecordRetry records a retried range attempt.
func (m *Metrics) RecordRetry() {
	if m == nil {
		return
	}
	m.RangeRetries.Inc()
}

// RecordSession records the terminal outcome of a multipart session.
func (m *Metrics) RecordSession(outcome string) {
	if m == nil {
		return
	}
	m.Sessions.WithLabelValues(outcome).Inc()
}
