// Package metrics holds the Prometheus collectors for uploads and the HTTP
// API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "widgets"

type Metrics struct {
	UploadsTotal        *prometheus.CounterVec
	UploadBytesTotal    *prometheus.CounterVec
	UploadDuration      *prometheus.HistogramVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		UploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "uploads_total",
				Help:      "Total number of uploads by result.",
			},
			[]string{"directory", "result"}, // result: success, failure
		),
		UploadBytesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upload_bytes_total",
				Help:      "Total number of bytes uploaded.",
			},
			[]string{"directory"},
		),
		UploadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upload_duration_seconds",
				Help:      "Duration of uploads.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"directory"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}
}

// ObserveUpload records the outcome of one upload.
func (m *Metrics) ObserveUpload(directory string, size int64, elapsed time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.UploadsTotal.WithLabelValues(directory, result).Inc()
	m.UploadDuration.WithLabelValues(directory).Observe(elapsed.Seconds())
	if err == nil {
		m.UploadBytesTotal.WithLabelValues(directory).Add(float64(size))
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{w, http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware counts and times requests. The path label is the matched route
// pattern so that IDs in URLs do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)
		duration := time.Since(start)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(rw.statusCode)
		m.HTTPRequestDuration.WithLabelValues(r.Method, path, status).Observe(duration.Seconds())
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
	})
}
