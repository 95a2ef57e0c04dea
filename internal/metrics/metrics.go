// Package metrics exposes Prometheus counters for uploads and file serving.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels.
const (
	ResultOK       = "ok"
	ResultInvalid  = "invalid"
	ResultNotFound = "not_found"
	ResultTooLarge = "too_large"
	ResultError    = "error"
)

// InvalidCategory is the category label for values outside the allow-list.
const InvalidCategory = "_invalid"

// Metrics holds the collectors registered for one registry.
type Metrics struct {
	registry        *prometheus.Registry
	uploadsTotal    *prometheus.CounterVec
	uploadBytes     *prometheus.CounterVec
	servesTotal     *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry under namespace.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "depot"
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		uploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Upload attempts by category and result.",
		}, []string{"category", "result"}),
		uploadBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Bytes persisted by successful uploads.",
		}, []string{"category"}),
		servesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "serves_total",
			Help:      "File serve attempts by result.",
		}, []string{"result"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration by route pattern and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// Upload records one upload attempt. Unknown categories are folded into a
// single label value to keep cardinality bounded.
func (m *Metrics) Upload(category, result string, size int) {
	if m == nil {
		return
	}
	if result == ResultInvalid {
		category = InvalidCategory
	}
	m.uploadsTotal.WithLabelValues(category, result).Inc()
	if result == ResultOK {
		m.uploadBytes.WithLabelValues(category).Add(float64(size))
	}
}

// Serve records one file serve attempt.
func (m *Metrics) Serve(result string) {
	if m == nil {
		return
	}
	m.servesTotal.WithLabelValues(result).Inc()
}

// Middleware observes request duration labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for tests and embedding.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
