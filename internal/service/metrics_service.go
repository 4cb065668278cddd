package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/NeuEntity/surm-student-portal-sub000/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	submissionsCreated *prometheus.CounterVec
	decisionsTotal     *prometheus.CounterVec
	quotaRejections    *prometheus.CounterVec
}

// NewMetricsService registers the core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	submissionsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "submissions_created_total",
		Help: "Total submissions accepted, by category",
	}, []string{"category"})

	decisionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "submission_decisions_total",
		Help: "Total reviewer decisions applied, by outcome",
	}, []string{"decision"})

	quotaRejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quota_rejections_total",
		Help: "Total submissions rejected at admission for exceeding a quota",
	}, []string{"category"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHits, cacheMisses,
		submissionsCreated, decisionsTotal, quotaRejections, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		submissionsCreated: submissionsCreated,
		decisionsTotal:     decisionsTotal,
		quotaRejections:    quotaRejections,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup outcome.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// RecordSubmissionCreated counts an accepted submission.
func (m *MetricsService) RecordSubmissionCreated(category models.SubmissionCategory) {
	if m == nil {
		return
	}
	m.submissionsCreated.WithLabelValues(string(category)).Inc()
}

// RecordDecision counts an applied reviewer decision.
func (m *MetricsService) RecordDecision(decision models.SubmissionStatus) {
	if m == nil {
		return
	}
	m.decisionsTotal.WithLabelValues(string(decision)).Inc()
}

// RecordQuotaRejection counts an admission rejection.
func (m *MetricsService) RecordQuotaRejection(category models.SubmissionCategory) {
	if m == nil {
		return
	}
	m.quotaRejections.WithLabelValues(string(category)).Inc()
}
