package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-appeals-api/internal/models"
)

// Case id allocation paths.
const (
	AllocationPathRandom   = "random"
	AllocationPathFallback = "fallback"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP layer and the appeal engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	transitions     *prometheus.CounterVec
	allocations     *prometheus.CounterVec
	operationErrors *prometheus.CounterVec
	bulkItems       *prometheus.CounterVec
	deadlineBuckets *prometheus.GaugeVec
}

// NewMetricsService registers core Prometheus collectors.
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "appeal_cache_latency_seconds",
		Help:    "Latency for appeal cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "appeal_cache_hits_total",
		Help: "Total appeal cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "appeal_cache_misses_total",
		Help: "Total appeal cache misses",
	})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "appeal_transitions_total",
		Help: "Status transitions applied, by actor role and target status",
	}, []string{"role", "status"})

	allocations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "appeal_case_id_allocations_total",
		Help: "Case id allocations by path (random or fallback)",
	}, []string{"path"})

	operationErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "appeal_operation_errors_total",
		Help: "Failed engine operations by operation and error code",
	}, []string{"operation", "code"})

	bulkItems := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "appeal_bulk_items_total",
		Help: "Per-case outcomes of bulk operations",
	}, []string{"operation", "result"})

	deadlineBuckets := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "appeal_deadline_bucket_cases",
		Help: "Outstanding cases per deadline bucket at the last sweep",
	}, []string{"bucket"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHits, cacheMisses,
		transitions, allocations, operationErrors, bulkItems, deadlineBuckets, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		transitions:     transitions,
		allocations:     allocations,
		operationErrors: operationErrors,
		bulkItems:       bulkItems,
		deadlineBuckets: deadlineBuckets,
	}
}

// Registry exposes the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// RecordCacheOperation records cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// RecordTransition counts an applied status change.
func (m *MetricsService) RecordTransition(role models.UserRole, status models.AppealStatus) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(role), string(status)).Inc()
}

// RecordAllocation counts a case id allocation by path.
func (m *MetricsService) RecordAllocation(path string) {
	if m == nil {
		return
	}
	m.allocations.WithLabelValues(path).Inc()
}

// RecordOperationError counts a failed engine operation.
func (m *MetricsService) RecordOperationError(operation, code string) {
	if m == nil {
		return
	}
	m.operationErrors.WithLabelValues(operation, code).Inc()
}

// RecordBulkItem counts one processed entry of a bulk operation.
func (m *MetricsService) RecordBulkItem(operation string, ok bool) {
	if m == nil {
		return
	}
	result := "failed"
	if ok {
		result = "succeeded"
	}
	m.bulkItems.WithLabelValues(operation, result).Inc()
}

// SetDeadlineBuckets publishes bucket sizes from the last sweep.
func (m *MetricsService) SetDeadlineBuckets(buckets models.DeadlineBuckets) {
	if m == nil {
		return
	}
	m.deadlineBuckets.WithLabelValues("overdue").Set(float64(len(buckets.Overdue)))
	m.deadlineBuckets.WithLabelValues("today").Set(float64(len(buckets.Today)))
	m.deadlineBuckets.WithLabelValues("tomorrow").Set(float64(len(buckets.Tomorrow)))
	m.deadlineBuckets.WithLabelValues("this_week").Set(float64(len(buckets.ThisWeek)))
	m.deadlineBuckets.WithLabelValues("upcoming").Set(float64(len(buckets.Upcoming)))
}
