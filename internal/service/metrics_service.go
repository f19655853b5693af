package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/academic-records-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	rankingDuration *prometheus.HistogramVec
	rankingFailures *prometheus.CounterVec
	codeAttempts    prometheus.Histogram
	termConflicts   prometheus.Counter

	requestCount         uint64
	requestDurationTotal uint64
	rankingCount         uint64
	rankingFailureCount  uint64
	rankingDurationTotal uint64
	termConflictCount    uint64
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

	rankingDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ranking_recompute_duration_seconds",
		Help:    "Duration of ranking recompute passes",
		Buckets: prometheus.DefBuckets,
	}, []string{"scope"})

	rankingFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ranking_recompute_failures_total",
		Help: "Ranking recompute passes that returned an error",
	}, []string{"scope"})

	codeAttempts := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "enrollment_code_attempts",
		Help:    "Candidates generated per enrollment code allocation",
		Buckets: []float64{1, 2, 3, 5, 8, 10},
	})

	termConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "term_activation_conflicts_total",
		Help: "Term activations rejected because another term was active",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, rankingDuration, rankingFailures, codeAttempts, termConflicts, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		rankingDuration: rankingDuration,
		rankingFailures: rankingFailures,
		codeAttempts:    codeAttempts,
		termConflicts:   termConflicts,
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

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveRanking records one ranking pass.
func (m *MetricsService) ObserveRanking(scope models.RankingScope, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.rankingDuration.WithLabelValues(string(scope)).Observe(duration.Seconds())
	atomic.AddUint64(&m.rankingCount, 1)
	atomic.AddUint64(&m.rankingDurationTotal, uint64(duration.Nanoseconds()))
	if err != nil {
		m.rankingFailures.WithLabelValues(string(scope)).Inc()
		atomic.AddUint64(&m.rankingFailureCount, 1)
	}
}

// ObserveCodeAttempts records how many candidates an allocation needed.
func (m *MetricsService) ObserveCodeAttempts(attempts int) {
	if m == nil {
		return
	}
	m.codeAttempts.Observe(float64(attempts))
}

// IncTermActivationConflict counts a rejected activation.
func (m *MetricsService) IncTermActivationConflict() {
	if m == nil {
		return
	}
	m.termConflicts.Inc()
	atomic.AddUint64(&m.termConflictCount, 1)
}

// Snapshot returns aggregated metrics suitable for the summary endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	runs := atomic.LoadUint64(&m.rankingCount)
	runDuration := atomic.LoadUint64(&m.rankingDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	var avgRankingMs float64
	if runs > 0 {
		avgRankingMs = float64(runDuration) / float64(runs) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		RankingRuns:              runs,
		RankingFailures:          atomic.LoadUint64(&m.rankingFailureCount),
		AverageRankingDurationMs: avgRankingMs,
		TermActivationConflicts:  atomic.LoadUint64(&m.termConflictCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
