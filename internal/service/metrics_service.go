package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic,
// cache behaviour, and the learning-domain counters.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	dbQueryDuration *prometheus.HistogramVec

	enrollmentsTotal      prometheus.Counter
	lessonsCompleted      prometheus.Counter
	coursesCompleted      prometheus.Counter
	quizSubmissions       *prometheus.CounterVec
	quizScoreDistribution prometheus.Histogram
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
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	enrollmentsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "enrollments_created_total",
		Help: "Total enrollments created",
	})

	lessonsCompleted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lessons_completed_total",
		Help: "Total lessons marked complete",
	})

	coursesCompleted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "courses_completed_total",
		Help: "Total enrollments that reached completed status",
	})

	quizSubmissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quiz_submissions_total",
		Help: "Total quiz submissions by outcome",
	}, []string{"outcome"})

	quizScores := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "quiz_score_percent",
		Help:    "Distribution of graded quiz scores",
		Buckets: []float64{0, 25, 50, 75, 90, 100},
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHits, cacheMisses,
		dbQueryDuration, enrollmentsTotal, lessonsCompleted, coursesCompleted, quizSubmissions,
		quizScores, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:             registry,
		handler:               handler,
		requestDuration:       requestDuration,
		requestTotal:          requestTotal,
		cacheLatency:          cacheLatency,
		cacheHits:             cacheHits,
		cacheMisses:           cacheMisses,
		dbQueryDuration:       dbQueryDuration,
		enrollmentsTotal:      enrollmentsTotal,
		lessonsCompleted:      lessonsCompleted,
		coursesCompleted:      coursesCompleted,
		quizSubmissions:       quizSubmissions,
		quizScoreDistribution: quizScores,
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

// ObserveDBQuery records a database query duration by label.
func (m *MetricsService) ObserveDBQuery(query string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// RecordEnrollment counts a new enrollment.
func (m *MetricsService) RecordEnrollment() {
	if m == nil {
		return
	}
	m.enrollmentsTotal.Inc()
}

// RecordLessonCompleted counts a lesson completion; completedCourse marks
// a completion that finished the whole course.
func (m *MetricsService) RecordLessonCompleted(completedCourse bool) {
	if m == nil {
		return
	}
	m.lessonsCompleted.Inc()
	if completedCourse {
		m.coursesCompleted.Inc()
	}
}

// RecordQuizSubmission counts a graded or rejected submission.
func (m *MetricsService) RecordQuizSubmission(outcome string, score int) {
	if m == nil {
		return
	}
	m.quizSubmissions.WithLabelValues(outcome).Inc()
	if outcome == "graded" {
		m.quizScoreDistribution.Observe(float64(score))
	}
}
