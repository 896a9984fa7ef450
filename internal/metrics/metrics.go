// Package metrics exposes Prometheus instruments for collection runs and the control API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"CaseCollector/internal/domain"
)

const namespace = "casecollector"

// Case pipeline stages used as the "stage" label.
const (
	StageExtracted    = "extracted"
	StageValid        = "valid"
	StageDuplicate    = "duplicate"
	StageAdded        = "added"
	StageAutoApproved = "auto_approved"
)

// Metrics holds every instrument. A nil *Metrics records nothing.
type Metrics struct {
	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	runInProgress   prometheus.Gauge
	articlesFetched *prometheus.CounterVec
	fetchFailures   *prometheus.CounterVec
	casesTotal      *prometheus.CounterVec

	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
}

// New creates the instruments and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Collection runs by final status",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Collection run duration in seconds",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 3600},
			},
		),
		runInProgress: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "run_in_progress",
				Help:      "1 while a collection run is active",
			},
		),
		articlesFetched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "articles_fetched_total",
				Help:      "Article details fetched per source",
			},
			[]string{"source"},
		),
		fetchFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_failures_total",
				Help:      "Failed article detail fetches per source",
			},
			[]string{"source"},
		),
		casesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cases_total",
				Help:      "Cases counted per pipeline stage",
			},
			[]string{"stage"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
	}

	reg.MustRegister(
		m.runsTotal,
		m.runDuration,
		m.runInProgress,
		m.articlesFetched,
		m.fetchFailures,
		m.casesTotal,
		m.httpRequestDuration,
		m.httpRequestsTotal,
	)
	return m
}

// RunStarted marks a run as active.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.runInProgress.Set(1)
}

// RunFinished records the outcome of a run.
func (m *Metrics) RunFinished(summary domain.RunSummary) {
	if m == nil {
		return
	}
	m.runInProgress.Set(0)
	m.runsTotal.WithLabelValues(string(summary.Status)).Inc()
	m.runDuration.Observe(summary.DurationSeconds)

	for source, st := range summary.SourceStats {
		m.articlesFetched.WithLabelValues(source).Add(float64(st.ArticlesFetched))
		m.fetchFailures.WithLabelValues(source).Add(float64(st.FetchFailures))
	}

	st := summary.Statistics
	m.casesTotal.WithLabelValues(StageExtracted).Add(float64(st.CasesExtracted))
	m.casesTotal.WithLabelValues(StageValid).Add(float64(st.CasesValid))
	m.casesTotal.WithLabelValues(StageDuplicate).Add(float64(st.CasesDuplicate))
	m.casesTotal.WithLabelValues(StageAdded).Add(float64(st.CasesAdded))
	m.casesTotal.WithLabelValues(StageAutoApproved).Add(float64(st.CasesAutoApproved))
}

// RunRejected counts a trigger refused because another run was active.
func (m *Metrics) RunRejected() {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(string(domain.RunRejected)).Inc()
}

// Middleware records HTTP request duration and count.
func (m *Metrics) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			status := strconv.Itoa(ww.status)
			path := "unknown"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				path = rc.RoutePattern()
			}

			m.httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
			m.httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		})
	}
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.wroteHeader = true
	}
	return w.ResponseWriter.Write(b)
}
