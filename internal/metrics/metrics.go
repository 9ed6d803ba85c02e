package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the quiz and HTTP collectors. A nil *Metrics is valid and
// records nothing, so the core packages never need a registry in tests.
type Metrics struct {
	reg *prometheus.Registry

	Answers             *prometheus.CounterVec
	Completions         *prometheus.CounterVec
	PersistenceFailures *prometheus.CounterVec
	ActiveSessions      prometheus.Gauge
	RequestCounter      *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		Answers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_answers_total",
				Help: "Submitted answers by exam type and outcome",
			},
			[]string{"exam_type", "result"},
		),
		Completions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_sessions_completed_total",
				Help: "Completed quiz runs by exam type, mode and trigger",
			},
			[]string{"exam_type", "mode", "reason"},
		),
		PersistenceFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_persistence_failures_total",
				Help: "Failed progress/score writes by operation",
			},
			[]string{"op"},
		),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quiz_active_sessions",
			Help: "Open quiz sessions",
		}),
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2},
			},
			[]string{"method", "endpoint"},
		),
	}
	m.reg.MustRegister(m.Answers, m.Completions, m.PersistenceFailures, m.ActiveSessions,
		m.RequestCounter, m.RequestDuration)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) AnswerSubmitted(examType string, correct bool) {
	if m == nil {
		return
	}
	result := "incorrect"
	if correct {
		result = "correct"
	}
	m.Answers.WithLabelValues(examType, result).Inc()
}

func (m *Metrics) SessionCompleted(examType, mode, reason string) {
	if m == nil {
		return
	}
	m.Completions.WithLabelValues(examType, mode, reason).Inc()
}

func (m *Metrics) PersistenceFailed(op string) {
	if m == nil {
		return
	}
	m.PersistenceFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

// Middleware records request counts and latency keyed by the chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			endpoint = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RequestCounter.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
