// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "navigator"

// Metrics owns a registry and every collector the engine reports to.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	activities       *prometheus.CounterVec
	quizAttempts     *prometheus.CounterVec
	unlocks          *prometheus.CounterVec
	assessments      *prometheus.CounterVec
	assessDuration   *prometheus.HistogramVec
	cacheResults     *prometheus.CounterVec
	events           *prometheus.CounterVec
	eventHandlerErrs *prometheus.CounterVec
	breakerState     *prometheus.GaugeVec
	jobRuns          *prometheus.CounterVec
	jobDuration      *prometheus.HistogramVec
}

// New creates a Metrics with a private registry. Go runtime and process
// collectors are registered as well.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),

		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}, []string{"method", "route"}),

		activities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activities_recorded_total",
			Help:      "Completed activities by kind and outcome",
		}, []string{"kind", "outcome"}),

		quizAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quiz_attempts_total",
			Help:      "Graded quiz attempts",
		}, []string{"quiz_id", "passed"}),

		unlocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "achievements_unlocked_total",
			Help:      "Achievement unlocks",
		}, []string{"achievement_id", "rarity"}),

		assessments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_assessments_total",
			Help:      "Risk assessments by subject type and level",
		}, []string{"subject_type", "level"}),

		assessDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "risk_assessment_duration_seconds",
			Help:      "Time to produce a risk assessment including cache lookups",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"subject_type"}),

		cacheResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_cache_results_total",
			Help:      "Risk cache lookups by result",
		}, []string{"result"}),

		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events published",
		}, []string{"event_type"}),

		eventHandlerErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_handler_errors_total",
			Help:      "Event handler failures and panics",
		}, []string{"event_type"}),

		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		}, []string{"name"}),

		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduled_job_runs_total",
			Help:      "Background job runs by job and status",
		}, []string{"job", "status"}),

		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduled_job_duration_seconds",
			Help:      "Background job run time",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"job"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.activities,
		m.quizAttempts,
		m.unlocks,
		m.assessments,
		m.assessDuration,
		m.cacheResults,
		m.events,
		m.eventHandlerErrs,
		m.breakerState,
		m.jobRuns,
		m.jobDuration,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHTTP records one served request. route is the matched pattern, not the raw path.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveActivity records an activity outcome: recorded, duplicate or failed.
func (m *Metrics) ObserveActivity(kind, outcome string) {
	if m == nil {
		return
	}
	m.activities.WithLabelValues(kind, outcome).Inc()
}

// ObserveQuizAttempt records a graded attempt.
func (m *Metrics) ObserveQuizAttempt(quizID string, passed bool) {
	if m == nil {
		return
	}
	m.quizAttempts.WithLabelValues(quizID, strconv.FormatBool(passed)).Inc()
}

// ObserveUnlock records an achievement unlock.
func (m *Metrics) ObserveUnlock(achievementID, rarity string) {
	if m == nil {
		return
	}
	m.unlocks.WithLabelValues(achievementID, rarity).Inc()
}

// ObserveAssessment records a produced risk result.
func (m *Metrics) ObserveAssessment(subjectType, level string, d time.Duration) {
	if m == nil {
		return
	}
	m.assessments.WithLabelValues(subjectType, level).Inc()
	m.assessDuration.WithLabelValues(subjectType).Observe(d.Seconds())
}

// ObserveCache records a risk cache lookup result.
func (m *Metrics) ObserveCache(result string) {
	if m == nil {
		return
	}
	m.cacheResults.WithLabelValues(result).Inc()
}

// ObserveEvent records a published domain event.
func (m *Metrics) ObserveEvent(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
}

// ObserveEventHandlerError records a failed or panicking event handler.
func (m *Metrics) ObserveEventHandlerError(eventType string) {
	if m == nil {
		return
	}
	m.eventHandlerErrs.WithLabelValues(eventType).Inc()
}

// ObserveBreakerState records a circuit breaker transition.
func (m *Metrics) ObserveBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(float64(state))
}

// ObserveJob records a finished background job run.
func (m *Metrics) ObserveJob(name string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	m.jobRuns.WithLabelValues(name, status).Inc()
	m.jobDuration.WithLabelValues(name).Observe(d.Seconds())
}
