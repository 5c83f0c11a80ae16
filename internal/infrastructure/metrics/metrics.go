// Package metrics provides Prometheus metrics for the superlatives service.
// All recording methods are safe to call on a nil *Manager.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets custom histogram buckets for latency metrics.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.buckets = buckets
		}
	}
}

// WithRegistry sets a custom Prometheus registry.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// WithRuntimeCollectors registers the Go runtime and process collectors.
func WithRuntimeCollectors() Option {
	return func(m *Manager) {
		m.runtime = true
	}
}

// Manager owns every metric the service exports.
type Manager struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry
	runtime   bool

	// Game API
	apiRequests     *prometheus.CounterVec
	apiLatency      *prometheus.HistogramVec
	apiRetries      *prometheus.CounterVec
	apiBreakerState *prometheus.GaugeVec

	// Reconciliation
	reconcileRuns     *prometheus.CounterVec
	reconcileMembers  *prometheus.CounterVec
	reconcileDuration *prometheus.HistogramVec

	// Ranking and periods
	rankRequests  *prometheus.CounterVec
	rankDuration  *prometheus.HistogramVec
	rollovers     prometheus.Counter
	baselineWipes prometheus.Counter
	snapshots     *prometheus.CounterVec

	// Scheduler
	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	interactions        *prometheus.CounterVec
}

// NewManager creates a metrics manager on its own registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "superlatives",
		buckets:   prometheus.DefBuckets,
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.runtime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.apiRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "game_api",
		Name:      "requests_total",
		Help:      "Game API requests by operation and HTTP status",
	}, []string{"op", "status"})

	m.apiLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "game_api",
		Name:      "request_duration_seconds",
		Help:      "Game API request latency",
		Buckets:   m.buckets,
	}, []string{"op"})

	m.apiRetries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "game_api",
		Name:      "retries_total",
		Help:      "Game API retries after a rate limit response",
	}, []string{"op"})

	m.apiBreakerState = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "game_api",
		Name:      "circuit_state",
		Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
	}, []string{"name"})

	m.reconcileRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "reconcile",
		Name:      "runs_total",
		Help:      "Guild reconciliation runs by outcome",
	}, []string{"guild", "outcome"})

	m.reconcileMembers = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "reconcile",
		Name:      "members_total",
		Help:      "Reconciled members by result (updated, created, failed)",
	}, []string{"guild", "result"})

	m.reconcileDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "reconcile",
		Name:      "duration_seconds",
		Help:      "Guild reconciliation duration",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"guild"})

	m.rankRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "leaderboard",
		Name:      "requests_total",
		Help:      "Leaderboard requests by track, view and outcome",
	}, []string{"track", "view", "outcome"})

	m.rankDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "leaderboard",
		Name:      "rank_duration_seconds",
		Help:      "Time to score and rank a roster",
		Buckets:   m.buckets,
	}, []string{"track"})

	m.rollovers = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "period",
		Name:      "rollovers_total",
		Help:      "Observed active period changes",
	})

	m.baselineWipes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "period",
		Name:      "baseline_wipes_total",
		Help:      "Completed baseline resets after a rollover",
	})

	m.snapshots = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "leaderboard",
		Name:      "snapshots_captured_total",
		Help:      "Persisted standings snapshots by track",
	}, []string{"track"})

	m.jobRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "scheduler",
		Name:      "job_runs_total",
		Help:      "Background job runs by outcome",
	}, []string{"job", "outcome"})

	m.jobDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "scheduler",
		Name:      "job_duration_seconds",
		Help:      "Background job duration",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
	}, []string{"job"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status",
	}, []string{"route", "method", "status"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   m.buckets,
	}, []string{"route", "method"})

	m.interactions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "discord",
		Name:      "interactions_total",
		Help:      "Chat interactions by command",
	}, []string{"command"})
}

// Handler exposes the registry for scraping.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// ─── Game API ──────────────────────────────────────────────────────────────────

// ObserveAPIRequest records one game API round trip. status 0 means no response.
func (m *Manager) ObserveAPIRequest(op string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(op, strconv.Itoa(status)).Inc()
	m.apiLatency.WithLabelValues(op).Observe(d.Seconds())
}

// IncAPIRetry records a rate-limit retry.
func (m *Manager) IncAPIRetry(op string) {
	if m == nil {
		return
	}
	m.apiRetries.WithLabelValues(op).Inc()
}

// SetBreakerState records the breaker state.
func (m *Manager) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.apiBreakerState.WithLabelValues(name).Set(float64(state))
}

// ─── Reconciliation ────────────────────────────────────────────────────────────

// ObserveReconcile records a finished reconciliation run.
func (m *Manager) ObserveReconcile(guild, outcome string, updated, created, failed int, d time.Duration) {
	if m == nil {
		return
	}
	m.reconcileRuns.WithLabelValues(guild, outcome).Inc()
	m.reconcileMembers.WithLabelValues(guild, "updated").Add(float64(updated))
	m.reconcileMembers.WithLabelValues(guild, "created").Add(float64(created))
	m.reconcileMembers.WithLabelValues(guild, "failed").Add(float64(failed))
	m.reconcileDuration.WithLabelValues(guild).Observe(d.Seconds())
}

// ─── Ranking and periods ───────────────────────────────────────────────────────

// ObserveLeaderboard records a served leaderboard request.
func (m *Manager) ObserveLeaderboard(track, view, outcome string) {
	if m == nil {
		return
	}
	m.rankRequests.WithLabelValues(track, view, outcome).Inc()
}

// ObserveRank records ranking latency.
func (m *Manager) ObserveRank(track string, d time.Duration) {
	if m == nil {
		return
	}
	m.rankDuration.WithLabelValues(track).Observe(d.Seconds())
}

// IncRollover records an observed period change.
func (m *Manager) IncRollover() {
	if m == nil {
		return
	}
	m.rollovers.Inc()
}

// IncBaselineWipe records a completed baseline reset.
func (m *Manager) IncBaselineWipe() {
	if m == nil {
		return
	}
	m.baselineWipes.Inc()
}

// IncSnapshot records a persisted snapshot.
func (m *Manager) IncSnapshot(track string) {
	if m == nil {
		return
	}
	m.snapshots.WithLabelValues(track).Inc()
}

// ─── Scheduler ─────────────────────────────────────────────────────────────────

// ObserveJob records a finished background job.
func (m *Manager) ObserveJob(job string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.jobRuns.WithLabelValues(job, outcome).Inc()
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

// ─── HTTP ──────────────────────────────────────────────────────────────────────

// ObserveHTTP records an HTTP request.
func (m *Manager) ObserveHTTP(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// IncInteraction records a received chat command.
func (m *Manager) IncInteraction(command string) {
	if m == nil {
		return
	}
	m.interactions.WithLabelValues(command).Inc()
}
