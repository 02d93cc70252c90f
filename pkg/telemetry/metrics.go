package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for reconciliation runs. A disabled
// instance is a safe no-op.
type Metrics struct {
	enabled bool

	runsStarted       *prometheus.CounterVec
	runsCompleted     *prometheus.CounterVec
	runDuration       prometheus.Histogram
	stepsExecuted     *prometheus.CounterVec
	domainUnavailable *prometheus.CounterVec
	driftEntries      *prometheus.GaugeVec
	excludedSteps     prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates the metrics collector.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return &Metrics{}
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		enabled:  true,
		registry: registry,

		runsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_started_total",
				Help:      "Total number of reconciliation runs started",
			},
			[]string{"mode"},
		),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of reconciliation runs completed, by overall status",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of reconciliation runs",
				Buckets:   prometheus.DefBuckets,
			},
		),
		stepsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_executed_total",
				Help:      "Total plan steps executed, by domain, action and outcome",
			},
			[]string{"domain", "action", "outcome"},
		),
		domainUnavailable: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "domain_unavailable_total",
				Help:      "Total observations that failed because a domain was unreachable",
			},
			[]string{"domain"},
		),
		driftEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "drift_entries",
				Help:      "Missing plus changed entries found by the last diff, per domain",
			},
			[]string{"domain", "kind"},
		),
		excludedSteps: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "excluded_steps_total",
				Help:      "Total plan steps removed by exclusion patterns",
			},
		),
	}

	registry.MustRegister(
		m.runsStarted,
		m.runsCompleted,
		m.runDuration,
		m.stepsExecuted,
		m.domainUnavailable,
		m.driftEntries,
		m.excludedSteps,
	)

	return m
}

// RunStarted records the start of a run.
func (m *Metrics) RunStarted(mode string) {
	if m.enabled {
		m.runsStarted.WithLabelValues(mode).Inc()
	}
}

// RunCompleted records a finished run with its overall status and duration.
func (m *Metrics) RunCompleted(status string, elapsed time.Duration) {
	if m.enabled {
		m.runsCompleted.WithLabelValues(status).Inc()
		m.runDuration.Observe(elapsed.Seconds())
	}
}

// StepExecuted records one executed plan step.
func (m *Metrics) StepExecuted(domain, action, outcome string) {
	if m.enabled {
		m.stepsExecuted.WithLabelValues(domain, action, outcome).Inc()
	}
}

// DomainUnavailable records a failed domain observation.
func (m *Metrics) DomainUnavailable(domain string) {
	if m.enabled {
		m.domainUnavailable.WithLabelValues(domain).Inc()
	}
}

// Drift records the drift counts of a domain after a diff.
func (m *Metrics) Drift(domain string, missing, changed int) {
	if m.enabled {
		m.driftEntries.WithLabelValues(domain, "missing").Set(float64(missing))
		m.driftEntries.WithLabelValues(domain, "changed").Set(float64(changed))
	}
}

// StepsExcluded records steps removed by exclusion filtering.
func (m *Metrics) StepsExcluded(count int) {
	if m.enabled {
		m.excludedSteps.Add(float64(count))
	}
}

// Handler returns the HTTP handler exposing the registry, or nil when
// metrics are disabled.
func (m *Metrics) Handler() http.Handler {
	if !m.enabled {
		return nil
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
