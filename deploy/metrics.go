package deploy

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments deployment runs. All methods are nil-safe so the
// engine can run without a registry (e.g. in tests).
type Metrics struct {
	runsTotal        *prometheus.CounterVec
	resourcesCreated *prometheus.CounterVec
	rollbacksTotal   prometheus.Counter
	orphansTotal     prometheus.Counter
	runDuration      prometheus.Histogram
	phaseDuration    *prometheus.HistogramVec
}

// NewMetrics creates and registers the engine's metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wsctl",
			Name:      "runs_total",
			Help:      "Deployment runs by terminal status.",
		}, []string{"status"}),
		resourcesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wsctl",
			Name:      "resources_created_total",
			Help:      "Remote resources created, by kind.",
		}, []string{"kind"}),
		rollbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wsctl",
			Name:      "rollbacks_total",
			Help:      "Rollback passes executed.",
		}),
		orphansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wsctl",
			Name:      "rollback_orphans_total",
			Help:      "Resources left orphaned by partial rollbacks.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wsctl",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of deployment runs.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wsctl",
			Name:      "phase_duration_seconds",
			Help:      "Duration of individual run phases.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"phase"}),
	}
	reg.MustRegister(m.runsTotal, m.resourcesCreated, m.rollbacksTotal,
		m.orphansTotal, m.runDuration, m.phaseDuration)
	return m
}

// ObserveRun records a completed run.
func (m *Metrics) ObserveRun(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(d.Seconds())
}

// ObservePhase records a completed phase.
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// ObserveCreations records the resources a run created, by kind.
func (m *Metrics) ObserveCreations(entries []LedgerEntry) {
	if m == nil {
		return
	}
	for _, e := range entries {
		m.resourcesCreated.WithLabelValues(string(e.Kind)).Inc()
	}
}

// ObserveRollback records a rollback pass and its orphan count.
func (m *Metrics) ObserveRollback(report *RollbackReport) {
	if m == nil || report == nil {
		return
	}
	m.rollbacksTotal.Inc()
	m.orphansTotal.Add(float64(report.Failed))
}
