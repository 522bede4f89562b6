// Package metrics exposes Prometheus instrumentation for contact matching
// and background jobs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the matching engine's collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	// Per-list outcomes of single-contact matching
	ListOutcomes *prometheus.CounterVec

	// Matches written
	MatchesCreated prometheus.Counter

	// Duration of one single-contact unit, by result
	UnitLatency *prometheus.HistogramVec

	// Background jobs finished, by kind and status
	JobsFinished *prometheus.CounterVec

	// Jobs waiting for a worker
	QueueDepth prometheus.Gauge
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ListOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rightimpact_match_list_outcomes_total",
			Help: "Per-list outcomes of single-contact matching",
		}, []string{"outcome"}), // no_match, ambiguous, recorded, duplicate, target_missing

		MatchesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "rightimpact_matches_created_total",
			Help: "Contact matches written",
		}),

		UnitLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rightimpact_match_unit_duration_seconds",
			Help:    "Duration of matching one source contact, including its transaction",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"result"}), // ok, error

		JobsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rightimpact_jobs_finished_total",
			Help: "Background matching jobs finished by kind and status",
		}, []string{"kind", "status"}),

		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "rightimpact_job_queue_depth",
			Help: "Jobs accepted but not yet picked up by a worker",
		}),
	}
}

// ObserveListOutcome counts one per-list outcome.
func (m *Metrics) ObserveListOutcome(outcome string) {
	if m != nil {
		m.ListOutcomes.WithLabelValues(outcome).Inc()
	}
}

// AddMatches counts newly written matches.
func (m *Metrics) AddMatches(n int) {
	if m != nil && n > 0 {
		m.MatchesCreated.Add(float64(n))
	}
}

// ObserveUnit records the latency of a single-contact unit.
func (m *Metrics) ObserveUnit(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.UnitLatency.WithLabelValues(result).Observe(d.Seconds())
}

// JobFinished counts a finished job.
func (m *Metrics) JobFinished(kind, status string) {
	if m != nil {
		m.JobsFinished.WithLabelValues(kind, status).Inc()
	}
}

// SetQueueDepth reports the number of waiting jobs.
func (m *Metrics) SetQueueDepth(n int) {
	if m != nil {
		m.QueueDepth.Set(float64(n))
	}
}
