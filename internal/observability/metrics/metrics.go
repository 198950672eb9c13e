// Package metrics exposes prometheus instrumentation for the generation pass.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SchedulerMetrics counts generation-pass outcomes.
type SchedulerMetrics struct {
	passTotal        prometheus.Counter
	passDuration     prometheus.Histogram
	profilesTotal    *prometheus.CounterVec
	profilesFinished prometheus.Counter
}

var (
	schedulerOnce sync.Once
	scheduler     *SchedulerMetrics
)

// Outcome labels for generated profiles.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// Scheduler returns the process-wide scheduler metrics, registering them on
// first use.
func Scheduler() *SchedulerMetrics {
	schedulerOnce.Do(func() {
		scheduler = newSchedulerMetrics(prometheus.DefaultRegisterer)
	})
	return scheduler
}

func newSchedulerMetrics(reg prometheus.Registerer) *SchedulerMetrics {
	factory := promauto.With(reg)
	return &SchedulerMetrics{
		passTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "facturo_scheduler_pass_total",
			Help: "Number of completed generation passes.",
		}),
		passDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "facturo_scheduler_pass_duration_seconds",
			Help:    "Duration of generation passes.",
			Buckets: prometheus.DefBuckets,
		}),
		profilesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "facturo_scheduler_profiles_total",
			Help: "Recurring profiles processed by outcome.",
		}, []string{"outcome"}),
		profilesFinished: factory.NewCounter(prometheus.CounterOpts{
			Name: "facturo_scheduler_profiles_finished_total",
			Help: "Recurring profiles that reached their end date.",
		}),
	}
}

func (m *SchedulerMetrics) IncPass()                        { m.passTotal.Inc() }
func (m *SchedulerMetrics) ObservePass(d time.Duration)     { m.passDuration.Observe(d.Seconds()) }
func (m *SchedulerMetrics) IncProfile(outcome string)       { m.profilesTotal.WithLabelValues(outcome).Inc() }
func (m *SchedulerMetrics) IncFinished()                    { m.profilesFinished.Inc() }
