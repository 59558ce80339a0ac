package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// JobMetrics counts background job activity for the dispatcher and the
// follow-up escalation engine. Label "job" is "dispatch" or "followup".
type JobMetrics struct {
	Runs        *prometheus.CounterVec
	SkippedRuns *prometheus.CounterVec
	Sends       *prometheus.CounterVec
	SendErrors  *prometheus.CounterVec
	DedupSkips  *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec
}

// NewJobMetrics registers the job collectors on reg. Production wiring
// uses the default registerer; tests pass their own registry.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	m := &JobMetrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "scheduler",
			Name:      "runs_total",
			Help:      "Completed job runs.",
		}, []string{"job"}),
		SkippedRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "scheduler",
			Name:      "runs_skipped_total",
			Help:      "Ticks skipped because the previous run was still in flight.",
		}, []string{"job"}),
		Sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "scheduler",
			Name:      "sends_total",
			Help:      "Messages handed to the notifier successfully.",
		}, []string{"job"}),
		SendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "scheduler",
			Name:      "send_errors_total",
			Help:      "Notifier failures; the subscription stays due and retries.",
		}, []string{"job"}),
		DedupSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "scheduler",
			Name:      "dedup_skips_total",
			Help:      "Sends suppressed by the dispatch ledger.",
		}, []string{"job"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Subsystem: "scheduler",
			Name:      "run_dur_ms",
			Help:      "Job run latency in milliseconds.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		}, []string{"job"}),
	}
	reg.MustRegister(m.Runs, m.SkippedRuns, m.Sends, m.SendErrors, m.DedupSkips, m.RunDuration)
	return m
}

func newDefaultJobMetrics() *JobMetrics {
	return NewJobMetrics(prometheus.DefaultRegisterer)
}

var Module = fx.Options(
	fx.Provide(newDefaultJobMetrics),
)
