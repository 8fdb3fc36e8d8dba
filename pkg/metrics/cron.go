package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mutirao"

// JobOutcome labels how a scheduled job run ended.
type JobOutcome string

const (
	JobSucceeded JobOutcome = "success"
	JobFailed    JobOutcome = "failure"
	// JobSkipped means another instance held the cron lock for the cycle.
	JobSkipped JobOutcome = "skipped"
)

// CronJobMetrics exports run counts, durations and the last success time of
// each cron job. A nil value discards everything.
type CronJobMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	now         func() time.Time
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return nil
	}
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_runs_total",
			Help:      "Cron job runs by outcome.",
		}, []string{"job", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_duration_seconds",
			Help:      "Wall time of executed cron jobs.",
			Buckets:   []float64{0.05, 0.25, 1, 2.5, 5, 15, 30, 60, 120},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run, for staleness alerts.",
		}, []string{"job"}),
		now: time.Now,
	}
	reg.MustRegister(m.runs, m.duration, m.lastSuccess)
	return m
}

// Record counts one run. Skipped runs carry no duration.
func (c *CronJobMetrics) Record(job string, outcome JobOutcome, took time.Duration) {
	if c == nil {
		return
	}
	if job == "" {
		job = "unknown"
	}
	c.runs.WithLabelValues(job, string(outcome)).Inc()
	if outcome == JobSkipped {
		return
	}
	c.duration.WithLabelValues(job).Observe(took.Seconds())
	if outcome == JobSucceeded {
		c.lastSuccess.WithLabelValues(job).Set(float64(c.now().Unix()))
	}
}
