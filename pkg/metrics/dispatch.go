package metrics

import "github.com/prometheus/client_golang/prometheus"

// DispatchMetrics counts queue outcomes produced by the dispatch worker.
type DispatchMetrics struct {
	sent    prometheus.Counter
	failed  prometheus.Counter
	retried prometheus.Counter
	purged  prometheus.Counter
	expired prometheus.Counter
}

func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      name,
			Help:      help,
		})
	}
	m := &DispatchMetrics{
		sent:    counter("messages_sent_total", "Messages accepted by the gateway."),
		failed:  counter("messages_failed_total", "Messages that exhausted their attempts."),
		retried: counter("messages_retried_total", "Failed sends rescheduled for another attempt."),
		purged:  counter("messages_purged_total", "Terminal messages removed by retention."),
		expired: counter("messages_expired_total", "Queued messages expired by age."),
	}
	reg.MustRegister(m.sent, m.failed, m.retried, m.purged, m.expired)
	return m
}

func (m *DispatchMetrics) AddSent(n int)    { m.add(m.sent, n) }
func (m *DispatchMetrics) AddFailed(n int)  { m.add(m.failed, n) }
func (m *DispatchMetrics) AddRetried(n int) { m.add(m.retried, n) }
func (m *DispatchMetrics) AddPurged(n int)  { m.add(m.purged, n) }
func (m *DispatchMetrics) AddExpired(n int) { m.add(m.expired, n) }

func (m *DispatchMetrics) add(c prometheus.Counter, n int) {
	if m == nil || c == nil || n <= 0 {
		return
	}
	c.Add(float64(n))
}

// RateLimitMetrics counts requests rejected per limiter policy.
type RateLimitMetrics struct {
	blocked *prometheus.CounterVec
}

func NewRateLimitMetrics(reg prometheus.Registerer) *RateLimitMetrics {
	if reg == nil {
		return &RateLimitMetrics{}
	}
	blocked := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rate_limit",
		Name:      "blocked_total",
		Help:      "Requests rejected by the rate limiter.",
	}, []string{"policy"})
	reg.MustRegister(blocked)
	return &RateLimitMetrics{blocked: blocked}
}

func (m *RateLimitMetrics) IncBlocked(policy string) {
	if m == nil || m.blocked == nil {
		return
	}
	m.blocked.WithLabelValues(normalizeLabel(policy)).Inc()
}
