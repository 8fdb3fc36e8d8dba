package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestDispatchMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDispatchMetrics(reg)
	m.AddSent(3)
	m.AddFailed(1)
	m.AddRetried(2)
	m.AddPurged(0)
	m.AddExpired(-1)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	expect := map[string]float64{
		"mutirao_dispatch_messages_sent_total":    3,
		"mutirao_dispatch_messages_failed_total":  1,
		"mutirao_dispatch_messages_retried_total": 2,
		"mutirao_dispatch_messages_purged_total":  0,
		"mutirao_dispatch_messages_expired_total": 0,
	}
	for name, want := range expect {
		mf := findMetricFamily(mfs, name)
		if mf == nil {
			t.Fatalf("metric %q not found", name)
		}
		if got := mf.GetMetric()[0].GetCounter().GetValue(); got != want {
			t.Fatalf("%s: expected %f, got %f", name, want, got)
		}
	}
}

func TestRateLimitMetricsBlockedPerPolicy(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRateLimitMetrics(reg)
	m.IncBlocked("login_ip")
	m.IncBlocked("login_ip")
	m.IncBlocked("register_ip")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "mutirao_rate_limit_blocked_total", "policy", "login_ip"); err != nil || got != 2 {
		t.Fatalf("expected login_ip=2, got %f (err=%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "mutirao_rate_limit_blocked_total", "policy", "register_ip"); err != nil || got != 1 {
		t.Fatalf("expected register_ip=1, got %f (err=%v)", got, err)
	}
}
