package cron

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mutirao/castracao-backend/pkg/logger"
	"github.com/mutirao/castracao-backend/pkg/metrics"
)

type fakeLock struct {
	acquired bool
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error { f.acquired = false; return nil }

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

type slowJob struct {
	testJob
	every time.Duration
}

func (s *slowJob) Every() time.Duration { return s.every }

type panicJob struct{}

func (panicJob) Name() string { return "panics" }

func (panicJob) Run(context.Context) error { panic("nil map") }

func newTestService(t *testing.T, lock Lock, reg prometheus.Registerer, now func() time.Time, jobs ...Job) *Service {
	t.Helper()
	registry, err := NewRegistry(jobs...)
	require.NoError(t, err)
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
		Now:      now,
	})
	require.NoError(t, err)
	return service
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	success := &testJob{name: "success"}
	failure := &testJob{name: "fail", err: errors.New("boom")}
	reg := prometheus.NewRegistry()
	service := newTestService(t, &fakeLock{}, reg, nil, success, failure, panicJob{})

	require.NoError(t, service.runCycle(context.Background()))
	assert.Equal(t, 1, success.runs)
	assert.Equal(t, 1, failure.runs)

	expected := `
# HELP mutirao_cron_job_runs_total Cron job runs by outcome.
# TYPE mutirao_cron_job_runs_total counter
mutirao_cron_job_runs_total{job="fail",outcome="failure"} 1
mutirao_cron_job_runs_total{job="panics",outcome="failure"} 1
mutirao_cron_job_runs_total{job="success",outcome="success"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "mutirao_cron_job_runs_total"))
}

func TestServiceRunCycleSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "message-dispatch"}
	reg := prometheus.NewRegistry()
	service := newTestService(t, &fakeLock{acquired: true}, reg, nil, job)

	require.NoError(t, service.runCycle(context.Background()))
	assert.Zero(t, job.runs)

	expected := `
# HELP mutirao_cron_job_runs_total Cron job runs by outcome.
# TYPE mutirao_cron_job_runs_total counter
mutirao_cron_job_runs_total{job="message-dispatch",outcome="skipped"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "mutirao_cron_job_runs_total"))
}

func TestServiceRunCycleHonorsJobCadence(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	dispatchJob := &testJob{name: "message-dispatch"}
	cleanup := &slowJob{testJob: testJob{name: "otp-cleanup"}, every: time.Hour}
	service := newTestService(t, &fakeLock{}, prometheus.NewRegistry(), func() time.Time { return now }, dispatchJob, cleanup)

	for i := 0; i < 3; i++ {
		require.NoError(t, service.runCycle(context.Background()))
		now = now.Add(time.Minute)
	}
	assert.Equal(t, 3, dispatchJob.runs)
	assert.Equal(t, 1, cleanup.runs, "first tick only")

	now = now.Add(time.Hour)
	require.NoError(t, service.runCycle(context.Background()))
	assert.Equal(t, 4, dispatchJob.runs)
	assert.Equal(t, 2, cleanup.runs)
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "message-dispatch"}
	service := newTestService(t, &fakeLock{}, nil, nil, job)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := service.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, job.runs, "first cycle runs immediately")
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{Lock: &fakeLock{}})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Logger: logger.Nop()})
	assert.Error(t, err)
}
