package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	dispatchJob := &stubJob{name: "dispatch"}
	cleanupJob := &stubJob{name: "otp_cleanup"}
	registry, err := NewRegistry(dispatchJob, nil, cleanupJob)
	require.NoError(t, err)

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	assert.Same(t, dispatchJob, jobs[0])
	assert.Same(t, cleanupJob, jobs[1])
	assert.Equal(t, []string{"dispatch", "otp_cleanup"}, registry.Names())

	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0])
}

func TestRegistryRejectsDuplicateAndBlankNames(t *testing.T) {
	_, err := NewRegistry(&stubJob{name: "dispatch"}, &stubJob{name: "dispatch"})
	assert.Error(t, err)

	registry, err := NewRegistry()
	require.NoError(t, err)
	assert.Error(t, registry.Register(&stubJob{name: "  "}))
	assert.Error(t, registry.Register(nil))
	assert.Empty(t, registry.Jobs())
}
