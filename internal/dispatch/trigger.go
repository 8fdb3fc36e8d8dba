package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/mutirao/castracao-backend/pkg/logger"
)

// Lock guards a run so duplicate triggers collapse into one.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LockFactory returns a fresh lock per invocation; lock values track their own owner token.
type LockFactory func() (Lock, error)

// Runner is what the trigger endpoint and the cron job call.
type Runner interface {
	RunOnce(ctx context.Context) (Result, error)
}

// Trigger wraps the worker with an optional exclusive lock.
type Trigger struct {
	worker  Runner
	newLock LockFactory
	logg    *logger.Logger
}

// NewTrigger builds a trigger. A nil factory runs without a lock and relies on
// the store's exclusive claims alone.
func NewTrigger(worker Runner, newLock LockFactory, logg *logger.Logger) (*Trigger, error) {
	if worker == nil {
		return nil, errors.New("worker is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Trigger{worker: worker, newLock: newLock, logg: logg}, nil
}

// RunOnce executes one worker invocation, or reports Skipped when another
// invocation holds the lock.
func (t *Trigger) RunOnce(ctx context.Context) (Result, error) {
	if t.newLock == nil {
		return t.worker.RunOnce(ctx)
	}
	lock, err := t.newLock()
	if err != nil {
		return Result{}, fmt.Errorf("build dispatch lock: %w", err)
	}
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("acquire dispatch lock: %w", err)
	}
	if !acquired {
		t.logg.Info(ctx, "dispatch already running; skipping trigger")
		return Result{Skipped: true}, nil
	}
	defer func() {
		if relErr := lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			t.logg.Error(ctx, "failed to release dispatch lock", relErr)
		}
	}()
	return t.worker.RunOnce(ctx)
}

// Job adapts a Runner to the cron registry.
type Job struct {
	runner Runner
	logg   *logger.Logger
}

func NewJob(runner Runner, logg *logger.Logger) (*Job, error) {
	if runner == nil {
		return nil, errors.New("runner is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Job{runner: runner, logg: logg}, nil
}

func (j *Job) Name() string { return "message-dispatch" }

func (j *Job) Run(ctx context.Context) error {
	result, err := j.runner.RunOnce(ctx)
	if err != nil {
		return err
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"processed": result.Processed,
		"removed":   result.Removed,
		"skipped":   result.Skipped,
	}), "dispatch job finished")
	return nil
}
