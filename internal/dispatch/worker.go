// Package dispatch drains the message queue through the gateway with pacing.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/mutirao/castracao-backend/internal/gateway"
	"github.com/mutirao/castracao-backend/internal/queue"
	"github.com/mutirao/castracao-backend/pkg/db/models"
	"github.com/mutirao/castracao-backend/pkg/logger"
	"github.com/mutirao/castracao-backend/pkg/metrics"
)

type messageStore interface {
	Policy() queue.Policy
	ClaimNext(ctx context.Context) (*models.Message, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	Release(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, detail string) (queue.FailureOutcome, error)
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int64, error)
	ExpireQueuedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Result summarizes one invocation.
type Result struct {
	Processed int   `json:"processed"`
	Sent      int   `json:"sent"`
	Failed    int   `json:"failed"`
	Removed   int64 `json:"removed"`
	Expired   int64 `json:"expired"`
	Skipped   bool  `json:"skipped,omitempty"`
}

type WorkerParams struct {
	Config  Config
	Store   messageStore
	Sender  gateway.Sender
	Logger  *logger.Logger
	Metrics *metrics.DispatchMetrics
	// Sleep waits between sends; tests replace it to avoid real pauses.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// Worker is the stateless dispatch procedure. RunOnce is safe to call from
// overlapping triggers because every claim is exclusive at the store.
type Worker struct {
	cfg     Config
	store   messageStore
	sender  gateway.Sender
	logg    *logger.Logger
	metrics *metrics.DispatchMetrics
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time
}

func NewWorker(params WorkerParams) (*Worker, error) {
	if params.Store == nil {
		return nil, errors.New("message store is required")
	}
	if params.Sender == nil {
		return nil, errors.New("gateway sender is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	cfg, err := params.Config.withDefaults()
	if err != nil {
		return nil, err
	}
	policyMax := params.Store.Policy().MaxAttempts
	switch {
	case cfg.MaxAttempts == 0:
		cfg.MaxAttempts = policyMax
	case cfg.MaxAttempts != policyMax:
		return nil, fmt.Errorf("max attempts %d does not match queue policy %d", cfg.MaxAttempts, policyMax)
	}
	sleep := params.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Worker{
		cfg:     cfg,
		store:   params.Store,
		sender:  params.Sender,
		logg:    params.Logger,
		metrics: params.Metrics,
		sleep:   sleep,
		now:     now,
	}, nil
}

// RunOnce claims up to BatchCeiling messages, sends each with randomized pacing
// between sends, then runs housekeeping exactly once. Gateway failures are
// contained per message; store failures abort and are returned.
func (w *Worker) RunOnce(ctx context.Context) (Result, error) {
	var result Result
	ctx = w.logg.WithField(ctx, "event", "dispatch.run")

	for result.Processed < w.cfg.BatchCeiling {
		msg, err := w.store.ClaimNext(ctx)
		if err != nil {
			return result, fmt.Errorf("claim next message: %w", err)
		}
		if msg == nil {
			break
		}

		if result.Processed > 0 {
			if err := w.sleep(ctx, w.pacingDelay()); err != nil {
				w.releaseInterrupted(ctx, msg)
				return result, err
			}
		}

		sent, err := w.deliver(ctx, msg)
		if err != nil {
			return result, err
		}
		result.Processed++
		if sent {
			result.Sent++
		} else {
			result.Failed++
		}
	}

	expired, removed, err := w.housekeeping(ctx)
	result.Expired = expired
	result.Removed = removed
	if err != nil {
		return result, err
	}

	w.logg.Info(w.logg.WithFields(ctx, map[string]any{
		"processed": result.Processed,
		"sent":      result.Sent,
		"failed":    result.Failed,
		"removed":   result.Removed,
		"expired":   result.Expired,
	}), "dispatch run complete")
	return result, nil
}

func (w *Worker) deliver(ctx context.Context, msg *models.Message) (bool, error) {
	fields := map[string]any{
		"message_id":   msg.ID.String(),
		"kind":         msg.Kind,
		"attempts":     msg.Attempts,
		"max_attempts": w.cfg.MaxAttempts,
	}
	msgCtx := w.logg.WithFields(ctx, fields)

	sendCtx, cancel := context.WithTimeout(ctx, w.cfg.SendTimeout)
	res := w.sender.Send(sendCtx, gateway.Outbound{ID: msg.ID, Recipient: msg.Recipient, Body: msg.Body})
	cancel()

	if res.OK {
		if err := w.store.MarkSent(ctx, msg.ID); err != nil {
			if errors.Is(err, queue.ErrNotClaimed) || errors.Is(err, queue.ErrNotFound) {
				w.logg.Warn(w.logg.WithField(msgCtx, "error", err.Error()), "message changed state during send")
				return true, nil
			}
			return false, fmt.Errorf("mark message %s sent: %w", msg.ID, err)
		}
		w.metrics.AddSent(1)
		w.logg.Info(w.logg.WithField(msgCtx, "status", "sent"), "message sent")
		return true, nil
	}

	detail := "gateway send failed"
	if res.Err != nil {
		detail = res.Err.Error()
	}
	outcome, err := w.store.MarkFailed(ctx, msg.ID, detail)
	if err != nil {
		if errors.Is(err, queue.ErrNotClaimed) || errors.Is(err, queue.ErrNotFound) {
			w.logg.Warn(w.logg.WithField(msgCtx, "error", err.Error()), "message changed state during send")
			return false, nil
		}
		return false, fmt.Errorf("mark message %s failed: %w", msg.ID, err)
	}

	failCtx := w.logg.WithFields(msgCtx, map[string]any{
		"attempts": outcome.Attempts,
		"error":    detail,
	})
	if outcome.Terminal {
		w.metrics.AddFailed(1)
		failCtx = w.logg.WithFields(failCtx, map[string]any{
			"event":  "dispatch.message.failed_permanently",
			"status": "failed",
		})
		w.logg.Error(failCtx, "message delivery failed permanently", res.Err)
		return false, nil
	}
	w.metrics.AddRetried(1)
	failCtx = w.logg.WithFields(failCtx, map[string]any{
		"status":          "queued",
		"next_attempt_at": outcome.NextAttemptAt.Format(time.RFC3339),
		"permanent_hint":  isPermanent(res.Err),
	})
	w.logg.Warn(failCtx, "message delivery failed; will retry")
	return false, nil
}

// housekeeping expires stale queued rows and purges old terminal rows. Both run
// even if one fails; the errors are combined.
func (w *Worker) housekeeping(ctx context.Context) (int64, int64, error) {
	var (
		expired int64
		errs    error
	)
	if w.cfg.MessageTTL > 0 {
		n, err := w.store.ExpireQueuedBefore(ctx, w.now().Add(-w.cfg.MessageTTL))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire queued messages: %w", err))
		} else {
			expired = n
			w.metrics.AddExpired(int(n))
		}
	}

	removed, err := w.store.PurgeOlderThan(ctx, w.cfg.RetentionWindow)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("purge messages: %w", err))
		removed = 0
	} else {
		w.metrics.AddPurged(int(removed))
	}
	return expired, removed, errs
}

// releaseInterrupted puts a claimed but unsent message back in the queue with its
// attempts unchanged, so a canceled invocation neither strands it in sending nor
// spends one of its attempts.
func (w *Worker) releaseInterrupted(ctx context.Context, msg *models.Message) {
	if err := w.store.Release(context.WithoutCancel(ctx), msg.ID); err != nil {
		w.logg.Error(w.logg.WithMessageID(ctx, msg.ID.String()), "failed to release interrupted message", err)
	}
}

func (w *Worker) pacingDelay() time.Duration {
	span := w.cfg.MaxDelay - w.cfg.MinDelay
	if span <= 0 {
		return w.cfg.MinDelay
	}
	return w.cfg.MinDelay + time.Duration(rand.Int63n(int64(span)+1))
}

func isPermanent(err error) bool {
	var derr *gateway.DeliveryError
	return errors.As(err, &derr) && derr.Permanent
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
