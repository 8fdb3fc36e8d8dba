// Package queue is the durable outbound message queue. Producers enqueue, the
// dispatch worker claims one row at a time and records the outcome.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "github.com/mutirao/castracao-backend/pkg/db"
	"github.com/mutirao/castracao-backend/pkg/db/models"
	"github.com/mutirao/castracao-backend/pkg/enums"
	"github.com/mutirao/castracao-backend/pkg/logger"
	"github.com/mutirao/castracao-backend/pkg/pagination"
)

const (
	maxErrorLength = 1000
	// maxClaimScans bounds how many stale rows a single ClaimNext may retire before giving up.
	maxClaimScans = 16

	staleClaimError = "claim expired before a terminal transition"
	expiredError    = "expired before delivery"
)

var (
	ErrInvalidInput = errors.New("recipient and body are required")
	ErrNotFound     = errors.New("message not found")
	// ErrNotClaimed means the message left the sending state before the caller finished with it.
	ErrNotClaimed = errors.New("message is not claimed")
	// ErrNotRequeueable is returned when only failed or expired messages may be requeued.
	ErrNotRequeueable = errors.New("message cannot be requeued")
)

// EnqueueInput describes a message to deliver.
type EnqueueInput struct {
	Recipient      string
	Body           string
	Kind           enums.MessageKind
	DedupeKey      string
	RegistrationID *uuid.UUID
	// NotBefore delays the first attempt; zero means immediately.
	NotBefore time.Time
}

// FailureOutcome reports what MarkFailed decided.
type FailureOutcome struct {
	Attempts      int
	Terminal      bool
	NextAttemptAt time.Time
}

// Enqueuer is the producer-side surface.
type Enqueuer interface {
	Enqueue(ctx context.Context, in EnqueueInput) (*models.Message, error)
	EnqueueTx(ctx context.Context, tx *gorm.DB, in EnqueueInput) (*models.Message, error)
}

type StoreParams struct {
	DB     *gorm.DB
	Policy Policy
	Logger *logger.Logger
	Now    func() time.Time
}

// Store persists messages and owns every status transition.
type Store struct {
	db     *gorm.DB
	policy Policy
	logg   *logger.Logger
	now    func() time.Time
}

func NewStore(params StoreParams) (*Store, error) {
	if params.DB == nil {
		return nil, errors.New("db is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Store{
		db:     params.DB,
		policy: params.Policy.withDefaults(),
		logg:   logg,
		now:    now,
	}, nil
}

// Policy returns the effective retry policy.
func (s *Store) Policy() Policy {
	return s.policy
}

// Enqueue stores a new queued message.
func (s *Store) Enqueue(ctx context.Context, in EnqueueInput) (*models.Message, error) {
	return s.EnqueueTx(ctx, s.db.WithContext(ctx), in)
}

// EnqueueTx stores a new queued message using the caller's transaction. When a
// dedupe key is given and already present, the existing message is returned untouched.
func (s *Store) EnqueueTx(ctx context.Context, tx *gorm.DB, in EnqueueInput) (*models.Message, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	in.Recipient = strings.TrimSpace(in.Recipient)
	if in.Recipient == "" || strings.TrimSpace(in.Body) == "" {
		return nil, ErrInvalidInput
	}
	if in.Kind == "" {
		in.Kind = enums.MessageKindStatusChanged
	}
	if !in.Kind.IsValid() {
		return nil, fmt.Errorf("invalid message kind %q", in.Kind)
	}

	now := s.now()
	next := now
	if in.NotBefore.After(now) {
		next = in.NotBefore.UTC()
	}
	msg := &models.Message{
		Recipient:      in.Recipient,
		Body:           in.Body,
		Kind:           in.Kind,
		Status:         enums.MessageStatusQueued,
		RegistrationID: in.RegistrationID,
		NextAttemptAt:  next,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if key := strings.TrimSpace(in.DedupeKey); key != "" {
		msg.DedupeKey = &key
	}

	q := tx.WithContext(ctx)
	if msg.DedupeKey != nil {
		q = q.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "dedupe_key"}}, DoNothing: true})
	}
	res := q.Create(msg)
	if res.Error != nil {
		return nil, fmt.Errorf("insert message: %w", res.Error)
	}
	if res.RowsAffected == 0 && msg.DedupeKey != nil {
		var existing models.Message
		if err := tx.WithContext(ctx).Where("dedupe_key = ?", *msg.DedupeKey).Take(&existing).Error; err != nil {
			return nil, fmt.Errorf("load deduplicated message: %w", err)
		}
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"message_id": existing.ID.String(),
			"dedupe_key": *msg.DedupeKey,
		}), "message already enqueued")
		return &existing, nil
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID.String(),
		"kind":       msg.Kind,
	}), "message enqueued")
	return msg, nil
}

// ClaimNext atomically moves one ready message to sending and returns it, or nil
// when nothing is ready. Ready means queued (or retryable failed) with
// next_attempt_at in the past, or sending with a claim older than StaleAfter.
// Each claim runs in its own short transaction holding a SKIP LOCKED row lock,
// and the status change is conditional on the observed state so two claimers
// can never both win the same row.
func (s *Store) ClaimNext(ctx context.Context) (*models.Message, error) {
	for i := 0; i < maxClaimScans; i++ {
		claimed, retry, err := s.claimOnce(ctx)
		if err != nil {
			return nil, err
		}
		if !retry {
			return claimed, nil
		}
	}
	return nil, nil
}

func (s *Store) claimOnce(ctx context.Context) (*models.Message, bool, error) {
	var (
		claimed *models.Message
		retry   bool
	)
	err := dbpkg.RunInTx(ctx, s.db, func(tx *gorm.DB) error {
		now := s.now()
		staleBefore := now.Add(-s.policy.StaleAfter)

		var candidate models.Message
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where(
				"(status = ? AND next_attempt_at <= ?) OR (status = ? AND attempts < ? AND next_attempt_at <= ?) OR (status = ? AND claimed_at <= ?)",
				enums.MessageStatusQueued, now,
				enums.MessageStatusFailed, s.policy.MaxAttempts, now,
				enums.MessageStatusSending, staleBefore,
			).
			Order("next_attempt_at ASC").
			Order("created_at ASC").
			Limit(1).
			Find(&candidate).Error
		if err != nil {
			return fmt.Errorf("select claimable message: %w", err)
		}
		if candidate.ID == uuid.Nil {
			return nil
		}

		updates := map[string]any{
			"status":     enums.MessageStatusSending,
			"claimed_at": now,
			"updated_at": now,
		}
		attempts := candidate.Attempts
		retire := false
		if candidate.Status == enums.MessageStatusSending {
			// A worker died mid-send; the abandoned claim counts as a failed attempt.
			attempts++
			updates["attempts"] = attempts
			updates["last_error"] = staleClaimError
			if attempts >= s.policy.MaxAttempts {
				retire = true
				updates["status"] = enums.MessageStatusFailed
				updates["claimed_at"] = nil
				updates["finished_at"] = now
			}
		}

		res := tx.Model(&models.Message{}).
			Where("id = ? AND status = ? AND attempts = ?", candidate.ID, candidate.Status, candidate.Attempts).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("claim message: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			retry = true
			return nil
		}
		if retire {
			s.logg.Error(s.logg.WithFields(ctx, map[string]any{
				"event":      "dispatch.message.failed_permanently",
				"message_id": candidate.ID.String(),
				"attempts":   attempts,
			}), "stale claim exhausted attempts", errors.New(staleClaimError))
			retry = true
			return nil
		}

		candidate.Status = enums.MessageStatusSending
		candidate.Attempts = attempts
		candidate.ClaimedAt = &now
		candidate.UpdatedAt = now
		claimed = &candidate
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return claimed, retry, nil
}

// MarkSent finishes a claimed message successfully.
func (s *Store) MarkSent(ctx context.Context, id uuid.UUID) error {
	now := s.now()
	res := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND status = ?", id, enums.MessageStatusSending).
		Updates(map[string]any{
			"status":      enums.MessageStatusSent,
			"last_error":  nil,
			"claimed_at":  nil,
			"finished_at": now,
			"updated_at":  now,
		})
	if res.Error != nil {
		return fmt.Errorf("mark message sent: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.missingOrUnclaimed(ctx, id)
	}
	return nil
}

// Release hands a claimed message back to the queue without counting an
// attempt. Used when an invocation stops before the message was sent.
func (s *Store) Release(ctx context.Context, id uuid.UUID) error {
	now := s.now()
	res := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND status = ?", id, enums.MessageStatusSending).
		Updates(map[string]any{
			"status":          enums.MessageStatusQueued,
			"claimed_at":      nil,
			"next_attempt_at": now,
			"updated_at":      now,
		})
	if res.Error != nil {
		return fmt.Errorf("release message: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.missingOrUnclaimed(ctx, id)
	}
	return nil
}

// MarkFailed records a failed attempt. Below MaxAttempts the message goes back to
// queued with an exponential delay; at MaxAttempts it becomes terminally failed.
func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, detail string) (FailureOutcome, error) {
	var outcome FailureOutcome
	err := dbpkg.RunInTx(ctx, s.db, func(tx *gorm.DB) error {
		var msg models.Message
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			Take(&msg).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load message: %w", err)
		}
		if msg.Status != enums.MessageStatusSending {
			return ErrNotClaimed
		}

		now := s.now()
		outcome.Attempts = msg.Attempts + 1
		updates := map[string]any{
			"attempts":   outcome.Attempts,
			"last_error": truncate(detail),
			"claimed_at": nil,
			"updated_at": now,
		}
		if outcome.Attempts >= s.policy.MaxAttempts {
			outcome.Terminal = true
			updates["status"] = enums.MessageStatusFailed
			updates["finished_at"] = now
		} else {
			outcome.NextAttemptAt = now.Add(s.policy.Backoff(outcome.Attempts))
			updates["status"] = enums.MessageStatusQueued
			updates["next_attempt_at"] = outcome.NextAttemptAt
		}

		res := tx.Model(&models.Message{}).
			Where("id = ? AND status = ? AND attempts = ?", id, enums.MessageStatusSending, msg.Attempts).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("mark message failed: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotClaimed
		}
		return nil
	})
	if err != nil {
		return FailureOutcome{}, err
	}
	return outcome, nil
}

// PurgeOlderThan deletes terminal messages finished before now-retention.
// Queued and sending rows are never touched.
func (s *Store) PurgeOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	if retention < 0 {
		return 0, fmt.Errorf("retention must be non-negative")
	}
	cutoff := s.now().Add(-retention)
	res := s.db.WithContext(ctx).
		Where("status IN ? AND COALESCE(finished_at, created_at) < ?", enums.TerminalMessageStatuses, cutoff).
		Delete(&models.Message{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge messages: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ExpireQueuedBefore moves queued messages created before cutoff to expired.
func (s *Store) ExpireQueuedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	now := s.now()
	res := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("status = ? AND created_at < ?", enums.MessageStatusQueued, cutoff).
		Updates(map[string]any{
			"status":      enums.MessageStatusExpired,
			"last_error":  expiredError,
			"finished_at": now,
			"updated_at":  now,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("expire messages: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Get loads one message.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var msg models.Message
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListParams filters the admin listing.
type ListParams struct {
	Status *enums.MessageStatus
	pagination.Params
}

// List pages through messages newest first.
func (s *Store) List(ctx context.Context, params ListParams) (pagination.Page[models.Message], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[models.Message]{}, err
	}

	q := s.db.WithContext(ctx).Model(&models.Message{})
	if params.Status != nil {
		q = q.Where("status = ?", *params.Status)
	}
	if cursor != nil {
		q = q.Where("((created_at < ?) OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Message
	if err := q.Order("created_at DESC").Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error; err != nil {
		return pagination.Page[models.Message]{}, fmt.Errorf("list messages: %w", err)
	}
	return pagination.BuildPage(rows, params.Limit, func(m models.Message) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	}), nil
}

// Requeue gives a failed or expired message a fresh set of attempts.
func (s *Store) Requeue(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	now := s.now()
	res := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND status IN ?", id, []enums.MessageStatus{enums.MessageStatusFailed, enums.MessageStatusExpired}).
		Updates(map[string]any{
			"status":          enums.MessageStatusQueued,
			"attempts":        0,
			"next_attempt_at": now,
			"claimed_at":      nil,
			"finished_at":     nil,
			"updated_at":      now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("requeue message: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrNotRequeueable
	}
	return s.Get(ctx, id)
}

// CountByStatus reports queue depth per status.
func (s *Store) CountByStatus(ctx context.Context) (map[enums.MessageStatus]int64, error) {
	var rows []struct {
		Status enums.MessageStatus
		Total  int64
	}
	if err := s.db.WithContext(ctx).Model(&models.Message{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}
	out := make(map[enums.MessageStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}

func (s *Store) missingOrUnclaimed(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return ErrNotClaimed
}

func truncate(detail string) string {
	detail = strings.TrimSpace(detail)
	if len(detail) <= maxErrorLength {
		return detail
	}
	cut := maxErrorLength
	for cut > 0 && !utf8.RuneStart(detail[cut]) {
		cut--
	}
	return detail[:cut]
}
