// Package messaging handles events posted by the messaging provider.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mutirao/castracao-backend/internal/queue"
	dbpkg "github.com/mutirao/castracao-backend/pkg/db"
	"github.com/mutirao/castracao-backend/pkg/db/models"
	"github.com/mutirao/castracao-backend/pkg/enums"
	pkgerrors "github.com/mutirao/castracao-backend/pkg/errors"
	"github.com/mutirao/castracao-backend/pkg/logger"
	"github.com/mutirao/castracao-backend/pkg/phone"
)

const EventMessageReceived = "message.received"

const replyAckBody = "Recebemos sua mensagem. A equipe do mutirão responderá em breve."

// Event is the provider envelope.
type Event struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// InboundMessage is the data of a message.received event.
type InboundMessage struct {
	From       string    `json:"from"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

// Outcome describes what HandleEvent did; unknown events are ignored, not rejected.
type Outcome struct {
	Ignored   bool
	Duplicate bool
	TutorID   *uuid.UUID
}

type ServiceParams struct {
	DB     *gorm.DB
	Queue  queue.Enqueuer
	Logger *logger.Logger
	Now    func() time.Time
}

type Service struct {
	db    *gorm.DB
	queue queue.Enqueuer
	logg  *logger.Logger
	now   func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "db required")
	}
	if params.Queue == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "message queue required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{db: params.DB, queue: params.Queue, logg: params.Logger, now: now}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event Event) (Outcome, error) {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":   event.ID,
		"event_type": event.Type,
	})
	switch event.Type {
	case EventMessageReceived:
		var data InboundMessage
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return Outcome{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode inbound message")
		}
		return s.recordInbound(ctx, event.ID, data)
	default:
		s.logg.Info(ctx, "webhook event ignored")
		return Outcome{Ignored: true}, nil
	}
}

// recordInbound stores the reply, links it to the tutor whose phone shares the
// trailing digits with the sender, and acknowledges known tutors.
func (s *Service) recordInbound(ctx context.Context, eventID string, data InboundMessage) (Outcome, error) {
	suffix := phone.Suffix(data.From)
	if len(suffix) < phone.SuffixLength {
		return Outcome{}, pkgerrors.New(pkgerrors.CodeValidation, "sender phone is missing or too short")
	}
	receivedAt := data.ReceivedAt.UTC()
	if data.ReceivedAt.IsZero() {
		receivedAt = s.now()
	}

	var outcome Outcome
	err := dbpkg.RunInTx(ctx, s.db, func(tx *gorm.DB) error {
		tutor, err := s.findTutor(ctx, tx, suffix)
		if err != nil {
			return err
		}
		row := models.InboundMessage{
			EventID:    eventID,
			Sender:     phone.Digits(data.From),
			Body:       strings.TrimSpace(data.Body),
			ReceivedAt: receivedAt,
			CreatedAt:  s.now(),
		}
		if tutor != nil {
			row.TutorID = &tutor.ID
			outcome.TutorID = &tutor.ID
		}
		res := tx.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).Create(&row)
		if res.Error != nil {
			return fmt.Errorf("store inbound message: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			outcome.Duplicate = true
			return nil
		}
		if tutor == nil {
			return nil
		}
		_, err = s.queue.EnqueueTx(ctx, tx, queue.EnqueueInput{
			Recipient: tutor.Phone,
			Body:      replyAckBody,
			Kind:      enums.MessageKindReplyAck,
			DedupeKey: "inbound:" + eventID + ":ack",
		})
		return err
	})
	if err != nil {
		return Outcome{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record inbound message")
	}

	fields := map[string]any{"duplicate": outcome.Duplicate, "matched": outcome.TutorID != nil}
	if outcome.TutorID != nil {
		fields["tutor_id"] = outcome.TutorID.String()
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), "inbound message recorded")
	return outcome, nil
}

// findTutor returns the most recently updated tutor with the phone suffix, or nil.
func (s *Service) findTutor(ctx context.Context, tx *gorm.DB, suffix string) (*models.Tutor, error) {
	var tutors []models.Tutor
	err := tx.WithContext(ctx).
		Where("phone_suffix = ?", suffix).
		Order("updated_at DESC").
		Limit(2).
		Find(&tutors).Error
	if err != nil {
		return nil, fmt.Errorf("find tutor by phone: %w", err)
	}
	if len(tutors) == 0 {
		return nil, nil
	}
	if len(tutors) > 1 {
		s.logg.Warn(s.logg.WithField(ctx, "phone_suffix", suffix), "several tutors share the sender phone suffix; using the latest")
	}
	return &tutors[0], nil
}
