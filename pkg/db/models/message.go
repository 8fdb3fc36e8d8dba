package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mutirao/castracao-backend/pkg/enums"
)

// Message is one outbound notification awaiting or past delivery.
type Message struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Recipient      string              `gorm:"column:recipient_address;not null"`
	Body           string              `gorm:"column:body;not null"`
	Kind           enums.MessageKind   `gorm:"column:kind;not null"`
	Status         enums.MessageStatus `gorm:"column:status;not null;index:idx_messages_status_next_attempt,priority:1"`
	Attempts       int                 `gorm:"column:attempts;not null;default:0"`
	DedupeKey      *string             `gorm:"column:dedupe_key;uniqueIndex:ux_messages_dedupe_key"`
	RegistrationID *uuid.UUID          `gorm:"column:registration_id;type:uuid"`
	LastError      *string             `gorm:"column:last_error"`
	NextAttemptAt  time.Time           `gorm:"column:next_attempt_at;not null;index:idx_messages_status_next_attempt,priority:2"`
	ClaimedAt      *time.Time          `gorm:"column:claimed_at"`
	FinishedAt     *time.Time          `gorm:"column:finished_at"`
	CreatedAt      time.Time           `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;not null"`
}

func (Message) TableName() string { return "messages" }

func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
