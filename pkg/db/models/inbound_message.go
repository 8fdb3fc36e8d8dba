package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InboundMessage records a reply received from the messaging provider.
type InboundMessage struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	EventID    string     `gorm:"column:event_id;not null;uniqueIndex:ux_inbound_messages_event"`
	Sender     string     `gorm:"column:sender;not null"`
	Body       string     `gorm:"column:body;not null"`
	TutorID    *uuid.UUID `gorm:"column:tutor_id;type:uuid"`
	ReceivedAt time.Time  `gorm:"column:received_at;not null"`
	CreatedAt  time.Time  `gorm:"column:created_at;not null"`
}

func (InboundMessage) TableName() string { return "inbound_messages" }

func (m *InboundMessage) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
