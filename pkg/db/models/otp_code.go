package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OTPCode stores a hashed one-time login code for a tutor phone.
type OTPCode struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Phone      string     `gorm:"column:phone;not null;index:idx_otp_codes_phone"`
	CodeHash   string     `gorm:"column:code_hash;not null"`
	Attempts   int        `gorm:"column:attempts;not null;default:0"`
	ExpiresAt  time.Time  `gorm:"column:expires_at;not null"`
	ConsumedAt *time.Time `gorm:"column:consumed_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;not null"`
}

func (OTPCode) TableName() string { return "otp_codes" }

func (o *OTPCode) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
