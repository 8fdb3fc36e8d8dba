package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tutor is the person responsible for registered animals.
type Tutor struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name           string    `gorm:"column:name;not null"`
	Phone          string    `gorm:"column:phone;not null;uniqueIndex:ux_tutors_phone"`
	PhoneSuffix    string    `gorm:"column:phone_suffix;not null;index:idx_tutors_phone_suffix"`
	Email          *string   `gorm:"column:email"`
	City           string    `gorm:"column:city;not null"`
	CityNormalized string    `gorm:"column:city_normalized;not null;index:idx_tutors_city_normalized"`
	CreatedAt      time.Time `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time `gorm:"column:updated_at;not null"`
}

func (Tutor) TableName() string { return "tutors" }

func (t *Tutor) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
