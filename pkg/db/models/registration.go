package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mutirao/castracao-backend/pkg/enums"
)

// Registration is one animal signed up for the campaign.
type Registration struct {
	ID              uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	TutorID         uuid.UUID                `gorm:"column:tutor_id;type:uuid;not null;index:idx_registrations_tutor"`
	AnimalName      string                   `gorm:"column:animal_name;not null"`
	Species         enums.Species            `gorm:"column:species;not null"`
	CityKey         *string                  `gorm:"column:city_key;index:idx_registrations_city_status,priority:1"`
	Status          enums.RegistrationStatus `gorm:"column:status;not null;index:idx_registrations_city_status,priority:2"`
	Notes           *string                  `gorm:"column:notes"`
	StatusChangedAt time.Time                `gorm:"column:status_changed_at;not null"`
	CreatedAt       time.Time                `gorm:"column:created_at;not null"`
	UpdatedAt       time.Time                `gorm:"column:updated_at;not null"`

	Tutor *Tutor `gorm:"foreignKey:TutorID"`
}

func (Registration) TableName() string { return "registrations" }

func (r *Registration) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
