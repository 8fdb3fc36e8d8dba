package registrations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mutirao/castracao-backend/pkg/db/models"
	"github.com/mutirao/castracao-backend/pkg/enums"
	"github.com/mutirao/castracao-backend/pkg/pagination"
)

// Repository persists tutors and registrations. Every method runs on the
// handle it is given so callers control the transaction.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// UpsertTutor inserts the tutor or refreshes the contact fields of the row
// with the same phone, and returns the stored row.
func (r *Repository) UpsertTutor(ctx context.Context, tx *gorm.DB, tutor *models.Tutor) (*models.Tutor, error) {
	err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "phone"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "city", "city_normalized", "updated_at"}),
	}).Create(tutor).Error
	if err != nil {
		return nil, err
	}
	var stored models.Tutor
	if err := tx.WithContext(ctx).Where("phone = ?", tutor.Phone).Take(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *Repository) CreateRegistration(ctx context.Context, tx *gorm.DB, reg *models.Registration) error {
	return tx.WithContext(ctx).Create(reg).Error
}

// GetForUpdate loads a registration with its tutor and locks the row.
func (r *Repository) GetForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Registration, error) {
	var reg models.Registration
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Tutor").
		Where("id = ?", id).
		Take(&reg).Error
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status enums.RegistrationStatus, notes *string, at time.Time) error {
	updates := map[string]any{
		"status":            status,
		"status_changed_at": at,
		"updated_at":        at,
	}
	if notes != nil {
		updates["notes"] = *notes
	}
	return tx.WithContext(ctx).Model(&models.Registration{}).Where("id = ?", id).Updates(updates).Error
}

// OldestWaitlisted returns the first wait-listed registration for a city, or nil.
func (r *Repository) OldestWaitlisted(ctx context.Context, tx *gorm.DB, cityKey string) (*models.Registration, error) {
	var reg models.Registration
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Preload("Tutor").
		Where("city_key = ? AND status = ?", cityKey, enums.RegistrationStatusWaitlisted).
		Order("created_at ASC").Order("id ASC").
		Take(&reg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *Repository) ListForTutor(ctx context.Context, db *gorm.DB, tutorID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Registration, error) {
	q := db.WithContext(ctx).Where("tutor_id = ?", tutorID)
	if cursor != nil {
		q = q.Where("((created_at < ?) OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var rows []models.Registration
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}
