package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mutirao/castracao-backend/pkg/db/models"
)

// Repository reads and writes admin users and OTP codes on the handle it is given.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) FindAdminByEmail(ctx context.Context, db *gorm.DB, email string) (*models.AdminUser, error) {
	var admin models.AdminUser
	if err := db.WithContext(ctx).Where("email = ?", email).Take(&admin).Error; err != nil {
		return nil, err
	}
	return &admin, nil
}

func (r *Repository) CreateAdmin(ctx context.Context, db *gorm.DB, admin *models.AdminUser) error {
	return db.WithContext(ctx).Create(admin).Error
}

func (r *Repository) UpdateLastLogin(ctx context.Context, db *gorm.DB, id uuid.UUID, at time.Time) error {
	return db.WithContext(ctx).Model(&models.AdminUser{}).Where("id = ?", id).
		Updates(map[string]any{"last_login_at": at, "updated_at": at}).Error
}

func (r *Repository) FindTutorByPhone(ctx context.Context, db *gorm.DB, phone string) (*models.Tutor, error) {
	var tutor models.Tutor
	if err := db.WithContext(ctx).Where("phone = ?", phone).Take(&tutor).Error; err != nil {
		return nil, err
	}
	return &tutor, nil
}

// ConsumeActiveOTPs retires every pending code for phone so only the newest one verifies.
func (r *Repository) ConsumeActiveOTPs(ctx context.Context, tx *gorm.DB, phone string, at time.Time) error {
	return tx.WithContext(ctx).Model(&models.OTPCode{}).
		Where("phone = ? AND consumed_at IS NULL", phone).
		Update("consumed_at", at).Error
}

func (r *Repository) CreateOTP(ctx context.Context, tx *gorm.DB, code *models.OTPCode) error {
	return tx.WithContext(ctx).Create(code).Error
}

// LatestActiveOTP locks the newest unconsumed, unexpired code for phone.
func (r *Repository) LatestActiveOTP(ctx context.Context, tx *gorm.DB, phone string, now time.Time) (*models.OTPCode, error) {
	var code models.OTPCode
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("phone = ? AND consumed_at IS NULL AND expires_at > ?", phone, now).
		Order("created_at DESC").
		Take(&code).Error
	if err != nil {
		return nil, err
	}
	return &code, nil
}

func (r *Repository) IncrementOTPAttempts(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return tx.WithContext(ctx).Model(&models.OTPCode{}).Where("id = ?", id).
		Update("attempts", gorm.Expr("attempts + 1")).Error
}

func (r *Repository) ConsumeOTP(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error {
	return tx.WithContext(ctx).Model(&models.OTPCode{}).Where("id = ?", id).Update("consumed_at", at).Error
}

// DeleteExpiredOTPs removes codes that expired or were consumed before cutoff.
func (r *Repository) DeleteExpiredOTPs(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	res := tx.WithContext(ctx).
		Where("expires_at < ? OR consumed_at < ?", cutoff, cutoff).
		Delete(&models.OTPCode{})
	return res.RowsAffected, res.Error
}
