package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mutirao/castracao-backend/pkg/logger"
)

const (
	defaultOTPRetention    = 24 * time.Hour
	defaultOTPCleanupEvery = time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type otpCleanupRepo interface {
	DeleteExpiredOTPs(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type OTPCleanupJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository otpCleanupRepo
	// Retention is how long expired or consumed codes are kept for auditing.
	Retention time.Duration
	// Every spaces cleanup runs apart; the cron tick is much shorter.
	Every time.Duration
	Now   func() time.Time
}

func NewOTPCleanupJob(params OTPCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("otp repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultOTPRetention
	}
	every := params.Every
	if every <= 0 {
		every = defaultOTPCleanupEvery
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &otpCleanupJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		retention: retention,
		every:     every,
		now:       now,
	}, nil
}

type otpCleanupJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      otpCleanupRepo
	retention time.Duration
	every     time.Duration
	now       func() time.Time
}

func (j *otpCleanupJob) Name() string { return "otp-cleanup" }

func (j *otpCleanupJob) Every() time.Duration { return j.every }

func (j *otpCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.DeleteExpiredOTPs(ctx, tx, cutoff)
		if err != nil {
			return err
		}
		deleted = rows
		return nil
	})
	if err != nil {
		return fmt.Errorf("otp cleanup: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"retention":    j.retention.String(),
		"rows_deleted": deleted,
	})
	j.logg.Info(logCtx, "otp cleanup complete")
	return nil
}
