package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mutirao/castracao-backend/internal/queue"
	pkgAuth "github.com/mutirao/castracao-backend/pkg/auth"
	"github.com/mutirao/castracao-backend/pkg/config"
	dbpkg "github.com/mutirao/castracao-backend/pkg/db"
	"github.com/mutirao/castracao-backend/pkg/db/models"
	"github.com/mutirao/castracao-backend/pkg/enums"
	pkgerrors "github.com/mutirao/castracao-backend/pkg/errors"
	"github.com/mutirao/castracao-backend/pkg/logger"
	"github.com/mutirao/castracao-backend/pkg/phone"
	"github.com/mutirao/castracao-backend/pkg/security"
)

const invalidCodeMessage = "invalid or expired code"

// OTPService issues and verifies one-time login codes for tutors.
type OTPService interface {
	Request(ctx context.Context, req OTPRequest) (*OTPRequestResponse, error)
	Verify(ctx context.Context, req OTPVerifyRequest) (*TutorLoginResponse, error)
}

type OTPServiceParams struct {
	DB             *gorm.DB
	Repo           *Repository
	Queue          queue.Enqueuer
	OTPConfig      config.OTPConfig
	PasswordConfig config.PasswordConfig
	JWTConfig      config.JWTConfig
	Logger         *logger.Logger
	Now            func() time.Time
}

type otpService struct {
	db          *gorm.DB
	repo        *Repository
	queue       queue.Enqueuer
	otpCfg      config.OTPConfig
	passwordCfg config.PasswordConfig
	jwtCfg      config.JWTConfig
	logg        *logger.Logger
	now         func() time.Time
}

func NewOTPService(params OTPServiceParams) (OTPService, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database is required")
	}
	if params.Queue == nil {
		return nil, fmt.Errorf("message queue is required")
	}
	if params.OTPConfig.TTL <= 0 {
		return nil, fmt.Errorf("otp ttl must be positive")
	}
	if params.OTPConfig.MaxAttempts <= 0 {
		return nil, fmt.Errorf("otp max attempts must be positive")
	}
	if params.Repo == nil {
		params.Repo = NewRepository()
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &otpService{
		db:          params.DB,
		repo:        params.Repo,
		queue:       params.Queue,
		otpCfg:      params.OTPConfig,
		passwordCfg: params.PasswordConfig,
		jwtCfg:      params.JWTConfig,
		logg:        params.Logger,
		now:         params.Now,
	}, nil
}

// Request sends a fresh code to a registered tutor. Unknown phones get the
// same response so the endpoint cannot be used to enumerate registrations.
func (s *otpService) Request(ctx context.Context, req OTPRequest) (*OTPRequestResponse, error) {
	normalized, err := phone.Normalize(req.Phone)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid phone number")
	}
	resp := &OTPRequestResponse{ExpiresInSeconds: int(s.otpCfg.TTL / time.Second)}

	if _, err := s.repo.FindTutorByPhone(ctx, s.db, normalized); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logg.Debug(ctx, "otp requested for unknown phone")
			return resp, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup tutor")
	}

	code, err := security.GenerateOTP(s.otpCfg.Length)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate code")
	}
	codeHash, err := security.HashPassword(code, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash code")
	}

	now := s.now().UTC()
	err = dbpkg.RunInTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := s.repo.ConsumeActiveOTPs(ctx, tx, normalized, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retire previous codes")
		}
		record := &models.OTPCode{
			Phone:     normalized,
			CodeHash:  codeHash,
			ExpiresAt: now.Add(s.otpCfg.TTL),
			CreatedAt: now,
		}
		if err := s.repo.CreateOTP(ctx, tx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store code")
		}
		_, err := s.queue.EnqueueTx(ctx, tx, queue.EnqueueInput{
			Recipient: normalized,
			Body:      otpBody(code, s.otpCfg.TTL),
			Kind:      enums.MessageKindOTPCode,
			DedupeKey: "otp:" + record.ID.String(),
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "enqueue code")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

type verifyOutcome int

const (
	verifyRejected verifyOutcome = iota
	verifyExhausted
	verifyAccepted
)

// Verify checks code against the newest pending code for the phone. Failed
// attempts are committed before the caller sees the rejection.
func (s *otpService) Verify(ctx context.Context, req OTPVerifyRequest) (*TutorLoginResponse, error) {
	normalized, err := phone.Normalize(req.Phone)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCodeMessage)
	}

	now := s.now().UTC()
	outcome := verifyRejected
	var tutor *models.Tutor
	err = dbpkg.RunInTx(ctx, s.db, func(tx *gorm.DB) error {
		record, err := s.repo.LatestActiveOTP(ctx, tx, normalized, now)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load code")
		}
		if record.Attempts >= s.otpCfg.MaxAttempts {
			outcome = verifyExhausted
			return s.repo.ConsumeOTP(ctx, tx, record.ID, now)
		}

		valid, err := security.VerifyPassword(req.Code, record.CodeHash)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify code")
		}
		if !valid {
			return s.repo.IncrementOTPAttempts(ctx, tx, record.ID)
		}

		if err := s.repo.ConsumeOTP(ctx, tx, record.ID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume code")
		}
		tutor, err = s.repo.FindTutorByPhone(ctx, tx, normalized)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup tutor")
		}
		outcome = verifyAccepted
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch outcome {
	case verifyExhausted:
		s.logg.Warn(ctx, "otp attempts exhausted")
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "too many attempts, request a new code")
	case verifyRejected:
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCodeMessage)
	}

	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		Subject: tutor.ID,
		Role:    enums.RoleTutor,
		JTI:     uuid.NewString(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return &TutorLoginResponse{
		AccessToken: accessToken,
		Tutor: TutorDTO{
			ID:    tutor.ID,
			Name:  tutor.Name,
			Phone: tutor.Phone,
			City:  tutor.City,
		},
	}, nil
}

func otpBody(code string, ttl time.Duration) string {
	return fmt.Sprintf("Seu código de acesso ao Mutirão de Castração é %s. Ele vale por %d minutos.", code, int(ttl/time.Minute))
}
