package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mutirao/castracao-backend/pkg/config"
	dbpkg "github.com/mutirao/castracao-backend/pkg/db"
	"github.com/mutirao/castracao-backend/pkg/db/models"
	pkgerrors "github.com/mutirao/castracao-backend/pkg/errors"
	"github.com/mutirao/castracao-backend/pkg/security"
)

// AdminRegisterService handles creating dev admin users.
type AdminRegisterService interface {
	Register(ctx context.Context, req AdminRegisterRequest) (*AdminDTO, error)
}

// AdminRegisterServiceParams names the dependencies for the admin register flow.
type AdminRegisterServiceParams struct {
	DB             *gorm.DB
	Repo           *Repository
	PasswordConfig config.PasswordConfig
	Now            func() time.Time
}

type adminRegisterService struct {
	db          *gorm.DB
	repo        *Repository
	passwordCfg config.PasswordConfig
	now         func() time.Time
}

// NewAdminRegisterService builds a dev admin registration service.
func NewAdminRegisterService(params AdminRegisterServiceParams) (AdminRegisterService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	if params.Repo == nil {
		params.Repo = NewRepository()
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &adminRegisterService{
		db:          params.DB,
		repo:        params.Repo,
		passwordCfg: params.PasswordConfig,
		now:         params.Now,
	}, nil
}

func (s *adminRegisterService) Register(ctx context.Context, req AdminRegisterRequest) (*AdminDTO, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "hash password")
	}

	var created *AdminDTO
	err = dbpkg.RunInTx(ctx, s.db, func(tx *gorm.DB) error {
		if _, err := s.repo.FindAdminByEmail(ctx, tx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check admin email")
		}

		now := s.now().UTC()
		admin := &models.AdminUser{
			Email:        email,
			Name:         name,
			PasswordHash: passwordHash,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.repo.CreateAdmin(ctx, tx, admin); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create admin")
		}
		created = adminFromModel(admin)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
