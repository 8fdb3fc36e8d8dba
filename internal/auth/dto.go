package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/mutirao/castracao-backend/pkg/db/models"
)

// LoginRequest captures the admin credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AdminRegisterRequest contains the credentials for the dev-only admin registration flow.
type AdminRegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type AdminDTO struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func adminFromModel(m *models.AdminUser) *AdminDTO {
	if m == nil {
		return nil
	}
	return &AdminDTO{ID: m.ID, Email: m.Email, Name: m.Name, LastLoginAt: m.LastLoginAt}
}

type AdminLoginResponse struct {
	AccessToken string    `json:"access_token"`
	Admin       *AdminDTO `json:"admin"`
}

type OTPRequest struct {
	Phone string `json:"phone" validate:"required"`
}

// OTPRequestResponse is identical whether or not the phone belongs to a tutor.
type OTPRequestResponse struct {
	ExpiresInSeconds int `json:"expires_in_seconds"`
}

type OTPVerifyRequest struct {
	Phone string `json:"phone" validate:"required"`
	Code  string `json:"code" validate:"required,numeric"`
}

type TutorDTO struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Phone string    `json:"phone"`
	City  string    `json:"city"`
}

type TutorLoginResponse struct {
	AccessToken string   `json:"access_token"`
	Tutor       TutorDTO `json:"tutor"`
}
