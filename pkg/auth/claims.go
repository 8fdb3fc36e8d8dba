package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mutirao/castracao-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	Subject uuid.UUID
	Role    enums.Role
	JTI     string
}

// AccessTokenClaims represents the typed JWT issued to clients. Subject is an
// admin user id or a tutor id depending on Role.
type AccessTokenClaims struct {
	Subject uuid.UUID  `json:"sub_id"`
	Role    enums.Role `json:"role"`
	jwt.RegisteredClaims
}
