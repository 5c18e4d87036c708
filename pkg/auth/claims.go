package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/readcycle-backend/pkg/enums"
)

// Identity is the resolved actor of a request.
type Identity struct {
	UserID uuid.UUID
	Email  string
	Role   enums.UserRole
}

// IsAdmin reports whether the actor may use admin routes.
func (i Identity) IsAdmin() bool {
	return i.Role == enums.UserRoleAdmin
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID uuid.UUID      `json:"user_id"`
	Email  string         `json:"email"`
	Role   enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Identity converts validated claims into the request actor.
func (c AccessTokenClaims) Identity() Identity {
	return Identity{UserID: c.UserID, Email: c.Email, Role: c.Role}
}
