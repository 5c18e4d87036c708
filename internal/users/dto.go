package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/readcycle-backend/pkg/db/models"
	"github.com/angelmondragon/readcycle-backend/pkg/enums"
)

const dateLayout = "2006-01-02"

// CreateUserInput is the admin payload for a new account.
type CreateUserInput struct {
	Name        string `json:"name" validate:"required,max=255"`
	Email       string `json:"email" validate:"required,email,max=255"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	DateOfBirth string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	Role        string `json:"role" validate:"omitempty,oneof=USER ADMIN user admin"`
}

// UpdateUserInput is a partial update; nil fields are left alone. An empty
// date_of_birth clears it.
type UpdateUserInput struct {
	Name        *string `json:"name" validate:"omitempty,max=255"`
	Email       *string `json:"email" validate:"omitempty,email,max=255"`
	DateOfBirth *string `json:"date_of_birth"`
	Role        *string `json:"role" validate:"omitempty,oneof=USER ADMIN user admin"`
}

// UserDTO is the API view of a user. The password hash never leaves the service.
type UserDTO struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Email       string         `json:"email"`
	DateOfBirth *string        `json:"date_of_birth,omitempty"`
	Role        enums.UserRole `json:"role"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// FromModel maps a user row to its API shape.
func FromModel(user models.User) UserDTO {
	dto := UserDTO{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
	if user.DateOfBirth != nil {
		dob := user.DateOfBirth.UTC().Format(dateLayout)
		dto.DateOfBirth = &dob
	}
	return dto
}
