package users

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/readcycle-backend/internal/repo"
	"github.com/angelmondragon/readcycle-backend/pkg/db/models"
	"github.com/angelmondragon/readcycle-backend/pkg/enums"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	base repo.Base
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) UserRepository {
	return &Repository{base: r.base.WithTx(tx)}
}

func (r *Repository) Create(ctx context.Context, user *models.User) error {
	return r.base.DB(ctx).Create(user).Error
}

// FindByEmail returns nil when no user has the email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return repo.Take[models.User](ctx, r.base, "email = ?", email)
}

// FindByID returns nil when the user does not exist.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return repo.Take[models.User](ctx, r.base, "id = ?", id)
}

func (r *Repository) EmailTaken(ctx context.Context, email string, excludeID uuid.UUID) (bool, error) {
	if excludeID == uuid.Nil {
		return r.base.Exists(ctx, &models.User{}, "email = ?", email)
	}
	return r.base.Exists(ctx, &models.User{}, "email = ? AND id <> ?", email, excludeID)
}

// Save writes the profile columns of user.
func (r *Repository) Save(ctx context.Context, user *models.User) error {
	return r.base.DB(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"name":          user.Name,
			"email":         user.Email,
			"date_of_birth": user.DateOfBirth,
			"role":          user.Role,
			"updated_at":    user.UpdatedAt,
		}).Error
}

func (r *Repository) HasActiveLoans(ctx context.Context, userID uuid.UUID) (bool, error) {
	return r.base.Exists(ctx, &models.Loan{}, "patron_id = ? AND status = ?", userID, enums.LoanStatusBorrowed)
}

// Delete removes the user and their cart.
func (r *Repository) Delete(ctx context.Context, userID uuid.UUID) (int64, error) {
	db := r.base.DB(ctx)
	if err := db.Where("patron_id = ?", userID).Delete(&models.CartItem{}).Error; err != nil {
		return 0, err
	}
	res := db.Where("id = ?", userID).Delete(&models.User{})
	return res.RowsAffected, res.Error
}
