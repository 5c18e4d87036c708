package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/readcycle-backend/pkg/db/models"
)

// Repository exposes persistence operations for cart items.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a cart item.
func (r *Repository) Create(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// ListByPatron returns the patron's cart, newest first.
func (r *Repository) ListByPatron(ctx context.Context, patronID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Where("patron_id = ?", patronID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&items).Error
	return items, err
}

// FindOwned returns the subset of ids that exist and belong to the patron.
func (r *Repository) FindOwned(ctx context.Context, patronID uuid.UUID, ids []uuid.UUID) ([]models.CartItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Where("patron_id = ? AND id IN ?", patronID, ids).
		Find(&items).Error
	return items, err
}

// DeleteOwned removes the ids that belong to the patron; other ids are ignored.
func (r *Repository) DeleteOwned(ctx context.Context, patronID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("patron_id = ? AND id IN ?", patronID, ids).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}
