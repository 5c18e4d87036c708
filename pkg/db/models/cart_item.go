package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartItem is a patron's intent to borrow a book. It holds no inventory.
type CartItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	PatronID  uuid.UUID `gorm:"column:patron_id;type:uuid;not null;index"`
	BookID    uuid.UUID `gorm:"column:book_id;type:uuid;not null"`
	Sum       int       `gorm:"column:sum;not null;default:1;check:chk_cart_items_sum_non_negative,sum >= 0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *CartItem) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
