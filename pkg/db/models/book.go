package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/readcycle-backend/pkg/enums"
)

// Book is one catalogued title. Quantity is the number of copies on the shelf.
type Book struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Category    string    `gorm:"column:category;not null;index"`
	Title       string    `gorm:"column:title;not null;uniqueIndex:idx_books_title"`
	Author      string    `gorm:"column:author;not null;default:''"`
	Publisher   string    `gorm:"column:publisher;not null;default:''"`
	Thumb       string    `gorm:"column:thumb;not null;default:''"`
	Description string    `gorm:"column:description;type:text;not null;default:''"`
	Quantity    int       `gorm:"column:quantity;not null;default:0;check:chk_books_quantity_non_negative,quantity >= 0"`
	IsActive    bool      `gorm:"column:is_active;not null;default:true"`
	CreatedBy   string    `gorm:"column:created_by;not null;default:''"`
	UpdatedBy   string    `gorm:"column:updated_by;not null;default:''"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Status derives availability from quantity.
func (b Book) Status() enums.BookStatus {
	return enums.BookStatusForQuantity(b.Quantity)
}

func (b *Book) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
