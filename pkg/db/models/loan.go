package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/readcycle-backend/pkg/enums"
)

// Loan is a single borrow of one book by one patron. Category mirrors the
// book's category while the loan is BORROWED (catalog edits carry it over) so
// the one-active-loan-per-category rule can be backed by a partial unique index.
type Loan struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	PatronID   uuid.UUID        `gorm:"column:patron_id;type:uuid;not null;uniqueIndex:idx_loans_active_patron_book,where:status = 'BORROWED';uniqueIndex:idx_loans_active_patron_category,where:status = 'BORROWED';index:idx_loans_patron_created,priority:1"`
	BookID     uuid.UUID        `gorm:"column:book_id;type:uuid;not null;index;uniqueIndex:idx_loans_active_patron_book,where:status = 'BORROWED'"`
	Category   string           `gorm:"column:category;not null;uniqueIndex:idx_loans_active_patron_category,where:status = 'BORROWED'"`
	Status     enums.LoanStatus `gorm:"column:status;type:text;not null;default:'BORROWED'"`
	ReturnedAt *time.Time       `gorm:"column:returned_at"`
	CreatedBy  string           `gorm:"column:created_by;not null;default:''"`
	UpdatedBy  string           `gorm:"column:updated_by;not null;default:''"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime;index:idx_loans_patron_created,priority:2"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (l *Loan) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
