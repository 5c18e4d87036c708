package activity

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/readcycle-backend/pkg/db/models"
	"github.com/angelmondragon/readcycle-backend/pkg/enums"
	"github.com/angelmondragon/readcycle-backend/pkg/pagination"
)

// Filter narrows the activity feed. Zero values match everything.
type Filter struct {
	Group enums.ActivityGroup
	Type  enums.ActivityType
	Actor string
}

// Repository persists activity records.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an activity repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Append inserts one record. Records are never updated afterwards.
func (r *Repository) Append(ctx context.Context, record *models.ActivityLog) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// List returns one keyset page, newest first.
func (r *Repository) List(ctx context.Context, filter Filter, cursor *pagination.Cursor, limit int) ([]models.ActivityLog, error) {
	query := r.db.WithContext(ctx).Model(&models.ActivityLog{})
	if filter.Group != "" {
		query = query.Where("activity_group = ?", filter.Group)
	}
	if filter.Type != "" {
		query = query.Where("activity_type = ?", filter.Type)
	}
	if filter.Actor != "" {
		query = query.Where("username = ?", filter.Actor)
	}
	if cursor != nil {
		query = query.Where("((execution_time < ?) OR (execution_time = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var records []models.ActivityLog
	err := query.
		Order("execution_time DESC").
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}
