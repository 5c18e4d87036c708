package maintenance

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/readcycle-backend/internal/repo"
	"github.com/angelmondragon/readcycle-backend/pkg/db/models"
)

// Repository reads and writes system_configs rows.
type Repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

// Get returns nil when the switch was never written.
func (r *Repository) Get(ctx context.Context, name string) (*models.SystemConfig, error) {
	return repo.Take[models.SystemConfig](ctx, r.base, "name = ?", name)
}

// Put inserts or overwrites the switch.
func (r *Repository) Put(ctx context.Context, name, value, actor string, at time.Time) error {
	row := models.SystemConfig{Name: name, Value: value, UpdatedBy: actor, UpdatedAt: at}
	return r.base.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_by", "updated_at"}),
	}).Create(&row).Error
}
