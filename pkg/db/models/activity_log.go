package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/readcycle-backend/pkg/enums"
)

// ActivityLog is an append-only audit row. Description holds the JSON encoded
// change descriptors.
type ActivityLog struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ActivityGroup enums.ActivityGroup `gorm:"column:activity_group;type:text;not null;index:idx_activity_logs_group_type,priority:1"`
	ActivityType  enums.ActivityType  `gorm:"column:activity_type;type:text;not null;index:idx_activity_logs_group_type,priority:2"`
	ExecutionTime time.Time           `gorm:"column:execution_time;not null;index"`
	Description   string              `gorm:"column:description;type:text;not null"`
	Username      string              `gorm:"column:username;not null"`
}

func (ActivityLog) TableName() string { return "activity_logs" }

func (a *ActivityLog) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
