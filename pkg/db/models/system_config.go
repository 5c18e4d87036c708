package models

import "time"

// SystemConfig stores process-wide switches keyed by name.
type SystemConfig struct {
	Name      string    `gorm:"column:name;primaryKey"`
	Value     string    `gorm:"column:value;not null"`
	UpdatedBy string    `gorm:"column:updated_by;not null;default:''"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
