package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// LiveConfig is the promoted configuration for one product surface. One row
// per surface; a new promotion for the same surface overwrites it.
type LiveConfig struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Surface      string         `gorm:"column:surface;not null;uniqueIndex" json:"surface"`
	ExperimentID uuid.UUID      `gorm:"type:uuid;not null;index" json:"experiment_id"`
	Variant      string         `gorm:"column:variant;not null" json:"variant"` // A|B
	Payload      datatypes.JSON `gorm:"type:jsonb;column:payload" json:"payload"`
	PromotedAt   time.Time      `gorm:"column:promoted_at;not null" json:"promoted_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
}

func (LiveConfig) TableName() string { return "live_config" }
