package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	AuditActionHarmStop          = "harm_stop"
	AuditActionWinnerDeclared    = "winner_declared"
	AuditActionPromotion         = "promotion"
	AuditActionPromotionOverride = "promotion_override"
)

// AuditLog is the append-only trail for actions that change live behavior
// or bypass the computed winner signal.
type AuditLog struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ExperimentID uuid.UUID      `gorm:"type:uuid;not null;index" json:"experiment_id"`
	Action       string         `gorm:"column:action;not null;index" json:"action"`
	Detail       datatypes.JSON `gorm:"type:jsonb;column:detail" json:"detail,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;index" json:"created_at"`
}

func (AuditLog) TableName() string { return "experiment_audit" }
