package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	StatusDraft    = "draft"
	StatusRunning  = "running"
	StatusStopped  = "stopped"
	StatusComplete = "complete"
)

const (
	VariantA = "A"
	VariantB = "B"
)

// Experiment is the durable record of one A/B experiment. Variant payloads
// are opaque to the engine; each product surface decodes its own shape.
type Experiment struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name            string         `gorm:"column:name;not null" json:"name"`
	Hypothesis      string         `gorm:"column:hypothesis" json:"hypothesis,omitempty"`
	Category        *string        `gorm:"column:category;index" json:"category,omitempty"`
	VariantA        datatypes.JSON `gorm:"type:jsonb;column:variant_a" json:"variant_a"`
	VariantB        datatypes.JSON `gorm:"type:jsonb;column:variant_b" json:"variant_b"`
	Metric          string         `gorm:"column:metric;not null" json:"metric"`
	SecondaryMetric *string        `gorm:"column:secondary_metric" json:"secondary_metric,omitempty"`
	HarmThreshold   datatypes.JSON `gorm:"type:jsonb;column:harm_threshold" json:"harm_threshold,omitempty"`
	StartAt         time.Time      `gorm:"column:start_at;not null" json:"start_at"`
	EndAt           time.Time      `gorm:"column:end_at;not null" json:"end_at"`
	Status          string         `gorm:"column:status;not null;index" json:"status"` // draft|running|stopped|complete
	StoppedReason   string         `gorm:"column:stopped_reason" json:"stopped_reason,omitempty"`
	WinnerVariant   *string        `gorm:"column:winner_variant" json:"winner_variant,omitempty"`
	PromotedAt      *time.Time     `gorm:"column:promoted_at" json:"promoted_at,omitempty"`
	CreatedAt       time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Experiment) TableName() string { return "experiment" }

func (e *Experiment) IsTerminal() bool {
	return e.Status == StatusStopped || e.Status == StatusComplete
}

// VariantPayload returns the opaque payload for one arm.
func (e *Experiment) VariantPayload(variant string) datatypes.JSON {
	if variant == VariantB {
		return e.VariantB
	}
	return e.VariantA
}

// HarmRule decodes the stored harm threshold, or returns nil when none is
// configured.
func (e *Experiment) HarmRule() (*HarmThreshold, error) {
	if len(e.HarmThreshold) == 0 {
		return nil, nil
	}
	var rule HarmThreshold
	if err := json.Unmarshal(e.HarmThreshold, &rule); err != nil {
		return nil, err
	}
	if rule.Metric == "" {
		return nil, nil
	}
	return &rule, nil
}
