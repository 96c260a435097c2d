package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// OutcomeEvent is one raw outcome attributable to a subject: a booking's
// revenue, a rating, a completed flow. Product surfaces write these through
// the ingest endpoint; the engine only ever reads them.
type OutcomeEvent struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SubjectID  string         `gorm:"column:subject_id;not null;index:idx_outcome_lookup,priority:2" json:"subject_id"`
	Metric     string         `gorm:"column:metric;not null;index:idx_outcome_lookup,priority:1" json:"metric"`
	Value      float64        `gorm:"column:value;not null" json:"value"`
	OccurredAt time.Time      `gorm:"column:occurred_at;not null;index:idx_outcome_lookup,priority:3" json:"occurred_at"`
	Source     string         `gorm:"column:source" json:"source,omitempty"` // emitting surface, e.g. "booking"
	Data       datatypes.JSON `gorm:"type:jsonb;column:data" json:"data,omitempty"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
}

func (OutcomeEvent) TableName() string { return "outcome_event" }
