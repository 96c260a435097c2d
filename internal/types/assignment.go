package types

import (
	"time"

	"github.com/google/uuid"
)

// Assignment pins a subject to one arm of an experiment. The variant is
// derived from a stable hash of (experiment_id, subject_id); the row exists
// so assignment counts and assignment times survive for retroactive
// analysis after the experiment freezes.
type Assignment struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ExperimentID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_assignment_pair,priority:1" json:"experiment_id"`
	SubjectID    string    `gorm:"column:subject_id;not null;uniqueIndex:idx_assignment_pair,priority:2" json:"subject_id"`
	Variant      string    `gorm:"column:variant;not null;index" json:"variant"` // A|B
	AssignedAt   time.Time `gorm:"column:assigned_at;not null" json:"assigned_at"`
}

func (Assignment) TableName() string { return "experiment_assignment" }
