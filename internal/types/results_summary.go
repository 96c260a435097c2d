package types

import (
	"time"

	"github.com/google/uuid"
)

const WinnerTie = "tie"

// VariantResults is one arm's aggregate. Count only includes subjects with
// at least one attributable outcome for the primary metric; subjects with
// no data are excluded from the mean denominators, never counted as zero.
type VariantResults struct {
	Variant         string   `json:"variant"`
	AssignmentCount int64    `json:"assignment_count"`
	Count           int64    `json:"count"`
	PrimaryMean     *float64 `json:"primary_mean"`
	SecondaryMean   *float64 `json:"secondary_mean,omitempty"`
}

// ResultsSummary is computed on demand and never persisted as a source of
// truth.
type ResultsSummary struct {
	ExperimentID    uuid.UUID      `json:"experiment_id"`
	PrimaryMetric   string         `json:"primary_metric"`
	SecondaryMetric *string        `json:"secondary_metric,omitempty"`
	VariantA        VariantResults `json:"variant_a"`
	VariantB        VariantResults `json:"variant_b"`
	Winner          string         `json:"winner"` // A|B|tie
	ComputedAt      time.Time      `json:"computed_at"`
}
