package services

import (
	"context"
	"time"

	"github.com/harvesttable/growth-backend/internal/apperr"
	"github.com/harvesttable/growth-backend/internal/logger"
	"github.com/harvesttable/growth-backend/internal/repos"
)

// Window bounds which outcomes are attributable to an experiment.
type Window struct {
	Start time.Time
	End   time.Time
}

// MetricSource is the read-only adapter over raw outcome data. Subjects with
// no events are absent from the result, never reported as zero.
type MetricSource interface {
	FetchOutcomes(ctx context.Context, subjectIDs []string, metric string, window Window) (map[string][]float64, error)
}

type outcomeMetricSource struct {
	log    *logger.Logger
	events repos.OutcomeEventRepo
}

// NewOutcomeMetricSource reads from the outcome_event landing table that
// product surfaces write through the ingest endpoint.
func NewOutcomeMetricSource(baseLog *logger.Logger, events repos.OutcomeEventRepo) MetricSource {
	return &outcomeMetricSource{
		log:    baseLog.With("service", "OutcomeMetricSource"),
		events: events,
	}
}

func (s *outcomeMetricSource) FetchOutcomes(ctx context.Context, subjectIDs []string, metric string, window Window) (map[string][]float64, error) {
	out := make(map[string][]float64, len(subjectIDs))
	if len(subjectIDs) == 0 || metric == "" {
		return out, nil
	}
	values, err := s.events.GetValuesBySubjects(ctx, nil, subjectIDs, metric, window.Start, window.End)
	if err != nil {
		return nil, apperr.DataSource("fetch outcome events", err)
	}
	for _, v := range values {
		out[v.SubjectID] = append(out[v.SubjectID], v.Value)
	}
	return out, nil
}
