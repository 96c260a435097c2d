package services

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/harvesttable/growth-backend/internal/apperr"
	"github.com/harvesttable/growth-backend/internal/logger"
	"github.com/harvesttable/growth-backend/internal/repos"
	"github.com/harvesttable/growth-backend/internal/types"
	"github.com/harvesttable/growth-backend/internal/utils"
)

// Two means closer than this are a tie. The comparison is a heuristic, not
// a significance test; callers judge whether the gap and sample size
// justify acting on it.
const winnerEpsilon = 1e-9

const aggregationPageSize = 500

// MetricAggregate is one variant's aggregate for a single metric.
type MetricAggregate struct {
	AssignmentCount int64
	Count           int64
	Mean            *float64
}

type ResultsService interface {
	// Summarize recomputes the experiment's summary from the current data
	// snapshot. Idempotent and side-effect-free.
	Summarize(ctx context.Context, experimentID uuid.UUID) (*types.ResultsSummary, error)
	// AggregateMetric computes per-variant aggregates for one metric,
	// keyed by variant. Shared with the harm monitor.
	AggregateMetric(ctx context.Context, exp *types.Experiment, metric string) (map[string]MetricAggregate, error)
}

type resultsService struct {
	log         *logger.Logger
	experiments repos.ExperimentRepo
	assignments repos.AssignmentRepo
	source      MetricSource
	pageSize    int
}

func NewResultsService(baseLog *logger.Logger, experiments repos.ExperimentRepo, assignments repos.AssignmentRepo, source MetricSource) ResultsService {
	log := baseLog.With("service", "ResultsService")
	pageSize := utils.GetEnvAsInt("RESULTS_PAGE_SIZE", aggregationPageSize, log)
	if pageSize <= 0 {
		pageSize = aggregationPageSize
	}
	return &resultsService{
		log:         log,
		experiments: experiments,
		assignments: assignments,
		source:      source,
		pageSize:    pageSize,
	}
}

func (s *resultsService) Summarize(ctx context.Context, experimentID uuid.UUID) (*types.ResultsSummary, error) {
	exp, err := s.experiments.GetByID(ctx, nil, experimentID)
	if err != nil {
		return nil, apperr.Internal("get experiment", err)
	}
	if exp == nil {
		return nil, apperr.NotFound("experiment %s not found", experimentID)
	}

	metrics := []string{exp.Metric}
	if exp.SecondaryMetric != nil {
		metrics = append(metrics, *exp.SecondaryMetric)
	}

	var aggA, aggB map[string]MetricAggregate
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var aErr error
		aggA, aErr = s.aggregateVariant(gctx, exp, types.VariantA, metrics)
		return aErr
	})
	g.Go(func() error {
		var bErr error
		aggB, bErr = s.aggregateVariant(gctx, exp, types.VariantB, metrics)
		return bErr
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &types.ResultsSummary{
		ExperimentID:    exp.ID,
		PrimaryMetric:   exp.Metric,
		SecondaryMetric: exp.SecondaryMetric,
		VariantA:        buildVariantResults(types.VariantA, exp, aggA),
		VariantB:        buildVariantResults(types.VariantB, exp, aggB),
		ComputedAt:      time.Now(),
	}
	summary.Winner = CompareMeans(summary.VariantA.PrimaryMean, summary.VariantB.PrimaryMean)
	return summary, nil
}

func (s *resultsService) AggregateMetric(ctx context.Context, exp *types.Experiment, metric string) (map[string]MetricAggregate, error) {
	out := make(map[string]MetricAggregate, 2)
	for _, variant := range []string{types.VariantA, types.VariantB} {
		agg, err := s.aggregateVariant(ctx, exp, variant, []string{metric})
		if err != nil {
			return nil, err
		}
		out[variant] = agg[metric]
	}
	return out, nil
}

type metricAccum struct {
	sum      float64
	subjects int64
}

// aggregateVariant pages through the variant's subjects in bounded batches
// so a large experiment never needs one unbounded scan. A subject's value
// for a metric is the sum of its attributable events; subjects with no
// events for a metric are excluded from that metric's denominator.
func (s *resultsService) aggregateVariant(ctx context.Context, exp *types.Experiment, variant string, metrics []string) (map[string]MetricAggregate, error) {
	assignmentCount, err := s.assignments.CountByVariant(ctx, nil, exp.ID, variant)
	if err != nil {
		return nil, apperr.Internal("count assignments", err)
	}

	window := Window{Start: exp.StartAt, End: exp.EndAt}
	accums := make(map[string]*metricAccum, len(metrics))
	for _, m := range metrics {
		accums[m] = &metricAccum{}
	}

	offset := 0
	for {
		subjects, err := s.assignments.ListSubjectIDsByVariant(ctx, nil, exp.ID, variant, offset, s.pageSize)
		if err != nil {
			return nil, apperr.Internal("list assigned subjects", err)
		}
		if len(subjects) == 0 {
			break
		}
		for _, metric := range metrics {
			outcomes, err := s.source.FetchOutcomes(ctx, subjects, metric, window)
			if err != nil {
				return nil, err
			}
			acc := accums[metric]
			for _, values := range outcomes {
				if len(values) == 0 {
					continue
				}
				var subjectTotal float64
				for _, v := range values {
					subjectTotal += v
				}
				acc.sum += subjectTotal
				acc.subjects++
			}
		}
		if len(subjects) < s.pageSize {
			break
		}
		offset += len(subjects)
	}

	out := make(map[string]MetricAggregate, len(metrics))
	for metric, acc := range accums {
		agg := MetricAggregate{
			AssignmentCount: assignmentCount,
			Count:           acc.subjects,
		}
		if acc.subjects > 0 {
			mean := acc.sum / float64(acc.subjects)
			agg.Mean = &mean
		}
		out[metric] = agg
	}
	return out, nil
}

func buildVariantResults(variant string, exp *types.Experiment, agg map[string]MetricAggregate) types.VariantResults {
	primary := agg[exp.Metric]
	res := types.VariantResults{
		Variant:         variant,
		AssignmentCount: primary.AssignmentCount,
		Count:           primary.Count,
		PrimaryMean:     primary.Mean,
	}
	if exp.SecondaryMetric != nil {
		res.SecondaryMean = agg[*exp.SecondaryMetric].Mean
	}
	return res
}

// CompareMeans picks the arm with the higher mean, treating gaps inside the
// epsilon (and missing data on both sides) as a tie. A variant with data
// beats a variant without.
func CompareMeans(meanA, meanB *float64) string {
	switch {
	case meanA == nil && meanB == nil:
		return types.WinnerTie
	case meanA == nil:
		return types.VariantB
	case meanB == nil:
		return types.VariantA
	}
	diff := *meanA - *meanB
	if math.Abs(diff) <= winnerEpsilon {
		return types.WinnerTie
	}
	if diff > 0 {
		return types.VariantA
	}
	return types.VariantB
}
