package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/harvesttable/growth-backend/internal/apperr"
	"github.com/harvesttable/growth-backend/internal/logger"
	"github.com/harvesttable/growth-backend/internal/repos"
	"github.com/harvesttable/growth-backend/internal/types"
)

type CreateExperimentInput struct {
	Name            string               `json:"name"`
	Hypothesis      string               `json:"hypothesis"`
	Category        *string              `json:"category"`
	VariantA        json.RawMessage      `json:"variant_a"`
	VariantB        json.RawMessage      `json:"variant_b"`
	Metric          string               `json:"metric"`
	SecondaryMetric *string              `json:"secondary_metric"`
	HarmThreshold   *types.HarmThreshold `json:"harm_threshold"`
	StartAt         time.Time            `json:"start_at"`
	EndAt           time.Time            `json:"end_at"`
}

type ExperimentService interface {
	Create(ctx context.Context, input CreateExperimentInput) (*types.Experiment, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Experiment, error)
	List(ctx context.Context, filter repos.ExperimentFilter) ([]*types.Experiment, error)
	Start(ctx context.Context, id uuid.UUID) (*types.Experiment, error)
	Stop(ctx context.Context, id uuid.UUID, reason string) (*types.Experiment, error)
	Complete(ctx context.Context, id uuid.UUID) (*types.Experiment, error)
}

type experimentService struct {
	db      *gorm.DB
	log     *logger.Logger
	repo    repos.ExperimentRepo
	catalog MetricCatalog
}

func NewExperimentService(db *gorm.DB, baseLog *logger.Logger, repo repos.ExperimentRepo, catalog MetricCatalog) ExperimentService {
	return &experimentService{
		db:      db,
		log:     baseLog.With("service", "ExperimentService"),
		repo:    repo,
		catalog: catalog,
	}
}

func (s *experimentService) Create(ctx context.Context, input CreateExperimentInput) (*types.Experiment, error) {
	if err := s.validateCreate(input); err != nil {
		return nil, err
	}

	exp := &types.Experiment{
		ID:              uuid.New(),
		Name:            strings.TrimSpace(input.Name),
		Hypothesis:      strings.TrimSpace(input.Hypothesis),
		Category:        normalizeCategory(input.Category),
		VariantA:        datatypes.JSON(input.VariantA),
		VariantB:        datatypes.JSON(input.VariantB),
		Metric:          input.Metric,
		SecondaryMetric: input.SecondaryMetric,
		StartAt:         input.StartAt,
		EndAt:           input.EndAt,
		Status:          types.StatusDraft,
	}
	if input.HarmThreshold != nil {
		raw, err := json.Marshal(input.HarmThreshold)
		if err != nil {
			return nil, apperr.Internal("encode harm threshold", err)
		}
		exp.HarmThreshold = datatypes.JSON(raw)
	}

	// Early conflict signal; the authoritative check happens inside Start.
	if exp.Category != nil {
		count, err := s.repo.CountRunningInCategory(ctx, nil, *exp.Category, uuid.Nil)
		if err != nil {
			return nil, apperr.Internal("count running experiments", err)
		}
		if count > 0 {
			return nil, apperr.CategoryConflict("category %q already has a running experiment", *exp.Category)
		}
	}

	created, err := s.repo.Create(ctx, nil, exp)
	if err != nil {
		return nil, apperr.Internal("create experiment", err)
	}
	s.log.Info("Experiment created", "experiment_id", created.ID, "name", created.Name, "metric", created.Metric)
	return created, nil
}

func (s *experimentService) validateCreate(input CreateExperimentInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return apperr.Validation("name is required")
	}
	if input.Metric == "" {
		return apperr.Validation("metric is required")
	}
	if !s.catalog.IsSupported(input.Metric) {
		return apperr.Validation("unsupported metric %q (supported: %s)", input.Metric, strings.Join(s.catalog.Keys(), ", "))
	}
	if input.SecondaryMetric != nil && !s.catalog.IsSupported(*input.SecondaryMetric) {
		return apperr.Validation("unsupported secondary metric %q", *input.SecondaryMetric)
	}
	if len(input.VariantA) == 0 || len(input.VariantB) == 0 {
		return apperr.Validation("both variant payloads are required")
	}
	if input.StartAt.IsZero() || input.EndAt.IsZero() {
		return apperr.Validation("start_at and end_at are required")
	}
	if !input.StartAt.Before(input.EndAt) {
		return apperr.Validation("start_at must be before end_at")
	}
	if input.HarmThreshold != nil {
		ht := input.HarmThreshold
		if !s.catalog.IsSupported(ht.Metric) {
			return apperr.Validation("unsupported harm threshold metric %q", ht.Metric)
		}
		if ht.Magnitude <= 0 {
			return apperr.Validation("harm threshold magnitude must be positive")
		}
		switch ht.Direction {
		case types.HarmDirectionDecrease, types.HarmDirectionIncrease:
		default:
			return apperr.Validation("harm threshold direction must be %q or %q", types.HarmDirectionDecrease, types.HarmDirectionIncrease)
		}
	}
	return nil
}

func (s *experimentService) Get(ctx context.Context, id uuid.UUID) (*types.Experiment, error) {
	exp, err := s.repo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, apperr.Internal("get experiment", err)
	}
	if exp == nil {
		return nil, apperr.NotFound("experiment %s not found", id)
	}
	return exp, nil
}

func (s *experimentService) List(ctx context.Context, filter repos.ExperimentFilter) ([]*types.Experiment, error) {
	out, err := s.repo.List(ctx, nil, filter)
	if err != nil {
		return nil, apperr.Internal("list experiments", err)
	}
	return out, nil
}

// Start moves DRAFT to RUNNING. The category invariant is re-checked inside
// the same transaction as the conditional status flip, so two concurrent
// starts for one category cannot both succeed.
func (s *experimentService) Start(ctx context.Context, id uuid.UUID) (*types.Experiment, error) {
	var started *types.Experiment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exp, err := s.repo.GetByID(ctx, tx, id)
		if err != nil {
			return apperr.Internal("get experiment", err)
		}
		if exp == nil {
			return apperr.NotFound("experiment %s not found", id)
		}
		if exp.Status != types.StatusDraft {
			return apperr.InvalidTransition("cannot start experiment in status %q", exp.Status)
		}
		if exp.Category != nil {
			count, err := s.repo.CountRunningInCategory(ctx, tx, *exp.Category, exp.ID)
			if err != nil {
				return apperr.Internal("count running experiments", err)
			}
			if count > 0 {
				return apperr.CategoryConflict("category %q already has a running experiment", *exp.Category)
			}
		}
		ok, err := s.repo.UpdateStatusIf(ctx, tx, id, types.StatusDraft, types.StatusRunning, nil)
		if err != nil {
			// The partial unique index backs the same invariant at the
			// store level; treat its violation as a conflict, not a bug.
			if isUniqueViolation(err) {
				return apperr.CategoryConflict("category already has a running experiment")
			}
			return apperr.Internal("start experiment", err)
		}
		if !ok {
			return apperr.InvalidTransition("experiment %s is no longer in draft", id)
		}
		exp.Status = types.StatusRunning
		started = exp
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Experiment started", "experiment_id", id)
	return started, nil
}

// Stop moves RUNNING to STOPPED. The second of two concurrent stops sees
// the already-terminal row and reports an invalid transition instead of
// pretending it acted.
func (s *experimentService) Stop(ctx context.Context, id uuid.UUID, reason string) (*types.Experiment, error) {
	return s.terminate(ctx, id, types.StatusStopped, reason)
}

func (s *experimentService) Complete(ctx context.Context, id uuid.UUID) (*types.Experiment, error) {
	return s.terminate(ctx, id, types.StatusComplete, "")
}

func (s *experimentService) terminate(ctx context.Context, id uuid.UUID, toStatus, reason string) (*types.Experiment, error) {
	updates := map[string]interface{}{}
	if reason != "" {
		updates["stopped_reason"] = reason
	}
	ok, err := s.repo.UpdateStatusIf(ctx, nil, id, types.StatusRunning, toStatus, updates)
	if err != nil {
		return nil, apperr.Internal("update experiment status", err)
	}
	if !ok {
		exp, getErr := s.repo.GetByID(ctx, nil, id)
		if getErr != nil {
			return nil, apperr.Internal("get experiment", getErr)
		}
		if exp == nil {
			return nil, apperr.NotFound("experiment %s not found", id)
		}
		return nil, apperr.InvalidTransition("cannot move experiment from status %q to %q", exp.Status, toStatus)
	}
	exp, err := s.repo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, apperr.Internal("get experiment", err)
	}
	s.log.Info("Experiment transitioned", "experiment_id", id, "status", toStatus, "reason", reason)
	return exp, nil
}

func normalizeCategory(category *string) *string {
	if category == nil {
		return nil
	}
	c := strings.TrimSpace(*category)
	if c == "" {
		return nil
	}
	return &c
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
