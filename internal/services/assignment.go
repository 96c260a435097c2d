package services

import (
	"context"
	"crypto/sha256"
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/harvesttable/growth-backend/internal/apperr"
	"github.com/harvesttable/growth-backend/internal/logger"
	"github.com/harvesttable/growth-backend/internal/repos"
	"github.com/harvesttable/growth-backend/internal/types"
)

type AssignmentService interface {
	// Resolve buckets a subject into one arm of a RUNNING experiment.
	Resolve(ctx context.Context, experimentID uuid.UUID, subjectID string) (*types.Assignment, error)
}

type assignmentService struct {
	log         *logger.Logger
	experiments repos.ExperimentRepo
	assignments repos.AssignmentRepo
}

func NewAssignmentService(baseLog *logger.Logger, experiments repos.ExperimentRepo, assignments repos.AssignmentRepo) AssignmentService {
	return &assignmentService{
		log:         baseLog.With("service", "AssignmentService"),
		experiments: experiments,
		assignments: assignments,
	}
}

func (s *assignmentService) Resolve(ctx context.Context, experimentID uuid.UUID, subjectID string) (*types.Assignment, error) {
	if subjectID == "" {
		return nil, apperr.Validation("subject_id is required")
	}
	exp, err := s.experiments.GetByID(ctx, nil, experimentID)
	if err != nil {
		return nil, apperr.Internal("get experiment", err)
	}
	if exp == nil {
		return nil, apperr.NotFound("experiment %s not found", experimentID)
	}
	if exp.Status != types.StatusRunning {
		// Terminal experiments freeze assignment, but a subject bucketed
		// while the experiment ran keeps its recorded variant.
		existing, err := s.assignments.GetByPair(ctx, nil, experimentID, subjectID)
		if err != nil {
			return nil, apperr.Internal("get assignment", err)
		}
		if existing != nil {
			return existing, nil
		}
		return nil, apperr.InvalidTransition("experiment %s is %s and accepts no new assignments", experimentID, exp.Status)
	}

	variant := BucketVariant(experimentID, subjectID)
	row, err := s.assignments.GetOrCreate(ctx, nil, experimentID, subjectID, variant)
	if err != nil {
		return nil, apperr.Internal("record assignment", err)
	}
	s.log.Debug("Assignment resolved", "experiment_id", experimentID, "subject_id", subjectID, "variant", variant)
	return row, nil
}

// BucketVariant derives the arm from a hash of (experiment id, subject id)
// alone. The same pair always lands in the same arm regardless of call
// order, stored state, or which server instance answers.
func BucketVariant(experimentID uuid.UUID, subjectID string) string {
	h := sha256.New()
	h.Write([]byte(experimentID.String()))
	h.Write([]byte(":"))
	h.Write([]byte(subjectID))
	sum := h.Sum(nil)
	if binary.BigEndian.Uint64(sum[:8])%2 == 0 {
		return types.VariantA
	}
	return types.VariantB
}
