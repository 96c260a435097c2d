package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/harvesttable/growth-backend/internal/logger"
	"github.com/harvesttable/growth-backend/internal/types"
)

type AssignmentRepo interface {
	GetOrCreate(ctx context.Context, tx *gorm.DB, experimentID uuid.UUID, subjectID, variant string) (*types.Assignment, error)
	GetByPair(ctx context.Context, tx *gorm.DB, experimentID uuid.UUID, subjectID string) (*types.Assignment, error)
	CountByVariant(ctx context.Context, tx *gorm.DB, experimentID uuid.UUID, variant string) (int64, error)
	ListSubjectIDsByVariant(ctx context.Context, tx *gorm.DB, experimentID uuid.UUID, variant string, offset, limit int) ([]string, error)
}

type assignmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssignmentRepo(db *gorm.DB, baseLog *logger.Logger) AssignmentRepo {
	return &assignmentRepo{
		db:  db,
		log: baseLog.With("repo", "AssignmentRepo"),
	}
}

// GetOrCreate inserts the assignment row if the (experiment, subject) pair
// has none, then reads whichever row won. The unique index on the pair makes
// concurrent resolves converge on a single row.
func (r *assignmentRepo) GetOrCreate(ctx context.Context, tx *gorm.DB, experimentID uuid.UUID, subjectID, variant string) (*types.Assignment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if experimentID == uuid.Nil || subjectID == "" {
		return nil, nil
	}
	row := &types.Assignment{
		ID:           uuid.New(),
		ExperimentID: experimentID,
		SubjectID:    subjectID,
		Variant:      variant,
		AssignedAt:   time.Now(),
	}
	if err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "experiment_id"}, {Name: "subject_id"}},
			DoNothing: true,
		}).
		Create(row).Error; err != nil {
		return nil, err
	}
	return r.GetByPair(ctx, transaction, experimentID, subjectID)
}

func (r *assignmentRepo) GetByPair(ctx context.Context, tx *gorm.DB, experimentID uuid.UUID, subjectID string) (*types.Assignment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if experimentID == uuid.Nil || subjectID == "" {
		return nil, nil
	}
	var row types.Assignment
	err := transaction.WithContext(ctx).
		Where("experiment_id = ? AND subject_id = ?", experimentID, subjectID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *assignmentRepo) CountByVariant(ctx context.Context, tx *gorm.DB, experimentID uuid.UUID, variant string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if experimentID == uuid.Nil {
		return 0, nil
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Assignment{}).
		Where("experiment_id = ? AND variant = ?", experimentID, variant).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListSubjectIDsByVariant pages through the variant's subjects so large
// experiments can be aggregated in bounded passes.
func (r *assignmentRepo) ListSubjectIDsByVariant(ctx context.Context, tx *gorm.DB, experimentID uuid.UUID, variant string, offset, limit int) ([]string, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []string
	if experimentID == uuid.Nil {
		return out, nil
	}
	if limit <= 0 {
		limit = 500
	}
	if err := transaction.WithContext(ctx).
		Model(&types.Assignment{}).
		Where("experiment_id = ? AND variant = ?", experimentID, variant).
		Order("subject_id ASC").
		Offset(offset).
		Limit(limit).
		Pluck("subject_id", &out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
