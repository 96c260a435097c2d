package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harvesttable/growth-backend/internal/logger"
	"github.com/harvesttable/growth-backend/internal/types"
)

type ExperimentFilter struct {
	Status   string
	Category string
}

type ExperimentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, exp *types.Experiment) (*types.Experiment, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Experiment, error)
	List(ctx context.Context, tx *gorm.DB, filter ExperimentFilter) ([]*types.Experiment, error)
	ListRunningWithHarmThreshold(ctx context.Context, tx *gorm.DB) ([]*types.Experiment, error)
	CountRunningInCategory(ctx context.Context, tx *gorm.DB, category string, excludeID uuid.UUID) (int64, error)
	UpdateStatusIf(ctx context.Context, tx *gorm.DB, id uuid.UUID, fromStatus, toStatus string, updates map[string]interface{}) (bool, error)
	SetWinnerIfUnset(ctx context.Context, tx *gorm.DB, id uuid.UUID, variant string) (bool, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type experimentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExperimentRepo(db *gorm.DB, baseLog *logger.Logger) ExperimentRepo {
	return &experimentRepo{
		db:  db,
		log: baseLog.With("repo", "ExperimentRepo"),
	}
}

func (r *experimentRepo) Create(ctx context.Context, tx *gorm.DB, exp *types.Experiment) (*types.Experiment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if exp == nil {
		return nil, nil
	}
	if exp.ID == uuid.Nil {
		exp.ID = uuid.New()
	}
	if err := transaction.WithContext(ctx).Create(exp).Error; err != nil {
		return nil, err
	}
	return exp, nil
}

func (r *experimentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Experiment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var exp types.Experiment
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&exp).Error
	if err != nil {
		return nil, err
	}
	if exp.ID == uuid.Nil {
		return nil, nil
	}
	return &exp, nil
}

func (r *experimentRepo) List(ctx context.Context, tx *gorm.DB, filter ExperimentFilter) ([]*types.Experiment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Experiment
	q := transaction.WithContext(ctx).Model(&types.Experiment{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *experimentRepo) ListRunningWithHarmThreshold(ctx context.Context, tx *gorm.DB) ([]*types.Experiment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Experiment
	if err := transaction.WithContext(ctx).
		Where("status = ?", types.StatusRunning).
		Where("harm_threshold IS NOT NULL").
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *experimentRepo) CountRunningInCategory(ctx context.Context, tx *gorm.DB, category string, excludeID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if category == "" {
		return 0, nil
	}
	var count int64
	q := transaction.WithContext(ctx).
		Model(&types.Experiment{}).
		Where("category = ? AND status = ?", category, types.StatusRunning)
	if excludeID != uuid.Nil {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateStatusIf is the compare-and-swap transition guard: the row only
// moves when it is still in fromStatus, so two concurrent transitions
// cannot both claim success.
func (r *experimentRepo) UpdateStatusIf(ctx context.Context, tx *gorm.DB, id uuid.UUID, fromStatus, toStatus string, updates map[string]interface{}) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = toStatus
	updates["updated_at"] = time.Now()
	res := transaction.WithContext(ctx).
		Model(&types.Experiment{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *experimentRepo) SetWinnerIfUnset(ctx context.Context, tx *gorm.DB, id uuid.UUID, variant string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return false, nil
	}
	res := transaction.WithContext(ctx).
		Model(&types.Experiment{}).
		Where("id = ? AND winner_variant IS NULL", id).
		Updates(map[string]interface{}{
			"winner_variant": variant,
			"updated_at":     time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *experimentRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&types.Experiment{}).
		Where("id = ?", id).
		Updates(updates).Error
}
