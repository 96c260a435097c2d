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

type LiveConfigRepo interface {
	GetBySurface(ctx context.Context, tx *gorm.DB, surface string) (*types.LiveConfig, error)
	Upsert(ctx context.Context, tx *gorm.DB, cfg *types.LiveConfig) (*types.LiveConfig, error)
}

type liveConfigRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLiveConfigRepo(db *gorm.DB, baseLog *logger.Logger) LiveConfigRepo {
	return &liveConfigRepo{
		db:  db,
		log: baseLog.With("repo", "LiveConfigRepo"),
	}
}

func (r *liveConfigRepo) GetBySurface(ctx context.Context, tx *gorm.DB, surface string) (*types.LiveConfig, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if surface == "" {
		return nil, nil
	}
	var row types.LiveConfig
	err := transaction.WithContext(ctx).
		Where("surface = ?", surface).
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

func (r *liveConfigRepo) Upsert(ctx context.Context, tx *gorm.DB, cfg *types.LiveConfig) (*types.LiveConfig, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if cfg == nil || cfg.Surface == "" {
		return nil, nil
	}
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	cfg.UpdatedAt = time.Now()
	if err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "surface"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"experiment_id", "variant", "payload", "promoted_at", "updated_at",
			}),
		}).
		Create(cfg).Error; err != nil {
		return nil, err
	}
	return r.GetBySurface(ctx, transaction, cfg.Surface)
}
