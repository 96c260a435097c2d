package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harvesttable/growth-backend/internal/logger"
	"github.com/harvesttable/growth-backend/internal/types"
)

type OutcomeValue struct {
	SubjectID string
	Value     float64
}

type OutcomeEventRepo interface {
	Create(ctx context.Context, tx *gorm.DB, events []*types.OutcomeEvent) ([]*types.OutcomeEvent, error)
	GetValuesBySubjects(ctx context.Context, tx *gorm.DB, subjectIDs []string, metric string, windowStart, windowEnd time.Time) ([]OutcomeValue, error)
}

type outcomeEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOutcomeEventRepo(db *gorm.DB, baseLog *logger.Logger) OutcomeEventRepo {
	return &outcomeEventRepo{
		db:  db,
		log: baseLog.With("repo", "OutcomeEventRepo"),
	}
}

func (r *outcomeEventRepo) Create(ctx context.Context, tx *gorm.DB, events []*types.OutcomeEvent) ([]*types.OutcomeEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(events) == 0 {
		return []*types.OutcomeEvent{}, nil
	}
	for _, ev := range events {
		if ev.ID == uuid.Nil {
			ev.ID = uuid.New()
		}
	}
	if err := transaction.WithContext(ctx).Create(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// GetValuesBySubjects returns every (subject, value) pair inside the window.
// Subjects with no rows are simply absent; absence means no data, not zero.
func (r *outcomeEventRepo) GetValuesBySubjects(ctx context.Context, tx *gorm.DB, subjectIDs []string, metric string, windowStart, windowEnd time.Time) ([]OutcomeValue, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []OutcomeValue
	if len(subjectIDs) == 0 || metric == "" {
		return out, nil
	}
	q := transaction.WithContext(ctx).
		Model(&types.OutcomeEvent{}).
		Select("subject_id, value").
		Where("metric = ? AND subject_id IN ?", metric, subjectIDs)
	if !windowStart.IsZero() {
		q = q.Where("occurred_at >= ?", windowStart)
	}
	if !windowEnd.IsZero() {
		q = q.Where("occurred_at <= ?", windowEnd)
	}
	if err := q.Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
