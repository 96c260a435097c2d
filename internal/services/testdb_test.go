package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/harvesttable/growth-backend/internal/logger"
	"github.com/harvesttable/growth-backend/internal/repos"
	"github.com/harvesttable/growth-backend/internal/types"
)

func newTestLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	// One connection keeps every query on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&types.Experiment{},
		&types.Assignment{},
		&types.OutcomeEvent{},
		&types.LiveConfig{},
		&types.AuditLog{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// testEnv wires the full service graph over an in-memory store, the same
// way the app container does over postgres.
type testEnv struct {
	db          *gorm.DB
	experiments repos.ExperimentRepo
	assignments repos.AssignmentRepo
	outcomes    repos.OutcomeEventRepo
	liveConfigs repos.LiveConfigRepo
	audit       repos.AuditLogRepo

	lifecycle ExperimentService
	assigner  AssignmentService
	results   ResultsService
	harm      HarmMonitor
	promotion PromotionService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	log := newTestLogger()

	catalog, err := NewMetricCatalog(log)
	if err != nil {
		t.Fatalf("metric catalog: %v", err)
	}

	env := &testEnv{
		db:          db,
		experiments: repos.NewExperimentRepo(db, log),
		assignments: repos.NewAssignmentRepo(db, log),
		outcomes:    repos.NewOutcomeEventRepo(db, log),
		liveConfigs: repos.NewLiveConfigRepo(db, log),
		audit:       repos.NewAuditLogRepo(db, log),
	}
	env.lifecycle = NewExperimentService(db, log, env.experiments, catalog)
	env.assigner = NewAssignmentService(log, env.experiments, env.assignments)
	source := NewOutcomeMetricSource(log, env.outcomes)
	env.results = NewResultsService(log, env.experiments, env.assignments, source)
	env.harm = NewHarmMonitor(log, env.experiments, env.audit, env.results, env.lifecycle)
	env.promotion = NewPromotionService(db, log, env.experiments, env.liveConfigs, env.audit, nil)
	return env
}

func strPtr(s string) *string { return &s }

func baseCreateInput() CreateExperimentInput {
	now := time.Now()
	return CreateExperimentInput{
		Name:     "chef card layout",
		Category: strPtr("discovery"),
		VariantA: json.RawMessage(`{"layout":"grid"}`),
		VariantB: json.RawMessage(`{"layout":"list"}`),
		Metric:   "revenue_cents",
		StartAt:  now.Add(-24 * time.Hour),
		EndAt:    now.Add(24 * time.Hour),
	}
}

func mustCreate(t *testing.T, env *testEnv, input CreateExperimentInput) *types.Experiment {
	t.Helper()
	exp, err := env.lifecycle.Create(context.Background(), input)
	if err != nil {
		t.Fatalf("create experiment: %v", err)
	}
	return exp
}

func mustStart(t *testing.T, env *testEnv, id uuid.UUID) *types.Experiment {
	t.Helper()
	exp, err := env.lifecycle.Start(context.Background(), id)
	if err != nil {
		t.Fatalf("start experiment: %v", err)
	}
	return exp
}

// assignDirect pins a subject to a chosen arm, bypassing the hash, so
// aggregation tests control exactly which subjects sit in which variant.
func assignDirect(t *testing.T, env *testEnv, experimentID uuid.UUID, subjectID, variant string) {
	t.Helper()
	if _, err := env.assignments.GetOrCreate(context.Background(), nil, experimentID, subjectID, variant); err != nil {
		t.Fatalf("assign %s to %s: %v", subjectID, variant, err)
	}
}

func addOutcome(t *testing.T, env *testEnv, subjectID, metric string, value float64) {
	t.Helper()
	if _, err := env.outcomes.Create(context.Background(), nil, []*types.OutcomeEvent{{
		SubjectID:  subjectID,
		Metric:     metric,
		Value:      value,
		OccurredAt: time.Now(),
		Source:     "test",
	}}); err != nil {
		t.Fatalf("add outcome for %s: %v", subjectID, err)
	}
}

func reload(t *testing.T, env *testEnv, id uuid.UUID) *types.Experiment {
	t.Helper()
	exp, err := env.experiments.GetByID(context.Background(), nil, id)
	if err != nil {
		t.Fatalf("reload experiment: %v", err)
	}
	if exp == nil {
		t.Fatalf("experiment %s vanished", id)
	}
	return exp
}
