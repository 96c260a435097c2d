package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/harvesttable/growth-backend/internal/apperr"
	"github.com/harvesttable/growth-backend/internal/repos"
	"github.com/harvesttable/growth-backend/internal/types"
)

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CreateExperimentInput)
	}{
		{"missing name", func(in *CreateExperimentInput) { in.Name = "  " }},
		{"missing metric", func(in *CreateExperimentInput) { in.Metric = "" }},
		{"unknown metric", func(in *CreateExperimentInput) { in.Metric = "made_up" }},
		{"unknown secondary metric", func(in *CreateExperimentInput) { in.SecondaryMetric = strPtr("made_up") }},
		{"missing variant", func(in *CreateExperimentInput) { in.VariantB = nil }},
		{"window inverted", func(in *CreateExperimentInput) { in.StartAt, in.EndAt = in.EndAt, in.StartAt }},
		{"harm threshold bad direction", func(in *CreateExperimentInput) {
			in.HarmThreshold = &types.HarmThreshold{Metric: "revenue_cents", Direction: "sideways", Magnitude: 0.2}
		}},
		{"harm threshold bad magnitude", func(in *CreateExperimentInput) {
			in.HarmThreshold = &types.HarmThreshold{Metric: "revenue_cents", Direction: types.HarmDirectionDecrease, Magnitude: 0}
		}},
		{"harm threshold unknown metric", func(in *CreateExperimentInput) {
			in.HarmThreshold = &types.HarmThreshold{Metric: "made_up", Direction: types.HarmDirectionDecrease, Magnitude: 0.2}
		}},
	}
	for _, tc := range cases {
		input := baseCreateInput()
		tc.mutate(&input)
		if _, err := env.lifecycle.Create(ctx, input); !apperr.IsKind(err, apperr.KindValidation) {
			t.Fatalf("%s: want validation error, got %v", tc.name, err)
		}
	}
}

func TestCreateStartsInDraft(t *testing.T) {
	env := newTestEnv(t)
	exp := mustCreate(t, env, baseCreateInput())

	if exp.Status != types.StatusDraft {
		t.Fatalf("new experiment status = %q, want %q", exp.Status, types.StatusDraft)
	}
	if exp.ID == uuid.Nil {
		t.Fatal("new experiment has no id")
	}
	if exp.Category == nil || *exp.Category != "discovery" {
		t.Fatalf("category not persisted: %v", exp.Category)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exp := mustCreate(t, env, baseCreateInput())

	// Draft cannot be stopped or completed.
	if _, err := env.lifecycle.Stop(ctx, exp.ID, "changed our minds"); !apperr.IsKind(err, apperr.KindInvalidTransition) {
		t.Fatalf("stop draft: want invalid transition, got %v", err)
	}
	if _, err := env.lifecycle.Complete(ctx, exp.ID); !apperr.IsKind(err, apperr.KindInvalidTransition) {
		t.Fatalf("complete draft: want invalid transition, got %v", err)
	}

	started := mustStart(t, env, exp.ID)
	if started.Status != types.StatusRunning {
		t.Fatalf("status after start = %q, want %q", started.Status, types.StatusRunning)
	}

	// Running cannot be started again.
	if _, err := env.lifecycle.Start(ctx, exp.ID); !apperr.IsKind(err, apperr.KindInvalidTransition) {
		t.Fatalf("start running: want invalid transition, got %v", err)
	}

	done, err := env.lifecycle.Complete(ctx, exp.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != types.StatusComplete {
		t.Fatalf("status after complete = %q, want %q", done.Status, types.StatusComplete)
	}

	// Terminal states are absorbing.
	if _, err := env.lifecycle.Stop(ctx, exp.ID, "too late"); !apperr.IsKind(err, apperr.KindInvalidTransition) {
		t.Fatalf("stop complete: want invalid transition, got %v", err)
	}
	if _, err := env.lifecycle.Start(ctx, exp.ID); !apperr.IsKind(err, apperr.KindInvalidTransition) {
		t.Fatalf("start complete: want invalid transition, got %v", err)
	}
}

func TestStopRecordsReason(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exp := mustCreate(t, env, baseCreateInput())
	mustStart(t, env, exp.ID)

	stopped, err := env.lifecycle.Stop(ctx, exp.ID, "menu redesign shipped early")
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if stopped.Status != types.StatusStopped {
		t.Fatalf("status = %q, want %q", stopped.Status, types.StatusStopped)
	}
	if stopped.StoppedReason != "menu redesign shipped early" {
		t.Fatalf("stopped_reason = %q", stopped.StoppedReason)
	}
}

func TestLifecycleNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	missing := uuid.New()

	if _, err := env.lifecycle.Get(ctx, missing); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("get: want not found, got %v", err)
	}
	if _, err := env.lifecycle.Start(ctx, missing); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("start: want not found, got %v", err)
	}
	if _, err := env.lifecycle.Stop(ctx, missing, "x"); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("stop: want not found, got %v", err)
	}
}

func TestCategoryConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := mustCreate(t, env, baseCreateInput())
	secondInput := baseCreateInput()
	secondInput.Name = "chef card layout v2"
	second := mustCreate(t, env, secondInput)

	mustStart(t, env, first.ID)

	// A second RUNNING experiment in the same category is refused.
	if _, err := env.lifecycle.Start(ctx, second.ID); !apperr.IsKind(err, apperr.KindCategoryConflict) {
		t.Fatalf("start second: want category conflict, got %v", err)
	}
	if reload(t, env, second.ID).Status != types.StatusDraft {
		t.Fatal("refused start must leave the experiment in draft")
	}

	// Creating into an occupied category is refused up front.
	thirdInput := baseCreateInput()
	thirdInput.Name = "chef card layout v3"
	if _, err := env.lifecycle.Create(ctx, thirdInput); !apperr.IsKind(err, apperr.KindCategoryConflict) {
		t.Fatalf("create into occupied category: want category conflict, got %v", err)
	}

	// Stopping the incumbent frees the category.
	if _, err := env.lifecycle.Stop(ctx, first.ID, "done"); err != nil {
		t.Fatalf("stop first: %v", err)
	}
	mustStart(t, env, second.ID)
}

func TestUncategorizedExperimentsRunConcurrently(t *testing.T) {
	env := newTestEnv(t)

	a := baseCreateInput()
	a.Category = nil
	b := baseCreateInput()
	b.Name = "quote reminder copy"
	b.Category = strPtr("   ") // blank normalizes to nil

	expA := mustCreate(t, env, a)
	expB := mustCreate(t, env, b)
	if expB.Category != nil {
		t.Fatalf("blank category should normalize to nil, got %q", *expB.Category)
	}

	mustStart(t, env, expA.ID)
	mustStart(t, env, expB.ID)
}

func TestListFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pricing := baseCreateInput()
	pricing.Name = "deposit size"
	pricing.Category = strPtr("pricing")
	expP := mustCreate(t, env, pricing)
	mustCreate(t, env, baseCreateInput())
	mustStart(t, env, expP.ID)

	running, err := env.lifecycle.List(ctx, repos.ExperimentFilter{Status: types.StatusRunning})
	if err != nil {
		t.Fatalf("list running: %v", err)
	}
	if len(running) != 1 || running[0].ID != expP.ID {
		t.Fatalf("running filter returned %d rows", len(running))
	}

	byCategory, err := env.lifecycle.List(ctx, repos.ExperimentFilter{Category: "pricing"})
	if err != nil {
		t.Fatalf("list by category: %v", err)
	}
	if len(byCategory) != 1 || byCategory[0].Name != "deposit size" {
		t.Fatalf("category filter returned %d rows", len(byCategory))
	}

	all, err := env.lifecycle.List(ctx, repos.ExperimentFilter{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("unfiltered list returned %d rows, want 2", len(all))
	}
}

func TestHarmThresholdRoundTrips(t *testing.T) {
	env := newTestEnv(t)
	input := baseCreateInput()
	input.HarmThreshold = &types.HarmThreshold{
		Metric:    "cancellation",
		Direction: types.HarmDirectionIncrease,
		Magnitude: 0.25,
		Variant:   types.VariantB,
	}
	exp := mustCreate(t, env, input)

	rule, err := reload(t, env, exp.ID).HarmRule()
	if err != nil {
		t.Fatalf("decode harm rule: %v", err)
	}
	if rule == nil {
		t.Fatal("harm rule missing after round trip")
	}
	if rule.Metric != "cancellation" || rule.Direction != types.HarmDirectionIncrease || rule.Magnitude != 0.25 {
		t.Fatalf("harm rule mangled: %+v", rule)
	}
	if got := rule.GuardedVariants(); len(got) != 1 || got[0] != types.VariantB {
		t.Fatalf("guarded variants = %v, want [B]", got)
	}
}

func TestValidationMessagesNameTheProblem(t *testing.T) {
	env := newTestEnv(t)
	input := baseCreateInput()
	input.Metric = "made_up"
	_, err := env.lifecycle.Create(context.Background(), input)
	if err == nil || !strings.Contains(err.Error(), "made_up") {
		t.Fatalf("error should name the rejected metric, got %v", err)
	}
}
