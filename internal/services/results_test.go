package services

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/harvesttable/growth-backend/internal/apperr"
	"github.com/harvesttable/growth-backend/internal/types"

	"github.com/google/uuid"
)

func TestSummarizeComputesMeans(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exp := mustCreate(t, env, baseCreateInput())
	mustStart(t, env, exp.ID)

	assignDirect(t, env, exp.ID, "a1", types.VariantA)
	assignDirect(t, env, exp.ID, "a2", types.VariantA)
	assignDirect(t, env, exp.ID, "b1", types.VariantB)
	assignDirect(t, env, exp.ID, "b2", types.VariantB)

	addOutcome(t, env, "a1", "revenue_cents", 400)
	addOutcome(t, env, "a2", "revenue_cents", 600)
	addOutcome(t, env, "b1", "revenue_cents", 700)
	addOutcome(t, env, "b2", "revenue_cents", 900)

	summary, err := env.results.Summarize(ctx, exp.ID)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.PrimaryMetric != "revenue_cents" {
		t.Fatalf("primary metric = %q", summary.PrimaryMetric)
	}
	if summary.VariantA.PrimaryMean == nil || math.Abs(*summary.VariantA.PrimaryMean-500) > 1e-9 {
		t.Fatalf("A mean = %v, want 500", summary.VariantA.PrimaryMean)
	}
	if summary.VariantB.PrimaryMean == nil || math.Abs(*summary.VariantB.PrimaryMean-800) > 1e-9 {
		t.Fatalf("B mean = %v, want 800", summary.VariantB.PrimaryMean)
	}
	if summary.Winner != types.VariantB {
		t.Fatalf("winner = %q, want B", summary.Winner)
	}
	if summary.VariantA.AssignmentCount != 2 || summary.VariantA.Count != 2 {
		t.Fatalf("A counts = %d/%d", summary.VariantA.AssignmentCount, summary.VariantA.Count)
	}
}

func TestSummarizeSumsPerSubject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exp := mustCreate(t, env, baseCreateInput())
	mustStart(t, env, exp.ID)

	// A subject's value for a metric is the sum of all its events, so
	// a repeat booker counts once in the denominator.
	assignDirect(t, env, exp.ID, "repeat", types.VariantA)
	addOutcome(t, env, "repeat", "revenue_cents", 300)
	addOutcome(t, env, "repeat", "revenue_cents", 200)

	summary, err := env.results.Summarize(ctx, exp.ID)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.VariantA.Count != 1 {
		t.Fatalf("A subject count = %d, want 1", summary.VariantA.Count)
	}
	if summary.VariantA.PrimaryMean == nil || *summary.VariantA.PrimaryMean != 500 {
		t.Fatalf("A mean = %v, want 500", summary.VariantA.PrimaryMean)
	}
}

func TestSummarizeExcludesSubjectsWithoutData(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exp := mustCreate(t, env, baseCreateInput())
	mustStart(t, env, exp.ID)

	assignDirect(t, env, exp.ID, "spender", types.VariantA)
	assignDirect(t, env, exp.ID, "browser", types.VariantA)
	addOutcome(t, env, "spender", "revenue_cents", 1000)

	summary, err := env.results.Summarize(ctx, exp.ID)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	// The no-data subject appears in the assignment count but not in the
	// mean's denominator; counting it as zero would halve the mean.
	if summary.VariantA.AssignmentCount != 2 {
		t.Fatalf("A assignment count = %d, want 2", summary.VariantA.AssignmentCount)
	}
	if summary.VariantA.Count != 1 {
		t.Fatalf("A subject count = %d, want 1", summary.VariantA.Count)
	}
	if summary.VariantA.PrimaryMean == nil || *summary.VariantA.PrimaryMean != 1000 {
		t.Fatalf("A mean = %v, want 1000", summary.VariantA.PrimaryMean)
	}
}

func TestSummarizeIgnoresEventsOutsideWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exp := mustCreate(t, env, baseCreateInput())
	mustStart(t, env, exp.ID)

	assignDirect(t, env, exp.ID, "a1", types.VariantA)
	if _, err := env.outcomes.Create(ctx, nil, []*types.OutcomeEvent{{
		SubjectID:  "a1",
		Metric:     "revenue_cents",
		Value:      9999,
		OccurredAt: exp.StartAt.Add(-time.Hour),
	}}); err != nil {
		t.Fatalf("add stale outcome: %v", err)
	}

	summary, err := env.results.Summarize(ctx, exp.ID)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.VariantA.PrimaryMean != nil {
		t.Fatalf("event before the window leaked into the mean: %v", *summary.VariantA.PrimaryMean)
	}
	if summary.Winner != types.WinnerTie {
		t.Fatalf("winner = %q, want tie", summary.Winner)
	}
}

func TestSummarizeSecondaryMetric(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	input := baseCreateInput()
	input.SecondaryMetric = strPtr("rating")
	exp := mustCreate(t, env, input)
	mustStart(t, env, exp.ID)

	assignDirect(t, env, exp.ID, "a1", types.VariantA)
	addOutcome(t, env, "a1", "revenue_cents", 500)
	addOutcome(t, env, "a1", "rating", 4)

	summary, err := env.results.Summarize(ctx, exp.ID)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.SecondaryMetric == nil || *summary.SecondaryMetric != "rating" {
		t.Fatalf("secondary metric = %v", summary.SecondaryMetric)
	}
	if summary.VariantA.SecondaryMean == nil || *summary.VariantA.SecondaryMean != 4 {
		t.Fatalf("A secondary mean = %v, want 4", summary.VariantA.SecondaryMean)
	}
	// The winner reads the primary metric only.
	if summary.Winner != types.VariantA {
		t.Fatalf("winner = %q, want A", summary.Winner)
	}
}

func TestSummarizeIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exp := mustCreate(t, env, baseCreateInput())
	mustStart(t, env, exp.ID)

	assignDirect(t, env, exp.ID, "a1", types.VariantA)
	assignDirect(t, env, exp.ID, "b1", types.VariantB)
	addOutcome(t, env, "a1", "revenue_cents", 500)
	addOutcome(t, env, "b1", "revenue_cents", 620)

	first, err := env.results.Summarize(ctx, exp.ID)
	if err != nil {
		t.Fatalf("first summarize: %v", err)
	}
	second, err := env.results.Summarize(ctx, exp.ID)
	if err != nil {
		t.Fatalf("second summarize: %v", err)
	}
	if *first.VariantA.PrimaryMean != *second.VariantA.PrimaryMean ||
		*first.VariantB.PrimaryMean != *second.VariantB.PrimaryMean ||
		first.Winner != second.Winner {
		t.Fatalf("recompute diverged: %+v vs %+v", first, second)
	}
}

func TestSummarizeNotFound(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.results.Summarize(context.Background(), uuid.New()); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestCompareMeans(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	cases := []struct {
		name string
		a, b *float64
		want string
	}{
		{"a higher", f(620), f(500), types.VariantA},
		{"b higher", f(500), f(620), types.VariantB},
		{"equal is tie", f(500), f(500), types.WinnerTie},
		{"inside epsilon is tie", f(500), f(500 + 1e-12), types.WinnerTie},
		{"both missing is tie", nil, nil, types.WinnerTie},
		{"data beats no data", f(1), nil, types.VariantA},
		{"data beats no data other side", nil, f(1), types.VariantB},
	}
	for _, tc := range cases {
		if got := CompareMeans(tc.a, tc.b); got != tc.want {
			t.Fatalf("%s: CompareMeans = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestAggregateVariantPagesThroughSubjects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exp := mustCreate(t, env, baseCreateInput())
	mustStart(t, env, exp.ID)

	// More subjects than one page so the pagination loop runs twice.
	n := aggregationPageSize + 25
	events := make([]*types.OutcomeEvent, 0, n)
	for i := 0; i < n; i++ {
		subject := subjectID(i)
		assignDirect(t, env, exp.ID, subject, types.VariantA)
		events = append(events, &types.OutcomeEvent{
			SubjectID:  subject,
			Metric:     "revenue_cents",
			Value:      100,
			OccurredAt: time.Now(),
		})
	}
	if _, err := env.outcomes.Create(ctx, nil, events); err != nil {
		t.Fatalf("bulk outcomes: %v", err)
	}

	summary, err := env.results.Summarize(ctx, exp.ID)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.VariantA.Count != int64(n) {
		t.Fatalf("A subject count = %d, want %d", summary.VariantA.Count, n)
	}
	if summary.VariantA.PrimaryMean == nil || *summary.VariantA.PrimaryMean != 100 {
		t.Fatalf("A mean = %v, want 100", summary.VariantA.PrimaryMean)
	}
}

func TestResultsPageSizeFromEnv(t *testing.T) {
	t.Setenv("RESULTS_PAGE_SIZE", "2")
	env := newTestEnv(t)
	ctx := context.Background()
	exp := mustCreate(t, env, baseCreateInput())
	mustStart(t, env, exp.ID)

	// Five subjects against a page size of two forces three pages.
	for i := 0; i < 5; i++ {
		subject := subjectID(i)
		assignDirect(t, env, exp.ID, subject, types.VariantA)
		addOutcome(t, env, subject, "revenue_cents", 10)
	}

	summary, err := env.results.Summarize(ctx, exp.ID)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.VariantA.Count != 5 {
		t.Fatalf("A subject count = %d, want 5", summary.VariantA.Count)
	}
	if summary.VariantA.PrimaryMean == nil || *summary.VariantA.PrimaryMean != 10 {
		t.Fatalf("A mean = %v, want 10", summary.VariantA.PrimaryMean)
	}
}

func subjectID(i int) string {
	// Zero-padded so lexicographic paging order is stable.
	return "subject-" + string(rune('a'+i/676%26)) + string(rune('a'+i/26%26)) + string(rune('a'+i%26))
}
