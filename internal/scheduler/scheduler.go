package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harvesttable/growth-backend/internal/logger"
	"github.com/harvesttable/growth-backend/internal/repos"
	"github.com/harvesttable/growth-backend/internal/services"
	"github.com/harvesttable/growth-backend/internal/types"
)

// SummaryCache receives refreshed aggregates; nil when redis is absent.
type SummaryCache interface {
	CacheSummary(ctx context.Context, summary *types.ResultsSummary) error
}

// Scheduler drives the engine's only self-initiated writes: the harm sweep
// (which may auto-stop experiments) and the aggregate refresh for all
// RUNNING experiments. An external job runner can call RunOnce instead of
// relying on the in-process cron.
type Scheduler struct {
	log         *logger.Logger
	cronSpec    string
	experiments repos.ExperimentRepo
	results     services.ResultsService
	harm        services.HarmMonitor
	cache       SummaryCache
	cron        *cron.Cron
}

func New(baseLog *logger.Logger, cronSpec string, experiments repos.ExperimentRepo, results services.ResultsService, harm services.HarmMonitor, cache SummaryCache) *Scheduler {
	return &Scheduler{
		log:         baseLog.With("component", "SweepScheduler"),
		cronSpec:    cronSpec,
		experiments: experiments,
		results:     results,
		harm:        harm,
		cache:       cache,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(s.cronSpec, func() {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Error("Scheduled sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	s.cron = c
	c.Start()
	s.log.Info("Sweep scheduler started", "cron", s.cronSpec)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
		s.log.Info("Sweep scheduler stopped")
	}
}

// RunOnce executes one full pass: harm monitoring first (so a breached
// experiment stops before its aggregates are cached as current), then an
// aggregate refresh for everything still RUNNING. Aggregation failures are
// local to the pass and retried on the next one.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	ctx, span := otel.Tracer("scheduler").Start(ctx, "sweep.run_once")
	defer span.End()

	sweep, err := s.harm.Sweep(ctx)
	if err != nil {
		return err
	}
	s.log.Info("Harm sweep pass done", "checked", sweep.Checked, "stopped", sweep.Stopped, "errors", sweep.Errors)
	span.SetAttributes(
		attribute.Int("sweep.checked", sweep.Checked),
		attribute.Int("sweep.stopped", sweep.Stopped),
		attribute.Int("sweep.errors", sweep.Errors),
	)

	running, err := s.experiments.List(ctx, nil, repos.ExperimentFilter{Status: types.StatusRunning})
	if err != nil {
		return err
	}
	refreshed := 0
	for _, exp := range running {
		summary, err := s.results.Summarize(ctx, exp.ID)
		if err != nil {
			s.log.Warn("Aggregate refresh failed, will retry next pass", "experiment_id", exp.ID, "error", err)
			continue
		}
		refreshed++
		if s.cache != nil {
			if err := s.cache.CacheSummary(ctx, summary); err != nil {
				s.log.Warn("Failed to cache summary", "experiment_id", exp.ID, "error", err)
			}
		}
	}
	s.log.Info("Aggregate refresh done", "running", len(running), "refreshed", refreshed)
	span.SetAttributes(attribute.Int("refresh.refreshed", refreshed))
	return nil
}
