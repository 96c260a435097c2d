package app

import (
	"os"
	"strings"

	"gorm.io/gorm"

	redisclient "github.com/harvesttable/growth-backend/internal/clients/redis"
	"github.com/harvesttable/growth-backend/internal/logger"
	"github.com/harvesttable/growth-backend/internal/scheduler"
	"github.com/harvesttable/growth-backend/internal/services"
)

type Services struct {
	MetricCatalog services.MetricCatalog
	Experiment    services.ExperimentService
	Assignment    services.AssignmentService
	MetricSource  services.MetricSource
	Results       services.ResultsService
	HarmMonitor   services.HarmMonitor
	Promotion     services.PromotionService
	ConfigBus     redisclient.ConfigBus
	Scheduler     *scheduler.Scheduler
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos) (Services, error) {
	log.Info("Wiring services...")

	catalog, err := services.NewMetricCatalog(log)
	if err != nil {
		return Services{}, err
	}

	// Redis is optional: without it, surfaces fall back to the live_config
	// table and the results endpoint recomputes on demand.
	var bus redisclient.ConfigBus
	if strings.TrimSpace(os.Getenv("REDIS_ADDR")) != "" {
		bus, err = redisclient.NewConfigBus(log)
		if err != nil {
			log.Warn("Could not init redis config bus, continuing without it", "error", err)
			bus = nil
		}
	}

	experimentService := services.NewExperimentService(db, log, reposet.Experiment, catalog)
	assignmentService := services.NewAssignmentService(log, reposet.Experiment, reposet.Assignment)
	metricSource := services.NewOutcomeMetricSource(log, reposet.OutcomeEvent)
	resultsService := services.NewResultsService(log, reposet.Experiment, reposet.Assignment, metricSource)
	harmMonitor := services.NewHarmMonitor(log, reposet.Experiment, reposet.AuditLog, resultsService, experimentService)

	var promoBus services.ConfigBus
	if bus != nil {
		promoBus = bus
	}
	promotionService := services.NewPromotionService(db, log, reposet.Experiment, reposet.LiveConfig, reposet.AuditLog, promoBus)

	var cache scheduler.SummaryCache
	if bus != nil {
		cache = bus
	}
	sweepScheduler := scheduler.New(log, cfg.SweepCron, reposet.Experiment, resultsService, harmMonitor, cache)

	return Services{
		MetricCatalog: catalog,
		Experiment:    experimentService,
		Assignment:    assignmentService,
		MetricSource:  metricSource,
		Results:       resultsService,
		HarmMonitor:   harmMonitor,
		Promotion:     promotionService,
		ConfigBus:     bus,
		Scheduler:     sweepScheduler,
	}, nil
}
