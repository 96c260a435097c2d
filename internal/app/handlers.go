package app

import (
	"github.com/harvesttable/growth-backend/internal/handlers"
	"github.com/harvesttable/growth-backend/internal/logger"
)

type Handlers struct {
	Experiment *handlers.ExperimentHandler
	Assignment *handlers.AssignmentHandler
	Results    *handlers.ResultsHandler
	Promotion  *handlers.PromotionHandler
	Outcome    *handlers.OutcomeHandler
	LiveConfig *handlers.LiveConfigHandler
	Sweep      *handlers.SweepHandler
}

func wireHandlers(log *logger.Logger, reposet Repos, serviceset Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Experiment: handlers.NewExperimentHandler(serviceset.Experiment),
		Assignment: handlers.NewAssignmentHandler(serviceset.Assignment),
		Results:    handlers.NewResultsHandler(serviceset.Results),
		Promotion:  handlers.NewPromotionHandler(serviceset.Promotion),
		Outcome:    handlers.NewOutcomeHandler(log, reposet.OutcomeEvent),
		LiveConfig: handlers.NewLiveConfigHandler(reposet.LiveConfig),
		Sweep:      handlers.NewSweepHandler(serviceset.Scheduler),
	}
}
