package app

import (
	"gorm.io/gorm"

	"github.com/harvesttable/growth-backend/internal/logger"
	"github.com/harvesttable/growth-backend/internal/repos"
)

type Repos struct {
	Experiment   repos.ExperimentRepo
	Assignment   repos.AssignmentRepo
	OutcomeEvent repos.OutcomeEventRepo
	LiveConfig   repos.LiveConfigRepo
	AuditLog     repos.AuditLogRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Experiment:   repos.NewExperimentRepo(db, log),
		Assignment:   repos.NewAssignmentRepo(db, log),
		OutcomeEvent: repos.NewOutcomeEventRepo(db, log),
		LiveConfig:   repos.NewLiveConfigRepo(db, log),
		AuditLog:     repos.NewAuditLogRepo(db, log),
	}
}
