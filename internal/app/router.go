package app

import (
	"github.com/gin-gonic/gin"

	"github.com/harvesttable/growth-backend/internal/logger"
	"github.com/harvesttable/growth-backend/internal/middleware"
	"github.com/harvesttable/growth-backend/internal/server"
)

func wireRouter(log *logger.Logger, cfg Config, handlerset Handlers) *gin.Engine {
	log.Info("Wiring router...")
	authMiddleware := middleware.NewAuthMiddleware(log, cfg.JWTSecretKey)
	return server.NewRouter(server.RouterConfig{
		ServiceName:       cfg.ServiceName,
		AuthMiddleware:    authMiddleware,
		ExperimentHandler: handlerset.Experiment,
		AssignmentHandler: handlerset.Assignment,
		ResultsHandler:    handlerset.Results,
		PromotionHandler:  handlerset.Promotion,
		OutcomeHandler:    handlerset.Outcome,
		LiveConfigHandler: handlerset.LiveConfig,
		SweepHandler:      handlerset.Sweep,
	})
}
