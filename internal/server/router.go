package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/harvesttable/growth-backend/internal/handlers"
	"github.com/harvesttable/growth-backend/internal/middleware"
)

type RouterConfig struct {
	ServiceName       string
	AuthMiddleware    *middleware.AuthMiddleware
	ExperimentHandler *handlers.ExperimentHandler
	AssignmentHandler *handlers.AssignmentHandler
	ResultsHandler    *handlers.ResultsHandler
	PromotionHandler  *handlers.PromotionHandler
	OutcomeHandler    *handlers.OutcomeHandler
	LiveConfigHandler *handlers.LiveConfigHandler
	SweepHandler      *handlers.SweepHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "growth-backend"
	}
	router.Use(otelgin.Middleware(serviceName))

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)

	// ===============
	// || Protected ||
	// ===============
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())
	// Experiments
	api.POST("/experiments", cfg.ExperimentHandler.Create)
	api.GET("/experiments", cfg.ExperimentHandler.List)
	api.GET("/experiments/:id", cfg.ExperimentHandler.Get)
	api.POST("/experiments/:id/start", cfg.ExperimentHandler.Start)
	api.POST("/experiments/:id/stop", cfg.ExperimentHandler.Stop)
	api.POST("/experiments/:id/complete", cfg.ExperimentHandler.Complete)
	// Assignment + results
	api.GET("/experiments/:id/assignment", cfg.AssignmentHandler.Resolve)
	api.GET("/experiments/:id/results", cfg.ResultsHandler.Get)
	// Winner + promotion
	api.POST("/experiments/:id/winner", cfg.PromotionHandler.DeclareWinner)
	api.POST("/experiments/:id/promote", cfg.PromotionHandler.Promote)
	// Collaborator surfaces
	api.POST("/outcomes", cfg.OutcomeHandler.Ingest)
	api.GET("/live-config/:surface", cfg.LiveConfigHandler.Get)

	internal := router.Group("/internal")
	internal.Use(cfg.AuthMiddleware.RequireAuth())
	internal.POST("/sweep", cfg.SweepHandler.Run)

	return router
}
