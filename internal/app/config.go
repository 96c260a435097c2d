package app

import (
	"github.com/harvesttable/growth-backend/internal/logger"
	"github.com/harvesttable/growth-backend/internal/utils"
)

type Config struct {
	ServiceName  string
	Environment  string
	JWTSecretKey string
	SweepCron    string
	Port         string
}

func LoadConfig(log *logger.Logger) Config {
	serviceName := utils.GetEnv("SERVICE_NAME", "growth-backend", log)
	environment := utils.GetEnv("APP_ENV", "development", log)
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	sweepCron := utils.GetEnv("SWEEP_CRON", "0 3 * * *", log)
	port := utils.GetEnv("PORT", "8080", log)
	return Config{
		ServiceName:  serviceName,
		Environment:  environment,
		JWTSecretKey: jwtSecretKey,
		SweepCron:    sweepCron,
		Port:         port,
	}
}
