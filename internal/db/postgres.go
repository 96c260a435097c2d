package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/harvesttable/growth-backend/internal/logger"
	"github.com/harvesttable/growth-backend/internal/types"
	"github.com/harvesttable/growth-backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	log.Info("Loading environment variables...")
	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "growth", log)
	log.Debug("Environment variables loaded")

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	log.Info("Connecting to Postgres...")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		log.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("Failed to connect to Postgres: %w", err)
	}

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		log.Error("Failed to enable uuid-ossp extension", "error", err)
		return nil, fmt.Errorf("Failed to enable uuid-ossp extension: %w", err)
	}
	log.Info("uuid-ossp extension enabled")

	return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&types.Experiment{},
		&types.Assignment{},
		&types.OutcomeEvent{},
		&types.LiveConfig{},
		&types.AuditLog{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}

	// One RUNNING experiment per non-null category, enforced at the store
	// so concurrent starts across server instances cannot both win.
	if err := s.db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_experiment_one_running_per_category
		ON "experiment" (category)
		WHERE status = 'running' AND category IS NOT NULL AND deleted_at IS NULL
	`).Error; err != nil {
		return fmt.Errorf("Failed to create idx_experiment_one_running_per_category: %w", err)
	}

	s.log.Info("Configuring foreign key relationships for postgres tables...")
	if err := s.db.Exec(`
		DO $$ BEGIN
			ALTER TABLE "experiment_assignment"
			ADD CONSTRAINT "fk_experiment_assignment_experiment_id"
			FOREIGN KEY ("experiment_id")
			REFERENCES "experiment"("id")
			ON DELETE CASCADE;
		EXCEPTION WHEN duplicate_object THEN NULL;
		END $$;
	`).Error; err != nil {
		return fmt.Errorf("Failed to add fk_experiment_assignment_experiment_id: %w", err)
	}
	if err := s.db.Exec(`
		DO $$ BEGIN
			ALTER TABLE "experiment_audit"
			ADD CONSTRAINT "fk_experiment_audit_experiment_id"
			FOREIGN KEY ("experiment_id")
			REFERENCES "experiment"("id")
			ON DELETE CASCADE;
		EXCEPTION WHEN duplicate_object THEN NULL;
		END $$;
	`).Error; err != nil {
		return fmt.Errorf("Failed to add fk_experiment_audit_experiment_id: %w", err)
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
