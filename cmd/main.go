package main

import (
	"net/http"
	"os"
	"time"

	"github.com/senyabanana/escrow-service/internal/db"
	"github.com/senyabanana/escrow-service/internal/documents"
	"github.com/senyabanana/escrow-service/internal/handlers"
	"github.com/senyabanana/escrow-service/internal/notifications"
	"github.com/senyabanana/escrow-service/internal/repository"
	"github.com/senyabanana/escrow-service/internal/router"
	"github.com/senyabanana/escrow-service/internal/router/config"
	"github.com/senyabanana/escrow-service/internal/services"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot load config")
	}

	runDBMigration(logger, cfg.MigrationURL, cfg.PostgresConn)

	dbPool, err := db.InitDb(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("error initializing database")
	}
	defer dbPool.Close()

	projectRepo := repository.NewPostgresProjectRepository(dbPool)
	ledgerRepo := repository.NewPostgresLedgerRepository(dbPool)
	userRepo := repository.NewPostgresUserRepository(dbPool)

	var dispatcher notifications.Dispatcher
	if cfg.RedisAddress != "" {
		redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddress}
		taskDispatcher := notifications.NewTaskDispatcher(redisOpt, logger)
		defer taskDispatcher.Close()
		dispatcher = taskDispatcher

		renderer := documents.NewLogRenderer(logger)
		worker := notifications.NewWorker(redisOpt, renderer, logger)
		defer worker.Shutdown()
		go func() {
			if err := worker.Run(); err != nil {
				logger.Error().Err(err).Msg("notification worker stopped")
			}
		}()
	} else {
		logger.Warn().Msg("REDIS_ADDRESS is empty, notifications are disabled")
		dispatcher = notifications.NewNoopDispatcher()
	}

	projectService := services.NewProjectService(projectRepo, userRepo)
	bidService := services.NewBidService(projectRepo, userRepo, logger)
	escrowService := services.NewEscrowService(projectRepo, ledgerRepo, userRepo, dispatcher, logger)

	projectHandler := handlers.NewProjectHandler(projectService, logger, 5*time.Second)
	bidHandler := handlers.NewBidHandler(bidService, logger, 5*time.Second)
	escrowHandler := handlers.NewEscrowHandler(escrowService, logger, 5*time.Second)

	routes := router.InitRoutes(projectHandler, bidHandler, escrowHandler)

	logger.Info().Str("address", cfg.ServerAddress).Msg("server is listening")
	if err := http.ListenAndServe(cfg.ServerAddress, routes); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}

func runDBMigration(logger zerolog.Logger, migrationURL string, dbSource string) {
	migration, err := migrate.New(migrationURL, dbSource)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot create a new migrate instance")
	}

	if err = migration.Up(); err != nil && err != migrate.ErrNoChange {
		logger.Fatal().Err(err).Msg("failed to run migrate up")
	}
	logger.Info().Msg("db migrated successfully")
}
