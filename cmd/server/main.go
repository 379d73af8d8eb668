package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ndewijer/fundval-backend/internal/api"
	"github.com/ndewijer/fundval-backend/internal/config"
	"github.com/ndewijer/fundval-backend/internal/database"
	"github.com/ndewijer/fundval-backend/internal/logging"
	"github.com/ndewijer/fundval-backend/internal/scheduler"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New(cfg.Log)
	log.Logger = logger

	// Open database connection
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := database.Migrate(context.Background(), db); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}
	logger.Info().Str("path", cfg.Database.Path).Msg("connected to database")

	svc := api.NewServices(db, cfg, logger)
	if svc.Broker == nil {
		logger.Info().Msg("no broker API configured, pull imports disabled")
	}

	// Background jobs
	var sched *scheduler.Scheduler
	if cfg.Recalc.Schedule != "" || cfg.Accuracy.AuditSchedule != "" {
		sched = scheduler.New(logger)
		if cfg.Recalc.Schedule != "" {
			if err := sched.AddJob(cfg.Recalc.Schedule, scheduler.NewRecalculateJob(svc.Position, logger)); err != nil {
				logger.Fatal().Err(err).Msg("failed to register recalculation job")
			}
		}
		if cfg.Accuracy.AuditSchedule != "" {
			if err := sched.AddJob(cfg.Accuracy.AuditSchedule, scheduler.NewAccuracyAuditJob(svc.Fund, logger)); err != nil {
				logger.Fatal().Err(err).Msg("failed to register accuracy audit job")
			}
		}
		sched.Start()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewRouter(svc, cfg, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	if sched != nil {
		sched.Stop()
	}

	logger.Info().Msg("server exited")
}
