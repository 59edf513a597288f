package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/username/nestegg/backend/src/config"
	"github.com/username/nestegg/backend/src/database"
	"github.com/username/nestegg/backend/src/handlers"
	"github.com/username/nestegg/backend/src/institutions"
	"github.com/username/nestegg/backend/src/logger"
	"github.com/username/nestegg/backend/src/services"
)

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Statement import backend starting...")

	logger.L.Info("Loading institution templates...", "overrides", config.Cfg.TemplatesPath)
	engine, err := institutions.NewEngineWithOverrides(config.Cfg.TemplatesPath)
	if err != nil {
		logger.L.Error("Failed to load institution templates", "error", err)
		os.Exit(1)
	}
	logger.L.Info("Institution templates loaded", "count", len(engine.SupportedInstitutions()))

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	defer database.DB.Close()
	logger.L.Info("Database initialized successfully.")

	logger.L.Info("Initializing services and handlers...")
	positionClient := services.NewPositionClient(config.Cfg.BackendAPIURL, config.Cfg.BackendTimeout)
	importService := services.NewImportService(
		engine,
		positionClient,
		database.NewMappingStore(database.DB),
		database.NewHistoryStore(database.DB),
		services.ImportServiceOptions{
			SessionTTL:      config.Cfg.ImportSessionTTL,
			PreviewRowLimit: config.Cfg.PreviewRowLimit,
		},
	)

	router := handlers.NewRouter(
		handlers.RouterConfig{
			AllowedOrigins: config.Cfg.AllowedOrigins,
			RateLimitRPS:   config.Cfg.RateLimitRPS,
			RateLimitBurst: config.Cfg.RateLimitBurst,
		},
		handlers.NewImportHandler(importService, config.Cfg.MaxUploadSizeBytes),
		handlers.NewInstitutionHandler(engine),
	)

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // confirm submits every row to the position backend
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.L.Info("Server starting", "address", serverAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L.Error("Failed to start server", "error", err)
			stdlog.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.L.Info("Shutdown signal received, draining connections...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.L.Error("Graceful shutdown failed", "error", err)
		return
	}
	logger.L.Info("Server stopped gracefully.")
}
