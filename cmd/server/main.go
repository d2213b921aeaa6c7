package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skintrack/server/internal/catalog"
	"github.com/skintrack/server/internal/checkin"
	"github.com/skintrack/server/internal/config"
	"github.com/skintrack/server/internal/handlers"
	"github.com/skintrack/server/internal/observability"
	"github.com/skintrack/server/internal/repository"
	"github.com/skintrack/server/internal/services"
)

const serviceName = "skintrack-server"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		observability.GetLogger().WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(serviceName, observability.ParseLogLevel(cfg.LogLevel))
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Server exited with error")
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize telemetry
	telemetry, err := observability.Initialize(ctx, observability.Config{
		ServiceName:    serviceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		Environment:    cfg.Telemetry.Environment,
		OTLPEndpoint:   cfg.Telemetry.Endpoint,
		Enabled:        cfg.Telemetry.Enabled,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Telemetry shutdown failed")
		}
	}()

	// Initialize database and store
	var db *sql.DB
	var system string
	if cfg.UsePostgres() {
		logger.Info("Using PostgreSQL database")
		db, err = repository.NewPostgresDB(cfg.DatabaseURL)
		system = "postgresql"
	} else {
		logger.Infof("Using SQLite database at %s", cfg.DatabasePath)
		db, err = repository.NewSQLiteDB(cfg.DatabasePath)
		system = "sqlite"
	}
	if err != nil {
		return err
	}
	defer db.Close()

	traced, err := observability.NewTraceDB(db, system)
	if err != nil {
		return err
	}
	var store *repository.Store
	if cfg.UsePostgres() {
		store = repository.NewPostgresStore(traced)
	} else {
		store = repository.NewSQLiteStore(traced)
	}

	// Initialize services
	storageService, err := services.NewPhotoStorageService(
		cfg.PhotoStorage.BasePath,
		cfg.PhotoStorage.AllowedExtensions,
		cfg.PhotoStorage.MaxFileSizeMB,
	)
	if err != nil {
		return err
	}

	checkinMetrics, err := observability.NewCheckinMetrics()
	if err != nil {
		logger.WithError(err).Warn("Check-in metrics unavailable")
	}
	httpMetrics, err := observability.NewHTTPMetrics()
	if err != nil {
		logger.WithError(err).Warn("HTTP metrics unavailable")
	}

	var summaries *checkin.SummaryAdapter
	generator, err := services.NewGeminiSummaryGenerator(ctx,
		cfg.Summary.APIKey,
		cfg.Summary.Model,
		cfg.Summary.MaxOutputTokens,
		cfg.Summary.MaxSummaryChars,
	)
	if err != nil {
		logger.WithError(err).Warn("Summary generation disabled")
	} else {
		summaries = checkin.NewSummaryAdapter(generator, store, cfg.Summary.Timeout(), logger, checkinMetrics)
	}

	templates, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return err
	}

	hub := services.NewWebSocketHub(logger)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	manager := checkin.NewManager(checkin.ManagerConfig{
		Store:       store,
		Tests:       store,
		Profiles:    store,
		Uploader:    storageService,
		Summaries:   summaries,
		OnSummary:   hub.NotifySummary,
		IdleTimeout: cfg.Sessions.IdleTimeout(),
		Logger:      logger,
		Metrics:     checkinMetrics,
	})
	manager.StartSweeper(cfg.Sessions.SweepInterval())
	defer manager.Stop()

	// Setup router
	router := handlers.NewRouter(handlers.RouterConfig{
		APIKey:       cfg.Security.APIKey,
		APIKeyHeader: cfg.Security.APIKeyHeader,
		UserIDHeader: cfg.Security.UserIDHeader,
		ServiceName:  serviceName,
		HTTPMetrics:  httpMetrics,
		Health:       handlers.NewHealthHandler(manager.Len, hub.GetClientCount),
		Sessions:     handlers.NewSessionHandler(manager, cfg.PhotoStorage.MaxFileSizeMB<<20, logger),
		Dashboard:    handlers.NewDashboardHandler(store, cfg.Metrics.StreakLookback, cfg.Metrics.RecentLimit, logger),
		History:      handlers.NewHistoryHandler(store, logger),
		Photos:       handlers.NewPhotoHandler(store, storageService, logger),
		Tests:        handlers.NewTestHandler(templates, store, logger),
		Profile:      handlers.NewProfileHandler(store, logger),
		WebSocket:    handlers.NewWebSocketHandler(hub, logger),
	})

	// Create server
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // Longer for uploads
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.WithFields(map[string]interface{}{
			"address":      cfg.ServerAddress,
			"photo_path":   cfg.PhotoStorage.BasePath,
			"max_file_mb":  cfg.PhotoStorage.MaxFileSizeMB,
			"summaries_on": summaries != nil,
			"templates":    len(templates.List()),
		}).Info("SkinTrack server starting")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Graceful shutdown
	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// Let in-flight summaries land before the store closes
	manager.Stop()
	if summaries != nil {
		summaries.Wait()
	}

	logger.Info("Server stopped")
	return nil
}
