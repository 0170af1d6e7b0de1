package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"buggy/internal/app"
	"buggy/internal/config"
	"buggy/internal/geo"
	"buggy/internal/handler"
	"buggy/internal/logging"
	internalRedis "buggy/internal/redis"
	"buggy/internal/repository/postgres"
	"buggy/internal/service"
	"buggy/internal/ws"
)

func main() {
	// Load configuration.
	cfg := config.Load()
	logger := logging.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", "error", err)
		} else {
			logger.Info("New Relic enabled", "app", cfg.NewRelic.AppName)
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	// Wire dependencies.
	server, rideService := wireServer(db, redisClient, nrApp, cfg, logger)

	// Reload the active set after a restart.
	if err := rideService.Restore(ctx); err != nil {
		log.Fatalf("failed to restore active rides: %v", err)
	}

	// Background ETA refresh runs until shutdown.
	refreshCtx, stopRefresh := context.WithCancel(context.Background())
	defer stopRefresh()
	go rideService.RunETARefresher(refreshCtx)

	// Start server in goroutine.
	go func() {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	stopRefresh()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	logger.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server plus
// the ride service for lifecycle hooks.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config, logger *slog.Logger) (*http.Server, *service.RideService) {
	// Initialize Redis stores.
	telemetryStore := internalRedis.NewTelemetryStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)

	// Initialize repositories.
	rideRepo := postgres.NewRideRepository(db)
	locationRepo := postgres.NewLocationRepository(db)

	// Smart-match data is external so resorts can localize names
	// without a rebuild.
	matchData, err := service.LoadMatchData(cfg.MatchData.Path)
	if err != nil {
		logger.Warn("falling back to built-in match data", "error", err)
		matchData = service.DefaultMatchData()
	}

	// Initialize services.
	hub := ws.NewHub(logger)
	notificationService := service.NewNotificationService(logger, service.NewLogSender(logger), hub)
	directoryService := service.NewDirectoryService(locationRepo, cacheStore, logger)
	resolver := service.NewLocationResolver(matchData)
	matcher := service.NewSmartMatchService(matchData)
	estimator := service.NewETAEstimator(cfg.Dispatch)

	rideService := service.NewRideService(service.RideServiceDeps{
		Repo:      rideRepo,
		Estimator: estimator,
		Resolver:  resolver,
		Directory: directoryService,
		Telemetry: telemetryStore,
		Notifier:  notificationService,
		Events:    hub,
		Locks:     lockStore,
		Cancel:    cfg.Cancel,
		Dispatch:  cfg.Dispatch,
		Logger:    logger,
	})
	mergeService := service.NewMergeService(rideService, directoryService, resolver, estimator, telemetryStore, cacheStore, lockStore, notificationService, logger)

	// Initialize handlers.
	rideHandler := handler.NewRideHandler(rideService)
	mergeHandler := handler.NewMergeHandler(mergeService)
	locationHandler := handler.NewLocationHandler(directoryService, resolver, matcher)
	driverHandler := handler.NewDriverHandler(telemetryStore, geo.Bounds{
		North: cfg.Map.North,
		South: cfg.Map.South,
		East:  cfg.Map.East,
		West:  cfg.Map.West,
	})
	eventsHandler := handler.NewEventsHandler(hub)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		RideHandler:     rideHandler,
		MergeHandler:    mergeHandler,
		LocationHandler: locationHandler,
		DriverHandler:   driverHandler,
		EventsHandler:   eventsHandler,
		RedisClient:     redisClient,
		NewRelicApp:     nrApp,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, rideService
}
