// @title           Expertene API
// @version         1.0.0
// @description     Block-structured publishing: documents, editor sessions, engagement and feeds.

// @contact.name   Expertene API Support
// @contact.email  api@expertene.app

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:9000
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"expertene/docs"
	"expertene/internal/cache"
	"expertene/internal/config"
	"expertene/internal/database"
	"expertene/internal/events"
	"expertene/internal/handlers/web"
	"expertene/internal/middleware"
	"expertene/internal/monitoring"
	"expertene/internal/platform"
	"expertene/internal/realtime"
	"expertene/internal/render"
	"expertene/internal/response"
	"expertene/internal/router"
	"expertene/internal/scheduler"
	"expertene/internal/services"
	"expertene/internal/utils/appinfo"
)

const (
	jobFeedWarm     = "feed.warm"
	jobHealthReport = "health.report"
	healthSchedule  = "@every 5m"
	jobTimeout      = 2 * time.Minute
)

func main() {
	logger, err := initLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	info := appinfo.Get()
	logger.Info("Starting Expertene",
		zap.String("version", info.Version),
		zap.String("revision", info.Revision),
		zap.String("go", info.GoVersion),
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
	)

	startCtx, cancelStart := context.WithTimeout(context.Background(), cfg.Database.MaxStartupWait+cfg.Redis.MaxStartWait+10*time.Second)
	defer cancelStart()

	// Database
	dbManager, err := database.Open(startCtx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbManager.Close()

	// Cache and change feed
	infra, redisClient, err := initInfrastructure(startCtx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize infrastructure", zap.Error(err))
	}
	defer infra.Cache.Close()
	defer infra.Changes.Close()

	// Services
	serviceCollection, err := services.NewServiceCollection(dbManager, infra, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}

	hub := realtime.NewHub(infra.Changes, serviceCollection.Engagement, realtime.Config{
		AllowedOrigins: cfg.Security.CORSAllowedOrigins,
	}, logger.Named("realtime"))
	if err := hub.Register(infra.EventBus); err != nil {
		logger.Fatal("Failed to register realtime listeners", zap.Error(err))
	}

	if err := serviceCollection.Start(context.Background()); err != nil {
		logger.Fatal("Failed to start services", zap.Error(err))
	}

	dashboard := monitoring.NewDashboard(monitoring.Sources{
		Health:   serviceCollection,
		Database: dbManager,
		Cache:    infra.Cache,
		Events:   infra.EventBus,
		Realtime: hub,
	}, cfg.Server.Environment, logger.Named("monitoring"))

	// Background jobs
	jobs := scheduler.New(jobTimeout, logger.Named("scheduler"))
	if err := jobs.Add(jobFeedWarm, cfg.Feed.RefreshSchedule, serviceCollection.Feed.Warm); err != nil {
		logger.Fatal("Failed to schedule feed refresh", zap.Error(err))
	}
	if err := jobs.Add(jobHealthReport, healthSchedule, dashboard.Report); err != nil {
		logger.Fatal("Failed to schedule health report", zap.Error(err))
	}
	go func() {
		if err := jobs.RunNow(jobFeedWarm); err != nil {
			logger.Warn("Initial feed warm-up failed", zap.Error(err))
		}
	}()
	jobs.Start()

	// HTTP
	responseConfig := response.DefaultConfig()
	responseConfig.APIVersion = "v1"
	responseConfig.MaskInternalErrors = cfg.IsProduction()
	responseBuilder := response.NewBuilder(responseConfig, logger)

	authMiddleware := middleware.NewAuthMiddleware(serviceCollection.Auth, serviceCollection.Users, responseBuilder, logger)

	renderOpts := render.DefaultOptions()
	renderOpts.CollapseLines = cfg.Editor.CodeCollapseLines
	webHandler, err := web.NewWebHandler(serviceCollection.Documents, serviceCollection.Users, serviceCollection.Feed, renderOpts, logger.Named("web"))
	if err != nil {
		logger.Fatal("Failed to initialize templates", zap.Error(err))
	}

	configureSwagger(cfg, info)

	handler := router.SetupRouter(router.Dependencies{
		Services:  serviceCollection,
		Health:    serviceCollection,
		Auth:      authMiddleware,
		Builder:   responseBuilder,
		Web:       webHandler,
		Realtime:  hub,
		Dashboard: dashboard,
		Config:    cfg,
		Logger:    logger,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    cfg.Server.MaxHeaderBytes,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server",
			zap.String("address", server.Addr),
			zap.String("environment", cfg.Server.Environment),
			zap.Bool("redis", redisClient != nil),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("HTTP server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	} else {
		logger.Info("Server shutdown completed")
	}
	hub.Shutdown()
	if err := jobs.Stop(shutdownCtx); err != nil {
		logger.Warn("Background jobs did not stop cleanly", zap.Error(err))
	}
	if err := serviceCollection.Shutdown(shutdownCtx); err != nil {
		logger.Error("Service shutdown reported errors", zap.Error(err))
	}

	final := dbManager.Metrics()
	logger.Info("Final database metrics",
		zap.Int64("total_queries", final.QueryCount),
		zap.Int64("total_errors", final.ErrorCount),
		zap.Int64("slow_queries", final.SlowQueryCount),
		zap.Duration("avg_query_duration", final.AvgQueryDuration),
	)
	logger.Info("Application shutdown completed")
}

// initInfrastructure builds the cache, change feed and event bus. With Redis
// configured the cache and the feed share one client; otherwise both live
// in process memory and realtime updates stay on this instance.
func initInfrastructure(ctx context.Context, cfg *config.Config, logger *zap.Logger) (services.Infrastructure, *redis.Client, error) {
	c, client, err := cache.New(ctx, cfg.Redis, logger.Named("cache"))
	if err != nil {
		return services.Infrastructure{}, nil, err
	}

	var feed platform.ChangeFeed
	if client != nil {
		feed = platform.NewRedisFeed(client, cfg.Redis.KeyPrefix, logger.Named("changefeed"))
	} else {
		feed = platform.NewMemoryFeed(logger.Named("changefeed"))
	}

	return services.Infrastructure{
		Cache:    c,
		Changes:  feed,
		EventBus: events.NewEventBus(events.DefaultEventBusConfig(), logger.Named("events")),
	}, client, nil
}

// configureSwagger points the generated spec at the public host.
func configureSwagger(cfg *config.Config, info appinfo.Info) {
	docs.SwaggerInfo.Version = info.Version
	if u, err := url.Parse(cfg.Server.PublicURL); err == nil && u.Host != "" {
		docs.SwaggerInfo.Host = u.Host
		docs.SwaggerInfo.Schemes = []string{u.Scheme}
	}
}

// initLogger initializes the structured logger based on environment
func initLogger() (*zap.Logger, error) {
	env := os.Getenv("GO_ENV")
	var config zap.Config

	switch env {
	case "production":
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "staging":
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	default:
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		if err := config.Level.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
		}
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}
