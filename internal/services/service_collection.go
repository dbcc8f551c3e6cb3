package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"expertene/internal/cache"
	"expertene/internal/config"
	"expertene/internal/database"
	"expertene/internal/events"
	"expertene/internal/platform"
	"expertene/internal/repositories"
)

// Infrastructure is what the process owns and hands to the services.
type Infrastructure struct {
	Cache    cache.Cache
	Changes  platform.ChangeFeed
	EventBus events.EventBus
}

// ServiceCollection holds every service with its dependencies wired.
type ServiceCollection struct {
	Documents    DocumentService
	Editor       EditorService
	Engagement   EngagementService
	Feed         FeedService
	Users        UserService
	Auth         AuthService
	Comments     CommentService
	Admin        AdminService
	Uploads      UploadService
	Gamification *GamificationListener

	Repositories *repositories.Collection
	Cache        cache.Cache
	Changes      platform.ChangeFeed
	EventBus     events.EventBus
	Functions    *platform.FunctionsClient
	Analytics    platform.AnalyticsSink
	Storage      platform.ObjectStorage

	Config    *config.Config
	DBManager *database.Manager
	Logger    *zap.Logger

	startedAt time.Time
}

// ServiceHealth summarises dependency health.
type ServiceHealth struct {
	Status       string            `json:"status"`
	Timestamp    time.Time         `json:"timestamp"`
	Uptime       time.Duration     `json:"uptime"`
	Dependencies map[string]string `json:"dependencies"`
	Issues       []string          `json:"issues,omitempty"`
}

// NewServiceCollection wires repositories, platform adapters and services.
func NewServiceCollection(dbManager *database.Manager, infra Infrastructure, cfg *config.Config, logger *zap.Logger) (*ServiceCollection, error) {
	if dbManager == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if infra.Cache == nil || infra.Changes == nil || infra.EventBus == nil {
		return nil, fmt.Errorf("cache, change feed and event bus are required")
	}

	sc := &ServiceCollection{
		Cache:     infra.Cache,
		Changes:   infra.Changes,
		EventBus:  infra.EventBus,
		Config:    cfg,
		DBManager: dbManager,
		Logger:    logger,
		startedAt: time.Now(),
	}

	if err := sc.initializeRepositories(); err != nil {
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}
	if err := sc.initializePlatform(); err != nil {
		return nil, fmt.Errorf("failed to initialize platform adapters: %w", err)
	}
	sc.initializeServices()

	logger.Info("Service collection initialized",
		zap.Bool("uploads", sc.Storage != nil),
		zap.Bool("functions", sc.Functions.Enabled()),
	)
	return sc, nil
}

func (sc *ServiceCollection) initializeRepositories() error {
	repos, err := repositories.NewCollection(sc.DBManager, sc.Logger)
	if err != nil {
		return err
	}
	sc.Repositories = repos
	return nil
}

func (sc *ServiceCollection) initializePlatform() error {
	sc.Functions = platform.NewFunctionsClient(sc.Config.Platform, sc.Logger)
	sc.Analytics = platform.NewAnalyticsSink(sc.Functions, sc.Config.Analytics, sc.Logger)

	storage, err := platform.NewCloudinaryStorage(sc.Config.Cloudinary, sc.Logger)
	switch {
	case errors.Is(err, platform.ErrStorageDisabled):
		sc.Logger.Warn("Object storage not configured, uploads disabled")
	case err != nil:
		return err
	default:
		sc.Storage = storage
	}
	return nil
}

func (sc *ServiceCollection) initializeServices() {
	r := sc.Repositories
	cfg := sc.Config

	sc.Documents = NewDocumentService(r.Document, r.User, r.Engagement, sc.Functions, sc.Changes, sc.EventBus, cfg.Editor, sc.Logger)
	sc.Editor = NewEditorService(sc.Documents, sc.Cache, cfg.Editor, sc.Logger)
	sc.Engagement = NewEngagementService(r.Document, r.Engagement, r.User, sc.Changes, sc.EventBus, sc.Analytics, sc.Logger)
	sc.Feed = NewFeedService(r.Document, sc.Cache, cfg.Feed, sc.Logger)
	sc.Users = NewUserService(r.User, r.Gamification, sc.Cache, sc.Logger)
	sc.Auth = NewAuthService(r.User, sc.Cache, sc.EventBus, cfg.Auth, cfg.Features, sc.Logger)
	sc.Comments = NewCommentService(r.Comment, r.Document, sc.Changes, sc.EventBus, cfg.Features, sc.Logger)
	sc.Admin = NewAdminService(r.User, r.Document, r.Announcement, sc.Changes, sc.EventBus, sc.Logger)
	sc.Uploads = NewUploadService(sc.Storage, sc.Changes, sc.EventBus, cfg.Editor, cfg.Features, sc.Logger)
	sc.Gamification = NewGamificationListener(r.Gamification, sc.Analytics, sc.EventBus, sc.Logger)
}

// Start registers listeners and starts the asynchronous event workers.
func (sc *ServiceCollection) Start(ctx context.Context) error {
	if err := sc.Gamification.Register(); err != nil {
		return fmt.Errorf("failed to register gamification listener: %w", err)
	}
	if err := sc.EventBus.Start(ctx); err != nil {
		return fmt.Errorf("failed to start event bus: %w", err)
	}
	sc.Logger.Info("Service collection started")
	return nil
}

// HealthCheck probes the database and the cache.
func (sc *ServiceCollection) HealthCheck(ctx context.Context) *ServiceHealth {
	health := &ServiceHealth{
		Status:       "healthy",
		Timestamp:    time.Now(),
		Uptime:       time.Since(sc.startedAt),
		Dependencies: map[string]string{},
	}

	db := sc.DBManager.Health(ctx)
	health.Dependencies["database"] = db.Status
	if db.Status != database.StatusHealthy {
		health.Status = "degraded"
		health.Issues = append(health.Issues, db.Errors...)
	}

	if err := sc.Cache.Health(ctx); err != nil {
		health.Dependencies["cache"] = "unhealthy"
		health.Status = "degraded"
		health.Issues = append(health.Issues, "cache: "+err.Error())
	} else {
		health.Dependencies["cache"] = "healthy"
	}

	if err := sc.EventBus.Health(); err != nil {
		health.Dependencies["events"] = "unhealthy"
		health.Issues = append(health.Issues, "events: "+err.Error())
	} else {
		health.Dependencies["events"] = "healthy"
	}
	return health
}

// Shutdown stops the event bus and flushes platform clients. The database,
// cache and change feed belong to the caller.
func (sc *ServiceCollection) Shutdown(ctx context.Context) error {
	var errs []error
	if err := sc.EventBus.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("event bus: %w", err))
	}
	if err := sc.Analytics.Close(); err != nil {
		errs = append(errs, fmt.Errorf("analytics: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		sc.Logger.Error("Errors occurred during shutdown", zap.Error(err))
		return err
	}
	sc.Logger.Info("Service collection shutdown completed")
	return nil
}
