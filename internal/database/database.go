package database

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"expertene/internal/config"
)

// Open builds a Manager for cfg, retrying the first connection with
// exponential backoff until MaxStartupWait elapses, then applies
// migrations when AutoMigrate is set.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Manager, error) {
	dbCfg := cfg.Database
	applyEnvironmentDefaults(&dbCfg, cfg.Server.Environment)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = dbCfg.MaxStartupWait
	if b.MaxElapsedTime <= 0 {
		b.MaxElapsedTime = 30 * time.Second
	}

	var manager *Manager
	connect := func() error {
		m, err := NewManager(&dbCfg, logger)
		if err != nil {
			return err
		}
		manager = m
		return nil
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("Database not ready, retrying",
			zap.Error(err),
			zap.Duration("retry_in", wait))
	}
	if err := backoff.RetryNotify(connect, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, fmt.Errorf("database did not become reachable: %w", err)
	}

	if dbCfg.AutoMigrate {
		path := migrationsPath(dbCfg.MigrationsPath)
		if err := manager.Migrate(path); err != nil {
			manager.Close()
			return nil, fmt.Errorf("failed to run database migrations: %w", err)
		}
	}

	if status := manager.Health(ctx); status.Status == StatusUnhealthy {
		manager.Close()
		return nil, fmt.Errorf("database unhealthy after startup: %v", status.Errors)
	}
	manager.health.StartMonitoring()

	stats := manager.Stats()
	logger.Info("Database ready",
		zap.Int("max_open_connections", stats.MaxOpenConnections),
		zap.Int("open_connections", stats.OpenConnections),
	)
	return manager, nil
}

// applyEnvironmentDefaults fills unset pool settings with per-environment values.
func applyEnvironmentDefaults(cfg *config.DatabaseConfig, environment string) {
	maxOpen, maxIdle, lifetime, slow := 10, 5, 5*time.Minute, 50*time.Millisecond
	if environment == "production" {
		maxOpen, maxIdle, lifetime, slow = 50, 20, 15*time.Minute, 200*time.Millisecond
	}

	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = maxOpen
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = maxIdle
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = lifetime
	}
	if cfg.SlowQueryThreshold == 0 {
		cfg.SlowQueryThreshold = slow
	}
	if cfg.HealthCheckInterval == 0 {
		cfg.HealthCheckInterval = 30 * time.Second
	}
	if cfg.MaxIdleConns > cfg.MaxOpenConns {
		cfg.MaxIdleConns = cfg.MaxOpenConns
	}
}

func migrationsPath(configured string) string {
	candidates := []string{configured, "./migrations", "../migrations", "../../migrations"}
	for _, p := range candidates {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return "./migrations"
}
