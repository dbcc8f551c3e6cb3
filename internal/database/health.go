package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Health check statuses
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusShutdown  = "shutdown"
)

// HealthStatus is the result of one health check.
type HealthStatus struct {
	Status          string         `json:"status"`
	Timestamp       time.Time      `json:"timestamp"`
	ResponseTime    time.Duration  `json:"response_time"`
	ConnectionCount int            `json:"connection_count"`
	Errors          []string       `json:"errors,omitempty"`
	Warnings        []string       `json:"warnings,omitempty"`
	Details         map[string]any `json:"details"`
}

// HealthChecker pings the pool and probes the tables the service cannot
// run without.
type HealthChecker struct {
	manager *Manager
	logger  *zap.Logger

	mu       sync.RWMutex
	last     *HealthStatus
	shutdown atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}

	checkInterval  time.Duration
	timeout        time.Duration
	criticalTables []string
}

// NewHealthChecker builds a checker for manager. Periodic checks start
// with StartMonitoring.
func NewHealthChecker(manager *Manager, logger *zap.Logger) *HealthChecker {
	interval := 30 * time.Second
	if manager.config != nil && manager.config.HealthCheckInterval > 0 {
		interval = manager.config.HealthCheckInterval
	}
	return &HealthChecker{
		manager:        manager,
		logger:         logger,
		stopCh:         make(chan struct{}),
		checkInterval:  interval,
		timeout:        10 * time.Second,
		criticalTables: []string{"users", "documents"},
	}
}

// Check runs every probe and caches the result.
func (hc *HealthChecker) Check(ctx context.Context) *HealthStatus {
	if hc.shutdown.Load() {
		return &HealthStatus{
			Status:    StatusShutdown,
			Timestamp: time.Now(),
			Errors:    []string{"health checker is shut down"},
			Details:   map[string]any{},
		}
	}

	start := time.Now()
	status := &HealthStatus{Timestamp: start, Details: map[string]any{}}

	ctx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	db := hc.manager.DB()
	if err := hc.checkConnectivity(ctx, db, status); err != nil {
		status.Errors = append(status.Errors, err.Error())
	} else {
		hc.checkConnectionPool(db.Stats(), status)
		for _, table := range hc.criticalTables {
			if err := checkTableAccess(ctx, db, table); err != nil {
				status.Errors = append(status.Errors, err.Error())
			}
		}
	}

	status.ResponseTime = time.Since(start)
	status.Status = overallStatus(status)

	hc.mu.Lock()
	hc.last = status
	hc.mu.Unlock()

	if status.Status == StatusUnhealthy {
		hc.logger.Warn("Database health check failed", zap.Strings("errors", status.Errors))
	}
	return status
}

func (hc *HealthChecker) checkConnectivity(ctx context.Context, db *sql.DB, status *HealthStatus) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}
	start := time.Now()
	err := db.PingContext(ctx)
	ping := time.Since(start)

	status.Details["ping_duration_ms"] = ping.Milliseconds()
	status.Details["ping_success"] = err == nil
	if ping > 500*time.Millisecond {
		status.Warnings = append(status.Warnings, "slow ping response")
	}
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

func (hc *HealthChecker) checkConnectionPool(stats sql.DBStats, status *HealthStatus) {
	status.ConnectionCount = stats.OpenConnections
	pool := map[string]any{
		"max_open":         stats.MaxOpenConnections,
		"open":             stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"wait_count":       stats.WaitCount,
		"wait_duration_ms": stats.WaitDuration.Milliseconds(),
	}
	if stats.MaxOpenConnections > 0 {
		utilization := float64(stats.InUse) / float64(stats.MaxOpenConnections)
		pool["utilization_percent"] = utilization * 100
		if utilization > 0.9 {
			status.Warnings = append(status.Warnings, "very high connection utilization")
		}
	}
	status.Details["connection_pool"] = pool
}

func checkTableAccess(ctx context.Context, db *sql.DB, table string) error {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`,
		table).Scan(&exists)
	if err != nil {
		return fmt.Errorf("table %s: %w", table, err)
	}
	if !exists {
		return fmt.Errorf("table %s is missing", table)
	}
	return nil
}

func overallStatus(s *HealthStatus) string {
	switch {
	case len(s.Errors) > 0:
		return StatusUnhealthy
	case len(s.Warnings) > 0:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

// LastStatus returns the most recent result, or nil before the first check.
func (hc *HealthChecker) LastStatus() *HealthStatus {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.last
}

// StartMonitoring runs Check every interval until Stop.
func (hc *HealthChecker) StartMonitoring() {
	go func() {
		ticker := time.NewTicker(hc.checkInterval)
		defer ticker.Stop()
		for {
			select {
			case <-hc.stopCh:
				return
			case <-ticker.C:
				hc.Check(context.Background())
			}
		}
	}()
}

// Stop ends periodic checks. Subsequent checks report shutdown.
func (hc *HealthChecker) Stop() {
	hc.stopOnce.Do(func() {
		hc.shutdown.Store(true)
		close(hc.stopCh)
	})
}
