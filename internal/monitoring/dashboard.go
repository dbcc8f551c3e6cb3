// Package monitoring aggregates process health for operators.
package monitoring

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"

	"expertene/internal/cache"
	"expertene/internal/database"
	"expertene/internal/events"
	"expertene/internal/services"
	"expertene/internal/utils/appinfo"
)

// Alert thresholds
const (
	goroutineWarn      = 5000
	heapWarnBytes      = 512 << 20
	dbErrorRateWarn    = 0.05
	eventFailRateWarn  = 0.10
	cacheHitRatioWarn  = 0.5
	cacheMinLookups    = 100
	slowQueryShareWarn = 0.2
)

// HealthSource reports dependency health.
type HealthSource interface {
	HealthCheck(ctx context.Context) *services.ServiceHealth
}

// QueryMetrics exposes database query counters.
type QueryMetrics interface {
	Metrics() *database.MetricsSnapshot
}

// ConnectionCounter reports open realtime sockets.
type ConnectionCounter interface {
	Connections() int
}

// Sources are the components the dashboard reads. Nil members are skipped.
type Sources struct {
	Health   HealthSource
	Database QueryMetrics
	Cache    cache.Cache
	Events   events.EventBus
	Realtime ConnectionCounter
}

// Dashboard builds point-in-time snapshots of the running process.
type Dashboard struct {
	src         Sources
	info        appinfo.Info
	environment string
	startTime   time.Time
	logger      *zap.Logger
}

// NewDashboard creates a dashboard over src.
func NewDashboard(src Sources, environment string, logger *zap.Logger) *Dashboard {
	return &Dashboard{
		src:         src,
		info:        appinfo.Get(),
		environment: environment,
		startTime:   time.Now(),
		logger:      logger,
	}
}

// Snapshot is the operator view served on the admin status route.
type Snapshot struct {
	Status       string                    `json:"status"`
	Timestamp    time.Time                 `json:"timestamp"`
	Uptime       string                    `json:"uptime"`
	Version      appinfo.Info              `json:"version"`
	Environment  string                    `json:"environment"`
	Dependencies map[string]string         `json:"dependencies,omitempty"`
	Issues       []string                  `json:"issues,omitempty"`
	Database     *database.MetricsSnapshot `json:"database,omitempty"`
	Cache        *cache.Stats              `json:"cache,omitempty"`
	Events       *events.EventBusStats     `json:"events,omitempty"`
	Realtime     *RealtimeStats            `json:"realtime,omitempty"`
	Runtime      RuntimeStats              `json:"runtime"`
	Alerts       []Alert                   `json:"alerts,omitempty"`
}

// RealtimeStats describes websocket usage.
type RealtimeStats struct {
	Connections int `json:"connections"`
}

// RuntimeStats describes the Go runtime.
type RuntimeStats struct {
	Goroutines int     `json:"goroutines"`
	HeapMB     float64 `json:"heap_mb"`
	NumGC      uint32  `json:"num_gc"`
}

// Alert is a threshold breach.
type Alert struct {
	Component string  `json:"component"`
	Severity  string  `json:"severity"`
	Message   string  `json:"message"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
}

// Snapshot gathers health, counters and alerts.
func (d *Dashboard) Snapshot(ctx context.Context) *Snapshot {
	start := time.Now()
	s := &Snapshot{
		Status:      "healthy",
		Timestamp:   start,
		Uptime:      time.Since(d.startTime).Round(time.Second).String(),
		Version:     d.info,
		Environment: d.environment,
	}

	if d.src.Health != nil {
		h := d.src.Health.HealthCheck(ctx)
		s.Status = h.Status
		s.Dependencies = h.Dependencies
		s.Issues = h.Issues
	}
	if d.src.Database != nil {
		s.Database = d.src.Database.Metrics()
	}
	if d.src.Cache != nil {
		if stats, err := d.src.Cache.Stats(ctx); err == nil {
			s.Cache = stats
		} else {
			s.Issues = append(s.Issues, "cache stats: "+err.Error())
		}
	}
	if d.src.Events != nil {
		s.Events = d.src.Events.Stats()
	}
	if d.src.Realtime != nil {
		s.Realtime = &RealtimeStats{Connections: d.src.Realtime.Connections()}
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	s.Runtime = RuntimeStats{
		Goroutines: runtime.NumGoroutine(),
		HeapMB:     float64(mem.HeapAlloc) / (1 << 20),
		NumGC:      mem.NumGC,
	}

	s.Alerts = collectAlerts(s, mem.HeapAlloc)
	if len(s.Alerts) > 0 && s.Status == "healthy" {
		s.Status = "degraded"
	}

	d.logger.Debug("Status snapshot built",
		zap.String("status", s.Status),
		zap.Int("alerts", len(s.Alerts)),
		zap.Duration("duration", time.Since(start)),
	)
	return s
}

// Report logs a snapshot. Unhealthy states are warnings so they reach the
// production log level.
func (d *Dashboard) Report(ctx context.Context) error {
	s := d.Snapshot(ctx)
	fields := []zap.Field{
		zap.String("status", s.Status),
		zap.Int("goroutines", s.Runtime.Goroutines),
		zap.Float64("heap_mb", s.Runtime.HeapMB),
	}
	if s.Realtime != nil {
		fields = append(fields, zap.Int("sockets", s.Realtime.Connections))
	}
	if s.Database != nil {
		fields = append(fields,
			zap.Int64("queries", s.Database.QueryCount),
			zap.Int64("query_errors", s.Database.ErrorCount),
		)
	}
	if s.Status != "healthy" {
		fields = append(fields, zap.Strings("issues", s.Issues), zap.Any("alerts", s.Alerts))
		d.logger.Warn("System health degraded", fields...)
		return nil
	}
	d.logger.Info("System health report", fields...)
	return nil
}

func collectAlerts(s *Snapshot, heap uint64) []Alert {
	var alerts []Alert
	add := func(component, severity, msg string, value, threshold float64) {
		alerts = append(alerts, Alert{component, severity, msg, value, threshold})
	}

	if s.Runtime.Goroutines > goroutineWarn {
		add("runtime", "warning", "goroutine count high", float64(s.Runtime.Goroutines), goroutineWarn)
	}
	if heap > heapWarnBytes {
		add("runtime", "warning", "heap usage high", s.Runtime.HeapMB, heapWarnBytes/(1<<20))
	}
	if db := s.Database; db != nil && db.QueryCount > 0 {
		if rate := float64(db.ErrorCount) / float64(db.QueryCount); rate > dbErrorRateWarn {
			add("database", "critical", fmt.Sprintf("%d of %d queries failed", db.ErrorCount, db.QueryCount), rate, dbErrorRateWarn)
		}
		if share := float64(db.SlowQueryCount) / float64(db.QueryCount); share > slowQueryShareWarn {
			add("database", "warning", "slow query share high", share, slowQueryShareWarn)
		}
	}
	if ev := s.Events; ev != nil && ev.EventsProcessed+ev.EventsFailed > 0 {
		if rate := float64(ev.EventsFailed) / float64(ev.EventsProcessed+ev.EventsFailed); rate > eventFailRateWarn {
			add("events", "warning", "event handlers failing", rate, eventFailRateWarn)
		}
	}
	if c := s.Cache; c != nil && c.Hits+c.Misses >= cacheMinLookups && c.HitRatio < cacheHitRatioWarn {
		add("cache", "info", "cache hit ratio low", c.HitRatio, cacheHitRatioWarn)
	}
	return alerts
}
