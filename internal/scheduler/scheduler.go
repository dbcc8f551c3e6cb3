// Package scheduler runs periodic maintenance jobs such as rewarming the
// trending and leaderboard caches.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// Scheduler wraps a cron runner. Overlapping runs of the same job are
// skipped.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	logger  *zap.Logger

	mu   sync.Mutex
	jobs map[string]Job
	ctx  context.Context
	stop context.CancelFunc
}

// New creates a scheduler; each run gets at most timeout.
func New(timeout time.Duration, logger *zap.Logger) *Scheduler {
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		timeout: timeout,
		logger:  logger,
		jobs:    make(map[string]Job),
		ctx:     ctx,
		stop:    stop,
	}
}

// Add registers job under name on a cron spec ("@every 5m", "*/10 * * * *").
func (s *Scheduler) Add(name, spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}
	if _, err := s.cron.AddFunc(spec, func() { _ = s.run(name, job) }); err != nil {
		return fmt.Errorf("invalid schedule %q for job %q: %w", spec, name, err)
	}
	s.jobs[name] = job
	s.logger.Info("Job scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// RunNow runs a registered job immediately on the caller's goroutine.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %q not registered", name)
	}
	return s.run(name, job)
}

func (s *Scheduler) run(name string, job Job) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := job(ctx)
	if err != nil {
		s.logger.Error("Scheduled job failed",
			zap.String("job", name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return err
	}
	s.logger.Debug("Scheduled job finished",
		zap.String("job", name),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels in-flight jobs and waits for them, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.stop()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
