// Package scheduler hosts the periodic background tasks (dispatcher and
// backup poller) on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/heygregwood/woodhouse-creative-sub001/internal/interfaces"
)

// taskEntry tracks one registered periodic task
type taskEntry struct {
	name      string
	schedule  string
	handler   func(ctx context.Context) error
	cronID    cron.EntryID
	isRunning bool
	lastRun   *time.Time
	lastError string
}

// Service implements SchedulerService on robfig/cron
type Service struct {
	cron    *cron.Cron
	logger  arbor.ILogger
	mu      sync.Mutex
	tasks   map[string]*taskEntry
	running bool
}

// NewService creates a scheduler service
func NewService(logger arbor.ILogger) interfaces.SchedulerService {
	return &Service{
		cron:   cron.New(),
		logger: logger,
		tasks:  make(map[string]*taskEntry),
	}
}

// Register adds a named task on a cron schedule. Invocations of the same
// task never overlap: if the previous run is still going, the tick is
// skipped and logged.
func (s *Service) Register(name, schedule string, handler func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[name]; exists {
		return fmt.Errorf("task already registered: %s", name)
	}

	entry := &taskEntry{
		name:     name,
		schedule: schedule,
		handler:  handler,
	}

	cronID, err := s.cron.AddFunc(schedule, func() {
		s.runTask(entry)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule task %s: %w", name, err)
	}
	entry.cronID = cronID
	s.tasks[name] = entry

	s.logger.Info().Str("task", name).Str("schedule", schedule).Msg("Scheduled task registered")
	return nil
}

func (s *Service) runTask(entry *taskEntry) {
	s.mu.Lock()
	if entry.isRunning {
		s.mu.Unlock()
		s.logger.Warn().Str("task", entry.name).Msg("Previous run still in progress, skipping tick")
		return
	}
	entry.isRunning = true
	s.mu.Unlock()

	start := time.Now()
	err := entry.handler(context.Background())
	duration := time.Since(start)

	s.mu.Lock()
	entry.isRunning = false
	entry.lastRun = &start
	if err != nil {
		entry.lastError = err.Error()
	} else {
		entry.lastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).Str("task", entry.name).Dur("duration", duration).Msg("Scheduled task failed")
		return
	}
	s.logger.Debug().Str("task", entry.name).Dur("duration", duration).Msg("Scheduled task finished")
}

// Start begins executing registered tasks
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	s.cron.Start()
	s.running = true
	s.logger.Info().Int("tasks", len(s.tasks)).Msg("Scheduler started")
	return nil
}

// Stop halts the scheduler, waiting for in-flight runs to finish
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Timed out waiting for scheduled tasks to finish")
	}

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}
