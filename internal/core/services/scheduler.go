package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/propfeed/internal/core/domain"
	"github.com/custodia-labs/propfeed/internal/core/ports/driven"
	"github.com/custodia-labs/propfeed/internal/core/ports/driving"
	"github.com/custodia-labs/propfeed/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

const (
	// DefaultTickInterval is how often the scheduler checks for due tasks.
	DefaultTickInterval = time.Minute

	// HistoryRetention is the number of results kept per task.
	HistoryRetention = 100
)

// Scheduler manages background task execution.
// It is a pure core service with no external control API.
type Scheduler struct {
	store driven.SchedulerStore
	orch  driving.FetchOrchestrator
	tick  time.Duration
	now   func() time.Time

	mu       sync.Mutex
	config   domain.SchedulerConfig
	running  bool
	stopCh   chan struct{}
	inFlight map[string]bool
	wg       sync.WaitGroup
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTickInterval overrides how often due tasks are checked.
func WithTickInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

// NewScheduler creates a scheduler with configuration.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	orch driving.FetchOrchestrator,
	opts ...SchedulerOption,
) *Scheduler {
	s := &Scheduler{
		config:   config,
		store:    store,
		orch:     orch,
		tick:     DefaultTickInterval,
		now:      time.Now,
		inFlight: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the scheduler loop. This method blocks until Stop is called
// or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		logger.Info("scheduler: disabled")
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	if err := s.initialiseTasks(ctx); err != nil {
		logger.Warn("scheduler: failed to initialise tasks: %v", err)
	}

	return s.run(ctx)
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	// Wait for running tasks to complete
	s.wg.Wait()

	return nil
}

// UpdateConfig applies a new configuration to the stored tasks.
func (s *Scheduler) UpdateConfig(ctx context.Context, config domain.SchedulerConfig) error {
	s.mu.Lock()
	s.config = config
	s.mu.Unlock()
	return s.initialiseTasks(ctx)
}

// initialiseTasks ensures all configured tasks exist in the store.
func (s *Scheduler) initialiseTasks(ctx context.Context) error {
	s.mu.Lock()
	cfg := s.config.GetTaskConfig(domain.TaskIDListingRefresh)
	s.mu.Unlock()

	return s.ensureTask(ctx, domain.TaskIDListingRefresh, "Listing Refresh", cfg)
}

// ensureTask creates or updates a task in the store.
func (s *Scheduler) ensureTask(ctx context.Context, id, name string, cfg domain.TaskConfig) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	now := s.now()
	if task == nil {
		task = &domain.ScheduledTask{
			ID:       id,
			Name:     name,
			Interval: cfg.Interval,
			Enabled:  cfg.Enabled,
			NextRun:  now.Add(cfg.Interval),
		}
		if cfg.RunOnStart {
			task.NextRun = now
		}
	} else {
		if task.Interval != cfg.Interval {
			task.Interval = cfg.Interval
			task.NextRun = now.Add(cfg.Interval)
		}
		if cfg.RunOnStart && task.LastSuccess.IsZero() {
			task.NextRun = now
		}
		task.Enabled = cfg.Enabled
	}

	return s.store.SaveTask(ctx, task)
}

// run is the main scheduler loop.
func (s *Scheduler) run(ctx context.Context) error {
	s.checkAndRunDueTasks(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			s.checkAndRunDueTasks(ctx)
		}
	}
}

// checkAndRunDueTasks finds and executes tasks that are due.
func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Warn("scheduler: failed to list tasks: %v", err)
		return
	}

	now := s.now()
	for i := range tasks {
		task := tasks[i]
		if !task.Enabled {
			continue
		}
		if task.NextRun.IsZero() || !task.NextRun.After(now) {
			s.runTask(ctx, &task)
		}
	}
}

// runTask executes a single task unless it is already running.
func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) {
	s.mu.Lock()
	if s.inFlight[task.ID] {
		s.mu.Unlock()
		return
	}
	s.inFlight[task.ID] = true
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inFlight, task.ID)
			s.mu.Unlock()
		}()

		result := &domain.TaskResult{
			TaskID:    task.ID,
			StartedAt: s.now(),
		}

		var (
			summary *domain.RunSummary
			err     error
		)
		switch task.ID {
		case domain.TaskIDListingRefresh:
			summary, err = s.runListingRefresh(ctx)
		default:
			logger.Warn("scheduler: unknown task ID: %s", task.ID)
			return
		}

		result.EndedAt = s.now()
		task.LastRun = result.StartedAt
		task.NextRun = result.EndedAt.Add(task.Interval)

		if errors.Is(err, domain.ErrRunInProgress) {
			// Another trigger owns this run; try again next interval.
			logger.Info("scheduler: %s skipped, run already in progress", task.ID)
			if saveErr := s.store.SaveTask(ctx, task); saveErr != nil {
				logger.Warn("scheduler: failed to save task %s: %v", task.ID, saveErr)
			}
			return
		}

		if err != nil {
			result.Success = false
			result.Error = err.Error()
			task.LastError = err.Error()
		} else {
			result.Success = true
			result.ApplySummary(summary)
			task.LastError = ""
			task.LastSuccess = result.EndedAt
		}

		if saveErr := s.store.SaveTask(ctx, task); saveErr != nil {
			logger.Warn("scheduler: failed to save task %s: %v", task.ID, saveErr)
		}

		if recordErr := s.store.RecordResult(ctx, result); recordErr != nil {
			logger.Warn("scheduler: failed to record result for %s: %v", task.ID, recordErr)
		}

		if pruneErr := s.store.PruneHistory(ctx, HistoryRetention); pruneErr != nil {
			logger.Warn("scheduler: failed to prune history: %v", pruneErr)
		}
	}()
}

// RecordManualRun records a listing refresh triggered outside the
// scheduler loop, such as the fetch command, in the task history.
// A run skipped with domain.ErrRunInProgress is not recorded.
func (s *Scheduler) RecordManualRun(ctx context.Context, summary *domain.RunSummary, runErr error) error {
	if errors.Is(runErr, domain.ErrRunInProgress) {
		return nil
	}
	if err := s.initialiseTasks(ctx); err != nil {
		return fmt.Errorf("ensure task: %w", err)
	}
	task, err := s.store.GetTask(ctx, domain.TaskIDListingRefresh)
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		return fmt.Errorf("task %s: %w", domain.TaskIDListingRefresh, domain.ErrNotFound)
	}

	now := s.now()
	result := &domain.TaskResult{
		TaskID:    domain.TaskIDListingRefresh,
		StartedAt: now,
		EndedAt:   now,
	}
	if summary != nil {
		result.StartedAt = summary.StartedAt
		result.EndedAt = summary.EndedAt
	}

	task.LastRun = result.StartedAt
	if runErr != nil {
		result.Error = runErr.Error()
		task.LastError = runErr.Error()
	} else {
		result.Success = true
		result.ApplySummary(summary)
		task.LastError = ""
		task.LastSuccess = result.EndedAt
		task.NextRun = result.EndedAt.Add(task.Interval)
	}

	if err := s.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	if err := s.store.RecordResult(ctx, result); err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	return s.store.PruneHistory(ctx, HistoryRetention)
}

// runListingRefresh triggers one orchestration run. A scheduler without
// an orchestrator records empty successful runs.
func (s *Scheduler) runListingRefresh(ctx context.Context) (*domain.RunSummary, error) {
	if s.orch == nil {
		return nil, nil
	}
	return s.orch.Run(ctx)
}
