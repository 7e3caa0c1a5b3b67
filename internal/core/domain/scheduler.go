package domain

import "time"

// ScheduledTask represents a recurring background task.
type ScheduledTask struct {
	// ID is the unique identifier for the task.
	ID string

	// Name is a human-readable name for the task.
	Name string

	// Interval defines how often the task should run.
	Interval time.Duration

	// LastRun is when the task last ran.
	LastRun time.Time

	// NextRun is when the task should run next.
	NextRun time.Time

	// LastError contains the last error message, if any.
	LastError string

	// LastSuccess is when the task last completed successfully.
	LastSuccess time.Time

	// Enabled indicates whether the task is active.
	Enabled bool
}

// TaskResult represents the outcome of a task execution.
type TaskResult struct {
	// TaskID identifies which task was run.
	TaskID string

	// RunID is the orchestrator run ID. Empty for failed runs.
	RunID string

	// StartedAt is when the task started.
	StartedAt time.Time

	// EndedAt is when the task completed.
	EndedAt time.Time

	// Success indicates whether the task completed without error.
	Success bool

	// Error contains the error message if Success is false.
	Error string

	// Records is the number of records published by the run.
	Records int

	// DegradedItems is the number of records published with missing images.
	DegradedItems int

	// ImageFailures is the number of image refs that could not be resolved.
	ImageFailures int
}

// ApplySummary copies the run ID and counters of a completed run.
func (r *TaskResult) ApplySummary(s *RunSummary) {
	if s == nil {
		return
	}
	r.RunID = s.RunID
	r.Records = s.Records
	r.DegradedItems = s.DegradedItems
	r.ImageFailures = s.ImageFailures
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	// Enabled is the master switch for the scheduler.
	Enabled bool

	// TaskConfigs holds per-task configuration.
	TaskConfigs map[string]TaskConfig
}

// TaskConfig holds configuration for a single task.
type TaskConfig struct {
	// Enabled indicates whether this task should run.
	Enabled bool

	// Interval defines how often the task should run.
	Interval time.Duration

	// RunOnStart schedules the first run immediately instead of one
	// interval after the task is created.
	RunOnStart bool
}

// GetTaskConfig returns the configuration for a specific task.
// Returns a zero TaskConfig if the task is not configured.
func (c *SchedulerConfig) GetTaskConfig(taskID string) TaskConfig {
	if c.TaskConfigs == nil {
		return TaskConfig{}
	}
	return c.TaskConfigs[taskID]
}

// DefaultSchedulerConfig returns sensible defaults for the scheduler.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled: true,
		TaskConfigs: map[string]TaskConfig{
			TaskIDListingRefresh: {
				Enabled:    true,
				Interval:   15 * time.Minute,
				RunOnStart: true,
			},
		},
	}
}

// Task IDs for built-in tasks.
const (
	TaskIDListingRefresh = "listing-refresh"
)
