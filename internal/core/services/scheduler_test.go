package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/propfeed/internal/core/domain"
)

func TestNewScheduler(t *testing.T) {
	config := domain.DefaultSchedulerConfig()
	store := newMockSchedulerStore()
	orch := &mockOrchestrator{}

	scheduler := NewScheduler(config, store, orch)

	require.NotNil(t, scheduler)
	assert.Equal(t, DefaultTickInterval, scheduler.tick)
	assert.False(t, scheduler.running)
}

func TestNewScheduler_WithTickInterval(t *testing.T) {
	s := NewScheduler(domain.DefaultSchedulerConfig(), newMockSchedulerStore(), nil, WithTickInterval(5*time.Second))
	assert.Equal(t, 5*time.Second, s.tick)

	s = NewScheduler(domain.DefaultSchedulerConfig(), newMockSchedulerStore(), nil, WithTickInterval(0))
	assert.Equal(t, DefaultTickInterval, s.tick)
}

func TestScheduler_StartStop(t *testing.T) {
	config := domain.DefaultSchedulerConfig()
	store := newMockSchedulerStore()
	orch := &mockOrchestrator{}

	scheduler := NewScheduler(config, store, orch)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = scheduler.Start(ctx)
	}()

	// The refresh task runs on start.
	require.Eventually(t, func() bool {
		return len(store.resultsFor(domain.TaskIDListingRefresh)) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, scheduler.Stop())
	wg.Wait()

	assert.Equal(t, int32(1), orch.calls.Load())
}

func TestScheduler_StartDisabled(t *testing.T) {
	config := domain.DefaultSchedulerConfig()
	config.Enabled = false
	orch := &mockOrchestrator{}

	scheduler := NewScheduler(config, newMockSchedulerStore(), orch)

	// Returns immediately without running anything.
	require.NoError(t, scheduler.Start(context.Background()))
	assert.Equal(t, int32(0), orch.calls.Load())
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), newMockSchedulerStore(), &mockOrchestrator{})

	err := scheduler.Stop()
	require.NoError(t, err)
}

func TestScheduler_DoubleStart(t *testing.T) {
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), newMockSchedulerStore(), &mockOrchestrator{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = scheduler.Start(ctx)
	}()

	require.Eventually(t, func() bool {
		scheduler.mu.Lock()
		defer scheduler.mu.Unlock()
		return scheduler.running
	}, time.Second, 5*time.Millisecond)

	// Second start should return immediately.
	err := scheduler.Start(ctx)
	require.NoError(t, err)

	cancel()
	_ = scheduler.Stop()
	wg.Wait()
}

func TestScheduler_InitialiseTasks(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMockSchedulerStore()

	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, &mockOrchestrator{})
	scheduler.now = func() time.Time { return now }

	err := scheduler.initialiseTasks(context.Background())
	require.NoError(t, err)

	task, err := store.GetTask(context.Background(), domain.TaskIDListingRefresh)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "Listing Refresh", task.Name)
	assert.Equal(t, 15*time.Minute, task.Interval)
	assert.True(t, task.Enabled)
	assert.Equal(t, now, task.NextRun)
}

func TestScheduler_InitialiseTasks_WithoutRunOnStart(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	config := domain.DefaultSchedulerConfig()
	config.TaskConfigs[domain.TaskIDListingRefresh] = domain.TaskConfig{Enabled: true, Interval: time.Hour}
	store := newMockSchedulerStore()

	scheduler := NewScheduler(config, store, &mockOrchestrator{})
	scheduler.now = func() time.Time { return now }

	require.NoError(t, scheduler.initialiseTasks(context.Background()))

	task, err := store.GetTask(context.Background(), domain.TaskIDListingRefresh)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), task.NextRun)
}

func TestScheduler_InitialiseTasks_StoreError(t *testing.T) {
	store := newMockSchedulerStore()
	store.getErr = errors.New("disk full")

	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, &mockOrchestrator{})

	err := scheduler.initialiseTasks(context.Background())
	assert.EqualError(t, err, "disk full")
}

func TestScheduler_EnsureTask_UpdateInterval(t *testing.T) {
	store := newMockSchedulerStore()
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, &mockOrchestrator{})
	ctx := context.Background()

	// Create initial task
	taskCfg := domain.TaskConfig{
		Enabled:  true,
		Interval: 1 * time.Hour,
	}
	err := scheduler.ensureTask(ctx, "test-task", "Test Task", taskCfg)
	require.NoError(t, err)

	// Update with new interval
	taskCfg.Interval = 2 * time.Hour
	err = scheduler.ensureTask(ctx, "test-task", "Test Task", taskCfg)
	require.NoError(t, err)

	task, err := store.GetTask(ctx, "test-task")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, task.Interval)
}

func TestScheduler_UpdateConfig(t *testing.T) {
	store := newMockSchedulerStore()
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, &mockOrchestrator{})
	ctx := context.Background()
	require.NoError(t, scheduler.initialiseTasks(ctx))

	config := domain.DefaultSchedulerConfig()
	config.TaskConfigs[domain.TaskIDListingRefresh] = domain.TaskConfig{Enabled: false, Interval: 5 * time.Minute}
	require.NoError(t, scheduler.UpdateConfig(ctx, config))

	task, err := store.GetTask(ctx, domain.TaskIDListingRefresh)
	require.NoError(t, err)
	assert.False(t, task.Enabled)
	assert.Equal(t, 5*time.Minute, task.Interval)
}

func TestScheduler_RunListingRefresh(t *testing.T) {
	orch := &mockOrchestrator{summary: &domain.RunSummary{Records: 7, DegradedItems: 2}}
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), newMockSchedulerStore(), orch)

	summary, err := scheduler.runListingRefresh(context.Background())
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 7, summary.Records)
	assert.Equal(t, 2, summary.DegradedItems)
	assert.Equal(t, int32(1), orch.calls.Load())
}

func TestScheduler_RunListingRefresh_NilOrchestrator(t *testing.T) {
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), newMockSchedulerStore(), nil)

	summary, err := scheduler.runListingRefresh(context.Background())
	require.NoError(t, err)
	assert.Nil(t, summary)
}

func TestScheduler_CheckAndRunDueTasks(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMockSchedulerStore()
	orch := &mockOrchestrator{summary: &domain.RunSummary{RunID: "run-3", Records: 3, ImageFailures: 1}}

	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, orch)
	scheduler.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID:       domain.TaskIDListingRefresh,
		Name:     "Listing Refresh",
		Interval: time.Hour,
		Enabled:  true,
		NextRun:  now.Add(-time.Minute),
	}))
	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID:       "not-due",
		Interval: time.Hour,
		Enabled:  true,
		NextRun:  now.Add(time.Hour),
	}))

	scheduler.checkAndRunDueTasks(ctx)
	scheduler.wg.Wait()

	assert.Equal(t, int32(1), orch.calls.Load())

	results := store.resultsFor(domain.TaskIDListingRefresh)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, "run-3", results[0].RunID)
	assert.Equal(t, 3, results[0].Records)
	assert.Equal(t, 1, results[0].ImageFailures)

	task, err := store.GetTask(ctx, domain.TaskIDListingRefresh)
	require.NoError(t, err)
	assert.Equal(t, now, task.LastRun)
	assert.Equal(t, now, task.LastSuccess)
	assert.Equal(t, now.Add(time.Hour), task.NextRun)
	assert.Empty(t, task.LastError)
}

func TestScheduler_CheckAndRunDueTasks_SkipsDisabled(t *testing.T) {
	store := newMockSchedulerStore()
	orch := &mockOrchestrator{}
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, orch)

	ctx := context.Background()
	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID:      domain.TaskIDListingRefresh,
		Enabled: false,
	}))

	scheduler.checkAndRunDueTasks(ctx)
	scheduler.wg.Wait()
	assert.Equal(t, int32(0), orch.calls.Load())
}

func TestScheduler_RunTask_RecordsFailure(t *testing.T) {
	store := newMockSchedulerStore()
	orch := &mockOrchestrator{err: &domain.FetchError{Kind: domain.FetchErrListing, Message: "fetch listing", StatusCode: 500}}
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, orch)

	task := &domain.ScheduledTask{ID: domain.TaskIDListingRefresh, Interval: time.Hour, Enabled: true}
	scheduler.runTask(context.Background(), task)
	scheduler.wg.Wait()

	results := store.resultsFor(domain.TaskIDListingRefresh)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "status 500")

	saved, err := store.GetTask(context.Background(), domain.TaskIDListingRefresh)
	require.NoError(t, err)
	assert.Contains(t, saved.LastError, "listing")
	assert.True(t, saved.LastSuccess.IsZero())
}

func TestScheduler_RunTask_RunInProgressIsSkipped(t *testing.T) {
	store := newMockSchedulerStore()
	orch := &mockOrchestrator{err: domain.ErrRunInProgress}
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, orch)

	task := &domain.ScheduledTask{ID: domain.TaskIDListingRefresh, Interval: time.Hour, Enabled: true}
	scheduler.runTask(context.Background(), task)
	scheduler.wg.Wait()

	assert.Empty(t, store.resultsFor(domain.TaskIDListingRefresh))

	saved, err := store.GetTask(context.Background(), domain.TaskIDListingRefresh)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Empty(t, saved.LastError)
	assert.False(t, saved.NextRun.IsZero())
}

func TestScheduler_RunTask_InFlightGuard(t *testing.T) {
	store := newMockSchedulerStore()
	release := make(chan struct{})
	orch := &mockOrchestrator{onRun: func() { <-release }}
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, orch)

	task := domain.ScheduledTask{ID: domain.TaskIDListingRefresh, Interval: time.Hour, Enabled: true}
	first, second := task, task
	scheduler.runTask(context.Background(), &first)

	require.Eventually(t, func() bool { return orch.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	scheduler.runTask(context.Background(), &second)

	close(release)
	scheduler.wg.Wait()

	assert.Equal(t, int32(1), orch.calls.Load())
	assert.Len(t, store.resultsFor(domain.TaskIDListingRefresh), 1)
}

func TestScheduler_RunTask_UnknownTaskID(t *testing.T) {
	store := newMockSchedulerStore()
	orch := &mockOrchestrator{}
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, orch)

	task := &domain.ScheduledTask{ID: "unknown-task", Interval: time.Hour, Enabled: true}
	scheduler.runTask(context.Background(), task)
	scheduler.wg.Wait()

	assert.Equal(t, int32(0), orch.calls.Load())
	assert.Empty(t, store.resultsFor("unknown-task"))
}

func TestScheduler_RecordManualRun_Success(t *testing.T) {
	store := newMockSchedulerStore()
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, nil)

	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	summary := &domain.RunSummary{
		Records:       9,
		DegradedItems: 1,
		StartedAt:     start,
		EndedAt:       start.Add(2 * time.Second),
	}
	require.NoError(t, scheduler.RecordManualRun(context.Background(), summary, nil))

	results := store.resultsFor(domain.TaskIDListingRefresh)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, 9, results[0].Records)
	assert.Equal(t, 1, results[0].DegradedItems)
	assert.True(t, results[0].StartedAt.Equal(start))

	task, err := store.GetTask(context.Background(), domain.TaskIDListingRefresh)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.True(t, task.LastSuccess.Equal(summary.EndedAt))
	assert.True(t, task.NextRun.Equal(summary.EndedAt.Add(15*time.Minute)))
	assert.Empty(t, task.LastError)
}

func TestScheduler_RecordManualRun_Failure(t *testing.T) {
	store := newMockSchedulerStore()
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, nil)

	runErr := &domain.FetchError{Kind: domain.FetchErrCredential, Message: "token rejected"}
	require.NoError(t, scheduler.RecordManualRun(context.Background(), nil, runErr))

	results := store.resultsFor(domain.TaskIDListingRefresh)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "token rejected")

	task, err := store.GetTask(context.Background(), domain.TaskIDListingRefresh)
	require.NoError(t, err)
	assert.Contains(t, task.LastError, "token rejected")
	assert.True(t, task.LastSuccess.IsZero())
}

func TestScheduler_RecordManualRun_SkipsInProgress(t *testing.T) {
	store := newMockSchedulerStore()
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, nil)

	require.NoError(t, scheduler.RecordManualRun(context.Background(), nil, domain.ErrRunInProgress))

	assert.Empty(t, store.resultsFor(domain.TaskIDListingRefresh))
}

func TestScheduler_RecordManualRun_StoreError(t *testing.T) {
	store := newMockSchedulerStore()
	store.getErr = errors.New("db locked")
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, nil)

	err := scheduler.RecordManualRun(context.Background(), &domain.RunSummary{}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "db locked")
}
