package sqlite

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/propfeed/internal/core/domain"
	"github.com/custodia-labs/propfeed/internal/core/ports/driven"
)

var historyStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// newHistory opens a store with the listing refresh task already saved.
func newHistory(t *testing.T) driven.SchedulerStore {
	t.Helper()
	store, cleanup := setupTestStore(t)
	t.Cleanup(cleanup)

	history := store.SchedulerStore()
	require.NoError(t, history.SaveTask(context.Background(), &domain.ScheduledTask{
		ID:       domain.TaskIDListingRefresh,
		Name:     "Listing Refresh",
		Interval: 15 * time.Minute,
		Enabled:  true,
	}))
	return history
}

// recordRuns appends n successful runs one minute apart, with run i
// publishing i+1 records.
func recordRuns(t *testing.T, history driven.SchedulerStore, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		started := historyStart.Add(time.Duration(i) * time.Minute)
		require.NoError(t, history.RecordResult(context.Background(), &domain.TaskResult{
			TaskID:    domain.TaskIDListingRefresh,
			StartedAt: started,
			EndedAt:   started.Add(2 * time.Second),
			Success:   true,
			Records:   i + 1,
		}))
	}
}

func TestSchedulerStore_TaskRoundTrip(t *testing.T) {
	history := newHistory(t)
	ctx := context.Background()

	task := &domain.ScheduledTask{
		ID:          domain.TaskIDListingRefresh,
		Name:        "Listing Refresh",
		Interval:    45 * time.Minute,
		LastRun:     historyStart,
		NextRun:     historyStart.Add(45 * time.Minute),
		LastError:   "listing: fetch listing (status 503)",
		LastSuccess: historyStart.Add(-time.Hour),
		Enabled:     false,
	}
	require.NoError(t, history.SaveTask(ctx, task))

	got, err := history.GetTask(ctx, domain.TaskIDListingRefresh)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *task, *got)
}

func TestSchedulerStore_ZeroTimesStayZero(t *testing.T) {
	history := newHistory(t)

	got, err := history.GetTask(context.Background(), domain.TaskIDListingRefresh)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.LastRun.IsZero())
	assert.True(t, got.NextRun.IsZero())
	assert.True(t, got.LastSuccess.IsZero())
	assert.Empty(t, got.LastError)
}

func TestSchedulerStore_GetTask_Missing(t *testing.T) {
	history := newHistory(t)

	got, err := history.GetTask(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSchedulerStore_ListAndDeleteTasks(t *testing.T) {
	history := newHistory(t)
	ctx := context.Background()

	require.NoError(t, history.SaveTask(ctx, &domain.ScheduledTask{ID: "archive-compact", Name: "Compact", Interval: time.Hour}))

	tasks, err := history.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "archive-compact", tasks[0].ID)
	assert.Equal(t, domain.TaskIDListingRefresh, tasks[1].ID)

	require.NoError(t, history.DeleteTask(ctx, "archive-compact"))
	tasks, err = history.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestSchedulerStore_DeleteTaskDropsHistory(t *testing.T) {
	history := newHistory(t)
	ctx := context.Background()
	recordRuns(t, history, 3)

	require.NoError(t, history.DeleteTask(ctx, domain.TaskIDListingRefresh))

	results, err := history.GetTaskHistory(ctx, domain.TaskIDListingRefresh, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSchedulerStore_NilInput(t *testing.T) {
	history := newHistory(t)
	ctx := context.Background()

	assert.ErrorIs(t, history.SaveTask(ctx, nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, history.RecordResult(ctx, nil), domain.ErrInvalidInput)
}

func TestSchedulerStore_RecordResult_KeepsRunDetails(t *testing.T) {
	history := newHistory(t)
	ctx := context.Background()

	ok := domain.TaskResult{
		TaskID:        domain.TaskIDListingRefresh,
		RunID:         "run-1",
		StartedAt:     historyStart,
		EndedAt:       historyStart.Add(1500 * time.Millisecond),
		Success:       true,
		Records:       12,
		DegradedItems: 2,
		ImageFailures: 3,
	}
	failed := domain.TaskResult{
		TaskID:    domain.TaskIDListingRefresh,
		StartedAt: historyStart.Add(15 * time.Minute),
		EndedAt:   historyStart.Add(15*time.Minute + time.Second),
		Error:     "credential: acquire credential (status 401)",
	}
	require.NoError(t, history.RecordResult(ctx, &ok))
	require.NoError(t, history.RecordResult(ctx, &failed))

	results, err := history.GetTaskHistory(ctx, domain.TaskIDListingRefresh, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, failed, results[0])
	assert.Equal(t, ok, results[1])
}

func TestSchedulerStore_RecordResult_UnknownTask(t *testing.T) {
	history := newHistory(t)

	err := history.RecordResult(context.Background(), &domain.TaskResult{
		TaskID:    "missing",
		StartedAt: historyStart,
		EndedAt:   historyStart,
	})
	assert.Error(t, err)
}

func TestSchedulerStore_GetTaskHistory(t *testing.T) {
	tests := []struct {
		name  string
		runs  int
		limit int
		want  []int
	}{
		{name: "empty", runs: 0, limit: 10, want: nil},
		{name: "limited", runs: 5, limit: 3, want: []int{5, 4, 3}},
		{name: "all", runs: 2, limit: 10, want: []int{2, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history := newHistory(t)
			recordRuns(t, history, tt.runs)

			results, err := history.GetTaskHistory(context.Background(), domain.TaskIDListingRefresh, tt.limit)
			require.NoError(t, err)

			var got []int
			for _, r := range results {
				got = append(got, r.Records)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSchedulerStore_PruneHistory(t *testing.T) {
	history := newHistory(t)
	ctx := context.Background()
	recordRuns(t, history, 10)

	require.NoError(t, history.PruneHistory(ctx, 3))

	results, err := history.GetTaskHistory(ctx, domain.TaskIDListingRefresh, 100)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 10, results[0].Records)
	assert.Equal(t, 8, results[2].Records)
}

func TestTimeValue_RoundTrip(t *testing.T) {
	assert.Nil(t, timeValue(time.Time{}))

	ts := time.Date(2026, 3, 1, 12, 0, 0, 500, time.FixedZone("CET", 3600))
	stored := timeValue(ts)
	assert.Equal(t, "2026-03-01T11:00:00.000000500Z", stored)
	assert.True(t, ts.Equal(parseTime(sql.NullString{String: stored.(string), Valid: true})))
}

func TestParseTime_Invalid(t *testing.T) {
	assert.True(t, parseTime(sql.NullString{}).IsZero())
	assert.True(t, parseTime(sql.NullString{String: "yesterday", Valid: true}).IsZero())
}

func TestTextValue(t *testing.T) {
	assert.Nil(t, textValue(""))
	assert.Equal(t, "run-1", textValue("run-1"))
}
