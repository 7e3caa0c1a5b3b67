package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/propfeed/internal/core/domain"
	"github.com/custodia-labs/propfeed/internal/core/ports/driven"
	"github.com/custodia-labs/propfeed/internal/core/ports/driving"
	"github.com/custodia-labs/propfeed/internal/normalisers"
)

// --- Mock implementations shared by the service tests ---

// mockSchedulerStore implements driven.SchedulerStore for testing.
type mockSchedulerStore struct {
	mu       sync.RWMutex
	tasks    map[string]*domain.ScheduledTask
	results  map[string][]domain.TaskResult
	saveErr  error
	listErr  error
	getErr   error
	pruneErr error
}

func newMockSchedulerStore() *mockSchedulerStore {
	return &mockSchedulerStore{
		tasks:   make(map[string]*domain.ScheduledTask),
		results: make(map[string][]domain.TaskResult),
	}
}

func (m *mockSchedulerStore) GetTask(_ context.Context, taskID string) (*domain.ScheduledTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	task, exists := m.tasks[taskID]
	if !exists {
		return nil, nil
	}
	taskCopy := *task
	return &taskCopy, nil
}

func (m *mockSchedulerStore) ListTasks(_ context.Context) ([]domain.ScheduledTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	tasks := make([]domain.ScheduledTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, *t)
	}
	return tasks, nil
}

func (m *mockSchedulerStore) SaveTask(_ context.Context, task *domain.ScheduledTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if task == nil {
		return domain.ErrInvalidInput
	}
	taskCopy := *task
	m.tasks[task.ID] = &taskCopy
	return nil
}

func (m *mockSchedulerStore) DeleteTask(_ context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, taskID)
	return nil
}

func (m *mockSchedulerStore) RecordResult(_ context.Context, result *domain.TaskResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if result == nil {
		return domain.ErrInvalidInput
	}
	m.results[result.TaskID] = append(m.results[result.TaskID], *result)
	return nil
}

func (m *mockSchedulerStore) GetTaskHistory(_ context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := m.results[taskID]
	if len(results) > limit {
		results = results[len(results)-limit:]
	}
	return results, nil
}

func (m *mockSchedulerStore) PruneHistory(_ context.Context, _ int) error {
	return m.pruneErr
}

func (m *mockSchedulerStore) resultsFor(taskID string) []domain.TaskResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.TaskResult(nil), m.results[taskID]...)
}

// mockOrchestrator implements driving.FetchOrchestrator for testing.
type mockOrchestrator struct {
	calls   atomic.Int32
	key     string
	summary *domain.RunSummary
	err     error
	delay   time.Duration

	// onRun runs before the result is returned.
	onRun func()
}

func (m *mockOrchestrator) Run(_ context.Context) (*domain.RunSummary, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.onRun != nil {
		m.onRun()
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.summary != nil {
		return m.summary, nil
	}
	return &domain.RunSummary{}, nil
}

func (m *mockOrchestrator) Status() domain.RunStatus {
	return domain.RunStatus{Key: m.key}
}

func (m *mockOrchestrator) Key() string {
	return m.key
}

// mockCache implements driven.CacheStore for testing.
type mockCache struct {
	mu      sync.Mutex
	entries map[string]any
	ttls    map[string]time.Duration
	reject  bool
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string]any), ttls: make(map[string]time.Duration)}
}

func (m *mockCache) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return v, ok
}

func (m *mockCache) Set(key string, value any, ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reject {
		return false
	}
	m.entries[key] = value
	m.ttls[key] = ttl
	return true
}

func (m *mockCache) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

func (m *mockCache) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]any)
}

func (m *mockCache) Stats() driven.CacheStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return driven.CacheStats{Size: len(m.entries)}
}

// fakeUpstream implements every upstream port for testing.
type fakeUpstream struct {
	mu sync.Mutex

	credErr    error
	page       *domain.ListingPage
	listingErr error

	// itemRefs and itemErrs are keyed by item id.
	itemRefs map[string][]domain.ImageRef
	itemErrs map[string]error

	// assets and assetErrs are keyed by asset id.
	assets    map[string]domain.Asset
	assetErrs map[string]error

	// block, when set, is closed to release a blocked FetchListing.
	block chan struct{}

	listingCalls int
	assetCalls   []string
	itemCalls    []string
}

var errNetwork = errors.New("connection reset by peer")

func (f *fakeUpstream) AcquireCredential(_ context.Context) (domain.Credential, error) {
	if f.credErr != nil {
		return domain.Credential{}, f.credErr
	}
	return domain.Credential{Token: "tok"}, nil
}

func (f *fakeUpstream) FetchListing(ctx context.Context, _ domain.Credential, _ domain.ListingQuery) (*domain.ListingPage, error) {
	f.mu.Lock()
	f.listingCalls++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.listingErr != nil {
		return nil, f.listingErr
	}
	return f.page, nil
}

func (f *fakeUpstream) ItemImages(_ context.Context, _ domain.Credential, itemID string) ([]domain.ImageRef, error) {
	f.mu.Lock()
	f.itemCalls = append(f.itemCalls, itemID)
	f.mu.Unlock()
	if err := f.itemErrs[itemID]; err != nil {
		return nil, err
	}
	return f.itemRefs[itemID], nil
}

func (f *fakeUpstream) LookupAsset(ctx context.Context, _ domain.Credential, assetID string) (*domain.Asset, error) {
	f.mu.Lock()
	f.assetCalls = append(f.assetCalls, assetID)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.assetErrs[assetID]; err != nil {
		return nil, err
	}
	a, ok := f.assets[assetID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

func (f *fakeUpstream) assetCallsSnapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.assetCalls...)
}

// statusErr carries an upstream HTTP status.
type statusErr struct {
	status int
}

func (e *statusErr) Error() string   { return "upstream status error" }
func (e *statusErr) HTTPStatus() int { return e.status }

func testQuery() domain.ListingQuery {
	return domain.ListingQuery{Feed: "coastal", Page: 1, PageSize: 50, Status: "active"}
}

func newTestOrchestrator(up *fakeUpstream, cache driven.CacheStore) *FetchOrchestrator {
	return NewFetchOrchestrator(up, up, up, up, normalisers.NewDefaultRegistry(), cache, FetchOptions{
		Query:        testQuery(),
		TTL:          time.Minute,
		ImageTimeout: time.Second,
		ItemTimeout:  2 * time.Second,
	})
}

func ptr[T any](v T) *T { return &v }

// Ensure mocks implement interfaces
var _ driven.SchedulerStore = (*mockSchedulerStore)(nil)
var _ driving.FetchOrchestrator = (*mockOrchestrator)(nil)
var _ driven.CacheStore = (*mockCache)(nil)
var _ driven.Upstream = (*fakeUpstream)(nil)
