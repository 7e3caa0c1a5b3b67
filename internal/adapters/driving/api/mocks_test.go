package api

import (
	"context"
	"sync"

	"github.com/custodia-labs/propfeed/internal/core/domain"
	"github.com/custodia-labs/propfeed/internal/core/ports/driving"
)

// mockReader implements driving.SnapshotReader for testing.
type mockReader struct {
	mu         sync.Mutex
	snapshot   *domain.AggregateSnapshot
	result     *driving.ListingResult
	record     *domain.CanonicalRecord
	err        error
	lastFilter driving.ListingFilter
	lastID     string
}

var _ driving.SnapshotReader = (*mockReader)(nil)

func (m *mockReader) Snapshot(_ context.Context) (*domain.AggregateSnapshot, error) {
	return m.snapshot, m.err
}

func (m *mockReader) List(_ context.Context, filter driving.ListingFilter) (*driving.ListingResult, error) {
	m.mu.Lock()
	m.lastFilter = filter
	m.mu.Unlock()
	return m.result, m.err
}

func (m *mockReader) Record(_ context.Context, id string) (*domain.CanonicalRecord, error) {
	m.mu.Lock()
	m.lastID = id
	m.mu.Unlock()
	return m.record, m.err
}

// mockOrchestrator implements driving.FetchOrchestrator for testing.
type mockOrchestrator struct {
	summary *domain.RunSummary
	status  domain.RunStatus
	err     error
	calls   int
	ctxErr  error
}

var _ driving.FetchOrchestrator = (*mockOrchestrator)(nil)

func (m *mockOrchestrator) Run(ctx context.Context) (*domain.RunSummary, error) {
	m.calls++
	m.ctxErr = ctx.Err()
	return m.summary, m.err
}

func (m *mockOrchestrator) Status() domain.RunStatus {
	return m.status
}

func (m *mockOrchestrator) Key() string {
	return "test-key"
}
