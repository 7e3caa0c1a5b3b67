package mcp

import (
	"context"

	"github.com/custodia-labs/propfeed/internal/core/domain"
	"github.com/custodia-labs/propfeed/internal/core/ports/driving"
)

// mockReader is a mock implementation of driving.SnapshotReader.
type mockReader struct {
	result     *driving.ListingResult
	record     *domain.CanonicalRecord
	err        error
	lastFilter driving.ListingFilter
}

func (m *mockReader) Snapshot(_ context.Context) (*domain.AggregateSnapshot, error) {
	return nil, m.err
}

func (m *mockReader) List(_ context.Context, filter driving.ListingFilter) (*driving.ListingResult, error) {
	m.lastFilter = filter
	return m.result, m.err
}

func (m *mockReader) Record(_ context.Context, _ string) (*domain.CanonicalRecord, error) {
	return m.record, m.err
}

// mockOrchestrator is a mock implementation of driving.FetchOrchestrator.
type mockOrchestrator struct {
	summary *domain.RunSummary
	status  domain.RunStatus
	err     error
}

func (m *mockOrchestrator) Run(_ context.Context) (*domain.RunSummary, error) {
	return m.summary, m.err
}

func (m *mockOrchestrator) Status() domain.RunStatus {
	return m.status
}

func (m *mockOrchestrator) Key() string {
	return "key"
}
