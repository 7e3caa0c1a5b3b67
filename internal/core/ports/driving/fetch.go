package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/propfeed/internal/core/domain"
)

// FetchOrchestrator runs the end-to-end upstream aggregation.
type FetchOrchestrator interface {
	// Run performs one orchestration run and publishes its snapshot.
	// Returns domain.ErrRunInProgress if a run for the same aggregate
	// key is already in flight, or a *domain.FetchError on fatal failure.
	Run(ctx context.Context) (*domain.RunSummary, error)

	// Status returns the orchestrator's current state.
	Status() domain.RunStatus

	// Key returns the aggregate key snapshots are published under.
	Key() string
}

// ListingFilter narrows a snapshot listing.
type ListingFilter struct {
	Operation    domain.OperationType
	Zone         string
	PropertyType string

	// ActiveOnly drops records whose isActive flag is false.
	ActiveOnly bool

	Page     int
	PageSize int
}

// ListingResult is one page of filtered records.
type ListingResult struct {
	Records    []domain.CanonicalRecord
	Total      int
	Page       int
	PageSize   int
	TotalPages int
	FetchedAt  time.Time
}

// SnapshotReader is the read path over the cache.
type SnapshotReader interface {
	// Snapshot returns the current snapshot, refreshing on miss when enabled.
	Snapshot(ctx context.Context) (*domain.AggregateSnapshot, error)

	// List returns a filtered, paginated view of the current snapshot.
	List(ctx context.Context, filter ListingFilter) (*ListingResult, error)

	// Record returns a single record by ID or reference.
	Record(ctx context.Context, id string) (*domain.CanonicalRecord, error)
}
