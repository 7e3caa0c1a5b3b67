package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/propfeed/internal/core/domain"
	"github.com/custodia-labs/propfeed/internal/core/ports/driven"
	"github.com/custodia-labs/propfeed/internal/core/ports/driving"
	"github.com/custodia-labs/propfeed/internal/logger"
)

// Ensure SnapshotReader implements the interface.
var _ driving.SnapshotReader = (*SnapshotReader)(nil)

// Pagination bounds for List.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// SnapshotReader serves the published snapshot from the cache. On a miss
// it can trigger a single coalesced orchestration run.
type SnapshotReader struct {
	cache         driven.CacheStore
	orch          driving.FetchOrchestrator
	refreshOnMiss atomic.Bool
	group         singleflight.Group
}

// NewSnapshotReader creates a reader. orch may be nil to disable refresh.
func NewSnapshotReader(cache driven.CacheStore, orch driving.FetchOrchestrator, refreshOnMiss bool) *SnapshotReader {
	r := &SnapshotReader{cache: cache, orch: orch}
	r.refreshOnMiss.Store(refreshOnMiss)
	return r
}

// SetRefreshOnMiss toggles live refresh on cache miss.
func (r *SnapshotReader) SetRefreshOnMiss(v bool) {
	r.refreshOnMiss.Store(v)
}

// Snapshot returns the current snapshot.
func (r *SnapshotReader) Snapshot(ctx context.Context) (*domain.AggregateSnapshot, error) {
	if r.orch == nil {
		return nil, domain.ErrSnapshotUnavailable
	}
	key := r.orch.Key()

	if snap, ok := r.cached(key); ok {
		return snap, nil
	}
	if !r.refreshOnMiss.Load() {
		return nil, domain.ErrSnapshotUnavailable
	}

	logger.Debug("reader: cache miss for %s, refreshing", key)
	v, err, _ := r.group.Do(key, func() (any, error) {
		// A client disconnect must not abort a refresh other callers share.
		if _, err := r.orch.Run(context.WithoutCancel(ctx)); err != nil {
			return nil, err
		}
		snap, ok := r.cached(key)
		if !ok {
			return nil, domain.ErrSnapshotUnavailable
		}
		return snap, nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrRunInProgress) {
			return nil, fmt.Errorf("refresh already running: %w", domain.ErrSnapshotUnavailable)
		}
		return nil, fmt.Errorf("refresh snapshot: %w", err)
	}
	return v.(*domain.AggregateSnapshot), nil
}

// List returns a filtered page of the current snapshot.
func (r *SnapshotReader) List(ctx context.Context, filter driving.ListingFilter) (*driving.ListingResult, error) {
	if filter.Operation != "" && !filter.Operation.IsValid() {
		return nil, fmt.Errorf("operation %q: %w", filter.Operation, domain.ErrInvalidInput)
	}

	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]domain.CanonicalRecord, 0, len(snap.Records))
	for _, rec := range snap.Records {
		if matches(rec, filter) {
			matched = append(matched, rec)
		}
	}

	page, size := normalisePage(filter.Page, filter.PageSize)
	totalPages := (len(matched) + size - 1) / size

	// Pages past the end are empty. Bounding page first keeps the
	// offset multiplication from overflowing.
	start := len(matched)
	if page <= totalPages {
		start = (page - 1) * size
	}
	end := min(start+size, len(matched))

	return &driving.ListingResult{
		Records:    matched[start:end],
		Total:      len(matched),
		Page:       page,
		PageSize:   size,
		TotalPages: totalPages,
		FetchedAt:  snap.FetchedAt,
	}, nil
}

// Record returns a single record by ID or reference.
func (r *SnapshotReader) Record(ctx context.Context, id string) (*domain.CanonicalRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("record id: %w", domain.ErrInvalidInput)
	}

	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	for i := range snap.Records {
		rec := snap.Records[i]
		if rec.ID == id || (rec.Reference != "" && strings.EqualFold(rec.Reference, id)) {
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
}

func (r *SnapshotReader) cached(key string) (*domain.AggregateSnapshot, bool) {
	if r.cache == nil {
		return nil, false
	}
	v, ok := r.cache.Get(key)
	if !ok {
		return nil, false
	}
	snap, ok := v.(*domain.AggregateSnapshot)
	return snap, ok && snap != nil
}

func matches(rec domain.CanonicalRecord, f driving.ListingFilter) bool {
	if f.Operation != "" && rec.Operation.Type != f.Operation {
		return false
	}
	if f.Zone != "" && !strings.EqualFold(rec.Classification.Zone, f.Zone) {
		return false
	}
	if f.PropertyType != "" && !strings.EqualFold(rec.Classification.PropertyType, f.PropertyType) {
		return false
	}
	if f.ActiveOnly && !rec.IsActive {
		return false
	}
	return true
}

func normalisePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case size <= 0:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}
	return page, size
}
