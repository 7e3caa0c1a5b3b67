package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/propfeed/internal/core/domain"
	"github.com/custodia-labs/propfeed/internal/core/ports/driven"
	"github.com/custodia-labs/propfeed/internal/core/ports/driving"
	"github.com/custodia-labs/propfeed/internal/logger"
)

// Ensure FetchOrchestrator implements the interface.
var _ driving.FetchOrchestrator = (*FetchOrchestrator)(nil)

// DefaultItemTimeout bounds the enrichment of a single item.
const DefaultItemTimeout = 20 * time.Second

// FetchOptions parameterise an orchestration run.
type FetchOptions struct {
	// Query is the primary listing query. Its feed is required.
	Query domain.ListingQuery

	// TTL is how long a published snapshot stays in the cache.
	TTL time.Duration

	// ImageTimeout bounds each asset lookup.
	ImageTimeout time.Duration

	// ItemTimeout bounds the whole enrichment of one item.
	ItemTimeout time.Duration

	// Concurrency limits parallel item enrichment. Zero means unlimited.
	Concurrency int
}

// FetchOptionsFromSettings derives run options from application settings.
func FetchOptionsFromSettings(s domain.Settings) FetchOptions {
	return FetchOptions{
		Query:        s.ListingQuery(),
		TTL:          s.Cache.TTL,
		ImageTimeout: s.Upstream.ImageTimeout,
		ItemTimeout:  DefaultItemTimeout,
	}
}

// itemResult is the structured outcome of enriching one item.
type itemResult struct {
	images   []domain.ResolvedImage
	failures []ImageFailure
	err      error
}

func (r itemResult) degraded() bool {
	return r.err != nil || len(r.failures) > 0
}

// FetchOrchestrator performs credential acquisition, the listing query,
// per-item image enrichment, normalisation and snapshot publication.
type FetchOrchestrator struct {
	creds      driven.CredentialProvider
	listings   driven.ListingSource
	itemImages driven.ItemImageSource
	assets     driven.AssetLookup
	registry   driven.NormaliserRegistry
	cache      driven.CacheStore
	archive    driven.SnapshotArchive
	now        func() time.Time

	optsMu sync.RWMutex
	opts   FetchOptions

	// Status tracking
	mu          sync.Mutex
	inFlight    map[string]bool
	state       domain.RunState
	activeKey   string
	lastSummary *domain.RunSummary
	lastErr     string
	lastRunAt   time.Time
}

// NewFetchOrchestrator creates a new fetch orchestrator.
// itemImages and assets are optional; without them items only carry
// images found in the listing's includes bundle.
func NewFetchOrchestrator(
	creds driven.CredentialProvider,
	listings driven.ListingSource,
	itemImages driven.ItemImageSource,
	assets driven.AssetLookup,
	registry driven.NormaliserRegistry,
	cache driven.CacheStore,
	opts FetchOptions,
) *FetchOrchestrator {
	return &FetchOrchestrator{
		creds:      creds,
		listings:   listings,
		itemImages: itemImages,
		assets:     assets,
		registry:   registry,
		cache:      cache,
		now:        time.Now,
		opts:       opts,
		inFlight:   make(map[string]bool),
		state:      domain.RunIdle,
	}
}

// SetArchive enables persisting each published snapshot. nil disables it.
func (o *FetchOrchestrator) SetArchive(a driven.SnapshotArchive) {
	o.optsMu.Lock()
	defer o.optsMu.Unlock()
	o.archive = a
}

// Warm seeds the cache from the archive when the archived snapshot is
// younger than the TTL. It reports whether the cache was seeded.
func (o *FetchOrchestrator) Warm(ctx context.Context) (bool, error) {
	o.optsMu.RLock()
	archive, opts := o.archive, o.opts
	o.optsMu.RUnlock()
	if archive == nil || o.cache == nil {
		return false, nil
	}

	key := domain.SnapshotKey(opts.Query)
	snap, err := archive.LatestSnapshot(ctx, key)
	if err != nil {
		return false, fmt.Errorf("load archived snapshot: %w", err)
	}
	if snap == nil {
		return false, nil
	}

	remaining := opts.TTL - o.now().Sub(snap.FetchedAt)
	if remaining <= 0 {
		logger.Debug("fetch: archived snapshot for %s expired", key)
		return false, nil
	}
	if !o.cache.Set(key, snap, remaining) {
		return false, nil
	}
	logger.Info("fetch: warmed cache with %d archived records (run %s)", len(snap.Records), snap.SourceMeta.RunID)
	return true, nil
}

// UpdateOptions replaces the options used by subsequent runs.
func (o *FetchOrchestrator) UpdateOptions(opts FetchOptions) {
	o.optsMu.Lock()
	defer o.optsMu.Unlock()
	o.opts = opts
}

// Options returns the current run options.
func (o *FetchOrchestrator) Options() FetchOptions {
	o.optsMu.RLock()
	defer o.optsMu.RUnlock()
	return o.opts
}

// Key returns the aggregate key for the current options.
func (o *FetchOrchestrator) Key() string {
	return domain.SnapshotKey(o.Options().Query)
}

// Run performs one orchestration run.
//
//nolint:gocyclo // Orchestration function with necessary sequential steps
func (o *FetchOrchestrator) Run(ctx context.Context) (*domain.RunSummary, error) {
	opts := o.Options()
	key := domain.SnapshotKey(opts.Query)

	if !o.begin(key) {
		return nil, domain.ErrRunInProgress
	}
	defer o.release(key)

	summary := &domain.RunSummary{
		RunID:     uuid.NewString(),
		Key:       key,
		StartedAt: o.now(),
	}
	logger.Section("Fetch " + summary.RunID)

	// 1. Validate configuration
	if err := o.checkConfig(opts); err != nil {
		return nil, o.fail(summary, &domain.FetchError{Kind: domain.FetchErrConfig, Message: err.Error(), Err: err})
	}

	// 2. Acquire credential
	o.setState(domain.RunAcquiringCredential)
	cred, err := o.creds.AcquireCredential(ctx)
	if err != nil {
		return nil, o.fail(summary, newFetchError(domain.FetchErrCredential, "acquire credential", err))
	}

	// 3. Fetch the listing page
	o.setState(domain.RunFetchingListing)
	page, err := o.listings.FetchListing(ctx, cred, opts.Query)
	if err != nil {
		return nil, o.fail(summary, newFetchError(domain.FetchErrListing, "fetch listing", err))
	}
	if page == nil {
		page = &domain.ListingPage{}
	}
	logger.Debug("fetch: listing returned %d of %d items", len(page.Items), page.Total)

	// 4. Enrich every item concurrently
	o.setState(domain.RunEnrichingItems)
	results := o.enrich(ctx, cred, page, opts)

	// 5. Normalise in input order
	o.setState(domain.RunNormalizing)
	records := make([]domain.CanonicalRecord, len(page.Items))
	for i, item := range page.Items {
		records[i] = o.registry.Normalise(item, results[i].images)
		if results[i].degraded() {
			summary.DegradedItems++
		}
		summary.ImageFailures += len(results[i].failures)
	}
	summary.Records = len(records)

	// 6. Publish
	o.setState(domain.RunPublishing)
	snapshot := &domain.AggregateSnapshot{
		FetchedAt: o.now(),
		Records:   records,
		SourceMeta: domain.SourceMeta{
			RunID:         summary.RunID,
			Feed:          opts.Query.Feed,
			Status:        opts.Query.Status,
			Page:          page.Page,
			PageSize:      page.PageSize,
			Total:         page.Total,
			TotalPages:    page.TotalPages,
			DegradedItems: summary.DegradedItems,
			ImageFailures: summary.ImageFailures,
		},
	}
	if !o.cache.Set(key, snapshot, opts.TTL) {
		return nil, o.fail(summary, &domain.FetchError{
			Kind:    domain.FetchErrPublish,
			Message: "cache rejected snapshot",
		})
	}

	o.archiveSnapshot(ctx, key, snapshot)

	o.succeed(summary)
	logger.Info("fetch %s: published %d records (%d degraded, %d image failures) in %s",
		summary.RunID, summary.Records, summary.DegradedItems, summary.ImageFailures, summary.Duration())
	return summary, nil
}

// Status returns the orchestrator's state.
func (o *FetchOrchestrator) Status() domain.RunStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	status := domain.RunStatus{
		Key:       o.activeKey,
		State:     o.state,
		Running:   len(o.inFlight) > 0,
		LastError: o.lastErr,
		LastRunAt: o.lastRunAt,
	}
	if status.Key == "" {
		status.Key = o.Key()
	}
	if o.lastSummary != nil {
		s := *o.lastSummary
		status.LastSummary = &s
	}
	return status
}

// archiveSnapshot persists a published snapshot. Failures only log.
func (o *FetchOrchestrator) archiveSnapshot(ctx context.Context, key string, snap *domain.AggregateSnapshot) {
	o.optsMu.RLock()
	archive := o.archive
	o.optsMu.RUnlock()
	if archive == nil {
		return
	}
	if err := archive.SaveSnapshot(ctx, key, snap); err != nil {
		logger.Warn("fetch: archive snapshot: %v", err)
	}
}

func (o *FetchOrchestrator) checkConfig(opts FetchOptions) error {
	switch {
	case opts.Query.Feed == "":
		return fmt.Errorf("feed key is required: %w", domain.ErrInvalidConfig)
	case opts.TTL <= 0:
		return fmt.Errorf("snapshot ttl must be positive: %w", domain.ErrInvalidConfig)
	case o.creds == nil || o.listings == nil:
		return fmt.Errorf("upstream not configured: %w", domain.ErrInvalidConfig)
	case o.registry == nil || o.cache == nil:
		return fmt.Errorf("registry and cache are required: %w", domain.ErrInvalidConfig)
	}
	return nil
}

// enrich resolves images for every item. It waits for all items and
// never fails; per-item errors are carried in the results.
func (o *FetchOrchestrator) enrich(
	ctx context.Context, cred domain.Credential, page *domain.ListingPage, opts FetchOptions,
) []itemResult {
	results := make([]itemResult, len(page.Items))
	resolver := NewImageResolver(o.assets, opts.ImageTimeout)

	itemTimeout := opts.ItemTimeout
	if itemTimeout <= 0 {
		itemTimeout = DefaultItemTimeout
	}

	var g errgroup.Group
	if opts.Concurrency > 0 {
		g.SetLimit(opts.Concurrency)
	}

	for i, item := range page.Items {
		g.Go(func() error {
			results[i] = o.enrichItem(ctx, cred, item, page.Includes, resolver, itemTimeout)
			if results[i].err != nil {
				logger.Warn("fetch: item %s degraded: %v", itemID(item), results[i].err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (o *FetchOrchestrator) enrichItem(
	ctx context.Context,
	cred domain.Credential,
	item domain.RawItem,
	includes *domain.AssetBundle,
	resolver *ImageResolver,
	timeout time.Duration,
) (res itemResult) {
	defer func() {
		if r := recover(); r != nil {
			res = itemResult{err: fmt.Errorf("enrich item panicked: %v", r)}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	refs := item.ImageRefs
	if len(refs) == 0 && o.itemImages != nil {
		id := itemID(item)
		if id == "" {
			return itemResult{images: []domain.ResolvedImage{}}
		}
		var err error
		refs, err = o.itemImages.ItemImages(ctx, cred, id)
		if err != nil {
			return itemResult{images: []domain.ResolvedImage{}, err: fmt.Errorf("item images: %w", err)}
		}
	}

	resolved := resolver.Resolve(ctx, cred, refs, includes)
	return itemResult{images: resolved.Images, failures: resolved.Failures}
}

func itemID(item domain.RawItem) string {
	if item.SystemID != "" {
		return item.SystemID
	}
	return item.BusinessID
}

// begin marks key as in flight. Returns false if it already is.
func (o *FetchOrchestrator) begin(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight[key] {
		return false
	}
	o.inFlight[key] = true
	o.activeKey = key
	o.state = domain.RunIdle
	return true
}

func (o *FetchOrchestrator) release(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, key)
}

func (o *FetchOrchestrator) setState(s domain.RunState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = s
}

func (o *FetchOrchestrator) succeed(summary *domain.RunSummary) {
	summary.EndedAt = o.now()
	summary.State = domain.RunIdle

	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = domain.RunIdle
	o.lastSummary = summary
	o.lastErr = ""
	o.lastRunAt = summary.EndedAt
}

// fail records a fatal error and returns it. The cached snapshot is untouched.
func (o *FetchOrchestrator) fail(summary *domain.RunSummary, fe *domain.FetchError) error {
	summary.EndedAt = o.now()
	summary.State = domain.RunFailed

	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = domain.RunFailed
	o.lastErr = fe.Error()
	o.lastRunAt = summary.EndedAt

	logger.Warn("fetch %s failed: %v", summary.RunID, fe)
	return fe
}

// newFetchError wraps err, carrying the upstream status when known.
func newFetchError(kind domain.FetchErrorKind, msg string, err error) *domain.FetchError {
	fe := &domain.FetchError{Kind: kind, Message: msg, Err: err}
	var sc domain.StatusCoder
	if errors.As(err, &sc) {
		fe.StatusCode = sc.HTTPStatus()
	}
	return fe
}
