package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/propfeed/internal/core/domain"
	"github.com/custodia-labs/propfeed/internal/core/ports/driven"
	"github.com/custodia-labs/propfeed/internal/logger"
)

const (
	// DefaultImageTimeout bounds a single asset lookup.
	DefaultImageTimeout = 5 * time.Second

	// maxParallelLookups bounds concurrent asset lookups for one item.
	maxParallelLookups = 4
)

// errNoAssetLookup is recorded when an asset is missing from the includes
// bundle and no lookup is configured.
var errNoAssetLookup = errors.New("asset not included and no lookup configured")

// ImageFailure records a reference that could not be resolved.
type ImageFailure struct {
	AssetID string
	Err     error
}

// ResolveResult is the outcome of resolving one item's image references.
type ResolveResult struct {
	// Images are the resolved descriptors in input order.
	Images []domain.ResolvedImage

	// Failures are the lookups that errored, in input order.
	Failures []ImageFailure
}

// ImageResolver turns image references into concrete descriptors.
// Individual failures never abort resolution.
type ImageResolver struct {
	lookup  driven.AssetLookup
	timeout time.Duration
}

// NewImageResolver creates a resolver. lookup may be nil, in which case
// only assets present in the includes bundle resolve.
func NewImageResolver(lookup driven.AssetLookup, timeout time.Duration) *ImageResolver {
	if timeout <= 0 {
		timeout = DefaultImageTimeout
	}
	return &ImageResolver{lookup: lookup, timeout: timeout}
}

// Resolve resolves refs, preferring assets from includes over network lookups.
// References with unusable file URLs yield nothing and are not failures.
func (r *ImageResolver) Resolve(
	ctx context.Context, cred domain.Credential, refs []domain.ImageRef, includes *domain.AssetBundle,
) ResolveResult {
	type slot struct {
		image *domain.ResolvedImage
		err   error
	}
	slots := make([]slot, len(refs))

	var g errgroup.Group
	g.SetLimit(maxParallelLookups)

	for i, ref := range refs {
		id := strings.TrimSpace(ref.AssetID)
		if id == "" {
			continue
		}

		if asset, ok := includes.Lookup(id); ok {
			slots[i].image = toResolvedImage(asset)
			continue
		}

		g.Go(func() error {
			asset, err := r.lookupAsset(ctx, cred, id)
			if err != nil {
				slots[i].err = err
				return nil
			}
			slots[i].image = toResolvedImage(*asset)
			return nil
		})
	}
	_ = g.Wait()

	result := ResolveResult{Images: make([]domain.ResolvedImage, 0, len(refs))}
	for i, s := range slots {
		switch {
		case s.err != nil:
			logger.Warn("image resolver: asset %s: %v", refs[i].AssetID, s.err)
			result.Failures = append(result.Failures, ImageFailure{AssetID: refs[i].AssetID, Err: s.err})
		case s.image != nil:
			result.Images = append(result.Images, *s.image)
		}
	}
	return result
}

func (r *ImageResolver) lookupAsset(ctx context.Context, cred domain.Credential, id string) (*domain.Asset, error) {
	if r.lookup == nil {
		return nil, errNoAssetLookup
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	asset, err := r.lookup.LookupAsset(ctx, cred, id)
	if err != nil {
		return nil, fmt.Errorf("lookup asset: %w", err)
	}
	if asset == nil {
		return nil, fmt.Errorf("lookup asset: %w", domain.ErrNotFound)
	}
	return asset, nil
}

// toResolvedImage returns nil when the asset has no usable URL.
func toResolvedImage(a domain.Asset) *domain.ResolvedImage {
	u, ok := AbsoluteURL(a.FileURL)
	if !ok {
		return nil
	}
	return &domain.ResolvedImage{
		URL:         u,
		Title:       a.Title,
		Description: a.Description,
		Width:       a.Width,
		Height:      a.Height,
		SizeBytes:   a.SizeBytes,
	}
}

// AbsoluteURL normalises an asset file URL. Protocol-relative URLs gain an
// https scheme; http and https URLs are kept; anything else is unusable.
func AbsoluteURL(raw string) (string, bool) {
	u := strings.TrimSpace(raw)
	lower := strings.ToLower(u)
	switch {
	case strings.HasPrefix(u, "//") && len(u) > 2:
		return "https:" + u, true
	case strings.HasPrefix(lower, "https://") && len(u) > len("https://"),
		strings.HasPrefix(lower, "http://") && len(u) > len("http://"):
		return u, true
	}
	return "", false
}
