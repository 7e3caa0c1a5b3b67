package driven

import (
	"context"

	"github.com/custodia-labs/propfeed/internal/core/domain"
)

// CredentialProvider obtains a bearer credential from the upstream auth
// endpoint. It is called once per orchestration run; token lifetime and
// refresh are the provider's concern.
type CredentialProvider interface {
	AcquireCredential(ctx context.Context) (domain.Credential, error)
}

// ListingSource performs the primary paged listing query.
type ListingSource interface {
	FetchListing(ctx context.Context, cred domain.Credential, q domain.ListingQuery) (*domain.ListingPage, error)
}

// ItemImageSource looks up the image references of a single item.
type ItemImageSource interface {
	ItemImages(ctx context.Context, cred domain.Credential, itemID string) ([]domain.ImageRef, error)
}

// AssetLookup resolves a single asset by ID.
type AssetLookup interface {
	LookupAsset(ctx context.Context, cred domain.Credential, assetID string) (*domain.Asset, error)
}

// Upstream groups every upstream capability. The HTTP connector
// implements all of them.
type Upstream interface {
	CredentialProvider
	ListingSource
	ItemImageSource
	AssetLookup
}
