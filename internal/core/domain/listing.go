package domain

import "time"

// RecordKind distinguishes the upstream record families.
type RecordKind string

// Supported record kinds.
const (
	// KindProperty is a real-estate listing.
	KindProperty RecordKind = "property"

	// KindContent is an editorial content item from the provider's CMS.
	KindContent RecordKind = "content"
)

// OperationType is the closed set of listing operations.
type OperationType string

// Available operation types.
const (
	OperationSell OperationType = "sell"
	OperationRent OperationType = "rent"
)

// IsValid returns true if the operation type is recognised.
func (o OperationType) IsValid() bool {
	return o == OperationSell || o == OperationRent
}

// String returns the string representation.
func (o OperationType) String() string {
	return string(o)
}

// ImageRef points at an upstream asset.
type ImageRef struct {
	AssetID string `json:"assetId"`
}

// Asset is an upstream media asset as returned by the asset endpoint
// or embedded in a listing's includes bundle.
type Asset struct {
	ID          string
	Title       string
	Description string

	// FileURL may be absolute or protocol-relative ("//host/path").
	FileURL string

	Width     int
	Height    int
	SizeBytes int64
}

// AssetBundle holds assets pre-fetched alongside a listing page.
type AssetBundle struct {
	assets map[string]Asset
}

// NewAssetBundle indexes assets by ID. Later duplicates win.
func NewAssetBundle(assets []Asset) *AssetBundle {
	b := &AssetBundle{assets: make(map[string]Asset, len(assets))}
	for _, a := range assets {
		if a.ID == "" {
			continue
		}
		b.assets[a.ID] = a
	}
	return b
}

// Lookup returns the asset with the given ID. Safe on a nil bundle.
func (b *AssetBundle) Lookup(id string) (Asset, bool) {
	if b == nil {
		return Asset{}, false
	}
	a, ok := b.assets[id]
	return a, ok
}

// Len returns the number of assets in the bundle.
func (b *AssetBundle) Len() int {
	if b == nil {
		return 0
	}
	return len(b.assets)
}

// ResolvedImage is a concrete image descriptor with an absolute URL.
type ResolvedImage struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	SizeBytes   int64  `json:"sizeBytes,omitempty"`
}

// RawAddress is the structured address as sent upstream.
// Formatted carries plain-string addresses.
type RawAddress struct {
	Street     *string
	City       *string
	Province   *string
	PostalCode *string
	Country    *string
	Formatted  *string
}

// RawItem is an upstream record decoded at the connector boundary.
// Optional fields are nil when the upstream omitted them; defaults
// are applied by the normalisers.
type RawItem struct {
	Kind RecordKind

	// SystemID is the upstream system identifier.
	SystemID string

	// BusinessID is the provider's business identifier, when present.
	BusinessID string

	Title            *string
	Description      *string
	ShortDescription *string

	// Body is the long-form text of content items.
	Body *string

	Slug *string

	Price    *float64
	Currency *string

	Address *RawAddress

	Area         *float64
	EnergyRating *string
	Rooms        *int
	Bathrooms    *int

	OperationType *string
	PropertyType  *string
	Zone          *string

	CreatedAt *time.Time
	UpdatedAt *time.Time

	// IsActive is nil when absent upstream.
	IsActive *bool

	ImageRefs []ImageRef
}

// Address is the canonical address block.
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Formatted  string `json:"formatted"`
}

// Features is the canonical numeric feature block.
type Features struct {
	Area         float64 `json:"area"`
	EnergyRating string  `json:"energyRating"`
	Rooms        int     `json:"rooms"`
	Bathrooms    int     `json:"bathrooms"`
}

// Operation wraps the normalised operation type.
type Operation struct {
	Type OperationType `json:"type"`
}

// Classification groups the listing's categorical fields.
type Classification struct {
	PropertyType string `json:"propertyType"`
	Zone         string `json:"zone"`
}

// CanonicalRecord is the stable output shape for properties and
// content items. Every field is always populated.
type CanonicalRecord struct {
	ID               string          `json:"id"`
	Reference        string          `json:"reference"`
	Kind             RecordKind      `json:"kind"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	ShortDescription string          `json:"shortDescription"`
	Slug             string          `json:"slug"`
	Price            float64         `json:"price"`
	Currency         string          `json:"currency"`
	Address          Address         `json:"address"`
	Features         Features        `json:"features"`
	Images           []ResolvedImage `json:"images"`
	Operation        Operation       `json:"operation"`
	Classification   Classification  `json:"classification"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
	IsActive         bool            `json:"isActive"`
}
