package domain

import "time"

// SourceMeta describes where a snapshot came from.
type SourceMeta struct {
	RunID         string `json:"runId"`
	Feed          string `json:"feed"`
	Status        string `json:"status"`
	Page          int    `json:"page"`
	PageSize      int    `json:"pageSize"`
	Total         int    `json:"total"`
	TotalPages    int    `json:"totalPages"`
	DegradedItems int    `json:"degradedItems"`
	ImageFailures int    `json:"imageFailures"`
}

// AggregateSnapshot is the published result of one successful run.
// It is replaced wholesale by the next successful run.
type AggregateSnapshot struct {
	FetchedAt  time.Time         `json:"fetchedAt"`
	Records    []CanonicalRecord `json:"records"`
	SourceMeta SourceMeta        `json:"sourceMeta"`
}

// ListingQuery parameterises the primary listing request.
type ListingQuery struct {
	Feed     string
	Page     int
	PageSize int
	Status   string
}

// ListingPage is one page of the upstream listing response.
type ListingPage struct {
	Items      []RawItem
	Total      int
	Page       int
	PageSize   int
	TotalPages int

	// Includes holds assets delivered with the page. May be nil.
	Includes *AssetBundle
}

// Credential is an opaque bearer credential for the upstream.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// Valid reports whether the credential carries a token.
func (c Credential) Valid() bool {
	return c.Token != ""
}
