package mcp

import (
	"context"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/propfeed/internal/core/domain"
	"github.com/custodia-labs/propfeed/internal/core/ports/driving"
)

// ListListingsInput is the input schema for the list_listings tool.
type ListListingsInput struct {
	Operation  string `json:"operation,omitempty" jsonschema:"sell or rent"`
	Zone       string `json:"zone,omitempty" jsonschema:"zone name, case-insensitive"`
	Type       string `json:"type,omitempty" jsonschema:"property type, case-insensitive"`
	ActiveOnly bool   `json:"active_only,omitempty" jsonschema:"only return active listings"`
	Page       int    `json:"page,omitempty" jsonschema:"1-based page number (default 1)"`
	PageSize   int    `json:"page_size,omitempty" jsonschema:"records per page (default 20, max 100)"`
}

// ListListingsOutput is the output schema for the list_listings tool.
type ListListingsOutput struct {
	Listings   []ListingSummary `json:"listings"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	TotalPages int              `json:"total_pages"`
	FetchedAt  string           `json:"fetched_at,omitempty"`
}

// ListingSummary is a compact view of one record.
type ListingSummary struct {
	ID           string  `json:"id"`
	Reference    string  `json:"reference"`
	Kind         string  `json:"kind"`
	Title        string  `json:"title"`
	Price        float64 `json:"price"`
	Currency     string  `json:"currency"`
	Operation    string  `json:"operation"`
	PropertyType string  `json:"property_type"`
	Zone         string  `json:"zone"`
	City         string  `json:"city"`
	Rooms        int     `json:"rooms"`
	Area         float64 `json:"area"`
	Active       bool    `json:"active"`
	ImageURL     string  `json:"image_url,omitempty"`
}

// GetListingInput is the input schema for the get_listing tool.
type GetListingInput struct {
	ID string `json:"id" jsonschema:"record id or business reference"`
}

// GetListingOutput is the output schema for the get_listing tool.
type GetListingOutput struct {
	Listing     ListingSummary `json:"listing"`
	Description string         `json:"description"`
	Address     string         `json:"address"`
	Bathrooms   int            `json:"bathrooms"`
	Energy      string         `json:"energy_rating"`
	Images      []string       `json:"images"`
	UpdatedAt   string         `json:"updated_at"`
}

// RefreshInput is the input schema for the refresh_listings tool.
type RefreshInput struct{}

// RefreshOutput is the output schema for the refresh_listings tool.
type RefreshOutput struct {
	RunID         string `json:"run_id"`
	Records       int    `json:"records"`
	DegradedItems int    `json:"degraded_items"`
	ImageFailures int    `json:"image_failures"`
	DurationMS    int64  `json:"duration_ms"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_listings",
		Description: "List property and content records from the current snapshot",
	}, s.handleListListings)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_listing",
		Description: "Get a single record by id or reference",
	}, s.handleGetListing)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "refresh_listings",
		Description: "Fetch the upstream feed now and publish a new snapshot",
	}, s.handleRefresh)
}

// handleListListings handles the list_listings tool invocation.
func (s *Server) handleListListings(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListListingsInput,
) (*mcp.CallToolResult, ListListingsOutput, error) {
	res, err := s.ports.Reader.List(ctx, driving.ListingFilter{
		Operation:    domain.OperationType(strings.ToLower(strings.TrimSpace(input.Operation))),
		Zone:         input.Zone,
		PropertyType: input.Type,
		ActiveOnly:   input.ActiveOnly,
		Page:         input.Page,
		PageSize:     input.PageSize,
	})
	if err != nil {
		return nil, ListListingsOutput{}, err
	}

	output := ListListingsOutput{
		Listings:   make([]ListingSummary, len(res.Records)),
		Total:      res.Total,
		Page:       res.Page,
		TotalPages: res.TotalPages,
	}
	if !res.FetchedAt.IsZero() {
		output.FetchedAt = res.FetchedAt.UTC().Format(time.RFC3339)
	}
	for i := range res.Records {
		output.Listings[i] = summarise(&res.Records[i])
	}
	return nil, output, nil
}

// handleGetListing handles the get_listing tool invocation.
func (s *Server) handleGetListing(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetListingInput,
) (*mcp.CallToolResult, GetListingOutput, error) {
	rec, err := s.ports.Reader.Record(ctx, input.ID)
	if err != nil {
		return nil, GetListingOutput{}, err
	}

	images := make([]string, len(rec.Images))
	for i, img := range rec.Images {
		images[i] = img.URL
	}
	return nil, GetListingOutput{
		Listing:     summarise(rec),
		Description: rec.Description,
		Address:     rec.Address.Formatted,
		Bathrooms:   rec.Features.Bathrooms,
		Energy:      rec.Features.EnergyRating,
		Images:      images,
		UpdatedAt:   rec.UpdatedAt.UTC().Format(time.RFC3339),
	}, nil
}

// handleRefresh handles the refresh_listings tool invocation.
func (s *Server) handleRefresh(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ RefreshInput,
) (*mcp.CallToolResult, RefreshOutput, error) {
	if s.ports.Orchestrator == nil {
		return nil, RefreshOutput{}, ErrRefreshUnavailable
	}

	summary, err := s.ports.Orchestrator.Run(context.WithoutCancel(ctx))
	if err != nil {
		return nil, RefreshOutput{}, err
	}
	return nil, RefreshOutput{
		RunID:         summary.RunID,
		Records:       summary.Records,
		DegradedItems: summary.DegradedItems,
		ImageFailures: summary.ImageFailures,
		DurationMS:    summary.Duration().Milliseconds(),
	}, nil
}

func summarise(rec *domain.CanonicalRecord) ListingSummary {
	out := ListingSummary{
		ID:           rec.ID,
		Reference:    rec.Reference,
		Kind:         string(rec.Kind),
		Title:        rec.Title,
		Price:        rec.Price,
		Currency:     rec.Currency,
		Operation:    string(rec.Operation.Type),
		PropertyType: rec.Classification.PropertyType,
		Zone:         rec.Classification.Zone,
		City:         rec.Address.City,
		Rooms:        rec.Features.Rooms,
		Area:         rec.Features.Area,
		Active:       rec.IsActive,
	}
	if len(rec.Images) > 0 {
		out.ImageURL = rec.Images[0].URL
	}
	return out
}
