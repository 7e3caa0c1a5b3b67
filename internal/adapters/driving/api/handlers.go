package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/custodia-labs/propfeed/internal/core/domain"
	"github.com/custodia-labs/propfeed/internal/core/ports/driven"
	"github.com/custodia-labs/propfeed/internal/core/ports/driving"
	"github.com/custodia-labs/propfeed/internal/logger"
)

// listingsQuery is the query string of GET /listings.
type listingsQuery struct {
	Operation string `query:"operation" validate:"omitempty,oneof=sell rent"`
	Zone      string `query:"zone"`
	Type      string `query:"type"`
	Active    string `query:"active" validate:"omitempty,boolean"`
	Page      int    `query:"page" validate:"omitempty,min=1"`
	PageSize  int    `query:"pageSize" validate:"omitempty,min=1,max=100"`
}

func (q listingsQuery) filter() driving.ListingFilter {
	active, _ := strconv.ParseBool(q.Active)
	return driving.ListingFilter{
		Operation:    domain.OperationType(q.Operation),
		Zone:         q.Zone,
		PropertyType: q.Type,
		ActiveOnly:   active,
		Page:         q.Page,
		PageSize:     q.PageSize,
	}
}

// listingsView is the data payload of GET /listings.
type listingsView struct {
	Records    []domain.CanonicalRecord `json:"records"`
	Total      int                      `json:"total"`
	Page       int                      `json:"page"`
	PageSize   int                      `json:"pageSize"`
	TotalPages int                      `json:"totalPages"`
	FetchedAt  *time.Time               `json:"fetchedAt,omitempty"`
}

func emptyListings() listingsView {
	return listingsView{Records: []domain.CanonicalRecord{}}
}

// statusView is the data payload of GET /status.
type statusView struct {
	Orchestrator *domain.RunStatus  `json:"orchestrator,omitempty"`
	Cache        *driven.CacheStats `json:"cache,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return OK(c, "ok", map[string]string{"status": "ok"})
}

func (s *Server) handleListings(c echo.Context) error {
	var q listingsQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return BadRequest(c, "invalid query parameters")
	}
	q.Operation = strings.ToLower(strings.TrimSpace(q.Operation))
	if err := c.Validate(&q); err != nil {
		return BadRequest(c, err.Error())
	}

	res, err := s.ports.Reader.List(c.Request().Context(), q.filter())
	if err != nil {
		return s.readError(c, err, emptyListings())
	}

	view := listingsView{
		Records:    res.Records,
		Total:      res.Total,
		Page:       res.Page,
		PageSize:   res.PageSize,
		TotalPages: res.TotalPages,
	}
	if !res.FetchedAt.IsZero() {
		fetched := res.FetchedAt
		view.FetchedAt = &fetched
	}
	return OK(c, "", view)
}

func (s *Server) handleListing(c echo.Context) error {
	rec, err := s.ports.Reader.Record(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.readError(c, err, map[string]any{})
	}
	return OK(c, "", rec)
}

func (s *Server) handleRefresh(c echo.Context) error {
	if s.ports.Orchestrator == nil {
		return Error(c, http.StatusServiceUnavailable, "refresh not available", nil)
	}

	// The run publishes shared state, so a client disconnect must not abort it.
	summary, err := s.ports.Orchestrator.Run(context.WithoutCancel(c.Request().Context()))
	if err != nil {
		code := refreshStatus(err)
		if code >= http.StatusInternalServerError {
			logger.Warn("api: refresh failed: %v", err)
		}
		return Error(c, code, err.Error(), nil)
	}
	return OK(c, "refresh complete", summary)
}

func (s *Server) handleCacheStats(c echo.Context) error {
	stats := driven.CacheStats{Keys: []string{}}
	if s.ports.Cache != nil {
		stats = s.ports.Cache.Stats()
	}
	return OK(c, "", stats)
}

func (s *Server) handleStatus(c echo.Context) error {
	var view statusView
	if s.ports.Orchestrator != nil {
		st := s.ports.Orchestrator.Status()
		view.Orchestrator = &st
	}
	if s.ports.Cache != nil {
		stats := s.ports.Cache.Stats()
		view.Cache = &stats
	}
	return OK(c, "", view)
}

// readError maps read-path failures. Anything other than bad input or a
// missing record means no snapshot could be served.
func (s *Server) readError(c echo.Context, err error, empty any) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return BadRequest(c, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return NotFound(c, err.Error())
	default:
		logger.Debug("api: snapshot unavailable: %v", err)
		return Unavailable(c, err.Error(), empty)
	}
}

// refreshStatus maps a refresh failure to an HTTP status.
func refreshStatus(err error) int {
	if errors.Is(err, domain.ErrRunInProgress) {
		return http.StatusConflict
	}
	var fe *domain.FetchError
	if errors.As(err, &fe) {
		switch fe.Kind {
		case domain.FetchErrCredential, domain.FetchErrListing:
			return http.StatusBadGateway
		}
	}
	return http.StatusInternalServerError
}
