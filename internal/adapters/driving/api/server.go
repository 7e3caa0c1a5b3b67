package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/custodia-labs/propfeed/internal/core/ports/driven"
	"github.com/custodia-labs/propfeed/internal/core/ports/driving"
	"github.com/custodia-labs/propfeed/internal/logger"
)

// DefaultShutdownTimeout bounds graceful shutdown.
const DefaultShutdownTimeout = 10 * time.Second

// ErrMissingReader is returned when the snapshot reader is not provided.
var ErrMissingReader = errors.New("api: snapshot reader is required")

// Ports aggregates the services the HTTP API serves from.
type Ports struct {
	// Reader serves listings from the cached snapshot.
	Reader driving.SnapshotReader

	// Orchestrator runs refreshes and reports status. Optional.
	Orchestrator driving.FetchOrchestrator

	// Cache exposes occupancy statistics. Optional.
	Cache driven.CacheStore
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil || p.Reader == nil {
		return ErrMissingReader
	}
	return nil
}

// Config configures the HTTP listener.
type Config struct {
	Addr            string
	CORSOrigins     []string
	ShutdownTimeout time.Duration
}

// Server is the HTTP read API.
type Server struct {
	ports *Ports
	cfg   Config
	echo  *echo.Echo
}

// NewServer creates a server with all routes registered.
func NewServer(ports *Ports, cfg Config) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadHeaderTimeout = 10 * time.Second
	e.Validator = &requestValidator{validator: validator.New()}

	e.Use(middleware.Recover())
	e.Use(corsMiddleware(cfg.CORSOrigins))
	e.Use(requestLogger())

	s := &Server{ports: ports, cfg: cfg, echo: e}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	api := s.echo.Group("/api/v1")
	api.GET("/listings", s.handleListings)
	api.GET("/listings/:id", s.handleListing)
	api.POST("/refresh", s.handleRefresh)
	api.GET("/cache/stats", s.handleCacheStats)
	api.GET("/status", s.handleStatus)
}

// Handler returns the HTTP handler for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves on the configured address until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(s.cfg.Addr)
	}()
	logger.Info("HTTP API listening on %s", s.cfg.Addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	logger.Debug("HTTP API stopped")
	return nil
}
