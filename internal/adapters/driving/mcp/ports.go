package mcp

import (
	"github.com/custodia-labs/propfeed/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
type Ports struct {
	// Reader serves listings from the cached snapshot.
	Reader driving.SnapshotReader

	// Orchestrator runs on-demand refreshes. Optional.
	Orchestrator driving.FetchOrchestrator
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil || p.Reader == nil {
		return ErrMissingReader
	}
	return nil
}
