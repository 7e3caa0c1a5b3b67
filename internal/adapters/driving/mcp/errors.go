// Package mcp provides an MCP (Model Context Protocol) server adapter for propfeed.
// It lets AI assistants query the published listing snapshot.
package mcp

import "errors"

// ErrMissingReader is returned when the snapshot reader is not provided.
var ErrMissingReader = errors.New("mcp: snapshot reader is required")

// ErrRefreshUnavailable is returned by the refresh tool when no
// orchestrator is wired.
var ErrRefreshUnavailable = errors.New("mcp: refresh is not available")
