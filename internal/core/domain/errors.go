package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfig indicates the configuration failed validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrRunInProgress indicates an orchestration run for the same
	// aggregate key is already in flight.
	ErrRunInProgress = errors.New("run in progress")

	// ErrSnapshotUnavailable indicates no snapshot is cached and none
	// could be produced for the caller.
	ErrSnapshotUnavailable = errors.New("snapshot unavailable")

	// Authentication Errors.

	// ErrAuthRequired indicates credentials are not configured.
	ErrAuthRequired = errors.New("authentication required")

	// ErrAuthInvalid indicates the upstream rejected the credentials.
	ErrAuthInvalid = errors.New("authentication invalid")

	// Upstream Errors.

	// ErrUpstreamUnavailable indicates the upstream responded with a
	// server error or could not be reached.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)
