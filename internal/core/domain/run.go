package domain

import (
	"fmt"
	"time"
)

// RunState is a step of the fetch orchestrator's state machine.
type RunState string

// Orchestrator states. Failed is terminal for a run and is reachable
// from any step.
const (
	RunIdle                RunState = "idle"
	RunAcquiringCredential RunState = "acquiring_credential"
	RunFetchingListing     RunState = "fetching_listing"
	RunEnrichingItems      RunState = "enriching_items"
	RunNormalizing         RunState = "normalizing"
	RunPublishing          RunState = "publishing"
	RunFailed              RunState = "failed"
)

// FetchErrorKind classifies fatal-to-run failures.
type FetchErrorKind string

// Fatal failure kinds.
const (
	FetchErrConfig     FetchErrorKind = "config"
	FetchErrCredential FetchErrorKind = "credential"
	FetchErrListing    FetchErrorKind = "listing"
	FetchErrPublish    FetchErrorKind = "publish"
)

// FetchError is a fatal-to-run failure surfaced to the orchestrator's caller.
type FetchError struct {
	Kind       FetchErrorKind
	Message    string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// StatusCoder is implemented by errors that carry an upstream HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

// RunSummary describes a completed orchestration run.
type RunSummary struct {
	RunID         string    `json:"runId"`
	Key           string    `json:"key"`
	State         RunState  `json:"state"`
	Records       int       `json:"records"`
	DegradedItems int       `json:"degradedItems"`
	ImageFailures int       `json:"imageFailures"`
	StartedAt     time.Time `json:"startedAt"`
	EndedAt       time.Time `json:"endedAt"`
}

// Duration returns how long the run took.
func (s RunSummary) Duration() time.Duration {
	return s.EndedAt.Sub(s.StartedAt)
}

// RunStatus is the orchestrator's observable state.
type RunStatus struct {
	Key         string      `json:"key"`
	State       RunState    `json:"state"`
	Running     bool        `json:"running"`
	LastSummary *RunSummary `json:"lastSummary,omitempty"`
	LastError   string      `json:"lastError,omitempty"`
	LastRunAt   time.Time   `json:"lastRunAt"`
}
