package domain

import "time"

// Environment selects the upstream deployment.
type Environment string

// Available upstream environments.
const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

// IsValid returns true if the environment is recognised.
func (e Environment) IsValid() bool {
	return e == EnvironmentSandbox || e == EnvironmentProduction
}

// HistoryBackend selects where run history is kept.
type HistoryBackend string

// Available history backends.
const (
	HistoryMemory HistoryBackend = "memory"
	HistorySQLite HistoryBackend = "sqlite"
)

// UpstreamSettings configures the upstream provider.
type UpstreamSettings struct {
	Environment    Environment   `validate:"oneof=sandbox production"`
	BaseURL        string        `validate:"omitempty,url"`
	ClientID       string        `validate:"required"`
	ClientSecret   string        `validate:"required"`
	FeedKey        string        `validate:"required"`
	PageSize       int           `validate:"min=1,max=500"`
	Status         string
	RequestTimeout time.Duration `validate:"min=1s"`
	ImageTimeout   time.Duration `validate:"min=100ms"`
	MaxRetries     int           `validate:"min=0,max=10"`
	RatePerSecond  float64       `validate:"gt=0"`
}

// CacheSettings configures the in-process cache.
type CacheSettings struct {
	TTL           time.Duration `validate:"min=1s"`
	Capacity      int           `validate:"min=1"`
	RefreshOnMiss bool
}

// SchedulerSettings configures the periodic refresh.
type SchedulerSettings struct {
	Enabled  bool
	Interval time.Duration `validate:"min=1s"`
}

// HistorySettings configures the run history store.
type HistorySettings struct {
	Backend HistoryBackend `validate:"oneof=memory sqlite"`
	DataDir string
}

// ServerSettings configures the HTTP read API.
type ServerSettings struct {
	Addr        string `validate:"required"`
	CORSOrigins []string
}

// LogSettings configures logging.
type LogSettings struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=auto json console"`
}

// Settings is the fully resolved application configuration.
type Settings struct {
	Upstream  UpstreamSettings
	Cache     CacheSettings
	Scheduler SchedulerSettings
	History   HistorySettings
	Server    ServerSettings
	Log       LogSettings
}

// DefaultSettings returns sensible defaults. Credentials are left empty.
func DefaultSettings() Settings {
	return Settings{
		Upstream: UpstreamSettings{
			Environment:    EnvironmentSandbox,
			PageSize:       50,
			Status:         "active",
			RequestTimeout: 15 * time.Second,
			ImageTimeout:   5 * time.Second,
			MaxRetries:     2,
			RatePerSecond:  10,
		},
		Cache: CacheSettings{
			TTL:           30 * time.Minute,
			Capacity:      100,
			RefreshOnMiss: true,
		},
		Scheduler: SchedulerSettings{
			Enabled:  true,
			Interval: 15 * time.Minute,
		},
		History: HistorySettings{
			Backend: HistoryMemory,
		},
		Server: ServerSettings{
			Addr:        ":8080",
			CORSOrigins: []string{"*"},
		},
		Log: LogSettings{
			Level:  "info",
			Format: "auto",
		},
	}
}

// SchedulerConfig converts the scheduler settings to the scheduler's
// task configuration.
func (s Settings) SchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled: s.Scheduler.Enabled,
		TaskConfigs: map[string]TaskConfig{
			TaskIDListingRefresh: {
				Enabled:    s.Scheduler.Enabled,
				Interval:   s.Scheduler.Interval,
				RunOnStart: true,
			},
		},
	}
}

// ListingQuery returns the primary listing query for these settings.
func (s Settings) ListingQuery() ListingQuery {
	return ListingQuery{
		Feed:     s.Upstream.FeedKey,
		Page:     1,
		PageSize: s.Upstream.PageSize,
		Status:   s.Upstream.Status,
	}
}

// Redacted returns a copy with secrets masked for display.
func (s Settings) Redacted() Settings {
	out := s
	out.Server.CORSOrigins = append([]string(nil), s.Server.CORSOrigins...)
	if out.Upstream.ClientSecret != "" {
		out.Upstream.ClientSecret = "********"
	}
	return out
}
