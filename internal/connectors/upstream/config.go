package upstream

import (
	"strings"
	"time"

	"github.com/custodia-labs/propfeed/internal/core/domain"
)

// Provider base URLs per environment.
const (
	SandboxBaseURL    = "https://sandbox.api.propfeed.io"
	ProductionBaseURL = "https://api.propfeed.io"
)

// Endpoint paths, relative to the base URL.
const (
	tokenPath      = "/oauth/token"
	listingPath    = "/v1/feeds/%s/listings"
	itemImagesPath = "/v1/listings/%s/images"
	assetPath      = "/v1/assets/%s"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 15 * time.Second

	// DefaultMaxRetries is the default number of retries for transient errors.
	DefaultMaxRetries = 2

	// DefaultRatePerSecond is the default proactive request rate.
	DefaultRatePerSecond = 10.0

	// RetryDelay is the initial delay between retries.
	RetryDelay = 500 * time.Millisecond

	// MaxRetryDelay caps the backoff between retries.
	MaxRetryDelay = 8 * time.Second
)

// Config holds the connector configuration.
type Config struct {
	BaseURL        string
	ClientID       string
	ClientSecret   string
	RequestTimeout time.Duration
	MaxRetries     int
	RatePerSecond  float64
	UserAgent      string
}

// BaseURLFor returns the provider base URL for an environment.
func BaseURLFor(env domain.Environment) string {
	if env == domain.EnvironmentProduction {
		return ProductionBaseURL
	}
	return SandboxBaseURL
}

// ConfigFromSettings builds a connector Config from application settings.
// An explicit base URL overrides the environment default.
func ConfigFromSettings(s domain.UpstreamSettings) Config {
	base := s.BaseURL
	if base == "" {
		base = BaseURLFor(s.Environment)
	}
	return Config{
		BaseURL:        base,
		ClientID:       s.ClientID,
		ClientSecret:   s.ClientSecret,
		RequestTimeout: s.RequestTimeout,
		MaxRetries:     s.MaxRetries,
		RatePerSecond:  s.RatePerSecond,
	}
}

// withDefaults fills zero values.
func (c Config) withDefaults() Config {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.BaseURL == "" {
		c.BaseURL = SandboxBaseURL
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = DefaultRatePerSecond
	}
	if c.UserAgent == "" {
		c.UserAgent = "propfeed"
	}
	return c
}
