package services

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/propfeed/internal/core/domain"
	"github.com/custodia-labs/propfeed/internal/core/ports/driven"
	"github.com/custodia-labs/propfeed/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PROPFEED_"

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEnvironment    = "upstream.environment"
	keyBaseURL        = "upstream.base_url"
	keyClientID       = "upstream.client_id"
	keyClientSecret   = "upstream.client_secret"
	keyFeedKey        = "upstream.feed_key"
	keyPageSize       = "upstream.page_size"
	keyStatus         = "upstream.status"
	keyRequestTimeout = "upstream.request_timeout_seconds"
	keyImageTimeout   = "upstream.image_timeout_seconds"
	keyMaxRetries     = "upstream.max_retries"
	keyRatePerSecond  = "upstream.rate_per_second"
	keyCacheTTL       = "cache.ttl_seconds"
	keyCacheCapacity  = "cache.capacity"
	keyRefreshOnMiss  = "cache.refresh_on_miss"
	keySchedEnabled   = "scheduler.enabled"
	keySchedInterval  = "scheduler.interval_seconds"
	keyHistoryBackend = "history.backend"
	keyHistoryDataDir = "history.data_dir"
	keyServerAddr     = "server.addr"
	keyCORSOrigins    = "server.cors_origins"
	keyLogLevel       = "log.level"
	keyLogFormat      = "log.format"
)

// EnvKey returns the environment variable that overrides a config key.
func EnvKey(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// SettingsService resolves settings from defaults, the config store and
// PROPFEED_* environment variables, in increasing precedence.
type SettingsService struct {
	configStore driven.ConfigStore
	lookupEnv   func(string) (string, bool)
	validate    *validator.Validate
}

// NewSettingsService creates a new settings service reading the process environment.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		lookupEnv:   os.LookupEnv,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// WithEnv replaces the environment lookup. Used by tests.
func (s *SettingsService) WithEnv(lookup func(string) (string, bool)) *SettingsService {
	s.lookupEnv = lookup
	return s
}

// ConfigPath returns the backing config file path.
func (s *SettingsService) ConfigPath() string {
	if s.configStore == nil {
		return ""
	}
	return s.configStore.Path()
}

// Load resolves and validates the effective settings.
func (s *SettingsService) Load() (domain.Settings, error) {
	r := &resolver{store: s.configStore, lookupEnv: s.lookupEnv}
	d := domain.DefaultSettings()

	settings := domain.Settings{
		Upstream: domain.UpstreamSettings{
			Environment:    domain.Environment(r.str(keyEnvironment, string(d.Upstream.Environment))),
			BaseURL:        r.str(keyBaseURL, d.Upstream.BaseURL),
			ClientID:       r.str(keyClientID, ""),
			ClientSecret:   r.str(keyClientSecret, ""),
			FeedKey:        r.str(keyFeedKey, ""),
			PageSize:       r.integer(keyPageSize, d.Upstream.PageSize),
			Status:         r.str(keyStatus, d.Upstream.Status),
			RequestTimeout: r.seconds(keyRequestTimeout, d.Upstream.RequestTimeout),
			ImageTimeout:   r.seconds(keyImageTimeout, d.Upstream.ImageTimeout),
			MaxRetries:     r.integer(keyMaxRetries, d.Upstream.MaxRetries),
			RatePerSecond:  r.float(keyRatePerSecond, d.Upstream.RatePerSecond),
		},
		Cache: domain.CacheSettings{
			TTL:           r.seconds(keyCacheTTL, d.Cache.TTL),
			Capacity:      r.integer(keyCacheCapacity, d.Cache.Capacity),
			RefreshOnMiss: r.boolean(keyRefreshOnMiss, d.Cache.RefreshOnMiss),
		},
		Scheduler: domain.SchedulerSettings{
			Enabled:  r.boolean(keySchedEnabled, d.Scheduler.Enabled),
			Interval: r.seconds(keySchedInterval, d.Scheduler.Interval),
		},
		History: domain.HistorySettings{
			Backend: domain.HistoryBackend(r.str(keyHistoryBackend, string(d.History.Backend))),
			DataDir: r.str(keyHistoryDataDir, d.History.DataDir),
		},
		Server: domain.ServerSettings{
			Addr:        r.str(keyServerAddr, d.Server.Addr),
			CORSOrigins: r.strings(keyCORSOrigins, d.Server.CORSOrigins),
		},
		Log: domain.LogSettings{
			Level:  strings.ToLower(r.str(keyLogLevel, d.Log.Level)),
			Format: strings.ToLower(r.str(keyLogFormat, d.Log.Format)),
		},
	}

	if len(r.errs) > 0 {
		return settings, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, errors.Join(r.errs...))
	}
	if err := s.Validate(settings); err != nil {
		return settings, err
	}
	return settings, nil
}

// Validate checks field constraints and cross-field rules.
func (s *SettingsService) Validate(settings domain.Settings) error {
	var problems []string

	if err := s.validate.Struct(settings); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
		}
		for _, fe := range verrs {
			problems = append(problems, describeFieldError(fe))
		}
	}

	if settings.Scheduler.Enabled && settings.Cache.TTL <= settings.Scheduler.Interval {
		problems = append(problems, fmt.Sprintf("%s (%s) must exceed %s (%s) while the scheduler is enabled",
			keyCacheTTL, settings.Cache.TTL, keySchedInterval, settings.Scheduler.Interval))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// fieldKeys maps validated struct fields to their config keys.
var fieldKeys = map[string]string{
	"Settings.Upstream.Environment":    keyEnvironment,
	"Settings.Upstream.BaseURL":        keyBaseURL,
	"Settings.Upstream.ClientID":       keyClientID,
	"Settings.Upstream.ClientSecret":   keyClientSecret,
	"Settings.Upstream.FeedKey":        keyFeedKey,
	"Settings.Upstream.PageSize":       keyPageSize,
	"Settings.Upstream.RequestTimeout": keyRequestTimeout,
	"Settings.Upstream.ImageTimeout":   keyImageTimeout,
	"Settings.Upstream.MaxRetries":     keyMaxRetries,
	"Settings.Upstream.RatePerSecond":  keyRatePerSecond,
	"Settings.Cache.TTL":               keyCacheTTL,
	"Settings.Cache.Capacity":          keyCacheCapacity,
	"Settings.Scheduler.Interval":      keySchedInterval,
	"Settings.History.Backend":         keyHistoryBackend,
	"Settings.Server.Addr":             keyServerAddr,
	"Settings.Log.Level":               keyLogLevel,
	"Settings.Log.Format":              keyLogFormat,
}

func describeFieldError(fe validator.FieldError) string {
	key, ok := fieldKeys[fe.StructNamespace()]
	if !ok {
		key = fe.StructNamespace()
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required (set it in the config file or %s)", key, EnvKey(key))
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", key, fe.Param(), fmt.Sprint(fe.Value()))
	case "url":
		return fmt.Sprintf("%s must be an absolute URL", key)
	default:
		return fmt.Sprintf("%s failed %s=%s (got %v)", key, fe.Tag(), fe.Param(), fe.Value())
	}
}

// resolver reads one key from the environment first, then the store.
// Malformed environment values are collected in errs.
type resolver struct {
	store     driven.ConfigStore
	lookupEnv func(string) (string, bool)
	errs      []error
}

func (r *resolver) env(key string) (string, bool) {
	if r.lookupEnv == nil {
		return "", false
	}
	v, ok := r.lookupEnv(EnvKey(key))
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (r *resolver) stored(key string) bool {
	if r.store == nil {
		return false
	}
	_, ok := r.store.Get(key)
	return ok
}

func (r *resolver) str(key, def string) string {
	if v, ok := r.env(key); ok {
		return v
	}
	if r.stored(key) {
		if v := r.store.GetString(key); v != "" {
			return v
		}
	}
	return def
}

func (r *resolver) integer(key string, def int) int {
	if v, ok := r.env(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %q is not an integer", EnvKey(key), v))
			return def
		}
		return n
	}
	if r.stored(key) {
		return r.store.GetInt(key)
	}
	return def
}

func (r *resolver) float(key string, def float64) float64 {
	if v, ok := r.env(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %q is not a number", EnvKey(key), v))
			return def
		}
		return f
	}
	if r.stored(key) {
		return r.store.GetFloat(key)
	}
	return def
}

func (r *resolver) boolean(key string, def bool) bool {
	if v, ok := r.env(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %q is not a boolean", EnvKey(key), v))
			return def
		}
		return b
	}
	if r.stored(key) {
		return r.store.GetBool(key)
	}
	return def
}

func (r *resolver) seconds(key string, def time.Duration) time.Duration {
	n := r.integer(key, int(def/time.Second))
	return time.Duration(n) * time.Second
}

func (r *resolver) strings(key string, def []string) []string {
	if v, ok := r.env(key); ok {
		var out []string
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	if r.stored(key) {
		return r.store.GetStringSlice(key)
	}
	return append([]string(nil), def...)
}
