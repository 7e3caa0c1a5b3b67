package driving

import "github.com/custodia-labs/propfeed/internal/core/domain"

// SettingsService resolves the effective application settings.
type SettingsService interface {
	// Load resolves defaults, the config store and the environment into
	// validated settings. Validation failures wrap domain.ErrInvalidConfig.
	Load() (domain.Settings, error)

	// Validate checks resolved settings without loading them.
	Validate(s domain.Settings) error

	// ConfigPath returns where the settings file lives.
	ConfigPath() string
}
