package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/propfeed/internal/adapters/driven/config/file"
	"github.com/custodia-labs/propfeed/internal/core/domain"
	"github.com/custodia-labs/propfeed/internal/core/services"
	"github.com/custodia-labs/propfeed/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Global flags.
var (
	configDir string
	verbose   bool
	logFormat string
)

// lookupEnv resolves PROPFEED_* overrides. Replaced by tests.
var lookupEnv = os.LookupEnv

var rootCmd = &cobra.Command{
	Use:   "propfeed",
	Short: "Property listing aggregation service",
	Long: `propfeed fetches the provider's listing feed, resolves images,
normalises every record into a canonical shape and serves the published
snapshot from an in-process cache.

Configuration is read from config.toml in the config directory and can be
overridden with PROPFEED_* environment variables.`,
	SilenceUsage:      true,
	PersistentPreRunE: applyLogFlags,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configDir, "config-dir", "", "config directory (default ~/.propfeed)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&logFormat, "log-format", "", "log format: auto, json or console")
}

// Execute runs the root command.
func Execute() error {
	defer logger.Sync()
	return rootCmd.Execute()
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

func applyLogFlags(_ *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if logFormat != "" {
		if err := logger.SetFormat(logFormat); err != nil {
			return err
		}
	}
	return nil
}

// loadedConfig is the resolved configuration for one command invocation.
type loadedConfig struct {
	store    *file.ConfigStore
	service  *services.SettingsService
	settings domain.Settings
}

// loadConfig reads the config file and environment. When strict is false
// validation errors are returned alongside usable settings.
func loadConfig(strict bool) (*loadedConfig, error) {
	store, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	svc := services.NewSettingsService(store).WithEnv(lookupEnv)

	settings, loadErr := svc.Load()
	if loadErr != nil && (strict || !errors.Is(loadErr, domain.ErrInvalidConfig)) {
		return nil, loadErr
	}

	cfg := &loadedConfig{store: store, service: svc, settings: settings}
	cfg.applyLogging()
	return cfg, loadErr
}

// applyLogging applies configured logging unless a flag overrides it.
func (c *loadedConfig) applyLogging() {
	if logFormat == "" {
		if err := logger.SetFormat(c.settings.Log.Format); err != nil {
			logger.Warn("config: %v", err)
		}
	}
	if err := logger.SetLevel(c.settings.Log.Level); err != nil {
		logger.Warn("config: %v", err)
	}
}
