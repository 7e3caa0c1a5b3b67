package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/propfeed/internal/core/domain"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective settings",
	Long: `Shows the settings after applying defaults, config.toml and PROPFEED_*
environment overrides. Secrets are redacted. Validation problems are listed
after the settings.`,
	RunE: runConfigShow,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, loadErr := loadConfig(false)
	if cfg == nil {
		return loadErr
	}

	s := cfg.settings.Redacted()
	cmd.Printf("Config file: %s\n\n", cfg.service.ConfigPath())

	cmd.Println("Upstream:")
	cmd.Printf("  Environment:      %s\n", s.Upstream.Environment)
	cmd.Printf("  Base URL:         %s\n", orDefault(s.Upstream.BaseURL, "(environment default)"))
	cmd.Printf("  Client ID:        %s\n", orDefault(s.Upstream.ClientID, "(not set)"))
	cmd.Printf("  Client secret:    %s\n", orDefault(s.Upstream.ClientSecret, "(not set)"))
	cmd.Printf("  Feed key:         %s\n", orDefault(s.Upstream.FeedKey, "(not set)"))
	cmd.Printf("  Page size:        %d\n", s.Upstream.PageSize)
	cmd.Printf("  Status filter:    %s\n", s.Upstream.Status)
	cmd.Printf("  Request timeout:  %s\n", s.Upstream.RequestTimeout)
	cmd.Printf("  Image timeout:    %s\n", s.Upstream.ImageTimeout)
	cmd.Printf("  Max retries:      %d\n", s.Upstream.MaxRetries)
	cmd.Printf("  Rate per second:  %g\n", s.Upstream.RatePerSecond)

	cmd.Println("\nCache:")
	cmd.Printf("  TTL:              %s\n", s.Cache.TTL)
	cmd.Printf("  Capacity:         %d\n", s.Cache.Capacity)
	cmd.Printf("  Refresh on miss:  %t\n", s.Cache.RefreshOnMiss)

	cmd.Println("\nScheduler:")
	cmd.Printf("  Enabled:          %t\n", s.Scheduler.Enabled)
	cmd.Printf("  Interval:         %s\n", s.Scheduler.Interval)

	cmd.Println("\nHistory:")
	cmd.Printf("  Backend:          %s\n", s.History.Backend)
	if s.History.Backend == domain.HistorySQLite {
		cmd.Printf("  Data dir:         %s\n", orDefault(s.History.DataDir, "(default)"))
	}

	cmd.Println("\nServer:")
	cmd.Printf("  Address:          %s\n", s.Server.Addr)
	cmd.Printf("  CORS origins:     %s\n", strings.Join(s.Server.CORSOrigins, ", "))

	cmd.Println("\nLog:")
	cmd.Printf("  Level:            %s\n", s.Log.Level)
	cmd.Printf("  Format:           %s\n", s.Log.Format)

	if loadErr != nil {
		cmd.Printf("\nConfiguration problems:\n  %s\n", strings.ReplaceAll(loadErr.Error(), "\n", "\n  "))
		return fmt.Errorf("configuration is invalid")
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
