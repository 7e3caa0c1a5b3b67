package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/propfeed/internal/core/domain"
)

// defaultHistoryLimit is the number of results shown by default.
const defaultHistoryLimit = 20

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent fetch runs",
	Long: `Lists recent listing refresh runs from the history store, most recent
first. The memory backend only keeps history for the current process, so
use history.backend = "sqlite" to keep it across runs.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntP("limit", "n", defaultHistoryLimit, "maximum number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return fmt.Errorf("getting limit flag: %w", err)
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	cfg, err := loadConfig(false)
	if cfg == nil {
		return err
	}
	app, err := newApp(cfg.settings)
	if err != nil {
		return err
	}
	defer app.Close() //nolint:errcheck

	results, err := app.History.GetTaskHistory(cmd.Context(), domain.TaskIDListingRefresh, limit)
	if err != nil {
		return fmt.Errorf("reading history: %w", err)
	}
	if len(results) == 0 {
		cmd.Println("No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tDURATION\tSTATUS\tRECORDS\tDEGRADED\tERROR")
	for _, r := range results {
		status := "ok"
		if !r.Success {
			status = "failed"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			r.StartedAt.Local().Format(time.DateTime),
			r.EndedAt.Sub(r.StartedAt).Round(time.Millisecond),
			status,
			r.Records,
			r.DegradedItems,
			r.Error,
		)
	}
	return w.Flush()
}
