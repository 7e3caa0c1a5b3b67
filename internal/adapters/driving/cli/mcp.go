package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/propfeed/internal/adapters/driving/mcp"
	"github.com/custodia-labs/propfeed/internal/logger"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can query
the listing snapshot.

Tools:
  list_listings     filter and page through the current snapshot
  get_listing       a single record by id or reference
  refresh_listings  fetch the feed now

By default the server communicates over stdio using JSON-RPC.
Use --port to start an HTTP server instead.

Examples:
  # Stdio mode
  propfeed mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  propfeed mcp serve --port 8090`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	app, err := newApp(cfg.settings)
	if err != nil {
		return err
	}
	defer app.Close() //nolint:errcheck

	if _, err := app.Orchestrator.Warm(cmd.Context()); err != nil {
		logger.Warn("mcp: %v", err)
	}

	server, err := mcp.NewServer(&mcp.Ports{
		Reader:       app.Reader,
		Orchestrator: app.Orchestrator,
	})
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
