package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/propfeed/internal/adapters/driving/api"
	"github.com/custodia-labs/propfeed/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read API with periodic refresh",
	Long: `Starts the HTTP read API, the periodic listing refresh and a watcher
on config.toml. Cache, scheduler interval and logging changes are applied
without a restart. Stops gracefully on SIGINT or SIGTERM.

Routes:
  GET  /health
  GET  /api/v1/listings?operation=&zone=&type=&active=&page=&pageSize=
  GET  /api/v1/listings/:id
  POST /api/v1/refresh
  GET  /api/v1/cache/stats
  GET  /api/v1/status`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	addr, err := cmd.Flags().GetString("addr")
	if err != nil {
		return fmt.Errorf("getting addr flag: %w", err)
	}

	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.settings.Server.Addr = addr
	}

	app, err := newApp(cfg.settings)
	if err != nil {
		return err
	}
	defer app.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cmd, cfg, app)
}

// serve runs the API, scheduler and config watcher until ctx is done or
// one of them fails.
func serve(ctx context.Context, cmd *cobra.Command, cfg *loadedConfig, app *App) error {
	if warmed, err := app.Orchestrator.Warm(ctx); err != nil {
		logger.Warn("serve: %v", err)
	} else if warmed {
		cmd.Println("Cache warmed from archived snapshot.")
	}

	server, err := api.NewServer(&api.Ports{
		Reader:       app.Reader,
		Orchestrator: app.Orchestrator,
		Cache:        app.Cache,
	}, api.Config{
		Addr:        app.Settings.Server.Addr,
		CORSOrigins: app.Settings.Server.CORSOrigins,
	})
	if err != nil {
		return err
	}

	changes, err := cfg.store.Watch(ctx)
	if err != nil {
		logger.Warn("serve: config reload disabled: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	g.Go(func() error {
		err := app.Scheduler.Start(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if changes != nil {
		g.Go(func() error {
			reloadLoop(gctx, changes, cfg, app)
			return nil
		})
	}

	cmd.Printf("propfeed serving on %s\n", app.Settings.Server.Addr)
	err = g.Wait()

	if stopErr := app.Scheduler.Stop(); stopErr != nil {
		logger.Warn("serve: stopping scheduler: %v", stopErr)
	}
	cmd.Println("propfeed stopped.")
	return err
}

// reloadLoop applies settings after each config file change. Invalid
// settings are logged and the previous ones stay in effect.
func reloadLoop(ctx context.Context, changes <-chan struct{}, cfg *loadedConfig, app *App) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			settings, err := cfg.service.Load()
			if err != nil {
				logger.Warn("config: keeping previous settings: %v", err)
				continue
			}
			cfg.settings = settings
			cfg.applyLogging()
			app.Apply(settings)
			if err := app.Scheduler.UpdateConfig(ctx, settings.SchedulerConfig()); err != nil {
				logger.Warn("config: updating scheduler: %v", err)
			}
			logger.Info("config: applied reloaded settings")
		}
	}
}
