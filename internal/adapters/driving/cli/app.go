package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	cachememory "github.com/custodia-labs/propfeed/internal/adapters/driven/cache/memory"
	"github.com/custodia-labs/propfeed/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/propfeed/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/propfeed/internal/connectors/upstream"
	"github.com/custodia-labs/propfeed/internal/core/domain"
	"github.com/custodia-labs/propfeed/internal/core/ports/driven"
	"github.com/custodia-labs/propfeed/internal/core/services"
	"github.com/custodia-labs/propfeed/internal/logger"
	"github.com/custodia-labs/propfeed/internal/normalisers"
)

// App holds the wired services for one command invocation.
type App struct {
	Settings     domain.Settings
	Cache        *cachememory.Store
	Upstream     *upstream.Client
	Orchestrator *services.FetchOrchestrator
	Reader       *services.SnapshotReader
	History      driven.SchedulerStore
	Scheduler    *services.Scheduler

	closers []func() error
}

// newApp wires the application from settings. Replaced by tests.
var newApp = buildApp

func buildApp(settings domain.Settings) (*App, error) {
	a := &App{Settings: settings}

	a.Cache = cachememory.NewStore(cachememory.WithCapacity(settings.Cache.Capacity))

	cfg := upstream.ConfigFromSettings(settings.Upstream)
	cfg.UserAgent = "propfeed/" + version
	a.Upstream = upstream.NewClient(cfg)

	a.Orchestrator = services.NewFetchOrchestrator(
		a.Upstream,
		a.Upstream,
		a.Upstream,
		a.Upstream,
		normalisers.NewDefaultRegistry(),
		a.Cache,
		services.FetchOptionsFromSettings(settings),
	)
	a.Reader = services.NewSnapshotReader(a.Cache, a.Orchestrator, settings.Cache.RefreshOnMiss)

	if err := a.openHistory(); err != nil {
		return nil, err
	}
	a.Scheduler = services.NewScheduler(settings.SchedulerConfig(), a.History, a.Orchestrator)
	return a, nil
}

// openHistory selects the run history backend. The sqlite backend also
// archives published snapshots for warm starts.
func (a *App) openHistory() error {
	switch a.Settings.History.Backend {
	case domain.HistorySQLite:
		store, err := sqlite.NewStore(a.dataDir())
		if err != nil {
			return fmt.Errorf("opening history store: %w", err)
		}
		a.History = store.SchedulerStore()
		a.Orchestrator.SetArchive(store.SnapshotArchive())
		a.closers = append(a.closers, store.Close)
		logger.Debug("history: sqlite at %s", store.Path())
	default:
		a.History = memory.NewSchedulerStore()
	}
	return nil
}

// dataDir defaults to the data subdirectory of the config directory.
func (a *App) dataDir() string {
	if a.Settings.History.DataDir != "" {
		return a.Settings.History.DataDir
	}
	if configDir != "" {
		return filepath.Join(configDir, "data")
	}
	return ""
}

// Apply pushes reloaded settings into the running services. The
// upstream section, including the feed query and so the aggregate key,
// stays as started until restart.
func (a *App) Apply(settings domain.Settings) {
	if settings.Upstream != a.Settings.Upstream {
		logger.Warn("config: upstream settings (feed, paging, credentials, timeouts) apply after restart")
		settings.Upstream = a.Settings.Upstream
	}
	a.Orchestrator.UpdateOptions(services.FetchOptionsFromSettings(settings))
	a.Reader.SetRefreshOnMiss(settings.Cache.RefreshOnMiss)
	a.Settings = settings
}

// Close releases the history store.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
