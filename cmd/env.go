package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"

	"github.com/sells-group/family-events/internal/catalog"
	"github.com/sells-group/family-events/internal/config"
	"github.com/sells-group/family-events/internal/fetcher"
	"github.com/sells-group/family-events/internal/model"
	"github.com/sells-group/family-events/internal/monitoring"
	"github.com/sells-group/family-events/internal/pipeline"
	"github.com/sells-group/family-events/internal/source"
	"github.com/sells-group/family-events/internal/store"
)

// appEnv holds the components shared by the commands that run the pipeline.
type appEnv struct {
	Location *time.Location
	Files    *catalog.FileStore
	Ledger   store.Store
	Registry *source.Registry
	Engine   *pipeline.Engine
	Metrics  *prometheus.Registry
}

// Close releases the ledger.
func (e *appEnv) Close() {
	if e.Ledger != nil {
		_ = e.Ledger.Close()
	}
}

// initCatalog opens the catalog file store in the configured time zone.
func initCatalog() (*catalog.FileStore, *time.Location, error) {
	if err := cfg.Validate(config.ScopeCatalog); err != nil {
		return nil, nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	return catalog.NewFileStore(cfg.Catalog.Path, cfg.Catalog.ArchivePath), loc, nil
}

// initStore opens and migrates the run ledger.
func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate(config.ScopeStore); err != nil {
		return nil, err
	}
	if cfg.Store.Driver == "sqlite" {
		if dir := filepath.Dir(cfg.Store.DatabaseURL); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, eris.Wrapf(err, "create ledger directory %s", dir)
			}
		}
	}
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "open run ledger")
	}
	return st, nil
}

// sourceConfig maps configuration onto the adapter settings.
func sourceConfig(sc config.SourcesConfig) source.Config {
	var out source.Config
	for _, s := range []struct {
		src model.Source
		cfg config.SourceConfig
		dst *source.Settings
	}{
		{model.SourceParks, sc.Parks, &out.Parks},
		{model.SourceLibrary, sc.Library, &out.Library},
		{model.SourceMuseum, sc.Museum, &out.Museum},
		{model.SourceFarm, sc.Farm, &out.Farm},
	} {
		*s.dst = source.Settings{URL: s.cfg.URL, MaxPages: s.cfg.MaxPages}
		if !s.cfg.Enabled {
			out.Disabled = append(out.Disabled, s.src)
		}
	}
	return out
}

func newFetcher(fc config.FetchConfig) *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  fc.UserAgent,
		Timeout:    time.Duration(fc.TimeoutSecs) * time.Second,
		MaxRetries: fc.MaxRetries,
		Delay:      time.Duration(fc.DelayMs) * time.Millisecond,
	})
}

// initEnv wires the catalog, ledger, adapters and engine.
func initEnv(ctx context.Context) (*appEnv, error) {
	if err := cfg.Validate(config.ScopeFetch); err != nil {
		return nil, err
	}
	files, loc, err := initCatalog()
	if err != nil {
		return nil, err
	}
	ledger, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := pipeline.NewMetrics(reg)
	registry := source.NewDefaultRegistry(source.Env{Location: loc}, sourceConfig(cfg.Sources))
	engine := pipeline.NewEngine(registry, newFetcher(cfg.Fetch), files, ledger, pipeline.Options{
		Location:    loc,
		Concurrency: cfg.Fetch.Concurrency,
		Metrics:     metrics,
	})

	return &appEnv{
		Location: loc,
		Files:    files,
		Ledger:   ledger,
		Registry: registry,
		Engine:   engine,
		Metrics:  reg,
	}, nil
}

// newChecker builds the health checker over every configured source.
func newChecker(ledger store.Store, registry *source.Registry) *monitoring.Checker {
	collector := monitoring.NewCollector(ledger, registry.Names())
	return monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
}
