package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/nichewatch/nichewatch/internal/crawl"
	"github.com/nichewatch/nichewatch/internal/pipeline"
	"github.com/nichewatch/nichewatch/internal/platform"
	"github.com/nichewatch/nichewatch/internal/rate"
	"github.com/nichewatch/nichewatch/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "nichewatch.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		poolCfg := store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &poolCfg)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initCrawlPipeline builds a pipeline backed by a real headless browser.
// The returned cleanup closes the browser.
func initCrawlPipeline(ctx context.Context, st store.Store) (*pipeline.Pipeline, *rate.Controller, func(), error) {
	browser, err := crawl.NewChromeBrowser(ctx, cfg.Crawl.BrowserOptions())
	if err != nil {
		return nil, nil, nil, eris.Wrap(err, "start browser")
	}

	ctrl := rate.NewController(cfg.Rate.ControllerConfig())
	engine := crawl.NewEngine(browser, ctrl, cfg.Crawl.EngineOptions())

	registry := platform.NewRegistry()
	registry.Register(platform.NewGumroadScraper(engine))
	registry.Register(platform.NewWhopScraper(engine))

	p := pipeline.New(cfg, st, registry, ctrl)
	cleanup := func() { _ = browser.Close() }
	return p, ctrl, cleanup, nil
}

// initAnalysisPipeline builds a pipeline for store-only commands that
// never touch a browser.
func initAnalysisPipeline(st store.Store) *pipeline.Pipeline {
	ctrl := rate.NewController(cfg.Rate.ControllerConfig())
	return pipeline.New(cfg, st, platform.NewRegistry(), ctrl)
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
