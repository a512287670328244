// Package pipeline orchestrates the scrape, ingest, and analyze stages
// over the store.
package pipeline

import (
	"time"

	"github.com/nichewatch/nichewatch/internal/alerting"
	"github.com/nichewatch/nichewatch/internal/config"
	"github.com/nichewatch/nichewatch/internal/platform"
	"github.com/nichewatch/nichewatch/internal/rate"
	"github.com/nichewatch/nichewatch/internal/scoring"
	"github.com/nichewatch/nichewatch/internal/store"
)

// corpusLimit bounds the recent-title corpus fed to novelty and
// saturation scoring.
const corpusLimit = 500

// Pipeline wires the scraper registry, rate controller, scoring engine,
// and notifier around the store.
type Pipeline struct {
	cfg      *config.Config
	store    store.Store
	registry *platform.Registry
	ctrl     *rate.Controller
	engine   *scoring.Engine
	notifier *alerting.Notifier
	now      func() time.Time
}

// New creates a Pipeline with all dependencies.
func New(cfg *config.Config, st store.Store, registry *platform.Registry, ctrl *rate.Controller) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		store:    st,
		registry: registry,
		ctrl:     ctrl,
		engine:   scoring.NewEngine(cfg.Scoring),
		notifier: alerting.NewNotifier(cfg.Alerts),
		now:      time.Now,
	}
}
