// Package alerting flags notable changes between runs and delivers them
// to an optional webhook.
package alerting

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/nichewatch/nichewatch/internal/model"
)

// Config holds the alert thresholds and the delivery target.
type Config struct {
	SpikeRatingDelta int     `yaml:"spike_rating_delta" mapstructure:"spike_rating_delta"`
	SpikeSalesDelta  int     `yaml:"spike_sales_delta" mapstructure:"spike_sales_delta"`
	MinPriceChange   float64 `yaml:"min_price_change" mapstructure:"min_price_change"`
	PricePctMove     float64 `yaml:"price_pct_move" mapstructure:"price_pct_move"`
	WebhookURL       string  `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// DefaultConfig returns the default alert thresholds.
func DefaultConfig() Config {
	return Config{
		SpikeRatingDelta: 12,
		SpikeSalesDelta:  50,
		MinPriceChange:   5,
		PricePctMove:     0.25,
	}
}

// Validate checks the thresholds for obvious misconfiguration.
func Validate(c Config) error {
	var errs []string
	if c.SpikeRatingDelta <= 0 {
		errs = append(errs, "spike_rating_delta must be > 0")
	}
	if c.SpikeSalesDelta <= 0 {
		errs = append(errs, "spike_sales_delta must be > 0")
	}
	if c.MinPriceChange < 0 {
		errs = append(errs, "min_price_change must be >= 0")
	}
	if c.PricePctMove <= 0 || c.PricePctMove > 1 {
		errs = append(errs, "price_pct_move must be in (0, 1]")
	}
	if len(errs) > 0 {
		return eris.Errorf("alerting: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Detect walks a run's snapshots and diffs and returns the alerts they
// trigger. previousRunID is the run-level predecessor for the scope; when
// it is empty the whole run is a first observation and every snapshot is
// a new entrant, with no spike or pricing checks.
func Detect(cfg Config, previousRunID string, snapshots []model.ProductSnapshot, diffs []model.ProductDiff, now time.Time) []model.Alert {
	diffByProduct := make(map[string]model.ProductDiff, len(diffs))
	for _, d := range diffs {
		diffByProduct[d.Platform+"|"+d.ProductID] = d
	}

	var alerts []model.Alert
	for i := range snapshots {
		snap := &snapshots[i]

		if previousRunID == "" {
			alerts = append(alerts, model.Alert{
				Type:      model.AlertNewEntrant,
				Platform:  snap.Platform,
				ProductID: snap.ProductID,
				RunID:     snap.RunID,
				Message:   fmt.Sprintf("New product in category %s: %s", snap.Category, snap.Title),
				Metadata:  map[string]any{"category": snap.Category},
				CreatedAt: now,
			})
			continue
		}

		diff := diffByProduct[snap.Platform+"|"+snap.ProductID]

		var ratingDelta, salesDelta int
		if diff.RatingCountDelta != nil {
			ratingDelta = *diff.RatingCountDelta
		}
		if diff.SalesCountDelta != nil {
			salesDelta = *diff.SalesCountDelta
		}
		if ratingDelta >= cfg.SpikeRatingDelta || salesDelta >= cfg.SpikeSalesDelta {
			alerts = append(alerts, model.Alert{
				Type:      model.AlertVelocitySpike,
				Platform:  snap.Platform,
				ProductID: snap.ProductID,
				RunID:     snap.RunID,
				Message:   fmt.Sprintf("%s showing spike (+%d ratings, +%d sales)", snap.Title, ratingDelta, salesDelta),
				Metadata:  map[string]any{"rating_delta": ratingDelta, "sales_delta": salesDelta},
				CreatedAt: now,
			})
		}

		if diff.PriceDelta != nil && *diff.PriceDelta != 0 {
			if alert := priceMoveAlert(cfg, snap, *diff.PriceDelta, now); alert != nil {
				alerts = append(alerts, *alert)
			}
		}

		if diff.FirstObservation() {
			alerts = append(alerts, model.Alert{
				Type:      model.AlertNewEntrant,
				Platform:  snap.Platform,
				ProductID: snap.ProductID,
				RunID:     snap.RunID,
				Message:   fmt.Sprintf("New entrant vs last run: %s", snap.Title),
				Metadata:  map[string]any{"category": snap.Category},
				CreatedAt: now,
			})
		}
	}
	return alerts
}

// priceMoveAlert fires on moves that clear either the absolute floor or
// the percentage threshold against the pre-move price.
func priceMoveAlert(cfg Config, snap *model.ProductSnapshot, priceDelta float64, now time.Time) *model.Alert {
	var pct float64
	if snap.PriceUSD != nil {
		if base := *snap.PriceUSD - priceDelta; base != 0 {
			pct = priceDelta / base
		}
	}
	if math.Abs(priceDelta) < cfg.MinPriceChange && math.Abs(pct) < cfg.PricePctMove {
		return nil
	}
	return &model.Alert{
		Type:      model.AlertPricingMove,
		Platform:  snap.Platform,
		ProductID: snap.ProductID,
		RunID:     snap.RunID,
		Message:   fmt.Sprintf("%s price moved %+.2f USD (%+.0f%%)", snap.Title, priceDelta, pct*100),
		Metadata:  map[string]any{"price_delta": priceDelta, "pct": pct},
		CreatedAt: now,
	}
}
