// Package monitoring summarizes run health from the store.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/nichewatch/nichewatch/internal/model"
	"github.com/nichewatch/nichewatch/internal/store"
)

// listLimit bounds how many runs one collection pass examines.
const listLimit = 10000

// MetricsSnapshot holds a point-in-time view of crawl health over a
// lookback window.
type MetricsSnapshot struct {
	RunsTotal    int     `json:"runs_total"`
	RunsComplete int     `json:"runs_complete"`
	RunsFailed   int     `json:"runs_failed"`
	RunsRunning  int     `json:"runs_running"`
	FailRate     float64 `json:"fail_rate"`

	TotalProducts int     `json:"total_products"`
	TotalAlerts   int     `json:"total_alerts"`
	AvgDurSecs    float64 `json:"avg_duration_secs"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers run metrics from the store.
type Collector struct {
	store store.Store
	now   func() time.Time
}

// NewCollector creates a metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect summarizes every run started within the lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	if lookbackHours <= 0 {
		lookbackHours = 24
	}

	runs, err := c.store.ListRuns(ctx, store.RunFilter{Limit: listLimit})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	now := c.now().UTC()
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	var totalDur time.Duration
	var durCount int
	for _, r := range runs {
		if r.StartedAt.Before(cutoff) {
			continue
		}
		snap.RunsTotal++
		snap.TotalProducts += r.TotalProducts
		snap.TotalAlerts += r.TotalAlerts

		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
			if r.CompletedAt != nil {
				totalDur += r.CompletedAt.Sub(r.StartedAt)
				durCount++
			}
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusRunning:
			snap.RunsRunning++
		}
	}

	if snap.RunsTotal > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(snap.RunsTotal)
	}
	if durCount > 0 {
		snap.AvgDurSecs = totalDur.Seconds() / float64(durCount)
	}
	return snap, nil
}
