package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nichewatch/nichewatch/internal/model"
	"github.com/nichewatch/nichewatch/internal/store"
)

type runLister struct {
	store.Store
	runs []model.Run
}

func (r *runLister) ListRuns(context.Context, store.RunFilter) ([]model.Run, error) {
	return r.runs, nil
}

func completedRun(started time.Time, dur time.Duration, products, alerts int) model.Run {
	completed := started.Add(dur)
	return model.Run{
		ID:            "run-" + started.Format("150405"),
		Platform:      "gumroad",
		Category:      "design",
		Status:        model.RunStatusComplete,
		StartedAt:     started,
		CompletedAt:   &completed,
		TotalProducts: products,
		TotalAlerts:   alerts,
	}
}

func TestCollector_Collect(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	runs := []model.Run{
		completedRun(now.Add(-1*time.Hour), 2*time.Minute, 80, 3),
		completedRun(now.Add(-5*time.Hour), 4*time.Minute, 120, 1),
		{Status: model.RunStatusFailed, StartedAt: now.Add(-2 * time.Hour)},
		{Status: model.RunStatusRunning, StartedAt: now.Add(-10 * time.Minute)},
		// Outside the lookback window.
		completedRun(now.Add(-30*time.Hour), time.Minute, 999, 9),
	}

	c := NewCollector(&runLister{runs: runs})
	c.now = func() time.Time { return now }

	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 4, snap.RunsTotal)
	assert.Equal(t, 2, snap.RunsComplete)
	assert.Equal(t, 1, snap.RunsFailed)
	assert.Equal(t, 1, snap.RunsRunning)
	assert.InDelta(t, 0.25, snap.FailRate, 1e-9)
	assert.Equal(t, 200, snap.TotalProducts)
	assert.Equal(t, 4, snap.TotalAlerts)
	assert.InDelta(t, 180.0, snap.AvgDurSecs, 1e-9)
	assert.Equal(t, 24, snap.LookbackHours)
}

func TestCollector_EmptyStore(t *testing.T) {
	c := NewCollector(&runLister{})
	snap, err := c.Collect(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.RunsTotal)
	assert.Zero(t, snap.FailRate)
	// Zero lookback falls back to a day.
	assert.Equal(t, 24, snap.LookbackHours)
}
