package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nichewatch/nichewatch/internal/model"
)

func diffSnapshot(runID string, price float64, ratingCount int, sales int, hash string) model.ProductSnapshot {
	return model.ProductSnapshot{
		Platform:    "gumroad",
		ProductID:   "alpha",
		RunID:       runID,
		PriceUSD:    &price,
		RatingCount: ratingCount,
		SalesCount:  &sales,
		ScrapedAt:   time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Hash:        hash,
	}
}

func TestNewDiff_FirstObservation(t *testing.T) {
	d := NewDiff(diffSnapshot("run-1", 29.99, 10, 100, "h"), nil)

	assert.True(t, d.FirstObservation())
	assert.Empty(t, d.PreviousRunID)
	assert.Nil(t, d.PriceDelta)
	assert.Nil(t, d.RatingCountDelta)
	assert.Nil(t, d.SalesCountDelta)
	assert.Nil(t, d.RevenueDelta)
	assert.False(t, d.RawSourceChanged)
}

func TestNewDiff_Deltas(t *testing.T) {
	prev := diffSnapshot("run-1", 29.99, 25, 100, "hash-old")
	cur := diffSnapshot("run-2", 24.99, 40, 150, "hash-new")

	d := NewDiff(cur, &prev)

	assert.Equal(t, "run-1", d.PreviousRunID)
	require.NotNil(t, d.PriceDelta)
	assert.Equal(t, -5.0, *d.PriceDelta)
	require.NotNil(t, d.RatingCountDelta)
	assert.Equal(t, 15, *d.RatingCountDelta)
	require.NotNil(t, d.SalesCountDelta)
	assert.Equal(t, 50, *d.SalesCountDelta)
	assert.True(t, d.RawSourceChanged)
}

func TestNewDiff_PriceDeltaRounded(t *testing.T) {
	prev := diffSnapshot("run-1", 10.10, 0, 0, "h")
	cur := diffSnapshot("run-2", 10.43, 0, 0, "h")

	d := NewDiff(cur, &prev)
	require.NotNil(t, d.PriceDelta)
	assert.Equal(t, 0.33, *d.PriceDelta)
}

func TestNewDiff_MissingValuesLeaveDeltasNil(t *testing.T) {
	prev := diffSnapshot("run-1", 29.99, 10, 100, "h")
	cur := model.ProductSnapshot{
		Platform:    "gumroad",
		ProductID:   "alpha",
		RunID:       "run-2",
		RatingCount: 12,
		ScrapedAt:   time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC),
		Hash:        "h",
	}

	d := NewDiff(cur, &prev)

	assert.Nil(t, d.PriceDelta, "price missing on current side")
	assert.Nil(t, d.SalesCountDelta, "sales missing on current side")
	require.NotNil(t, d.RatingCountDelta)
	assert.Equal(t, 2, *d.RatingCountDelta)
	assert.False(t, d.RawSourceChanged)
}
