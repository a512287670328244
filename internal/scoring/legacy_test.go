package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nichewatch/nichewatch/internal/model"
)

func TestLegacyScore_StrongProduct(t *testing.T) {
	snap := &model.ProductSnapshot{
		RatingAvg:   floatPtr(4.8),
		RatingCount: 120,
		RatingBreakdown: map[string]float64{
			"5": 85, "4": 10, "3": 3, "2": 1, "1": 1,
		},
		PriceUSD:   floatPtr(29),
		SalesCount: intPtr(12000),
		RevenueUSD: floatPtr(150000),
	}

	score, sig := LegacyScore(snap)
	assert.Equal(t, 100.0, score)
	assert.Equal(t, 1.0, sig.Rating)
	assert.Equal(t, 1.0, sig.ReviewHealth)
	assert.Equal(t, 1.0, sig.Price)
	assert.Equal(t, 1.0, sig.SalesVelocity)
	assert.Equal(t, 1.0, sig.Revenue)
	assert.Empty(t, sig.Notes)
}

func TestLegacyScore_NoSignals(t *testing.T) {
	score, sig := LegacyScore(&model.ProductSnapshot{})
	assert.InDelta(t, 30.4, score, 0.01)
	assert.Equal(t, 0.3, sig.Rating)
	assert.Contains(t, sig.Notes, "no rating")
	assert.Contains(t, sig.Notes, "no price")
}

func TestRatingSignalBands(t *testing.T) {
	tests := []struct {
		avg  float64
		want float64
	}{
		{4.7, 1.0}, {4.3, 0.85}, {4.0, 0.7}, {3.5, 0.5}, {2.9, 0.2},
	}
	for _, tt := range tests {
		var notes []string
		snap := &model.ProductSnapshot{RatingAvg: floatPtr(tt.avg), RatingCount: 10}
		assert.Equal(t, tt.want, ratingSignal(snap, &notes), "avg %.1f", tt.avg)
		assert.Empty(t, notes)
	}
}

func TestPriceSignalBands(t *testing.T) {
	tests := []struct {
		price float64
		want  float64
	}{
		{0, 0.3}, {3, 0.4}, {7, 0.6}, {25, 1.0}, {60, 0.85},
		{120, 0.7}, {250, 0.5}, {400, 0.35},
	}
	for _, tt := range tests {
		var notes []string
		snap := &model.ProductSnapshot{PriceUSD: floatPtr(tt.price)}
		assert.Equal(t, tt.want, priceSignal(snap, &notes), "price %.0f", tt.price)
	}
}

func TestReviewHealthSignal(t *testing.T) {
	// plenty of reviews but a heavy mixed tail drags the blend down
	snap := &model.ProductSnapshot{
		RatingCount:     100,
		RatingBreakdown: map[string]float64{"5": 30, "4": 20, "3": 25, "2": 15, "1": 10},
	}
	assert.InDelta(t, 0.82, reviewHealthSignal(snap), 0.001)

	// mixed means the 2-4 star band: a large 4-star share counts against
	// the product even with no 1-star reviews to speak of
	snap = &model.ProductSnapshot{
		RatingCount:     100,
		RatingBreakdown: map[string]float64{"5": 60, "4": 30, "1": 10},
	}
	assert.InDelta(t, 0.88, reviewHealthSignal(snap), 0.001)

	// missing breakdown falls back to a neutral mixed score
	snap = &model.ProductSnapshot{RatingCount: 100}
	assert.InDelta(t, 0.88, reviewHealthSignal(snap), 0.001)
}

func TestSalesAndRevenueSignals(t *testing.T) {
	assert.Equal(t, 0.3, salesSignal(&model.ProductSnapshot{}))
	assert.Equal(t, 1.0, salesSignal(&model.ProductSnapshot{SalesCount: intPtr(10000)}))
	assert.Equal(t, 0.55, salesSignal(&model.ProductSnapshot{SalesCount: intPtr(150)}))
	assert.Equal(t, 0.2, salesSignal(&model.ProductSnapshot{SalesCount: intPtr(3)}))

	assert.Equal(t, 0.3, revenueSignal(&model.ProductSnapshot{}))
	assert.Equal(t, 0.9, revenueSignal(&model.ProductSnapshot{RevenueUSD: floatPtr(60000)}))
	assert.Equal(t, 0.45, revenueSignal(&model.ProductSnapshot{RevenueUSD: floatPtr(2500)}))
}
