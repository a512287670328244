package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/nichewatch/nichewatch/internal/model"
)

// Trend scoring over a product's snapshot history. Week-over-week deltas
// are normalized against an adaptive per-product scale so a small product
// that doubles can outrank a big product that crawls.

const (
	trendMinRating = 4.0
	trendMinSales  = 10

	trendDefaultSalesScale   = 100.0
	trendDefaultRevenueScale = 2000.0
	trendDefaultRatingScale  = 25.0
)

var trendSalesThresholds = []int{10, 50, 100, 250, 500, 1000}

// TrendResult carries the 0-100 trend score and the notes explaining it.
type TrendResult struct {
	Score float64
	Notes []string
}

// TrendFromHistory scores a product from its full snapshot history,
// oldest-first or not (it sorts internally). now anchors the 7d and 14d
// windows; pass the zero time to anchor on the latest snapshot.
func TrendFromHistory(history []model.ProductSnapshot, now time.Time) TrendResult {
	if len(history) == 0 {
		return TrendResult{Notes: []string{"no history"}}
	}

	snaps := make([]model.ProductSnapshot, len(history))
	copy(snaps, history)
	sort.SliceStable(snaps, func(i, j int) bool {
		return snaps[i].ScrapedAt.Before(snaps[j].ScrapedAt)
	})
	latest := &snaps[len(snaps)-1]

	if latest.RatingAvg == nil || *latest.RatingAvg < trendMinRating {
		return TrendResult{Notes: []string{"filtered: rating < 4"}}
	}
	if salesOf(latest) < trendMinSales {
		return TrendResult{Notes: []string{"filtered: sales < 10"}}
	}

	end := now
	if end.IsZero() {
		end = latest.ScrapedAt
	}
	lastWeekStart := end.Add(-7 * 24 * time.Hour)
	prevWeekStart := end.Add(-14 * 24 * time.Hour)

	lastWeekSnap := baselineAt(snaps, lastWeekStart)
	prevWeekSnap := baselineAt(snaps, prevWeekStart)

	salesDelta := salesOf(latest) - salesOf(lastWeekSnap)
	revenueDelta := revenueOf(latest) - revenueOf(lastWeekSnap)
	ratingDelta := ratingCountOf(latest) - ratingCountOf(lastWeekSnap)

	prevWeekBase := lastWeekSnap
	if prevWeekBase == nil {
		prevWeekBase = latest
	}
	prevWeekSalesDelta := salesOf(prevWeekBase) - salesOf(prevWeekSnap)

	salesScale := adaptiveScale(snaps, salesValue, trendDefaultSalesScale)
	revenueScale := adaptiveScale(snaps, revenueValue, trendDefaultRevenueScale)
	ratingScale := adaptiveScale(snaps, ratingCountValue, trendDefaultRatingScale)

	salesSig := clamp(float64(salesDelta)/salesScale, 0, 1)
	revenueSig := clamp(revenueDelta/revenueScale, 0, 1)
	ratingSig := clamp(float64(ratingDelta)/ratingScale, 0, 1)

	base := (salesSig*0.5 + revenueSig*0.3 + ratingSig*0.2) * 100

	notes := []string{fmt.Sprintf("sales delta 7d: %d; revenue delta 7d: %.2f; rating delta 7d: %d",
		salesDelta, revenueDelta, ratingDelta)}

	boost := 1.0
	if salesDelta > prevWeekSalesDelta {
		boost += 0.15
		notes = append(notes, "recent growth > prior week")
	}
	if ratingDelta > 0 && ratingDelta > prevWeekSalesDelta {
		boost += 0.05
	}

	prevSales := salesOf(lastWeekSnap)
	currentSales := salesOf(latest)
	var crossed []string
	for _, t := range trendSalesThresholds {
		if prevSales < t && currentSales >= t {
			crossed = append(crossed, fmt.Sprintf("%d", t))
		}
	}
	bonus := math.Min(10, float64(len(crossed))*3)
	if len(crossed) > 0 {
		notes = append(notes, "crossed threshold: "+strings.Join(crossed, ", "))
	}

	score := round1(math.Min(base*boost+bonus, 100))
	return TrendResult{Score: score, Notes: notes}
}

// baselineAt returns the latest snapshot scraped at or before cutoff, or
// nil when the history starts after it.
func baselineAt(sorted []model.ProductSnapshot, cutoff time.Time) *model.ProductSnapshot {
	var base *model.ProductSnapshot
	for i := range sorted {
		if sorted[i].ScrapedAt.After(cutoff) {
			break
		}
		base = &sorted[i]
	}
	return base
}

// adaptiveScale derives a normalization scale from the product's own
// growth: the 90th percentile of its positive successive deltas padded by
// 10%, floored at the metric default so tiny histories stay stable.
func adaptiveScale(sorted []model.ProductSnapshot, value func(*model.ProductSnapshot) float64, defaultMax float64) float64 {
	var deltas []float64
	for i := 1; i < len(sorted); i++ {
		d := value(&sorted[i]) - value(&sorted[i-1])
		if d > 0 {
			deltas = append(deltas, d)
		}
	}
	if len(deltas) == 0 {
		return defaultMax
	}
	return math.Max(defaultMax, percentile(deltas, 0.9)*1.1)
}

func percentile(values []float64, p float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func salesOf(snap *model.ProductSnapshot) int {
	if snap == nil || snap.SalesCount == nil {
		return 0
	}
	return *snap.SalesCount
}

func revenueOf(snap *model.ProductSnapshot) float64 {
	if snap == nil || snap.RevenueUSD == nil {
		return 0
	}
	return *snap.RevenueUSD
}

func ratingCountOf(snap *model.ProductSnapshot) int {
	if snap == nil {
		return 0
	}
	return snap.RatingCount
}

func salesValue(snap *model.ProductSnapshot) float64   { return float64(salesOf(snap)) }
func revenueValue(snap *model.ProductSnapshot) float64 { return revenueOf(snap) }
func ratingCountValue(snap *model.ProductSnapshot) float64 {
	return float64(ratingCountOf(snap))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
