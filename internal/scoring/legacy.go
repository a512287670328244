package scoring

import (
	"github.com/nichewatch/nichewatch/internal/model"
	"github.com/nichewatch/nichewatch/internal/normalize"
)

// Legacy weighted scoring. Unlike the diff-driven engine this rates a
// single snapshot on absolute bands, with no run-over-run signal. Kept
// for ranking first-run snapshots that have no diff history yet.

const (
	legacyWeightRating        = 0.25
	legacyWeightReviewHealth  = 0.20
	legacyWeightPrice         = 0.15
	legacyWeightSalesVelocity = 0.25
	legacyWeightRevenue       = 0.15
)

// LegacySignals exposes the five banded sub-signals, each in [0, 1].
type LegacySignals struct {
	Rating        float64
	ReviewHealth  float64
	Price         float64
	SalesVelocity float64
	Revenue       float64
	Notes         []string
}

// LegacyScore returns a 0-100 score (one decimal) for a snapshot in
// isolation, plus the signal breakdown behind it.
func LegacyScore(snap *model.ProductSnapshot) (float64, LegacySignals) {
	var sig LegacySignals

	sig.Rating = ratingSignal(snap, &sig.Notes)
	sig.ReviewHealth = reviewHealthSignal(snap)
	sig.Price = priceSignal(snap, &sig.Notes)
	sig.SalesVelocity = salesSignal(snap)
	sig.Revenue = revenueSignal(snap)

	weighted := sig.Rating*legacyWeightRating +
		sig.ReviewHealth*legacyWeightReviewHealth +
		sig.Price*legacyWeightPrice +
		sig.SalesVelocity*legacyWeightSalesVelocity +
		sig.Revenue*legacyWeightRevenue
	return round1(weighted * 100), sig
}

func ratingSignal(snap *model.ProductSnapshot, notes *[]string) float64 {
	if snap.RatingAvg == nil {
		*notes = append(*notes, "no rating")
		return 0.3
	}
	if snap.RatingCount == 0 {
		*notes = append(*notes, "no reviews")
		return 0.3
	}
	avg := *snap.RatingAvg
	switch {
	case avg >= 4.7:
		return 1.0
	case avg >= 4.3:
		return 0.85
	case avg >= 4.0:
		return 0.7
	case avg >= 3.5:
		return 0.5
	default:
		return 0.2
	}
}

// reviewHealthSignal blends review volume with the share of mixed
// reviews (two to four stars) from the rating breakdown.
func reviewHealthSignal(snap *model.ProductSnapshot) float64 {
	var countScore float64
	switch count := snap.RatingCount; {
	case count >= 100:
		countScore = 1.0
	case count >= 50:
		countScore = 0.85
	case count >= 20:
		countScore = 0.7
	case count >= 10:
		countScore = 0.5
	case count >= 5:
		countScore = 0.35
	default:
		countScore = 0.2
	}

	mixedScore := 0.6
	if len(snap.RatingBreakdown) > 0 {
		mixedPct := normalize.MixedReviewShare(snap.RatingBreakdown)
		switch {
		case mixedPct <= 15:
			mixedScore = 1.0
		case mixedPct <= 25:
			mixedScore = 0.8
		case mixedPct <= 40:
			mixedScore = 0.6
		default:
			mixedScore = 0.4
		}
	}

	return countScore*0.7 + mixedScore*0.3
}

func priceSignal(snap *model.ProductSnapshot, notes *[]string) float64 {
	if snap.PriceUSD == nil {
		*notes = append(*notes, "no price")
		return 0.3
	}
	price := *snap.PriceUSD
	switch {
	case price == 0:
		*notes = append(*notes, "free product")
		return 0.3
	case price >= 15 && price <= 49:
		return 1.0
	case price >= 10 && price <= 79:
		return 0.85
	case price >= 5 && price < 10:
		return 0.6
	case price < 5:
		return 0.4
	case price <= 149:
		return 0.7
	case price <= 299:
		return 0.5
	default:
		return 0.35
	}
}

func salesSignal(snap *model.ProductSnapshot) float64 {
	if snap.SalesCount == nil {
		return 0.3
	}
	switch sales := *snap.SalesCount; {
	case sales >= 10000:
		return 1.0
	case sales >= 5000:
		return 0.9
	case sales >= 1000:
		return 0.8
	case sales >= 500:
		return 0.7
	case sales >= 100:
		return 0.55
	case sales >= 50:
		return 0.4
	case sales >= 10:
		return 0.3
	default:
		return 0.2
	}
}

func revenueSignal(snap *model.ProductSnapshot) float64 {
	if snap.RevenueUSD == nil {
		return 0.3
	}
	switch revenue := *snap.RevenueUSD; {
	case revenue >= 100000:
		return 1.0
	case revenue >= 50000:
		return 0.9
	case revenue >= 20000:
		return 0.8
	case revenue >= 10000:
		return 0.7
	case revenue >= 5000:
		return 0.6
	case revenue >= 1000:
		return 0.45
	default:
		return 0.3
	}
}
