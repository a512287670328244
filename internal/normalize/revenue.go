package normalize

import (
	"github.com/nichewatch/nichewatch/internal/model"
)

// revenueMultiplier is a fixed conservative haircut applied to the naive
// price*sales product (refunds, discounts, bundle pricing).
const revenueMultiplier = 0.85

// EstimateRevenue computes a rough lifetime revenue estimate in USD with a
// confidence tier. Nil when price or sales count is unknown. Confidence
// starts high and is downgraded one tier independently for pay-what-you-want
// or unidentified-currency pricing, and for non-USD currency.
func EstimateRevenue(priceUSD *float64, salesCount *int, isPWYW bool, currency string) (*float64, model.Confidence) {
	if priceUSD == nil || salesCount == nil {
		return nil, model.ConfidenceLow
	}

	estimate := round2(*priceUSD * float64(*salesCount) * revenueMultiplier)

	confidence := model.ConfidenceHigh
	if isPWYW || currency == "" {
		confidence = confidence.Downgrade()
	}
	if currency != "" && currency != "USD" {
		confidence = confidence.Downgrade()
	}

	return &estimate, confidence
}
