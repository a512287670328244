package model

import (
	"net/url"
	"strings"
	"time"
)

// Confidence grades how much evidence backs a derived number.
type Confidence string

const (
	ConfidenceHigh Confidence = "high"
	ConfidenceMed  Confidence = "med"
	ConfidenceLow  Confidence = "low"
)

// Downgrade drops the tier by one step. Low is the floor.
func (c Confidence) Downgrade() Confidence {
	switch c {
	case ConfidenceHigh:
		return ConfidenceMed
	case ConfidenceMed:
		return ConfidenceLow
	default:
		return ConfidenceLow
	}
}

// Product is one normalized listing captured during a crawl pass.
// It is ephemeral; ingestion converts it into an immutable ProductSnapshot.
type Product struct {
	Platform    string `json:"platform"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory,omitempty"`
	Title       string `json:"title"`
	Creator     string `json:"creator,omitempty"`
	URL         string `json:"url"`

	PriceUSD      *float64 `json:"price_usd,omitempty"`
	PriceOriginal string   `json:"price_original,omitempty"`
	Currency      string   `json:"currency,omitempty"`
	IsPWYW        bool     `json:"is_pwyw,omitempty"`

	RatingAvg       *float64           `json:"rating_avg,omitempty"`
	RatingCount     int                `json:"rating_count"`
	RatingBreakdown map[string]float64 `json:"rating_breakdown,omitempty"`

	SalesCount        *int       `json:"sales_count,omitempty"`
	RevenueUSD        *float64   `json:"revenue_usd,omitempty"`
	RevenueConfidence Confidence `json:"revenue_confidence,omitempty"`

	Description string    `json:"description,omitempty"`
	ScrapedAt   time.Time `json:"scraped_at"`
}

// ProductIDFromURL derives a stable listing identifier from its URL:
// the last non-empty path segment. Returns "" when the URL has no path.
func ProductIDFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		rawURL = strings.SplitN(rawURL, "?", 2)[0]
		segs := strings.Split(strings.Trim(rawURL, "/"), "/")
		if len(segs) == 0 {
			return ""
		}
		return segs[len(segs)-1]
	}
	segs := strings.Split(u.Path, "/")
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i] != "" {
			return segs[i]
		}
	}
	return ""
}
