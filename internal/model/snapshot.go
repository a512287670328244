package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// ProductSnapshot is one immutable observation of a product within a run.
// Identity is (platform, product_id, run_id). ID is the store-assigned
// insertion sequence, used as the tiebreak when two snapshots share a
// scraped_at timestamp.
type ProductSnapshot struct {
	ID        int64  `json:"id,omitempty"`
	Platform  string `json:"platform"`
	ProductID string `json:"product_id"`
	RunID     string `json:"run_id"`

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

	Hash string `json:"hash"`
}

// hashExcludedFields are left out of the content hash: the hash itself,
// store bookkeeping, and the capture timestamp. Two snapshots of the same
// unchanged listing hash identically even when scraped at different times.
var hashExcludedFields = []string{"hash", "id", "run_id", "scraped_at"}

// ComputeHash returns the deterministic content hash of the snapshot's
// normalized fields: sorted-key JSON of everything except the excluded
// bookkeeping fields, digested with SHA-256.
func (s *ProductSnapshot) ComputeHash() (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", eris.Wrap(err, "model: marshal snapshot")
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", eris.Wrap(err, "model: unmarshal snapshot fields")
	}
	for _, k := range hashExcludedFields {
		delete(fields, k)
	}
	canonical, err := json.Marshal(fields)
	if err != nil {
		return "", eris.Wrap(err, "model: marshal canonical fields")
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// SnapshotFromProduct builds a hashed snapshot from a crawled product.
func SnapshotFromProduct(p Product, runID string) (*ProductSnapshot, error) {
	snap := &ProductSnapshot{
		Platform:          p.Platform,
		ProductID:         ProductIDFromURL(p.URL),
		RunID:             runID,
		Category:          p.Category,
		Subcategory:       p.Subcategory,
		Title:             p.Title,
		Creator:           p.Creator,
		URL:               p.URL,
		PriceUSD:          p.PriceUSD,
		PriceOriginal:     p.PriceOriginal,
		Currency:          p.Currency,
		IsPWYW:            p.IsPWYW,
		RatingAvg:         p.RatingAvg,
		RatingCount:       p.RatingCount,
		RatingBreakdown:   p.RatingBreakdown,
		SalesCount:        p.SalesCount,
		RevenueUSD:        p.RevenueUSD,
		RevenueConfidence: p.RevenueConfidence,
		Description:       p.Description,
		ScrapedAt:         p.ScrapedAt,
	}
	hash, err := snap.ComputeHash()
	if err != nil {
		return nil, err
	}
	snap.Hash = hash
	return snap, nil
}
