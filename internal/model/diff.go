package model

// ProductDiff holds the deltas between a snapshot and the most recent prior
// snapshot of the same (platform, product_id). PreviousRunID is empty for a
// product's first observation, in which case every delta is nil.
type ProductDiff struct {
	Platform      string `json:"platform"`
	ProductID     string `json:"product_id"`
	RunID         string `json:"run_id"`
	PreviousRunID string `json:"previous_run_id,omitempty"`

	PriceDelta       *float64 `json:"price_delta,omitempty"`
	RatingCountDelta *int     `json:"rating_count_delta,omitempty"`
	SalesCountDelta  *int     `json:"sales_count_delta,omitempty"`
	RevenueDelta     *float64 `json:"revenue_delta,omitempty"`

	RawSourceChanged bool `json:"raw_source_changed"`
}

// FirstObservation reports whether this diff represents a product with no
// prior snapshot.
func (d *ProductDiff) FirstObservation() bool {
	return d.PreviousRunID == ""
}
