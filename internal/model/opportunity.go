package model

import "time"

// Opportunity is the derived ranking record for one snapshot. It is
// recomputed on every analysis pass and is never a source of truth.
type Opportunity struct {
	Platform  string `json:"platform"`
	ProductID string `json:"product_id"`
	RunID     string `json:"run_id"`

	Score             float64 `json:"score"`
	Velocity          float64 `json:"velocity"`
	Copyability       float64 `json:"copyability"`
	Novelty           float64 `json:"novelty"`
	PriceToValue      float64 `json:"price_to_value"`
	SaturationPenalty float64 `json:"saturation_penalty"`

	Confidence Confidence `json:"confidence"`
	Reason     string     `json:"reason"`
	ComputedAt time.Time  `json:"computed_at"`
}
