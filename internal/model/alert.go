package model

import "time"

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertNewEntrant    AlertType = "new_entrant"
	AlertVelocitySpike AlertType = "velocity_spike"
	AlertPricingMove   AlertType = "pricing_move"
)

// Alert is an append-only event flagged during analysis. A single product
// may emit several alert types in the same pass; nothing deduplicates
// alerts against prior runs.
type Alert struct {
	Type      AlertType      `json:"type"`
	Platform  string         `json:"platform"`
	ProductID string         `json:"product_id"`
	RunID     string         `json:"run_id"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
