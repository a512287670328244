package model

import "time"

// RunStatus represents the current state of a crawl+analysis run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run groups one bounded crawl+analysis pass over a scope.
type Run struct {
	ID          string     `json:"id"`
	Platform    string     `json:"platform"`
	Category    string     `json:"category"`
	Subcategory string     `json:"subcategory,omitempty"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	TotalProducts int `json:"total_products"`
	TotalAlerts   int `json:"total_alerts"`
}
