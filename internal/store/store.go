package store

import (
	"context"
	"math"
	"time"

	"github.com/nichewatch/nichewatch/internal/model"
)

// RunScope describes what one run crawls.
type RunScope struct {
	Platform    string `json:"platform"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory,omitempty"`
}

// RunTotals holds the aggregate counters written when a run completes.
type RunTotals struct {
	Products int `json:"products"`
	Alerts   int `json:"alerts"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status   model.RunStatus `json:"status,omitempty"`
	Platform string          `json:"platform,omitempty"`
	Category string          `json:"category,omitempty"`
	Limit    int             `json:"limit,omitempty"`
	Offset   int             `json:"offset,omitempty"`
}

// Store defines the persistence contract for the radar pipeline. The local
// SQLite implementation and the remote Postgres implementation are
// interchangeable behind it.
type Store interface {
	// Runs
	StartRun(ctx context.Context, scope RunScope) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, totals RunTotals) error
	FailRun(ctx context.Context, runID string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	// PreviousRun returns the most recent completed run with the same scope
	// started before the given run, or nil when there is none.
	PreviousRun(ctx context.Context, run *model.Run) (*model.Run, error)

	// Snapshots
	InsertSnapshots(ctx context.Context, snapshots []model.ProductSnapshot) error
	GetSnapshots(ctx context.Context, runID string) ([]model.ProductSnapshot, error)
	// SnapshotHistory returns every snapshot of one product since the given
	// time, oldest first.
	SnapshotHistory(ctx context.Context, platform, productID string, since time.Time) ([]model.ProductSnapshot, error)
	// RecentTitles returns the newest snapshot titles in a category, used as
	// the novelty/saturation corpus.
	RecentTitles(ctx context.Context, platform, category string, limit int) ([]string, error)

	// Derivations
	ComputeDiffs(ctx context.Context, runID string) ([]model.ProductDiff, error)
	UpsertOpportunities(ctx context.Context, opportunities []model.Opportunity) error
	GetOpportunities(ctx context.Context, runID string, limit int) ([]model.Opportunity, error)
	InsertAlerts(ctx context.Context, alerts []model.Alert) error
	GetAlerts(ctx context.Context, runID string) ([]model.Alert, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// NewDiff computes the delta record between a snapshot and its predecessor.
// A nil previous marks the product's first observation: every delta stays
// nil. Float deltas are rounded to 2 decimals.
func NewDiff(current model.ProductSnapshot, previous *model.ProductSnapshot) model.ProductDiff {
	diff := model.ProductDiff{
		Platform:  current.Platform,
		ProductID: current.ProductID,
		RunID:     current.RunID,
	}
	if previous == nil {
		return diff
	}

	diff.PreviousRunID = previous.RunID
	diff.RawSourceChanged = current.Hash != previous.Hash

	ratingDelta := current.RatingCount - previous.RatingCount
	diff.RatingCountDelta = &ratingDelta

	if current.PriceUSD != nil && previous.PriceUSD != nil {
		v := round2(*current.PriceUSD - *previous.PriceUSD)
		diff.PriceDelta = &v
	}
	if current.SalesCount != nil && previous.SalesCount != nil {
		v := *current.SalesCount - *previous.SalesCount
		diff.SalesCountDelta = &v
	}
	if current.RevenueUSD != nil && previous.RevenueUSD != nil {
		v := round2(*current.RevenueUSD - *previous.RevenueUSD)
		diff.RevenueDelta = &v
	}
	return diff
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
