package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nichewatch/nichewatch/internal/alerting"
	"github.com/nichewatch/nichewatch/internal/model"
	"github.com/nichewatch/nichewatch/internal/scoring"
	"github.com/nichewatch/nichewatch/internal/store"
)

// AnalyzeResult is everything one analysis pass derived from a run.
type AnalyzeResult struct {
	Run                *model.Run
	Diffs              []model.ProductDiff
	Opportunities      []model.Opportunity
	Alerts             []model.Alert
	HoursSincePrevious float64
}

// Analyze derives diffs, opportunities and alerts for an ingested run,
// persists them, and completes the run. A mid-pass failure marks the run
// failed before returning. Alert delivery happens after the run is
// complete and never fails the pass.
func (p *Pipeline) Analyze(ctx context.Context, runID string) (*AnalyzeResult, error) {
	result, err := p.analyze(ctx, runID)
	if err != nil {
		if failErr := p.store.FailRun(ctx, runID); failErr != nil {
			zap.L().Warn("pipeline: failed to mark run failed",
				zap.String("run_id", runID),
				zap.Error(failErr),
			)
		}
		return nil, err
	}

	if sent := p.notifier.Send(ctx, runID, result.Alerts, result.Opportunities); sent > 0 {
		zap.L().Info("pipeline: alerts delivered",
			zap.String("run_id", runID),
			zap.Int("sent", sent),
		)
	}
	return result, nil
}

func (p *Pipeline) analyze(ctx context.Context, runID string) (*AnalyzeResult, error) {
	run, err := p.store.GetRun(ctx, runID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load run")
	}

	previous, err := p.store.PreviousRun(ctx, run)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load previous run")
	}
	hours := scoring.HoursBetweenRuns(run, previous)

	snapshots, err := p.store.GetSnapshots(ctx, runID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load snapshots")
	}

	diffs, err := p.store.ComputeDiffs(ctx, runID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: compute diffs")
	}

	corpus, err := p.store.RecentTitles(ctx, run.Platform, run.Category, corpusLimit)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load title corpus")
	}

	opportunities := p.engine.Generate(snapshots, diffs, corpus, hours, p.now().UTC())
	if len(opportunities) > 0 {
		if err := p.store.UpsertOpportunities(ctx, opportunities); err != nil {
			return nil, eris.Wrap(err, "pipeline: upsert opportunities")
		}
	}

	previousRunID := ""
	if previous != nil {
		previousRunID = previous.ID
	}
	alerts := alerting.Detect(p.cfg.Alerts, previousRunID, snapshots, diffs, p.now().UTC())
	if len(alerts) > 0 {
		if err := p.store.InsertAlerts(ctx, alerts); err != nil {
			return nil, eris.Wrap(err, "pipeline: insert alerts")
		}
	}

	totals := store.RunTotals{Products: len(snapshots), Alerts: len(alerts)}
	if err := p.store.CompleteRun(ctx, runID, totals); err != nil {
		return nil, eris.Wrap(err, "pipeline: complete run")
	}
	run.Status = model.RunStatusComplete
	run.TotalProducts = totals.Products
	run.TotalAlerts = totals.Alerts

	zap.L().Info("pipeline: run analyzed",
		zap.String("run_id", runID),
		zap.Int("snapshots", len(snapshots)),
		zap.Int("opportunities", len(opportunities)),
		zap.Int("alerts", len(alerts)),
		zap.Float64("hours_since_previous", hours),
	)

	return &AnalyzeResult{
		Run:                run,
		Diffs:              diffs,
		Opportunities:      opportunities,
		Alerts:             alerts,
		HoursSincePrevious: hours,
	}, nil
}
