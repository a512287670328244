package pipeline

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nichewatch/nichewatch/internal/artifact"
	"github.com/nichewatch/nichewatch/internal/crawl"
	"github.com/nichewatch/nichewatch/internal/platform"
	"github.com/nichewatch/nichewatch/internal/store"
)

// ProcessTarget runs the full scrape-ingest-analyze pass for one target.
// Aborted and empty targets return a nil result and no error; they are
// skips, not failures. When an artifact directory is configured the raw
// products are written there before ingestion.
func (p *Pipeline) ProcessTarget(ctx context.Context, target crawl.Target) (*AnalyzeResult, error) {
	scrape, err := p.ScrapeTarget(ctx, target)
	if err != nil {
		return nil, err
	}
	if scrape.Aborted || scrape.ZeroProducts {
		return nil, nil
	}

	if dir := p.cfg.Worker.ArtifactDir; dir != "" {
		art := &artifact.Artifact{
			RunMeta: artifact.RunMeta{
				Platform:    target.Platform,
				Category:    target.Category,
				Subcategory: target.Subcategory,
				SourceURL:   target.URL,
				StartedAt:   p.now().UTC(),
			},
			Products: scrape.Products,
		}
		path := filepath.Join(dir, target.Platform+"-"+targetSlug(target)+".json")
		if err := artifact.Write(path, art); err != nil {
			zap.L().Warn("pipeline: failed to write artifact",
				zap.String("path", path),
				zap.Error(err),
			)
		}
	}

	scope := store.RunScope{
		Platform:    target.Platform,
		Category:    target.Category,
		Subcategory: target.Subcategory,
	}
	run, _, err := p.IngestProducts(ctx, scope, scrape.Products)
	if err != nil {
		return nil, err
	}
	return p.Analyze(ctx, run.ID)
}

func targetSlug(target crawl.Target) string {
	if target.Subcategory == "" {
		return target.Category
	}
	return target.Category + "-" + target.Subcategory
}

// RunWorker walks the category list for one platform strictly serially:
// jittered category delays between categories, subcategory delays between
// targets within one, and a hard stop after too many consecutive target
// failures. Skipped targets (aborts, empties) do not count as failures.
func (p *Pipeline) RunWorker(ctx context.Context, platformSlug string, categories []string) error {
	limit := p.cfg.Worker.ConsecutiveFatalLimit
	if limit <= 0 {
		limit = 5
	}

	fatals := 0
	for ci, category := range categories {
		if ci > 0 {
			if err := p.ctrl.WaitWithJitter(ctx, p.ctrl.CategoryDelay()); err != nil {
				return eris.Wrap(err, "pipeline: worker cancelled")
			}
		}

		targets := platform.Targets(platformSlug, category)
		for ti, target := range targets {
			if ti > 0 {
				if err := p.ctrl.WaitWithJitter(ctx, p.ctrl.SubcategoryDelay()); err != nil {
					return eris.Wrap(err, "pipeline: worker cancelled")
				}
			}

			if _, err := p.ProcessTarget(ctx, target); err != nil {
				if ctx.Err() != nil {
					return eris.Wrap(err, "pipeline: worker cancelled")
				}
				fatals++
				zap.L().Error("pipeline: target failed",
					zap.String("url", target.URL),
					zap.Int("consecutive_failures", fatals),
					zap.Error(err),
				)
				if fatals >= limit {
					return eris.Errorf("pipeline: %d consecutive target failures, stopping worker", fatals)
				}
				continue
			}
			fatals = 0
		}
	}
	return nil
}
