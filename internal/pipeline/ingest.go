package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nichewatch/nichewatch/internal/artifact"
	"github.com/nichewatch/nichewatch/internal/model"
	"github.com/nichewatch/nichewatch/internal/store"
)

// IngestProducts opens a run for the scope and persists one immutable
// snapshot per product. Products that cannot be snapshotted (no stable
// product id, hash failure) are skipped with a warning rather than
// sinking the batch.
func (p *Pipeline) IngestProducts(ctx context.Context, scope store.RunScope, products []model.Product) (*model.Run, int, error) {
	run, err := p.store.StartRun(ctx, scope)
	if err != nil {
		return nil, 0, eris.Wrap(err, "pipeline: start run")
	}

	snapshots := make([]model.ProductSnapshot, 0, len(products))
	for i := range products {
		snap, snapErr := model.SnapshotFromProduct(products[i], run.ID)
		if snapErr != nil || snap.ProductID == "" {
			zap.L().Warn("pipeline: skipping product without stable snapshot",
				zap.String("url", products[i].URL),
				zap.Error(snapErr),
			)
			continue
		}
		snapshots = append(snapshots, *snap)
	}

	if len(snapshots) > 0 {
		if err := p.store.InsertSnapshots(ctx, snapshots); err != nil {
			return nil, 0, eris.Wrap(err, "pipeline: insert snapshots")
		}
	}

	zap.L().Info("pipeline: run ingested",
		zap.String("run_id", run.ID),
		zap.String("platform", scope.Platform),
		zap.String("category", scope.Category),
		zap.Int("snapshots", len(snapshots)),
	)
	return run, len(snapshots), nil
}

// IngestArtifact loads a run artifact written by an earlier scrape and
// ingests its products.
func (p *Pipeline) IngestArtifact(ctx context.Context, art *artifact.Artifact) (*model.Run, int, error) {
	scope := store.RunScope{
		Platform:    art.RunMeta.Platform,
		Category:    art.RunMeta.Category,
		Subcategory: art.RunMeta.Subcategory,
	}
	if scope.Platform == "" && len(art.Products) > 0 {
		scope.Platform = art.Products[0].Platform
		scope.Category = art.Products[0].Category
		scope.Subcategory = art.Products[0].Subcategory
	}
	return p.IngestProducts(ctx, scope, art.Products)
}
