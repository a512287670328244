package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nichewatch/nichewatch/internal/artifact"
	"github.com/nichewatch/nichewatch/internal/crawl"
	"github.com/nichewatch/nichewatch/internal/platform"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape [category...]",
	Short: "Crawl listing targets and write run artifacts",
	Long: `Crawls the given categories (all known categories when none are given)
and writes one JSON artifact per target without touching the store.
Feed the artifacts to "ingest" later, or use "worker" for the full
scrape-ingest-analyze loop.`,
	RunE: runScrape,
}

func init() {
	f := scrapeCmd.Flags()
	f.String("platform", "gumroad", "platform to crawl (gumroad, whop)")
	f.String("output", "artifacts", "directory for run artifacts")

	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	platformSlug, _ := cmd.Flags().GetString("platform")
	outputDir, _ := cmd.Flags().GetString("output")

	categories := args
	if len(categories) == 0 {
		categories = platform.AllCategorySlugs()
	}

	p, ctrl, cleanup, err := initCrawlPipeline(ctx, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	var written int
	for ci, category := range categories {
		if ci > 0 {
			if err := ctrl.WaitWithJitter(ctx, ctrl.CategoryDelay()); err != nil {
				return eris.Wrap(err, "scrape: cancelled")
			}
		}
		for ti, target := range platform.Targets(platformSlug, category) {
			if ti > 0 {
				if err := ctrl.WaitWithJitter(ctx, ctrl.SubcategoryDelay()); err != nil {
					return eris.Wrap(err, "scrape: cancelled")
				}
			}

			res, err := p.ScrapeTarget(ctx, target)
			if err != nil {
				return eris.Wrapf(err, "scrape: %s/%s", category, target.Subcategory)
			}
			if res.Aborted || res.ZeroProducts {
				continue
			}

			path := filepath.Join(outputDir, artifactName(target))
			art := &artifact.Artifact{
				RunMeta: artifact.RunMeta{
					Platform:    target.Platform,
					Category:    target.Category,
					Subcategory: target.Subcategory,
					SourceURL:   target.URL,
					StartedAt:   time.Now().UTC(),
				},
				Products: res.Products,
			}
			if err := artifact.Write(path, art); err != nil {
				return err
			}
			written++
			fmt.Printf("wrote %s (%d products)\n", path, len(res.Products))
		}
	}

	zap.L().Info("scrape complete",
		zap.String("platform", platformSlug),
		zap.Int("artifacts", written),
	)
	return nil
}

func artifactName(target crawl.Target) string {
	name := target.Platform + "-" + target.Category
	if target.Subcategory != "" {
		name += "-" + target.Subcategory
	}
	return name + ".json"
}
