package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nichewatch/nichewatch/internal/platform"
)

var workerCmd = &cobra.Command{
	Use:   "worker [category...]",
	Short: "Run the full scrape-ingest-analyze loop",
	Long: `Walks the category tree strictly serially: each target is crawled with
rate-controlled retries, ingested as a run, diffed against the previous
run of the same scope, scored and alert-checked. The worker stops with
a non-zero exit after too many consecutive target failures.`,
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().String("platform", "gumroad", "platform to crawl (gumroad, whop)")

	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	platformSlug, _ := cmd.Flags().GetString("platform")

	categories := args
	if len(categories) == 0 {
		categories = platform.AllCategorySlugs()
	}

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	p, _, cleanup, err := initCrawlPipeline(ctx, st)
	if err != nil {
		return err
	}
	defer cleanup()

	zap.L().Info("worker starting",
		zap.String("platform", platformSlug),
		zap.Strings("categories", categories),
	)
	return p.RunWorker(ctx, platformSlug, categories)
}
