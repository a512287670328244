package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/nichewatch/nichewatch/internal/artifact"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <artifact.json>...",
	Short: "Ingest run artifacts into the store",
	Long: `Reads JSON artifacts written by "scrape" and persists one run with
immutable product snapshots per artifact. With --analyze each run is
diffed, scored and alert-checked immediately after ingestion.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().Bool("analyze", false, "analyze each run after ingesting it")

	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	analyze, _ := cmd.Flags().GetBool("analyze")

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	p := initAnalysisPipeline(st)

	for _, path := range args {
		art, err := artifact.Read(path)
		if err != nil {
			return err
		}

		run, count, err := p.IngestArtifact(ctx, art)
		if err != nil {
			return eris.Wrapf(err, "ingest: %s", path)
		}
		fmt.Printf("ingested %s: run %s, %d snapshots\n", path, truncateID(run.ID), count)

		if analyze {
			result, err := p.Analyze(ctx, run.ID)
			if err != nil {
				return eris.Wrapf(err, "ingest: analyze run %s", run.ID)
			}
			fmt.Printf("analyzed run %s: %d opportunities, %d alerts\n",
				truncateID(run.ID), len(result.Opportunities), len(result.Alerts))
		}
	}
	return nil
}
