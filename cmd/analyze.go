package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nichewatch/nichewatch/internal/model"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <run-id>",
	Short: "Diff, score and alert-check an ingested run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		p := initAnalysisPipeline(st)
		result, err := p.Analyze(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("run %s analyzed\n", truncateID(result.Run.ID))
		fmt.Printf("  snapshots:      %d\n", result.Run.TotalProducts)
		fmt.Printf("  diffs:          %d (%d first observations)\n", len(result.Diffs), countFirstObservations(result.Diffs))
		fmt.Printf("  opportunities:  %d\n", len(result.Opportunities))
		fmt.Printf("  alerts:         %d\n", len(result.Alerts))
		fmt.Printf("  hours since prev: %.1f\n", result.HoursSincePrevious)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func countFirstObservations(diffs []model.ProductDiff) int {
	var n int
	for i := range diffs {
		if diffs[i].FirstObservation() {
			n++
		}
	}
	return n
}
