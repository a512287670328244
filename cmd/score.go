package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/nichewatch/nichewatch/internal/export"
	"github.com/nichewatch/nichewatch/internal/model"
	"github.com/nichewatch/nichewatch/internal/scoring"
)

var scoreCmd = &cobra.Command{
	Use:   "score <run-id>",
	Short: "Show scored opportunities for a run",
	Long: `Lists a run's opportunities ranked by score. Use "score trend" to
inspect one product's week-over-week trajectory across runs.`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

var scoreTrendCmd = &cobra.Command{
	Use:   "trend <platform> <product-id>",
	Short: "Score one product's trajectory from its snapshot history",
	Args:  cobra.ExactArgs(2),
	RunE:  runScoreTrend,
}

func init() {
	f := scoreCmd.Flags()
	f.Int("limit", 25, "max number of opportunities to display")
	f.String("format", "table", "output format: table or csv")
	f.String("output", "", "output file path (default: stdout)")

	scoreTrendCmd.Flags().Duration("since", 30*24*time.Hour, "history window (e.g. 168h, 720h)")

	scoreCmd.AddCommand(scoreTrendCmd)
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	limit, _ := cmd.Flags().GetInt("limit")
	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")

	if format != "table" && format != "csv" {
		return eris.Errorf("score: --format must be table or csv (got %q)", format)
	}

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	opportunities, err := st.GetOpportunities(ctx, args[0], limit)
	if err != nil {
		return eris.Wrap(err, "score: load opportunities")
	}
	if len(opportunities) == 0 {
		fmt.Fprintln(os.Stderr, "No opportunities found. Run \"analyze\" first.")
		return nil
	}

	w := os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return eris.Wrapf(err, "score: create output file %s", outputPath)
		}
		defer f.Close() //nolint:errcheck
		w = f
	}

	if format == "csv" {
		return export.OpportunitiesCSV(w, opportunities)
	}
	formatOpportunities(w, opportunities)
	return nil
}

func runScoreTrend(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	since, _ := cmd.Flags().GetDuration("since")

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	history, err := st.SnapshotHistory(ctx, args[0], args[1], time.Now().UTC().Add(-since))
	if err != nil {
		return eris.Wrap(err, "score: load snapshot history")
	}
	if len(history) == 0 {
		fmt.Fprintln(os.Stderr, "No snapshots found in the window.")
		return nil
	}

	latest := history[len(history)-1]
	trend := scoring.TrendFromHistory(history, time.Now().UTC())
	baseline, signals := scoring.LegacyScore(&latest)

	fmt.Printf("%s/%s: %s\n", args[0], args[1], latest.Title)
	fmt.Printf("snapshots:       %d over %s\n", len(history), since)
	fmt.Printf("trend score:     %.1f\n", trend.Score)
	for _, note := range trend.Notes {
		fmt.Printf("  - %s\n", note)
	}
	fmt.Printf("baseline score:  %.1f\n", baseline)
	for _, note := range signals.Notes {
		fmt.Printf("  - %s\n", note)
	}
	return nil
}

func formatOpportunities(out io.Writer, opportunities []model.Opportunity) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SCORE\tPRODUCT\tVEL\tCOPY\tNOV\tP2V\tSAT\tCONF\tREASON")

	for _, o := range opportunities {
		reason := o.Reason
		if len(reason) > 60 {
			reason = reason[:57] + "..."
		}
		_, _ = fmt.Fprintf(w, "%.1f\t%s\t%.0f\t%.0f\t%.0f\t%.0f\t%.0f\t%s\t%s\n",
			o.Score,
			o.ProductID,
			o.Velocity,
			o.Copyability,
			o.Novelty,
			o.PriceToValue,
			o.SaturationPenalty,
			o.Confidence,
			reason,
		)
	}
	_ = w.Flush()
}
