package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nichewatch/nichewatch/internal/monitoring"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize crawl health over a lookback window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		lookback, _ := cmd.Flags().GetInt("lookback-hours")
		snap, err := monitoring.NewCollector(st).Collect(ctx, lookback)
		if err != nil {
			return err
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}

		fmt.Printf("Runs (last %dh):  %d\n", snap.LookbackHours, snap.RunsTotal)
		fmt.Printf("  complete:      %d\n", snap.RunsComplete)
		fmt.Printf("  failed:        %d (%.0f%%)\n", snap.RunsFailed, snap.FailRate*100)
		fmt.Printf("  running:       %d\n", snap.RunsRunning)
		fmt.Printf("Products:        %d\n", snap.TotalProducts)
		fmt.Printf("Alerts:          %d\n", snap.TotalAlerts)
		if snap.AvgDurSecs > 0 {
			fmt.Printf("Avg run:         %.1fs\n", snap.AvgDurSecs)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().Int("lookback-hours", 24, "lookback window in hours")
	statusCmd.Flags().Bool("json", false, "emit the snapshot as JSON")

	rootCmd.AddCommand(statusCmd)
}
