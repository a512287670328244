package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/nichewatch/nichewatch/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a run's snapshots and opportunities",
	Long: `Exports one run to CSV (snapshots or opportunities to stdout or a
file) or to a two-sheet XLSX workbook.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	f := exportCmd.Flags()
	f.String("format", "csv", "output format: csv or xlsx")
	f.String("what", "snapshots", "csv payload: snapshots or opportunities")
	f.String("output", "", "output file path (default: stdout for csv, required for xlsx)")
	f.Int("limit", 1000, "max opportunities to include")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	runID := args[0]

	format, _ := cmd.Flags().GetString("format")
	what, _ := cmd.Flags().GetString("what")
	outputPath, _ := cmd.Flags().GetString("output")
	limit, _ := cmd.Flags().GetInt("limit")

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	switch format {
	case "xlsx":
		if outputPath == "" {
			return eris.New("export: --output is required for xlsx")
		}
		snapshots, err := st.GetSnapshots(ctx, runID)
		if err != nil {
			return eris.Wrap(err, "export: load snapshots")
		}
		opportunities, err := st.GetOpportunities(ctx, runID, limit)
		if err != nil {
			return eris.Wrap(err, "export: load opportunities")
		}
		if err := export.RunXLSX(outputPath, snapshots, opportunities); err != nil {
			return err
		}
		fmt.Printf("wrote %s (%d snapshots, %d opportunities)\n", outputPath, len(snapshots), len(opportunities))
		return nil

	case "csv":
		w := os.Stdout
		if outputPath != "" {
			f, err := os.Create(outputPath)
			if err != nil {
				return eris.Wrapf(err, "export: create output file %s", outputPath)
			}
			defer f.Close() //nolint:errcheck
			w = f
		}

		switch what {
		case "snapshots":
			snapshots, err := st.GetSnapshots(ctx, runID)
			if err != nil {
				return eris.Wrap(err, "export: load snapshots")
			}
			return export.SnapshotsCSV(w, snapshots)
		case "opportunities":
			opportunities, err := st.GetOpportunities(ctx, runID, limit)
			if err != nil {
				return eris.Wrap(err, "export: load opportunities")
			}
			return export.OpportunitiesCSV(w, opportunities)
		default:
			return eris.Errorf("export: --what must be snapshots or opportunities (got %q)", what)
		}

	default:
		return eris.Errorf("export: --format must be csv or xlsx (got %q)", format)
	}
}
