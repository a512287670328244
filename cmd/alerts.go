package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/nichewatch/nichewatch/internal/model"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts <run-id>",
	Short: "Show alerts raised by a run",
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

		alerts, err := st.GetAlerts(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "alerts: load")
		}
		if len(alerts) == 0 {
			fmt.Fprintln(os.Stderr, "No alerts found.")
			return nil
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(alerts)
		}

		formatAlerts(os.Stdout, alerts)
		return nil
	},
}

func init() {
	alertsCmd.Flags().Bool("json", false, "emit alerts as JSON")

	rootCmd.AddCommand(alertsCmd)
}

func formatAlerts(out io.Writer, alerts []model.Alert) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TYPE\tPRODUCT\tMESSAGE")

	for _, a := range alerts {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", a.Type, a.ProductID, a.Message)
	}
	_ = w.Flush()
}
