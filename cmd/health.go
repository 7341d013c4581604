package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/family-events/internal/monitoring"
	"github.com/sells-group/family-events/internal/source"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check source health and exit non-zero when alerts fire",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		registry := source.NewDefaultRegistry(source.Env{}, sourceConfig(cfg.Sources))
		checker := newChecker(st, registry)
		snap, alerts, err := checker.Check(ctx)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(map[string]any{"sources": snap.Sources, "alerts": alerts}); err != nil {
				return err
			}
		} else {
			formatHealth(os.Stdout, snap, alerts)
		}

		if notify, _ := cmd.Flags().GetBool("notify"); notify {
			monitoring.NewAlerter(cfg.Monitoring).SendAlerts(ctx, alerts)
		}
		if len(alerts) > 0 {
			return eris.Errorf("%d alert(s) firing", len(alerts))
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().Bool("json", false, "print the snapshot and alerts as JSON")
	healthCmd.Flags().Bool("notify", false, "also send alerts to the configured webhook")
	rootCmd.AddCommand(healthCmd)
}

// formatHealth writes a per-source health table followed by any alerts.
func formatHealth(out io.Writer, snap *monitoring.Snapshot, alerts []monitoring.Alert) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tLAST RUN\tLAST SUCCESS\tPRODUCED\tFAILURES\tZERO STREAK")
	for _, h := range snap.Sources {
		last, success := "never", "never"
		if h.LastRun != nil {
			last = string(h.LastRun.Status)
		}
		if h.LastSuccess != nil {
			success = snap.CollectedAt.Sub(*h.LastSuccess).Round(time.Minute).String() + " ago"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
			h.Source, last, success, h.LastProduced, h.ConsecutiveFailures, h.ZeroStreak)
	}
	_ = w.Flush()

	if len(alerts) == 0 {
		_, _ = fmt.Fprintln(out, "\nAll sources healthy.")
		return
	}
	_, _ = fmt.Fprintln(out, "\nAlerts:")
	for _, a := range alerts {
		_, _ = fmt.Fprintf(out, "  [%s] %s: %s\n", a.Severity, a.Type, a.Message)
	}
}
