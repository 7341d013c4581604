package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/family-events/internal/model"
	"github.com/sells-group/family-events/internal/pipeline"
)

var refreshAll bool

var refreshCmd = &cobra.Command{
	Use:   "refresh [source...]",
	Short: "Fetch sources and merge them into the catalog",
	Long:  "Fetches each named source (or every enabled one with --all) and replaces its partition of the catalog. A failing source leaves the catalog untouched.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if len(args) == 0 && !refreshAll {
			return eris.New("name at least one source or pass --all")
		}
		names := make([]model.Source, 0, len(args))
		for _, a := range args {
			src, err := model.ParseSource(a)
			if err != nil {
				return err
			}
			names = append(names, src)
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var reports []*pipeline.Report
		if len(names) == 1 {
			rep, err := env.Engine.RefreshSource(ctx, names[0])
			if rep != nil {
				reports = append(reports, rep)
			}
			formatReports(os.Stdout, reports)
			return err
		}
		reports, err = env.Engine.RefreshAll(ctx, names)
		formatReports(os.Stdout, reports)
		return err
	},
}

func init() {
	refreshCmd.Flags().BoolVar(&refreshAll, "all", false, "refresh every enabled source")
	rootCmd.AddCommand(refreshCmd)
}

// formatReports writes one line per run report to w.
func formatReports(out io.Writer, reports []*pipeline.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tSTATUS\tCANDIDATES\tPRODUCED\tSKIPPED\tEXCLUDED\tRETAINED\tTOTAL\tELAPSED")
	for _, r := range reports {
		if r == nil {
			continue
		}
		status := string(model.RunStatusComplete)
		if r.Err != nil {
			status = string(model.RunStatusFailed)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.Source, status,
			r.Counts.Candidates, r.Counts.Produced, r.Counts.Skipped,
			r.Counts.Excluded, r.Counts.Retained, r.Counts.Total,
			r.Elapsed.Round(time.Millisecond),
		)
	}
	_ = w.Flush()
	for _, r := range reports {
		if r != nil && r.Err != nil {
			_, _ = fmt.Fprintf(out, "%s: %v\n", r.Source, r.Err)
		}
	}
}
