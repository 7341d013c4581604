package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/family-events/internal/config"
	"github.com/sells-group/family-events/internal/model"
	"github.com/sells-group/family-events/internal/source"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the known sources and how they are configured",
	RunE: func(cmd *cobra.Command, _ []string) error {
		formatSources(os.Stdout, source.NewDefaultRegistry(source.Env{}, source.Config{}), cfg.Sources)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

// formatSources writes every adapter in reg with its configured state.
func formatSources(out io.Writer, reg *source.Registry, sc config.SourcesConfig) {
	settings := map[model.Source]config.SourceConfig{
		model.SourceParks:   sc.Parks,
		model.SourceLibrary: sc.Library,
		model.SourceMuseum:  sc.Museum,
		model.SourceFarm:    sc.Farm,
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tENABLED\tKEEPS FUTURE\tURL")
	for _, a := range reg.All() {
		s := settings[a.Source()]
		url := s.URL
		if url == "" {
			url = "(default)"
		}
		_, _ = fmt.Fprintf(w, "%s\t%t\t%t\t%s\n", a.Source(), s.Enabled, a.RetainFuture(), url)
	}
	_ = w.Flush()
}
