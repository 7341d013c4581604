package main

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/family-events/internal/catalog"
	"github.com/sells-group/family-events/internal/exchange"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the catalog as a spreadsheet or calendar feed",
	RunE: func(cmd *cobra.Command, _ []string) error {
		formatFlag, _ := cmd.Flags().GetString("format")
		outPath, _ := cmd.Flags().GetString("out")

		format, err := exchange.ParseFormat(formatFlag)
		if err != nil {
			return err
		}
		files, loc, err := initCatalog()
		if err != nil {
			return err
		}
		cat, err := catalog.Open(cmd.Context(), files)
		if err != nil {
			return err
		}

		out := os.Stdout
		if outPath != "" && outPath != "-" {
			f, err := os.Create(outPath)
			if err != nil {
				return eris.Wrapf(err, "create %s", outPath)
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		written := cat.Len()
		switch format {
		case exchange.FormatXLSX:
			err = exchange.WriteXLSX(out, cat.ListAll())
		case exchange.FormatICS:
			written, err = exchange.WriteICS(out, cat.ListAll(), exchange.ICSOptions{Location: loc, Stamp: time.Now()})
		}
		if err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("format", string(format)),
			zap.Int("events", written),
			zap.String("out", outPath),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("format", "xlsx", "output format: xlsx or ics")
	exportCmd.Flags().StringP("out", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(exportCmd)
}
