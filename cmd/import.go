package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/family-events/internal/exchange"
)

var importPath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Replace the hand-curated records with a YAML file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(importPath)
		if err != nil {
			return eris.Wrapf(err, "read %s", importPath)
		}
		events, err := exchange.ParseManual(data)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		rep, err := env.Engine.Import(ctx, events)
		if err != nil {
			return eris.Wrap(err, "import")
		}

		zap.L().Info("import complete",
			zap.Int("records", rep.Counts.Produced),
			zap.Int("conflicts", rep.Counts.Conflicts),
			zap.String("file", importPath),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importPath, "file", "", "path to YAML records file (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
