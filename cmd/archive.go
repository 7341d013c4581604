package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Move past one-time events from the catalog to the archive",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		rep, err := env.Engine.Archive(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Archived %d events, %d remain in the catalog.\n", rep.Counts.Archived, rep.Counts.Total)
		for _, id := range rep.Moved {
			fmt.Fprintf(os.Stdout, "  %s\n", id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(archiveCmd)
}
