package main

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/family-events/internal/catalog"
)

var showCmd = &cobra.Command{
	Use:   "show <event-id>",
	Short: "Print one catalog event as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, _, err := initCatalog()
		if err != nil {
			return err
		}
		cat, err := catalog.Open(cmd.Context(), files)
		if err != nil {
			return err
		}

		e, err := cat.FindByID(args[0])
		if errors.Is(err, catalog.ErrNotFound) {
			return eris.Errorf("event %q not found", args[0])
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(e)
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
