package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/family-events/internal/catalog"
	"github.com/sells-group/family-events/internal/model"
	"github.com/sells-group/family-events/internal/query"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog events with optional filters",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		f, err := query.ParseValues(listValues(cmd))
		if err != nil {
			return err
		}

		files, loc, err := initCatalog()
		if err != nil {
			return err
		}
		cat, err := catalog.Open(ctx, files)
		if err != nil {
			return err
		}

		var events []model.Event
		if featured, _ := cmd.Flags().GetInt("featured"); featured > 0 {
			events = cat.Featured(featured)
		} else {
			events = query.Apply(cat.ListAll(), f, model.DateOf(time.Now(), loc))
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			if events == nil {
				events = []model.Event{}
			}
			return enc.Encode(events)
		}
		if len(events) == 0 {
			fmt.Fprintln(os.Stderr, "No events found.")
			return nil
		}
		formatEventsList(os.Stdout, events)
		return nil
	},
}

// listValues gathers the filter flags in the shape the read API accepts.
func listValues(cmd *cobra.Command) url.Values {
	v := url.Values{}
	for flag, param := range map[string]string{
		"activity": query.ParamActivity,
		"city":     query.ParamCity,
		"max-cost": query.ParamMaxCost,
		"min-age":  query.ParamMinAge,
		"max-age":  query.ParamMaxAge,
		"date":     query.ParamDate,
		"sort":     query.ParamSort,
	} {
		if !cmd.Flags().Changed(flag) {
			continue
		}
		if vals, err := cmd.Flags().GetStringSlice(flag); err == nil {
			v[param] = vals
			continue
		}
		val, _ := cmd.Flags().GetString(flag)
		v.Set(param, val)
	}
	return v
}

func init() {
	listCmd.Flags().StringSlice("activity", nil, "activity types to include (any of)")
	listCmd.Flags().StringSlice("city", nil, "cities to include")
	listCmd.Flags().String("max-cost", "", "maximum cost in dollars (0 = free only)")
	listCmd.Flags().String("min-age", "", "youngest child age")
	listCmd.Flags().String("max-age", "", "oldest child age")
	listCmd.Flags().String("date", "any", "date window: any, this-weekend, this-week, this-month, next-month")
	listCmd.Flags().String("sort", "date-asc", "order: date-asc, date-desc, name, cost")
	listCmd.Flags().Int("featured", 0, "show N featured events instead of filtering")
	listCmd.Flags().Bool("json", false, "print events as JSON")
	rootCmd.AddCommand(listCmd)
}

// formatEventsList writes a tabular list of events to w.
func formatEventsList(out io.Writer, events []model.Event) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTITLE\tWHEN\tCITY\tCOST\tAGES\tSOURCE")
	_, _ = fmt.Fprintln(w, "--\t-----\t----\t----\t----\t----\t------")

	for _, e := range events {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d-%d\t%s\n",
			e.ID,
			truncate(e.Title, 40),
			when(e),
			e.Location.City,
			costLabel(e.Cost),
			e.AgeRange.Min, e.AgeRange.Max,
			e.Source,
		)
	}
	_ = w.Flush()
}

func when(e model.Event) string {
	if s, ok := e.Timing.Schedule(); ok {
		days := make([]string, len(s.DaysOfWeek))
		for i, d := range s.DaysOfWeek {
			days[i] = d.String()[:3]
		}
		if len(days) == 0 {
			return "recurring"
		}
		return strings.Join(days, "/")
	}
	start, _ := e.Timing.Start()
	return start.Format("Mon Jan 2 3:04PM")
}

func costLabel(c model.Cost) string {
	if c.IsFree() {
		return "free"
	}
	return "$" + strconv.FormatFloat(c.Amount, 'f', -1, 64) + "/" + string(c.Per)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
