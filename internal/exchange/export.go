package exchange

import (
	"io"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/family-events/internal/model"
)

// Format names an export format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatICS  Format = "ics"
)

// ParseFormat converts a string into a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatXLSX, FormatICS:
		return f, nil
	}
	return "", eris.Errorf("exchange: unknown format %q (valid: xlsx, ics)", s)
}

var sheetHeader = []string{
	"ID", "Title", "Type", "Start", "End", "Schedule", "Venue", "City",
	"Activities", "Ages", "Cost", "Per", "Source", "URL",
}

// WriteXLSX writes events as one spreadsheet row each.
func WriteXLSX(w io.Writer, events []model.Event) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Events")
	if err != nil {
		return eris.Wrap(err, "exchange: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range sheetHeader {
		header.AddCell().SetString(h)
	}

	for _, e := range events {
		row := sheet.AddRow()
		var start, end, schedule string
		if s, ok := e.Timing.Start(); ok {
			start = s.String()
		}
		if t, ok := e.Timing.End(); ok {
			end = t.String()
		}
		if s, ok := e.Timing.Schedule(); ok {
			schedule = describeSchedule(s)
		}
		activities := make([]string, len(e.ActivityTypes))
		for i, a := range e.ActivityTypes {
			activities[i] = a.Label()
		}

		for _, v := range []string{
			e.ID, e.Title, string(e.Timing.Kind()), start, end, schedule,
			e.Location.Venue, string(e.Location.City), strings.Join(activities, ", "),
			strconv.Itoa(e.AgeRange.Min) + "-" + strconv.Itoa(e.AgeRange.Max),
		} {
			row.AddCell().SetString(v)
		}
		row.AddCell().SetFloat(e.Cost.Effective())
		for _, v := range []string{string(e.Cost.Per), string(e.Source), e.SourceURL} {
			row.AddCell().SetString(v)
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "exchange: write xlsx")
	}
	return nil
}

func describeSchedule(s model.Schedule) string {
	days := make([]string, len(s.DaysOfWeek))
	for i, d := range s.DaysOfWeek {
		days[i] = d.String()[:3]
	}
	out := strings.Join(days, "/")
	if s.Hours.Open != "" {
		out = strings.TrimSpace(out + " " + s.Hours.Open + "-" + s.Hours.Close)
	}
	return out
}

// ICSOptions tunes calendar export.
type ICSOptions struct {
	// Location is the zone the catalog's wall-clock times are in.
	Location *time.Location
	// Stamp is written as DTSTAMP on every event.
	Stamp time.Time
}

// WriteICS writes one-time events as a calendar feed. Recurring venues have
// no dated occurrence and are left out; the count of written events is
// returned.
func WriteICS(w io.Writer, events []model.Event, opts ICSOptions) (int, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//sells-group//family-events//EN")

	n := 0
	for _, e := range events {
		start, ok := e.Timing.Start()
		if !ok {
			continue
		}
		ev := cal.AddEvent(e.ID + "@family-events")
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(wallClock(start, loc))
		if end, ok := e.Timing.End(); ok {
			ev.SetEndAt(wallClock(end, loc))
		}
		ev.SetSummary(e.Title)
		if e.Description != "" {
			ev.SetDescription(e.Description)
		}
		if where := venueLine(e.Location); where != "" {
			ev.SetLocation(where)
		}
		if e.SourceURL != "" {
			ev.SetURL(e.SourceURL)
		}
		if len(e.ActivityTypes) > 0 {
			cats := make([]string, len(e.ActivityTypes))
			for i, a := range e.ActivityTypes {
				cats[i] = string(a)
			}
			ev.SetProperty(ics.ComponentPropertyCategories, strings.Join(cats, ","))
		}
		n++
	}

	if _, err := io.WriteString(w, cal.Serialize()); err != nil {
		return 0, eris.Wrap(err, "exchange: write ics")
	}
	return n, nil
}

// wallClock places a floating catalog time in loc.
func wallClock(ts model.Timestamp, loc *time.Location) time.Time {
	y, m, d := ts.Date()
	return time.Date(y, m, d, ts.Hour(), ts.Minute(), ts.Second(), 0, loc)
}

func venueLine(l model.Location) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{l.Venue, l.Address, string(l.City)} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
