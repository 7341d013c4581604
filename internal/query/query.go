// Package query filters and orders catalog events the way the listing views
// and the read API ask for them.
package query

import (
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/family-events/internal/model"
)

// DatePreset names a date window relative to today.
type DatePreset string

const (
	AnyDate     DatePreset = "any"
	ThisWeekend DatePreset = "this-weekend"
	ThisWeek    DatePreset = "this-week"
	ThisMonth   DatePreset = "this-month"
	NextMonth   DatePreset = "next-month"
)

// SortOption names a result order.
type SortOption string

const (
	SortDateAsc  SortOption = "date-asc"
	SortDateDesc SortOption = "date-desc"
	SortName     SortOption = "name"
	SortCost     SortOption = "cost"
)

// ParseDatePreset converts a string into a DatePreset. Empty means any date.
func ParseDatePreset(s string) (DatePreset, error) {
	switch p := DatePreset(s); p {
	case "":
		return AnyDate, nil
	case AnyDate, ThisWeekend, ThisWeek, ThisMonth, NextMonth:
		return p, nil
	}
	return "", eris.Errorf("query: unknown date preset %q (valid: any, this-weekend, this-week, this-month, next-month)", s)
}

// ParseSort converts a string into a SortOption. Empty means date-asc.
func ParseSort(s string) (SortOption, error) {
	switch o := SortOption(s); o {
	case "":
		return SortDateAsc, nil
	case SortDateAsc, SortDateDesc, SortName, SortCost:
		return o, nil
	}
	return "", eris.Errorf("query: unknown sort %q (valid: date-asc, date-desc, name, cost)", s)
}

// Filter selects events. Zero-valued fields do not constrain.
type Filter struct {
	// ActivityTypes matches events carrying any of the listed tags.
	ActivityTypes []model.ActivityType
	Cities        []model.City
	// MaxCost of 0 means free only. Free events always pass a cost limit.
	MaxCost *float64
	Ages    *model.AgeRange
	Date    DatePreset
	Sort    SortOption
}

// Active counts the constraints set on f.
func (f Filter) Active() int {
	n := 0
	if len(f.ActivityTypes) > 0 {
		n++
	}
	if len(f.Cities) > 0 {
		n++
	}
	if f.MaxCost != nil {
		n++
	}
	if f.Ages != nil {
		n++
	}
	if f.Date != "" && f.Date != AnyDate {
		n++
	}
	return n
}

// Window is an inclusive range of calendar days.
type Window struct {
	From model.Date
	To   model.Date
}

// WindowFor returns the day range of preset as seen from today. The second
// result is false for AnyDate.
func WindowFor(preset DatePreset, today model.Date) (Window, bool) {
	day := func(offset int) model.Date { return model.Date{Time: today.AddDate(0, 0, offset)} }
	switch preset {
	case ThisWeekend:
		var sat model.Date
		switch wd := today.Weekday(); wd {
		case time.Sunday:
			sat = day(-1)
		default:
			sat = day(int(time.Saturday - wd))
		}
		return Window{From: sat, To: model.Date{Time: sat.AddDate(0, 0, 1)}}, true
	case ThisWeek:
		return Window{From: today, To: day(7 - int(today.Weekday()))}, true
	case ThisMonth:
		y, m, _ := today.Date()
		return Window{From: today, To: model.NewDate(y, m+1, 0)}, true
	case NextMonth:
		y, m, _ := today.Date()
		return Window{From: model.NewDate(y, m+1, 1), To: model.NewDate(y, m+2, 0)}, true
	}
	return Window{}, false
}

// Contains reports whether an event falls in the window. Recurring events
// are always available.
func (w Window) Contains(e model.Event) bool {
	start, ok := e.Timing.Start()
	if !ok {
		return true
	}
	last, _ := e.Timing.LastDay()
	return !w.To.Before(start.Day()) && !last.Before(w.From)
}

// Match reports whether e satisfies every constraint except the date window.
func (f Filter) Match(e model.Event) bool {
	if len(f.ActivityTypes) > 0 && !slices.ContainsFunc(f.ActivityTypes, e.HasActivity) {
		return false
	}
	if len(f.Cities) > 0 && !slices.Contains(f.Cities, e.Location.City) {
		return false
	}
	if f.MaxCost != nil && e.Cost.Effective() > *f.MaxCost {
		return false
	}
	if f.Ages != nil && !e.AgeRange.Overlaps(*f.Ages) {
		return false
	}
	return true
}

// Apply filters events as of today and sorts the result. The input is not
// modified.
func Apply(events []model.Event, f Filter, today model.Date) []model.Event {
	window, dated := WindowFor(f.Date, today)
	out := make([]model.Event, 0, len(events))
	for _, e := range events {
		if !f.Match(e) {
			continue
		}
		if dated && !window.Contains(e) {
			continue
		}
		out = append(out, e)
	}
	Sort(out, f.Sort)
	return out
}

// Sort orders events in place. Ties fall back to the title.
func Sort(events []model.Event, by SortOption) {
	var compare func(a, b model.Event) int
	switch by {
	case SortDateAsc, "":
		compare = func(a, b model.Event) int { return compareStart(a, b, false) }
	case SortDateDesc:
		compare = func(a, b model.Event) int { return compareStart(a, b, true) }
	case SortName:
		compare = func(model.Event, model.Event) int { return 0 }
	case SortCost:
		compare = func(a, b model.Event) int {
			ac, bc := a.Cost.Effective(), b.Cost.Effective()
			switch {
			case ac < bc:
				return -1
			case ac > bc:
				return 1
			}
			return 0
		}
	default:
		return
	}
	sort.SliceStable(events, func(i, j int) bool {
		if c := compare(events[i], events[j]); c != 0 {
			return c < 0
		}
		return compareTitle(events[i].Title, events[j].Title) < 0
	})
}

// compareStart orders undated (recurring) events after dated ones when
// ascending and before them when descending.
func compareStart(a, b model.Event, desc bool) int {
	as, aok := a.Timing.Start()
	bs, bok := b.Timing.Start()
	switch {
	case aok && bok:
		c := as.Compare(bs.Time)
		if desc {
			c = -c
		}
		return c
	case aok == bok:
		return 0
	case aok:
		if desc {
			return 1
		}
		return -1
	default:
		if desc {
			return -1
		}
		return 1
	}
}

func compareTitle(a, b string) int {
	if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}
