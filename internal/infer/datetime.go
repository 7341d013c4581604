package infer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/family-events/internal/model"
)

var monthNames = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June, "july": time.July,
	"august": time.August, "september": time.September, "october": time.October,
	"november": time.November, "december": time.December,
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"jun": time.June, "jul": time.July, "aug": time.August, "sep": time.September,
	"sept": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

// ParseMonth resolves a full or abbreviated English month name.
func ParseMonth(s string) (time.Month, bool) {
	m, ok := monthNames[strings.ToLower(strings.TrimSuffix(strings.TrimSpace(s), "."))]
	return m, ok
}

// MonthAbbrev returns the lowercase three-letter month used in ids.
func MonthAbbrev(m time.Month) string {
	return strings.ToLower(m.String()[:3])
}

var (
	isoDateRe = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
	// "September 5-7, 2026", "Sep 26 - Oct 4, 2026", "Oct 3-5, 10-12, 2026"
	rangeDateRe = regexp.MustCompile(`(?i)([a-z]+)\.?\s+(\d{1,2})(?:st|nd|rd|th)?\s*[-–—]\s*(?:([a-z]+)\.?\s+)?(\d{1,2})(?:st|nd|rd|th)?((?:\s*[,&]\s*\d{1,2}\s*[-–—]\s*\d{1,2})*),?\s*(\d{4})`)
	extraRangeRe = regexp.MustCompile(`\d{1,2}\s*[-–—]\s*(\d{1,2})`)
	longDateRe   = regexp.MustCompile(`(?i)([a-z]+)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})`)
	euroDateRe   = regexp.MustCompile(`(?i)(\d{1,2})\s+([a-z]+)\.?,?\s+(\d{4})`)
	shortDateRe  = regexp.MustCompile(`(?i)([a-z]+)\.?\s*(\d{1,2})\b`)
)

// DateRange is a parsed calendar span. End equals Start for single days.
type DateRange struct {
	Start model.Date
	End   model.Date
}

// IsRange reports whether the span covers more than one day.
func (r DateRange) IsRange() bool { return r.End.After(r.Start.Time) }

// ParseDate recognizes the textual date shapes seen across sources. ref
// anchors year-less dates: a month/day that already lies well in the past
// relative to ref is placed in the following year. ok is false when no
// shape matches; callers decide whether that means skipping the record.
func ParseDate(text string, ref time.Time) (DateRange, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return DateRange{}, false
	}

	if m := isoDateRe.FindStringSubmatch(text); m != nil {
		if d, ok := mkDate(atoiOr(m[1]), time.Month(atoiOr(m[2])), atoiOr(m[3])); ok {
			return DateRange{Start: d, End: d}, true
		}
	}

	for _, m := range rangeDateRe.FindAllStringSubmatch(text, -1) {
		startMonth, ok := ParseMonth(m[1])
		if !ok {
			continue
		}
		endMonth := startMonth
		if m[3] != "" {
			if endMonth, ok = ParseMonth(m[3]); !ok {
				continue
			}
		}
		year := atoiOr(m[6])
		endDay := atoiOr(m[4])
		// Extra weekend segments push the end out to the last listed day.
		if extras := extraRangeRe.FindAllStringSubmatch(m[5], -1); len(extras) > 0 {
			endDay = atoiOr(extras[len(extras)-1][1])
		}
		start, ok1 := mkDate(year, startMonth, atoiOr(m[2]))
		endYear := year
		if endMonth < startMonth {
			endYear++
		}
		end, ok2 := mkDate(endYear, endMonth, endDay)
		if ok1 && ok2 && !end.Before(start) {
			return DateRange{Start: start, End: end}, true
		}
	}

	for _, m := range longDateRe.FindAllStringSubmatch(text, -1) {
		if month, ok := ParseMonth(m[1]); ok {
			if d, ok := mkDate(atoiOr(m[3]), month, atoiOr(m[2])); ok {
				return DateRange{Start: d, End: d}, true
			}
		}
	}

	for _, m := range euroDateRe.FindAllStringSubmatch(text, -1) {
		if month, ok := ParseMonth(m[2]); ok {
			if d, ok := mkDate(atoiOr(m[3]), month, atoiOr(m[1])); ok {
				return DateRange{Start: d, End: d}, true
			}
		}
	}

	for _, m := range shortDateRe.FindAllStringSubmatch(text, -1) {
		if month, ok := ParseMonth(m[1]); ok {
			day := atoiOr(m[2])
			if d, ok := mkDate(ResolveYear(month, day, ref), month, day); ok {
				return DateRange{Start: d, End: d}, true
			}
		}
	}

	return DateRange{}, false
}

// yearRollover is how far in the past a year-less date may lie before it is
// assumed to refer to next year's occurrence.
const yearRollover = 60 * 24 * time.Hour

// ResolveYear picks the year for a month/day printed without one.
func ResolveYear(month time.Month, day int, ref time.Time) int {
	year := ref.Year()
	candidate := time.Date(year, month, day, 0, 0, 0, 0, ref.Location())
	if candidate.Before(ref.Add(-yearRollover)) {
		return year + 1
	}
	return year
}

func mkDate(year int, month time.Month, day int) (model.Date, bool) {
	if year < 1900 || month < time.January || month > time.December || day < 1 || day > 31 {
		return model.Date{}, false
	}
	d := model.NewDate(year, month, day)
	// time.Date normalizes Feb 30 into March; reject it.
	if d.Day() != day || d.Month() != month {
		return model.Date{}, false
	}
	return d, true
}

func atoiOr(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return -1
	}
	return n
}

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// String renders the clock as HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Plus adds d, wrapping past midnight.
func (c Clock) Plus(d time.Duration) Clock {
	mins := (c.Hour*60 + c.Minute + int(d/time.Minute)) % (24 * 60)
	if mins < 0 {
		mins += 24 * 60
	}
	return Clock{Hour: mins / 60, Minute: mins % 60}
}

// On combines the clock with a calendar day.
func (c Clock) On(d model.Date) model.Timestamp {
	return model.NewTimestamp(d.Year(), d.Month(), d.Day(), c.Hour, c.Minute)
}

// TimeRange is a parsed start time with an optional end.
type TimeRange struct {
	Start  Clock
	End    Clock
	HasEnd bool
}

var (
	meridiemRange = regexp.MustCompile(`(?i)(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\s*(?:-|–|—|to)\s*(\d{1,2})(?::(\d{2}))?\s*(am|pm)`)
	meridiemOne   = regexp.MustCompile(`(?i)(\d{1,2})(?::(\d{2}))?\s*(am|pm)`)
	bareClock     = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)(?::[0-5]\d)?\b`)
	noonRe        = regexp.MustCompile(`(?i)\bnoon\b`)
	dottedMarker  = strings.NewReplacer("a.m.", "am", "p.m.", "pm", "A.M.", "am", "P.M.", "pm")
)

// ParseTime recognizes "H:MM AM/PM", ranges with shared or separate
// markers ("10-11:30 am", "10am - 2pm") and bare "HH:MM[:SS]".
func ParseTime(text string) (TimeRange, bool) {
	text = dottedMarker.Replace(strings.TrimSpace(text))
	text = noonRe.ReplaceAllString(text, "12:00 pm")
	if text == "" {
		return TimeRange{}, false
	}

	if m := meridiemRange.FindStringSubmatch(text); m != nil {
		endMarker := strings.ToLower(m[6])
		startMarker := strings.ToLower(m[3])
		end, ok2 := to24(m[4], m[5], endMarker)
		if startMarker == "" {
			startMarker = endMarker
		}
		start, ok1 := to24(m[1], m[2], startMarker)
		// "11-1 pm" shares the marker but crosses noon.
		if ok1 && m[3] == "" && start.Hour > end.Hour && endMarker == "pm" {
			start, ok1 = to24(m[1], m[2], "am")
		}
		if ok1 && ok2 {
			return TimeRange{Start: start, End: end, HasEnd: true}, true
		}
	}

	if m := meridiemOne.FindStringSubmatch(text); m != nil {
		if c, ok := to24(m[1], m[2], strings.ToLower(m[3])); ok {
			return TimeRange{Start: c}, true
		}
	}

	if ms := bareClock.FindAllStringSubmatch(text, 2); len(ms) > 0 {
		start := Clock{Hour: atoiOr(ms[0][1]), Minute: atoiOr(ms[0][2])}
		tr := TimeRange{Start: start}
		if len(ms) == 2 {
			tr.End = Clock{Hour: atoiOr(ms[1][1]), Minute: atoiOr(ms[1][2])}
			tr.HasEnd = true
		}
		return tr, true
	}

	return TimeRange{}, false
}

func to24(hour, minute, marker string) (Clock, bool) {
	h := atoiOr(hour)
	mins := 0
	if minute != "" {
		mins = atoiOr(minute)
	}
	if h < 0 || mins < 0 || mins > 59 {
		return Clock{}, false
	}
	switch marker {
	case "am":
		if h < 1 || h > 12 {
			return Clock{}, false
		}
		if h == 12 {
			h = 0
		}
	case "pm":
		if h < 1 || h > 12 {
			return Clock{}, false
		}
		if h != 12 {
			h += 12
		}
	default:
		if h > 23 {
			return Clock{}, false
		}
	}
	return Clock{Hour: h, Minute: mins}, true
}
