package model

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// TimestampLayout is the wire layout for event times. Times are floating
// wall-clock values in the catalog's local time zone; no offset is written.
const TimestampLayout = "2006-01-02T15:04:05"

// DateLayout is the wire layout for calendar dates.
const DateLayout = "2006-01-02"

var timestampLayouts = []string{
	TimestampLayout,
	"2006-01-02T15:04",
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	DateLayout,
}

// Timestamp is a floating local date-time. The zero value means "unset".
type Timestamp struct {
	time.Time
}

// NewTimestamp builds a Timestamp from wall-clock components.
func NewTimestamp(year int, month time.Month, day, hour, minute int) Timestamp {
	return Timestamp{time.Date(year, month, day, hour, minute, 0, 0, time.UTC)}
}

// ParseTimestamp accepts any of the layouts older catalogs were written with.
func ParseTimestamp(s string) (Timestamp, error) {
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			// Drop any offset: only the wall clock is meaningful.
			y, m, d := t.Date()
			return Timestamp{time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, time.UTC)}, nil
		}
	}
	return Timestamp{}, eris.Errorf("model: unparseable timestamp %q", s)
}

// Day returns the calendar day of the timestamp.
func (t Timestamp) Day() Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// String formats the timestamp in wire layout.
func (t Timestamp) String() string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimestampLayout)
}

// Add returns the timestamp shifted by d.
func (t Timestamp) Add(d time.Duration) Timestamp {
	return Timestamp{t.Time.Add(d)}
}

// Before reports whether t is strictly before u.
func (t Timestamp) Before(u Timestamp) bool {
	return t.Time.Before(u.Time)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return eris.Wrap(err, "model: timestamp")
	}
	if s == "" {
		*t = Timestamp{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Date is a calendar day without time of day.
type Date struct {
	time.Time
}

// NewDate builds a Date.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t as observed in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// String formats the date in wire layout.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Before reports whether d is a strictly earlier day than e.
func (d Date) Before(e Date) bool {
	return d.Time.Before(e.Time)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return eris.Wrap(err, "model: date")
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return eris.Wrapf(err, "model: unparseable date %q", s)
	}
	*d = Date{t}
	return nil
}

// Hours holds opening and closing times as "HH:MM".
type Hours struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// Schedule describes a recurring weekly venue.
type Schedule struct {
	DaysOfWeek    []time.Weekday `json:"daysOfWeek,omitempty"`
	Hours         Hours          `json:"hours"`
	SeasonalNotes string         `json:"seasonalNotes,omitempty"`
}

// TimingKind names the timing mode of an event.
type TimingKind string

const (
	TimingOneTime   TimingKind = "one-time"
	TimingRecurring TimingKind = "recurring"
)

// Timing is either a one-time window or a recurring weekly schedule, never both.
// Build it with OneTime or Recurring.
type Timing struct {
	kind     TimingKind
	start    Timestamp
	end      *Timestamp
	schedule *Schedule
}

// OneTime returns a one-time timing. end may be nil.
func OneTime(start Timestamp, end *Timestamp) Timing {
	return Timing{kind: TimingOneTime, start: start, end: end}
}

// Recurring returns a recurring timing.
func Recurring(s Schedule) Timing {
	return Timing{kind: TimingRecurring, schedule: &s}
}

// Kind returns the timing mode.
func (t Timing) Kind() TimingKind { return t.kind }

// IsRecurring reports whether the timing is a weekly schedule.
func (t Timing) IsRecurring() bool { return t.kind == TimingRecurring }

// Start returns the start of a one-time event and false for recurring ones.
func (t Timing) Start() (Timestamp, bool) {
	if t.kind != TimingOneTime {
		return Timestamp{}, false
	}
	return t.start, true
}

// End returns the end of a one-time event when one was recorded.
func (t Timing) End() (Timestamp, bool) {
	if t.kind != TimingOneTime || t.end == nil {
		return Timestamp{}, false
	}
	return *t.end, true
}

// LastDay returns the end day, or the start day when no end is known.
func (t Timing) LastDay() (Date, bool) {
	if end, ok := t.End(); ok {
		return end.Day(), true
	}
	if start, ok := t.Start(); ok {
		return start.Day(), true
	}
	return Date{}, false
}

// Schedule returns the weekly schedule of a recurring event.
func (t Timing) Schedule() (Schedule, bool) {
	if t.kind != TimingRecurring || t.schedule == nil {
		return Schedule{}, false
	}
	return *t.schedule, true
}

// Validate enforces exactly one timing mode.
func (t Timing) Validate() error {
	switch t.kind {
	case TimingOneTime:
		if t.start.IsZero() {
			return eris.New("model: one-time event without start date")
		}
		if t.schedule != nil {
			return eris.New("model: one-time event carries a schedule")
		}
		if t.end != nil && t.end.Before(t.start) {
			return eris.New("model: end date before start date")
		}
	case TimingRecurring:
		if t.schedule == nil {
			return eris.New("model: recurring event without schedule")
		}
		if !t.start.IsZero() || t.end != nil {
			return eris.New("model: recurring event carries dates")
		}
	default:
		return eris.Errorf("model: unknown timing kind %q", t.kind)
	}
	return nil
}
