// Package model defines the canonical event record every source is normalized into.
package model

import (
	"bytes"
	"encoding/json"
	"unicode/utf8"

	"github.com/rotisserie/eris"
)

// MaxDescriptionLen bounds descriptions, in characters.
const MaxDescriptionLen = 500

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Location places an event at a venue.
type Location struct {
	Venue       string
	Address     string
	City        City
	Coordinates Coordinates
}

// Event is the canonical catalog record.
type Event struct {
	ID             string
	Title          string
	Description    string
	Timing         Timing
	Location       Location
	ActivityTypes  []ActivityType
	AgeRange       AgeRange
	Cost           Cost
	ExertionRating *int
	ImageURL       string
	ParentHacks    []string
	SourceURL      string
	Source         Source
	LastUpdated    Date
}

// wireEvent is the flat JSON shape consumed by the listing views.
type wireEvent struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Type        TimingKind     `json:"type"`
	StartDate   *Timestamp     `json:"startDate,omitempty"`
	EndDate     *Timestamp     `json:"endDate,omitempty"`
	Schedule    *Schedule      `json:"schedule,omitempty"`
	Venue       string         `json:"venue"`
	Address     string         `json:"address"`
	City        City           `json:"city"`
	Coordinates Coordinates    `json:"coordinates"`
	Activities  []ActivityType `json:"activityTypes"`
	AgeRange    AgeRange       `json:"ageRange"`
	Cost        Cost           `json:"cost"`
	Exertion    *int           `json:"exertionRating,omitempty"`
	// Older catalogs spelled the rating differently; read-only.
	Exhaustion  *int     `json:"exhaustionRating,omitempty"`
	ParentHacks []string `json:"parentHacks,omitempty"`
	SourceURL   string   `json:"sourceUrl"`
	Source      Source   `json:"source"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	LastUpdated Date     `json:"lastUpdated"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	w := wireEvent{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Type:        e.Timing.Kind(),
		Venue:       e.Location.Venue,
		Address:     e.Location.Address,
		City:        e.Location.City,
		Coordinates: e.Location.Coordinates,
		Activities:  e.ActivityTypes,
		AgeRange:    e.AgeRange,
		Cost:        e.Cost,
		Exertion:    e.ExertionRating,
		ParentHacks: e.ParentHacks,
		SourceURL:   e.SourceURL,
		Source:      e.Source,
		ImageURL:    e.ImageURL,
		LastUpdated: e.LastUpdated,
	}
	if start, ok := e.Timing.Start(); ok {
		w.StartDate = &start
	}
	if end, ok := e.Timing.End(); ok {
		w.EndDate = &end
	}
	if s, ok := e.Timing.Schedule(); ok {
		w.Schedule = &s
	}
	if w.Activities == nil {
		w.Activities = []ActivityType{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(w); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (e *Event) UnmarshalJSON(b []byte) error {
	var w wireEvent
	if err := json.Unmarshal(b, &w); err != nil {
		return eris.Wrap(err, "model: decode event")
	}

	var timing Timing
	switch w.Type {
	case TimingRecurring:
		if w.Schedule == nil {
			return eris.Errorf("model: recurring event %q has no schedule", w.ID)
		}
		timing = Recurring(*w.Schedule)
	case TimingOneTime, "":
		if w.StartDate == nil {
			return eris.Errorf("model: one-time event %q has no startDate", w.ID)
		}
		timing = OneTime(*w.StartDate, w.EndDate)
	default:
		return eris.Errorf("model: event %q has unknown type %q", w.ID, w.Type)
	}

	exertion := w.Exertion
	if exertion == nil {
		exertion = w.Exhaustion
	}

	*e = Event{
		ID:          w.ID,
		Title:       w.Title,
		Description: w.Description,
		Timing:      timing,
		Location: Location{
			Venue:       w.Venue,
			Address:     w.Address,
			City:        w.City,
			Coordinates: w.Coordinates,
		},
		ActivityTypes:  w.Activities,
		AgeRange:       w.AgeRange,
		Cost:           w.Cost,
		ExertionRating: exertion,
		ImageURL:       w.ImageURL,
		ParentHacks:    w.ParentHacks,
		SourceURL:      w.SourceURL,
		Source:         w.Source,
		LastUpdated:    w.LastUpdated,
	}
	return nil
}

// HasActivity reports whether the event is tagged with a.
func (e Event) HasActivity(a ActivityType) bool {
	for _, t := range e.ActivityTypes {
		if t == a {
			return true
		}
	}
	return false
}

// Validate checks the record-level invariants adapters must uphold.
func (e Event) Validate() error {
	if e.ID == "" {
		return eris.New("model: event without id")
	}
	if e.Title == "" {
		return eris.Errorf("model: event %s without title", e.ID)
	}
	if utf8.RuneCountInString(e.Description) > MaxDescriptionLen {
		return eris.Errorf("model: event %s description exceeds %d characters", e.ID, MaxDescriptionLen)
	}
	if err := e.Timing.Validate(); err != nil {
		return eris.Wrapf(err, "model: event %s", e.ID)
	}
	if !e.Source.Valid() {
		return eris.Errorf("model: event %s has unknown source %q", e.ID, e.Source)
	}
	if len(e.ActivityTypes) == 0 {
		return eris.Errorf("model: event %s has no activity type", e.ID)
	}
	for _, a := range e.ActivityTypes {
		if !a.Valid() {
			return eris.Errorf("model: event %s has unknown activity type %q", e.ID, a)
		}
	}
	if err := e.AgeRange.Validate(); err != nil {
		return eris.Wrapf(err, "model: event %s", e.ID)
	}
	if err := e.Cost.Validate(); err != nil {
		return eris.Wrapf(err, "model: event %s", e.ID)
	}
	if e.ExertionRating != nil && (*e.ExertionRating < 1 || *e.ExertionRating > 5) {
		return eris.Errorf("model: event %s exertion rating %d out of range", e.ID, *e.ExertionRating)
	}
	return nil
}
