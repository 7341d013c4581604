package model

import (
	"slices"

	"github.com/rotisserie/eris"
)

// ActivityType is one tag of the closed activity vocabulary.
type ActivityType string

const (
	ActivityAdventure    ActivityType = "adventure"
	ActivityArts         ActivityType = "arts"
	ActivityHistory      ActivityType = "history"
	ActivityScience      ActivityType = "science"
	ActivityPhysicalPlay ActivityType = "physical-play"
	ActivityNature       ActivityType = "nature"
	ActivityMusic        ActivityType = "music"
	ActivitySeasonal     ActivityType = "seasonal"
	ActivityEducational  ActivityType = "educational"
)

// AllActivityTypes returns the vocabulary in display order.
func AllActivityTypes() []ActivityType {
	return []ActivityType{
		ActivityAdventure, ActivityArts, ActivityHistory,
		ActivityScience, ActivityPhysicalPlay, ActivityNature,
		ActivityMusic, ActivitySeasonal, ActivityEducational,
	}
}

// Valid reports whether a is part of the vocabulary.
func (a ActivityType) Valid() bool {
	return slices.Contains(AllActivityTypes(), a)
}

// Label returns the human-readable label used by listing views.
func (a ActivityType) Label() string {
	switch a {
	case ActivityAdventure:
		return "Adventure"
	case ActivityArts:
		return "Arts & Crafts"
	case ActivityHistory:
		return "History"
	case ActivityScience:
		return "Science"
	case ActivityPhysicalPlay:
		return "Physical Play"
	case ActivityNature:
		return "Nature"
	case ActivityMusic:
		return "Music"
	case ActivitySeasonal:
		return "Seasonal"
	case ActivityEducational:
		return "Educational"
	default:
		return string(a)
	}
}

// ParseActivityType converts a string into an ActivityType.
func ParseActivityType(s string) (ActivityType, error) {
	a := ActivityType(s)
	if !a.Valid() {
		return "", eris.Errorf("unknown activity type: %q", s)
	}
	return a, nil
}

// Source tags the adapter (or hand curation) that owns a record.
type Source string

const (
	SourceParks   Source = "fairfax-parks"
	SourceLibrary Source = "library"
	SourceMuseum  Source = "udvar-hazy"
	SourceFarm    Source = "great-country-farms"
	SourceManual  Source = "manual"
)

// AllSources returns every known source tag.
func AllSources() []Source {
	return []Source{SourceParks, SourceLibrary, SourceMuseum, SourceFarm, SourceManual}
}

// Valid reports whether s is a known source tag.
func (s Source) Valid() bool {
	return slices.Contains(AllSources(), s)
}

// ParseSource converts a string into a Source.
func ParseSource(s string) (Source, error) {
	src := Source(s)
	if !src.Valid() {
		return "", eris.Errorf("unknown source: %q (valid: fairfax-parks, library, udvar-hazy, great-country-farms, manual)", s)
	}
	return src, nil
}

// City is one of the local municipalities events are placed in.
type City string

// Cities lists the municipalities a record's city may take.
var Cities = []City{
	"Alexandria",
	"Annandale",
	"Arlington",
	"Ashburn",
	"Bluemont",
	"Burke",
	"Centreville",
	"Chantilly",
	"Clifton",
	"Fairfax",
	"Fairfax Station",
	"Falls Church",
	"Great Falls",
	"Herndon",
	"Lorton",
	"McLean",
	"Oakton",
	"Reston",
	"Springfield",
	"Sterling",
	"Vienna",
}

// DefaultCity is used when a venue cannot be resolved.
const DefaultCity City = "Fairfax"

// Valid reports whether c is a known municipality.
func (c City) Valid() bool {
	return slices.Contains(Cities, c)
}
