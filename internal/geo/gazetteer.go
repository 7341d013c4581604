// Package geo resolves scraped venue names to known addresses and coordinates.
package geo

import (
	_ "embed"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/family-events/internal/model"
)

//go:embed venues.yaml
var venuesYAML []byte

// Venue is one gazetteer entry.
type Venue struct {
	Name    string     `yaml:"name"`
	Aliases []string   `yaml:"aliases"`
	Slugs   []string   `yaml:"slugs"`
	Address string     `yaml:"address"`
	City    model.City `yaml:"city"`
	Lat     float64    `yaml:"lat"`
	Lng     float64    `yaml:"lng"`
}

// Location converts the venue into the event location shape.
func (v Venue) Location() model.Location {
	return model.Location{
		Venue:       v.Name,
		Address:     v.Address,
		City:        v.City,
		Coordinates: model.Coordinates{Lat: v.Lat, Lng: v.Lng},
	}
}

type gazetteerFile struct {
	Fallback Venue                    `yaml:"fallback"`
	Sources  map[model.Source][]Venue `yaml:"sources"`
}

// Gazetteer is a per-source venue table with tiered name resolution.
type Gazetteer struct {
	bySource map[model.Source][]Venue
	fallback Venue
}

// Parse builds a Gazetteer from YAML and checks every city is known.
func Parse(data []byte) (*Gazetteer, error) {
	var f gazetteerFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "geo: parse gazetteer")
	}
	if f.Fallback.Name == "" || !f.Fallback.City.Valid() {
		return nil, eris.New("geo: gazetteer needs a fallback venue with a known city")
	}
	for src, venues := range f.Sources {
		if !src.Valid() {
			return nil, eris.Errorf("geo: unknown source %q", src)
		}
		for _, v := range venues {
			if v.Name == "" {
				return nil, eris.Errorf("geo: %s venue without name", src)
			}
			if !v.City.Valid() {
				return nil, eris.Errorf("geo: venue %q has unknown city %q", v.Name, v.City)
			}
		}
	}
	return &Gazetteer{bySource: f.Sources, fallback: f.Fallback}, nil
}

var (
	defaultOnce sync.Once
	defaultGaz  *Gazetteer
)

// Default returns the gazetteer compiled into the binary.
func Default() *Gazetteer {
	defaultOnce.Do(func() {
		g, err := Parse(venuesYAML)
		if err != nil {
			panic(err)
		}
		defaultGaz = g
	})
	return defaultGaz
}

// Venues lists the known venues of a source.
func (g *Gazetteer) Venues(src model.Source) []Venue {
	return g.bySource[src]
}

// Primary returns the first venue of a single-venue source.
func (g *Gazetteer) Primary(src model.Source) (Venue, bool) {
	vs := g.bySource[src]
	if len(vs) == 0 {
		return g.fallback, false
	}
	return vs[0], true
}

// BySlug finds a venue by a URL path slug.
func (g *Gazetteer) BySlug(src model.Source, slug string) (Venue, bool) {
	for _, v := range g.bySource[src] {
		for _, s := range v.Slugs {
			if strings.EqualFold(s, slug) {
				return v, true
			}
		}
	}
	return Venue{}, false
}

// Resolve maps a scraped name to a venue: exact name or alias first, then a
// case-insensitive substring match in either direction, then the same with
// generic suffix words stripped. Unresolved names get the fallback address
// under their own name; ok reports whether a table entry matched.
func (g *Gazetteer) Resolve(src model.Source, name string) (Venue, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return g.fallback, false
	}
	venues := g.bySource[src]

	for _, v := range venues {
		if v.Name == name {
			return v, true
		}
		for _, a := range v.Aliases {
			if a == name {
				return v, true
			}
		}
	}

	lower := strings.ToLower(name)
	for _, v := range venues {
		for _, key := range v.keys() {
			k := strings.ToLower(key)
			if strings.Contains(lower, k) || strings.Contains(k, lower) {
				return v, true
			}
		}
	}

	short := simplify(lower)
	if short != "" {
		for _, v := range venues {
			k := simplify(strings.ToLower(v.Name))
			if k == "" {
				continue
			}
			if strings.Contains(short, k) || strings.Contains(k, short) {
				return v, true
			}
		}
	}

	fb := g.fallback
	fb.Name = name
	return fb, false
}

// Fallback returns the catch-all venue.
func (g *Gazetteer) Fallback() Venue { return g.fallback }

func (v Venue) keys() []string {
	return append([]string{v.Name}, v.Aliases...)
}

var suffixWords = []string{" regional library", " library", " regional", " nature center", " rec center", " park"}

func simplify(s string) string {
	for _, w := range suffixWords {
		s = strings.ReplaceAll(s, w, "")
	}
	s = strings.TrimPrefix(s, "city of ")
	return strings.TrimSpace(s)
}
