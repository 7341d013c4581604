package catalog

import (
	"context"
	"errors"

	"github.com/sells-group/family-events/internal/model"
)

// DefaultFeatured is how many events Featured returns when asked for none.
const DefaultFeatured = 6

// ErrNotFound is returned by FindByID for an unknown id.
var ErrNotFound = errors.New("catalog: event not found")

// Catalog is a read-only view of the persisted events in stored order.
type Catalog struct {
	events []model.Event
	byID   map[string]int
}

// New builds a view over entries. Records that did not decode are left out.
func New(entries []Entry) *Catalog {
	return FromEvents(Events(entries))
}

// FromEvents builds a view over already decoded events.
func FromEvents(events []model.Event) *Catalog {
	c := &Catalog{events: events, byID: make(map[string]int, len(events))}
	for i, e := range events {
		if _, ok := c.byID[e.ID]; !ok {
			c.byID[e.ID] = i
		}
	}
	return c
}

// Open loads the current catalog from store.
func Open(ctx context.Context, store *FileStore) (*Catalog, error) {
	entries, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return New(entries), nil
}

// Len returns the number of events.
func (c *Catalog) Len() int { return len(c.events) }

// ListAll returns every event.
func (c *Catalog) ListAll() []model.Event {
	out := make([]model.Event, len(c.events))
	copy(out, c.events)
	return out
}

// FindByID returns the event with the given id.
func (c *Catalog) FindByID(id string) (model.Event, error) {
	i, ok := c.byID[id]
	if !ok {
		return model.Event{}, ErrNotFound
	}
	return c.events[i], nil
}

// ByActivity returns the events tagged with a, in stored order.
func (c *Catalog) ByActivity(a model.ActivityType) []model.Event {
	var out []model.Event
	for _, e := range c.events {
		if e.HasActivity(a) {
			out = append(out, e)
		}
	}
	return out
}

// Featured alternates free and paid events, free first, until n are picked
// or both lists run out.
func (c *Catalog) Featured(n int) []model.Event {
	if n <= 0 {
		n = DefaultFeatured
	}
	var free, paid []model.Event
	for _, e := range c.events {
		if e.Cost.IsFree() {
			free = append(free, e)
		} else {
			paid = append(paid, e)
		}
	}
	out := make([]model.Event, 0, n)
	for fi, pi := 0, 0; len(out) < n && (fi < len(free) || pi < len(paid)); {
		if fi < len(free) {
			out = append(out, free[fi])
			fi++
		}
		if len(out) < n && pi < len(paid) {
			out = append(out, paid[pi])
			pi++
		}
	}
	return out
}
