package source

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/family-events/internal/model"
)

// Registry maps source tags to their adapters.
type Registry struct {
	adapters map[model.Source]Adapter
	order    []model.Source // insertion order for deterministic iteration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[model.Source]Adapter)}
}

// Register adds an adapter. A second adapter for the same tag replaces the
// first without changing its position.
func (r *Registry) Register(a Adapter) {
	src := a.Source()
	if _, ok := r.adapters[src]; !ok {
		r.order = append(r.order, src)
	}
	r.adapters[src] = a
}

// Get returns the adapter for a source tag.
func (r *Registry) Get(src model.Source) (Adapter, error) {
	a, ok := r.adapters[src]
	if !ok {
		return nil, eris.Errorf("source: no adapter for %q", src)
	}
	return a, nil
}

// Select returns the named adapters, or all of them when names is empty.
func (r *Registry) Select(names []model.Source) ([]Adapter, error) {
	if len(names) == 0 {
		return r.All(), nil
	}
	out := make([]Adapter, 0, len(names))
	for _, n := range names {
		a, err := r.Get(n)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// All returns every adapter in registration order.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, src := range r.order {
		out = append(out, r.adapters[src])
	}
	return out
}

// Names returns the registered tags in registration order.
func (r *Registry) Names() []model.Source {
	out := make([]model.Source, len(r.order))
	copy(out, r.order)
	return out
}

// Config enables and tunes the built-in adapters.
type Config struct {
	Parks   Settings
	Library Settings
	Museum  Settings
	Farm    Settings
	// Disabled lists tags left out of the registry.
	Disabled []model.Source
}

// NewDefaultRegistry registers the four scraping adapters.
func NewDefaultRegistry(env Env, cfg Config) *Registry {
	off := make(map[model.Source]bool, len(cfg.Disabled))
	for _, s := range cfg.Disabled {
		off[s] = true
	}
	r := NewRegistry()
	for _, a := range []Adapter{
		NewParks(env, cfg.Parks),
		NewLibrary(env, cfg.Library),
		NewMuseum(env, cfg.Museum),
		NewFarm(env, cfg.Farm),
	} {
		if !off[a.Source()] {
			r.Register(a)
		}
	}
	return r
}
