package catalog

import (
	"sort"
	"time"

	"github.com/sells-group/family-events/internal/model"
)

// MergeOptions controls how a source's previous records are treated.
type MergeOptions struct {
	// RetainFuture keeps previously stored records of the refreshed source
	// whose last day is on or after AsOf's day, unless a fresh record
	// replaces them.
	RetainFuture bool
	AsOf         time.Time
	Location     *time.Location
}

// MergeResult is the new catalog plus what happened to the fresh records.
type MergeResult struct {
	Entries []Entry
	// Retained counts previous records carried forward.
	Retained int
	// Conflicts lists fresh ids already owned by another source; those
	// records were dropped.
	Conflicts []string
	Replaced  int
}

// Merge replaces the partition tagged src with fresh. Every entry belonging to
// another source is carried over untouched.
func Merge(persisted []Entry, src model.Source, fresh []model.Event, opts MergeOptions) (MergeResult, error) {
	var res MergeResult
	out := make([]Entry, 0, len(persisted)+len(fresh))
	owned := make(map[string]bool)
	var previous []Entry
	for _, e := range persisted {
		if e.Source == src {
			previous = append(previous, e)
			continue
		}
		owned[e.ID] = true
		out = append(out, e)
	}

	freshIDs := make(map[string]bool, len(fresh))
	for _, ev := range fresh {
		if owned[ev.ID] {
			res.Conflicts = append(res.Conflicts, ev.ID)
			continue
		}
		if freshIDs[ev.ID] {
			continue
		}
		entry, err := NewEntry(ev)
		if err != nil {
			return MergeResult{}, err
		}
		freshIDs[ev.ID] = true
		out = append(out, entry)
	}

	asOf := model.DateOf(opts.AsOf, opts.Location)
	for _, e := range previous {
		if freshIDs[e.ID] {
			res.Replaced++
			continue
		}
		if opts.RetainFuture && stillCurrent(e, asOf) {
			res.Retained++
			out = append(out, e)
		}
	}

	Sort(out)
	res.Entries = out
	return res, nil
}

// stillCurrent reports whether a record has not yet ended as of the given
// day. Recurring records never end.
func stillCurrent(e Entry, asOf model.Date) bool {
	if e.Event == nil {
		return false
	}
	last, ok := e.Event.Timing.LastDay()
	if !ok {
		return true
	}
	return !last.Before(asOf)
}

// Sort orders entries recurring first, then one-time by start ascending,
// then by title and id. Records that could not be decoded sort last by id.
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return less(entries[i], entries[j])
	})
}

func rank(e Entry) int {
	switch {
	case e.Event == nil:
		return 2
	case e.Event.Timing.IsRecurring():
		return 0
	default:
		return 1
	}
}

func less(a, b Entry) bool {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra < rb
	}
	if ra == 1 {
		as, _ := a.Event.Timing.Start()
		bs, _ := b.Event.Timing.Start()
		if !as.Equal(bs.Time) {
			return as.Before(bs)
		}
	}
	if ra != 2 && a.Event.Title != b.Event.Title {
		return a.Event.Title < b.Event.Title
	}
	return a.ID < b.ID
}
