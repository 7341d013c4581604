package catalog

import (
	"time"

	"github.com/sells-group/family-events/internal/model"
)

// SweepResult is the catalog and archive after expired records moved over.
type SweepResult struct {
	Catalog []Entry
	Archive []Entry
	// Moved lists the ids taken out of the catalog.
	Moved []string
	// Duplicates counts moved records the archive already held.
	Duplicates int
}

// Sweep moves one-time records that ended before asOf's calendar day (in loc)
// from the catalog to the archive. The archive is only ever appended to, and
// never gains a second record with the same id.
func Sweep(catalog, archive []Entry, asOf time.Time, loc *time.Location) SweepResult {
	today := model.DateOf(asOf, loc)

	res := SweepResult{
		Catalog: make([]Entry, 0, len(catalog)),
		Archive: make([]Entry, 0, len(archive)),
	}
	archived := make(map[string]bool, len(archive))
	for _, e := range archive {
		archived[e.ID] = true
		res.Archive = append(res.Archive, e)
	}

	for _, e := range catalog {
		if !expired(e, today) {
			res.Catalog = append(res.Catalog, e)
			continue
		}
		res.Moved = append(res.Moved, e.ID)
		if archived[e.ID] {
			res.Duplicates++
			continue
		}
		archived[e.ID] = true
		res.Archive = append(res.Archive, e)
	}
	return res
}

func expired(e Entry, today model.Date) bool {
	if e.Event == nil {
		return false
	}
	last, ok := e.Event.Timing.LastDay()
	return ok && last.Before(today)
}
