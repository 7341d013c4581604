package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/family-events/internal/model"
	"github.com/sells-group/family-events/internal/store"
)

// historyLimit bounds how many recent runs per source are inspected.
const historyLimit = 50

// SourceHealth summarizes one source's recent refresh history.
type SourceHealth struct {
	Source model.Source `json:"source"`
	// LastRun is the newest run, nil when the source never ran.
	LastRun     *model.Run `json:"last_run,omitempty"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
	// LastProduced is the produced count of the newest successful run.
	LastProduced int `json:"last_produced"`
	// ConsecutiveFailures counts failed runs since the last success.
	ConsecutiveFailures int `json:"consecutive_failures"`
	// ZeroStreak counts the newest successful runs that produced nothing.
	ZeroStreak int `json:"zero_streak"`
	Runs       int `json:"runs"`
}

// Snapshot holds a point-in-time view of ingestion health.
type Snapshot struct {
	Sources     []SourceHealth `json:"sources"`
	CollectedAt time.Time      `json:"collected_at"`
}

// RunLister is the part of the ledger the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector gathers per-source health from the run ledger.
type Collector struct {
	runs    RunLister
	sources []model.Source
	now     func() time.Time
}

// NewCollector creates a collector over the given sources.
func NewCollector(runs RunLister, sources []model.Source) *Collector {
	return &Collector{runs: runs, sources: sources, now: time.Now}
}

// Collect builds a snapshot from each source's recent refresh runs.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{CollectedAt: c.now().UTC()}
	for _, src := range c.sources {
		runs, err := c.runs.ListRuns(ctx, store.RunFilter{
			Kind:   model.RunRefresh,
			Source: src,
			Limit:  historyLimit,
		})
		if err != nil {
			return nil, eris.Wrapf(err, "monitoring: list runs for %s", src)
		}
		snap.Sources = append(snap.Sources, summarize(src, runs))
	}
	return snap, nil
}

// summarize expects runs newest first.
func summarize(src model.Source, runs []model.Run) SourceHealth {
	h := SourceHealth{Source: src, Runs: len(runs)}
	if len(runs) == 0 {
		return h
	}
	last := runs[0]
	h.LastRun = &last

	countingFailures, countingZeros := true, true
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusFailed:
			if countingFailures {
				h.ConsecutiveFailures++
			}
		case model.RunStatusComplete:
			countingFailures = false
			if h.LastSuccess == nil {
				at := r.StartedAt
				if r.CompletedAt != nil {
					at = *r.CompletedAt
				}
				h.LastSuccess = &at
				h.LastProduced = r.Counts.Produced
			}
			if countingZeros {
				if r.Counts.Produced == 0 {
					h.ZeroStreak++
				} else {
					countingZeros = false
				}
			}
		}
	}
	return h
}
