package model

import "time"

// RunKind identifies which entry point produced a ledger row.
type RunKind string

const (
	RunRefresh RunKind = "refresh"
	RunArchive RunKind = "archive"
	RunImport  RunKind = "import"
)

// RunStatus represents the state of a recorded run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunCounts summarizes what a run did. Candidates counts raw items seen on
// the source; Produced counts records that entered the merge.
type RunCounts struct {
	Candidates int `json:"candidates"`
	Produced   int `json:"produced"`
	Skipped    int `json:"skipped"`
	Excluded   int `json:"excluded"`
	Duplicates int `json:"duplicates"`
	// Defaulted counts records whose tags or ages came from a fallback rule.
	Defaulted int `json:"defaulted"`
	Conflicts int `json:"conflicts"`
	Retained  int `json:"retained"`
	Total     int `json:"total"`
	Archived  int `json:"archived"`
}

// Run is one ledger row.
type Run struct {
	ID          string     `json:"id"`
	Kind        RunKind    `json:"kind"`
	Source      Source     `json:"source,omitempty"`
	Status      RunStatus  `json:"status"`
	Counts      RunCounts  `json:"counts"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Duration returns how long the run took, or zero while it is running.
func (r Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}
