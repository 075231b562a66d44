// Package progress tracks per-run record counters for the ops API and the
// completion summary.
package progress

import (
	"sync/atomic"
	"time"
)

// Tracker accumulates record outcomes for one run. Safe for concurrent
// workers.
type Tracker struct {
	phase     string
	startedAt time.Time

	processed atomic.Int64
	created   atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
}

// Snapshot is a point-in-time view of a run.
type Snapshot struct {
	Phase     string    `json:"phase"`
	StartedAt time.Time `json:"started_at"`
	Processed int64     `json:"processed"`
	Created   int64     `json:"created"`
	Skipped   int64     `json:"skipped"`
	Failed    int64     `json:"failed"`
}

// NewTracker starts a tracker for the named phase (populate, enrich).
func NewTracker(phase string) *Tracker {
	return &Tracker{phase: phase, startedAt: time.Now().UTC()}
}

// MarkProcessed counts a record whose work completed.
func (t *Tracker) MarkProcessed() { t.processed.Add(1) }

// MarkCreated counts a newly created primary record.
func (t *Tracker) MarkCreated() { t.created.Add(1) }

// MarkSkipped counts a record short-circuited by an idempotency guard.
func (t *Tracker) MarkSkipped() { t.skipped.Add(1) }

// MarkFailed counts a record whose work failed and was abandoned.
func (t *Tracker) MarkFailed() { t.failed.Add(1) }

// Snapshot returns the current counters.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		Phase:     t.phase,
		StartedAt: t.startedAt,
		Processed: t.processed.Load(),
		Created:   t.created.Load(),
		Skipped:   t.skipped.Load(),
		Failed:    t.failed.Load(),
	}
}
