package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/blueoctober14/RightImpact/internal/model"
	"github.com/blueoctober14/RightImpact/internal/store"
)

// jobScanLimit caps how many recent jobs one snapshot inspects.
const jobScanLimit = 1000

// Snapshot is a point-in-time view of background matching health.
type Snapshot struct {
	// Jobs created within the lookback window.
	JobsTotal    int     `json:"jobs_total"`
	JobsQueued   int     `json:"jobs_queued"`
	JobsRunning  int     `json:"jobs_running"`
	JobsComplete int     `json:"jobs_complete"`
	JobsFailed   int     `json:"jobs_failed"`
	JobFailRate  float64 `json:"job_fail_rate"`

	// Totals over completed job summaries.
	ContactsProcessed int `json:"contacts_processed"`
	ContactsTotal     int `json:"contacts_total"`
	MatchesCreated    int `json:"matches_created"`
	BatchErrors       int `json:"batch_errors"`

	// Jobs waiting for a worker right now.
	QueueDepth int `json:"queue_depth"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector builds snapshots from persisted job records.
type Collector struct {
	jobs  store.JobStore
	depth func() int
}

// NewCollector creates a collector. depth reports the live queue depth and
// may be nil.
func NewCollector(jobs store.JobStore, depth func() int) *Collector {
	return &Collector{jobs: jobs, depth: depth}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	now := time.Now().UTC()
	snap := &Snapshot{LookbackHours: lookbackHours, CollectedAt: now}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	jobs, err := c.jobs.ListJobs(ctx, jobScanLimit)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list jobs")
	}

	for _, j := range jobs {
		if lookbackHours > 0 && j.CreatedAt.Before(cutoff) {
			continue
		}
		snap.JobsTotal++
		switch j.Status {
		case model.JobStatusQueued:
			snap.JobsQueued++
		case model.JobStatusRunning:
			snap.JobsRunning++
		case model.JobStatusComplete:
			snap.JobsComplete++
		case model.JobStatusFailed:
			snap.JobsFailed++
		}
		if s := j.Summary; s != nil {
			snap.ContactsProcessed += s.ProcessedContacts
			snap.ContactsTotal += s.TotalContacts
			snap.MatchesCreated += s.MatchesCreated
			snap.BatchErrors += len(s.Errors)
		}
	}

	if finished := snap.JobsComplete + snap.JobsFailed; finished > 0 {
		snap.JobFailRate = float64(snap.JobsFailed) / float64(finished)
	}
	if c.depth != nil {
		snap.QueueDepth = c.depth()
	}
	return snap, nil
}
