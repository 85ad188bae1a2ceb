// Package monitoring watches recent update runs and raises alerts when they
// fail, skip too many URLs or cost too much.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-updater/internal/model"
	"github.com/sells-group/catalog-updater/internal/store"
)

// MetricsSnapshot holds a point-in-time view of run health.
type MetricsSnapshot struct {
	RunsTotal    int     `json:"runs_total"`
	RunsComplete int     `json:"runs_complete"`
	RunsFailed   int     `json:"runs_failed"`
	RunsActive   int     `json:"runs_active"`
	FailRate     float64 `json:"fail_rate"`

	// Totals over completed runs.
	URLsAttempted     int     `json:"urls_attempted"`
	URLsSkipped       int     `json:"urls_skipped"`
	SkipRate          float64 `json:"skip_rate"`
	RecordsPersisted  int     `json:"records_persisted"`
	DuplicatesRemoved int     `json:"duplicates_removed"`
	ChunkFailures     int     `json:"chunk_failures"`
	CostUSD           float64 `json:"cost_usd"`
	Tokens            int64   `json:"tokens"`

	LastCompletedAt *time.Time `json:"last_completed_at,omitempty"`
	LookbackHours   int        `json:"lookback_hours"`
	CollectedAt     time.Time  `json:"collected_at"`
}

// RunLister lists runs.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector gathers metrics from the run store.
type Collector struct {
	runs RunLister
	now  func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs, now: time.Now}
}

// Collect gathers a snapshot of run metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	runs, err := c.runs.ListRuns(ctx, store.RunFilter{
		CreatedAfter: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
			if snap.LastCompletedAt == nil || r.UpdatedAt.After(*snap.LastCompletedAt) {
				t := r.UpdatedAt
				snap.LastCompletedAt = &t
			}
		case model.RunStatusFailed:
			snap.RunsFailed++
		default:
			snap.RunsActive++
		}
		if s := r.Summary; s != nil {
			snap.URLsAttempted += s.URLsAttempted
			snap.URLsSkipped += s.URLsSkipped
			snap.RecordsPersisted += s.RecordsPersisted
			snap.DuplicatesRemoved += s.DuplicatesRemoved + s.SelfDuplicatesRemoved
			snap.ChunkFailures += s.ChunkFailures
			snap.CostUSD += s.EstimatedCostUSD
			snap.Tokens += s.TokenUsage.Total()
		}
	}

	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(finished)
	}
	if snap.URLsAttempted > 0 {
		snap.SkipRate = float64(snap.URLsSkipped) / float64(snap.URLsAttempted)
	}

	return snap, nil
}
