package monitoring

import (
	"context"
	"slices"
	"time"

	"github.com/rotisserie/eris"

	"github.com/villageroaster/bakeboard/internal/model"
	"github.com/villageroaster/bakeboard/internal/resilience"
)

// collectLimit bounds how many recent runs a snapshot reads.
const collectLimit = 1000

// HealthSnapshot holds a point-in-time view of ingestion health.
type HealthSnapshot struct {
	// Ticks within the lookback window.
	RunsTotal     int       `json:"runs_total"`
	RunsCommitted int       `json:"runs_committed"`
	RunsFailed    int       `json:"runs_failed"`
	RunsIdle      int       `json:"runs_idle"`
	FailRate      float64   `json:"fail_rate"`
	LastCommitAt  time.Time `json:"last_commit_at,omitzero"`
	LastError     string    `json:"last_error,omitempty"`

	// Breakers currently refusing calls.
	OpenBreakers []string `json:"open_breakers,omitempty"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister abstracts the run history read used by the collector.
type RunLister interface {
	ListRuns(ctx context.Context, f model.RunFilter) ([]model.Run, error)
}

// Collector gathers health from the run history and the breakers.
type Collector struct {
	runs     RunLister
	breakers *resilience.Breakers
	nowFunc  func() time.Time
}

// NewCollector creates a collector. breakers may be nil.
func NewCollector(runs RunLister, breakers *resilience.Breakers) *Collector {
	return &Collector{runs: runs, breakers: breakers, nowFunc: time.Now}
}

// Collect summarises ticks that started within the lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*HealthSnapshot, error) {
	now := c.nowFunc().UTC()
	snap := &HealthSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.runs.ListRuns(ctx, model.RunFilter{Limit: collectLimit})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	// Runs come newest first.
	for _, r := range runs {
		if r.StartedAt.Before(cutoff) {
			continue
		}
		snap.RunsTotal++
		switch r.Status {
		case model.RunStatusCommitted:
			snap.RunsCommitted++
			if r.StartedAt.After(snap.LastCommitAt) {
				snap.LastCommitAt = r.StartedAt
			}
		case model.RunStatusFailed:
			snap.RunsFailed++
			if snap.LastError == "" {
				snap.LastError = r.Error
			}
		case model.RunStatusIdle:
			snap.RunsIdle++
		}
	}
	if snap.RunsTotal > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(snap.RunsTotal)
	}

	if c.breakers != nil {
		for name, st := range c.breakers.States() {
			if st == resilience.CircuitOpen {
				snap.OpenBreakers = append(snap.OpenBreakers, name)
			}
		}
		slices.Sort(snap.OpenBreakers)
	}

	return snap, nil
}
