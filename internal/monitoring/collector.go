// Package monitoring watches collection health and raises webhook alerts
// when runs keep failing or data stops arriving.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ohss-collector/internal/model"
)

// HealthLister is the slice of store.Reader the collector needs.
type HealthLister interface {
	ListHealth(ctx context.Context, limit int) ([]model.HealthRecord, error)
}

// Snapshot is a point-in-time view of one source's collection health,
// built from its most recent health records.
type Snapshot struct {
	SourceName          string     `json:"source_name"`
	Runs                int        `json:"runs"`
	Succeeded           int        `json:"succeeded"`
	Failed              int        `json:"failed"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastAttempt         *time.Time `json:"last_attempt,omitempty"`
	LastSuccess         *time.Time `json:"last_success,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
	RecordsFetched      int        `json:"records_fetched"`

	LookbackRuns int       `json:"lookback_runs"`
	CollectedAt  time.Time `json:"collected_at"`
}

// Collector builds snapshots from the health log.
type Collector struct {
	health HealthLister
	source string
	now    func() time.Time
}

// NewCollector creates a snapshot collector for one source. A nil now uses
// time.Now.
func NewCollector(health HealthLister, source string, now func() time.Time) *Collector {
	if now == nil {
		now = time.Now
	}
	return &Collector{health: health, source: source, now: now}
}

// Collect summarizes the last lookbackRuns health records for the source.
// Records arrive newest first; the consecutive failure streak counts from
// the newest record back to the first success.
func (c *Collector) Collect(ctx context.Context, lookbackRuns int) (*Snapshot, error) {
	if lookbackRuns <= 0 {
		lookbackRuns = 20
	}
	snap := &Snapshot{
		SourceName:   c.source,
		LookbackRuns: lookbackRuns,
		CollectedAt:  c.now().UTC(),
	}

	records, err := c.health.ListHealth(ctx, lookbackRuns)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list health")
	}

	streak := true
	for _, r := range records {
		if c.source != "" && r.SourceName != c.source {
			continue
		}
		snap.Runs++
		if snap.LastAttempt == nil {
			at := r.LastAttempt
			snap.LastAttempt = &at
		}
		switch r.Status {
		case model.HealthSuccess:
			snap.Succeeded++
			streak = false
			if snap.LastSuccess == nil {
				snap.LastSuccess = r.LastSuccessfulFetch
				if snap.LastSuccess == nil {
					at := r.LastAttempt
					snap.LastSuccess = &at
				}
				snap.RecordsFetched = r.RecordsFetched
			}
		default:
			snap.Failed++
			if streak {
				snap.ConsecutiveFailures++
				if snap.LastError == "" && r.ErrorMessage != nil {
					snap.LastError = *r.ErrorMessage
				}
			}
		}
	}
	return snap, nil
}
