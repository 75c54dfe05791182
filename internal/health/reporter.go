// Package health records the outcome of each collector run.
package health

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/ohss-collector/internal/model"
)

// appendTimeout bounds the health write. It runs on a context detached from
// the run's, so a cancelled run is still recorded.
const appendTimeout = 10 * time.Second

// Appender persists health records.
type Appender interface {
	AppendHealth(ctx context.Context, rec model.HealthRecord) error
}

// Reporter turns a RunResult into one appended HealthRecord.
type Reporter struct {
	sink   Appender
	source string
	now    func() time.Time
}

// NewReporter creates a Reporter tagging records with source.
func NewReporter(sink Appender, source string, now func() time.Time) *Reporter {
	if source == "" {
		source = model.DefaultDataSource
	}
	if now == nil {
		now = time.Now
	}
	return &Reporter{sink: sink, source: source, now: now}
}

// Report appends the health record for res and returns it. A sink failure is
// logged and otherwise ignored.
func (r *Reporter) Report(ctx context.Context, res model.RunResult) model.HealthRecord {
	now := r.now().UTC()
	rec := model.HealthRecord{
		RunID:          res.RunID,
		SourceName:     r.source,
		LastAttempt:    now,
		Status:         model.HealthFailed,
		RecordsFetched: res.RecordsFetched,
	}
	if res.Success {
		rec.Status = model.HealthSuccess
		rec.LastSuccessfulFetch = &now
	} else if res.Error != "" {
		msg := res.Error
		rec.ErrorMessage = &msg
	}

	log := zap.L().With(zap.String("component", "health.reporter"), zap.String("run_id", res.RunID))

	appendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), appendTimeout)
	defer cancel()
	if err := r.sink.AppendHealth(appendCtx, rec); err != nil {
		log.Error("health: failed to record run outcome", zap.Error(err))
		return rec
	}

	log.Info("health: run recorded",
		zap.String("status", string(rec.Status)),
		zap.Int("records_fetched", rec.RecordsFetched),
	)
	return rec
}
