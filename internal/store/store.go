// Package store persists activity records and run health to Postgres or SQLite.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ohss-collector/internal/model"
)

// Sink is the record sink used by the collector. CommitBatch writes one
// file's records in a single transaction and returns how many were new;
// records already present (same dedup and variant key) are ignored.
type Sink interface {
	CommitBatch(ctx context.Context, kind model.EntityKind, recs []model.ActivityRecord) (int64, error)
	AppendHealth(ctx context.Context, rec model.HealthRecord) error
}

// Reader serves stored data to the API and CLI.
type Reader interface {
	Ping(ctx context.Context) error
	LatestHealth(ctx context.Context) ([]model.HealthRecord, error)
	ListHealth(ctx context.Context, limit int) ([]model.HealthRecord, error)
	ListArrests(ctx context.Context, f RecordFilter) ([]model.Arrest, error)
	ListDetentions(ctx context.Context, f RecordFilter) ([]model.Detention, error)
	ListRemovals(ctx context.Context, f RecordFilter) ([]model.Removal, error)
	Aggregate(ctx context.Context, state string, start, end time.Time) (*Aggregate, error)
}

// Store is a Sink and Reader with a lifecycle.
type Store interface {
	Sink
	Reader
	Migrate(ctx context.Context) error
	Close() error
}

// MaxLimit caps list queries.
const MaxLimit = 1000

// DefaultLimit applies when a filter leaves Limit unset.
const DefaultLimit = 100

// RecordFilter narrows list queries. Zero values mean no constraint.
type RecordFilter struct {
	State      string
	FacilityID string
	Start      *time.Time
	End        *time.Time
	Limit      int
}

func (f RecordFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return DefaultLimit
	case f.Limit > MaxLimit:
		return MaxLimit
	default:
		return f.Limit
	}
}

// Aggregate totals activity over a window: summed arrests and removals and
// the mean detained population.
type Aggregate struct {
	TotalArrests    int64     `json:"total_arrests"`
	TotalDetentions int64     `json:"total_detentions"`
	TotalRemovals   int64     `json:"total_removals"`
	Period          string    `json:"period"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// Table names per importable kind.
const (
	tableArrests    = "arrests"
	tableDetentions = "detentions"
	tableRemovals   = "removals"
)

var (
	arrestColumns = []string{
		"timestamp", "state", "county", "city",
		"arrest_count", "criminal_arrests", "non_criminal_arrests",
		"data_source", "source_url", "dedup_key", "variant_key",
	}
	detentionColumns = []string{
		"timestamp", "facility_name", "facility_id", "facility_type", "state", "city",
		"detained_count", "capacity", "avg_daily_population", "latitude", "longitude",
		"data_source", "source_url", "dedup_key", "variant_key",
	}
	removalColumns = []string{
		"timestamp", "state", "removal_count", "country_of_citizenship", "removal_type",
		"data_source", "source_url", "dedup_key", "variant_key",
	}
	conflictKeys = []string{"dedup_key", "variant_key"}
)

func tableFor(kind model.EntityKind) (string, []string, error) {
	switch kind {
	case model.KindArrests:
		return tableArrests, arrestColumns, nil
	case model.KindDetentions:
		return tableDetentions, detentionColumns, nil
	case model.KindRemovals:
		return tableRemovals, removalColumns, nil
	default:
		return "", nil, eris.Errorf("store: no table for kind %q", kind)
	}
}

// rowValues flattens records into column order for tableFor(kind). Records of
// a different kind are rejected. Timestamps are stored in UTC.
func rowValues(kind model.EntityKind, recs []model.ActivityRecord) ([][]any, error) {
	rows := make([][]any, 0, len(recs))
	for i, rec := range recs {
		if rec.Kind() != kind {
			return nil, eris.Errorf("store: record %d is %s, batch is %s", i, rec.Kind(), kind)
		}
		switch r := rec.(type) {
		case *model.Arrest:
			rows = append(rows, []any{
				r.Timestamp.UTC(), opt(r.State), opt(r.County), opt(r.City),
				opt(r.ArrestCount), opt(r.CriminalArrests), opt(r.NonCriminalArrests),
				r.DataSource, r.SourceURL, r.Key, r.VariantKey(),
			})
		case *model.Detention:
			rows = append(rows, []any{
				r.Timestamp.UTC(), opt(r.FacilityName), opt(r.FacilityID), opt(r.FacilityType), opt(r.State), opt(r.City),
				opt(r.DetainedCount), opt(r.Capacity), opt(r.AvgDailyPopulation), opt(r.Latitude), opt(r.Longitude),
				r.DataSource, r.SourceURL, r.Key, r.VariantKey(),
			})
		case *model.Removal:
			rows = append(rows, []any{
				r.Timestamp.UTC(), opt(r.State), opt(r.RemovalCount), opt(r.CountryOfCitizenship), r.RemovalType,
				r.DataSource, r.SourceURL, r.Key, r.VariantKey(),
			})
		default:
			return nil, eris.Errorf("store: unsupported record type %T", rec)
		}
	}
	return rows, nil
}

// opt unwraps an optional field into a bind value; nil binds NULL.
func opt[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

type scannable interface {
	Scan(dest ...any) error
}

func scanArrest(row scannable) (model.Arrest, error) {
	var a model.Arrest
	err := row.Scan(&a.ID, &a.Timestamp, &a.State, &a.County, &a.City,
		&a.ArrestCount, &a.CriminalArrests, &a.NonCriminalArrests,
		&a.DataSource, &a.SourceURL, &a.Key, &a.CreatedAt)
	return a, eris.Wrap(err, "store: scan arrest")
}

func scanDetention(row scannable) (model.Detention, error) {
	var d model.Detention
	err := row.Scan(&d.ID, &d.Timestamp, &d.FacilityName, &d.FacilityID, &d.FacilityType, &d.State, &d.City,
		&d.DetainedCount, &d.Capacity, &d.AvgDailyPopulation, &d.Latitude, &d.Longitude,
		&d.DataSource, &d.SourceURL, &d.Key, &d.CreatedAt)
	return d, eris.Wrap(err, "store: scan detention")
}

func scanRemoval(row scannable) (model.Removal, error) {
	var r model.Removal
	err := row.Scan(&r.ID, &r.Timestamp, &r.State, &r.RemovalCount, &r.CountryOfCitizenship, &r.RemovalType,
		&r.DataSource, &r.SourceURL, &r.Key, &r.CreatedAt)
	return r, eris.Wrap(err, "store: scan removal")
}

func scanHealth(row scannable) (model.HealthRecord, error) {
	var h model.HealthRecord
	var status string
	err := row.Scan(&h.ID, &h.RunID, &h.SourceName, &h.LastSuccessfulFetch, &h.LastAttempt,
		&status, &h.ErrorMessage, &h.RecordsFetched, &h.CreatedAt)
	h.Status = model.HealthStatus(status)
	return h, eris.Wrap(err, "store: scan health")
}
