package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/ohss-collector/internal/model"
)

// placeholder renders the n-th (1-based) bind parameter for a driver.
type placeholder func(n int) string

func dollar(n int) string { return "$" + strconv.Itoa(n) }
func question(int) string { return "?" }

const (
	selectArrests = `SELECT id, timestamp, state, county, city,
	arrest_count, criminal_arrests, non_criminal_arrests,
	data_source, source_url, dedup_key, created_at
FROM arrests`

	selectDetentions = `SELECT id, timestamp, facility_name, facility_id, facility_type, state, city,
	detained_count, capacity, avg_daily_population, latitude, longitude,
	data_source, source_url, dedup_key, created_at
FROM detentions`

	selectRemovals = `SELECT id, timestamp, state, removal_count, country_of_citizenship, removal_type,
	data_source, source_url, dedup_key, created_at
FROM removals`

	healthColumns = `id, run_id, source_name, last_successful_fetch, last_attempt,
	status, error_message, records_fetched, created_at`
)

func selectFor(kind model.EntityKind) string {
	switch kind {
	case model.KindDetentions:
		return selectDetentions
	case model.KindRemovals:
		return selectRemovals
	default:
		return selectArrests
	}
}

// listQuery builds a filtered, newest-first list query for kind.
func listQuery(ph placeholder, kind model.EntityKind, f RecordFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, ph(len(args))))
	}

	if f.State != "" {
		add("state = %s", strings.ToUpper(f.State))
	}
	if f.FacilityID != "" && kind == model.KindDetentions {
		add("facility_id = %s", f.FacilityID)
	}
	if f.Start != nil {
		add("timestamp >= %s", f.Start.UTC())
	}
	if f.End != nil {
		add("timestamp <= %s", f.End.UTC())
	}

	var b strings.Builder
	b.WriteString(selectFor(kind))
	if len(where) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	args = append(args, f.limit())
	fmt.Fprintf(&b, "\nORDER BY timestamp DESC, id DESC LIMIT %s", ph(len(args)))
	return b.String(), args
}

// aggregateQuery computes the three totals in one round trip. An empty state
// aggregates nationally.
func aggregateQuery(ph placeholder, state string, start, end time.Time) (string, []any) {
	args := []any{}
	window := func() string {
		args = append(args, start.UTC(), end.UTC())
		clause := fmt.Sprintf("timestamp >= %s AND timestamp <= %s", ph(len(args)-1), ph(len(args)))
		if state != "" {
			args = append(args, strings.ToUpper(state))
			clause += fmt.Sprintf(" AND state = %s", ph(len(args)))
		}
		return clause
	}

	q := fmt.Sprintf(`SELECT
	(SELECT CAST(COALESCE(SUM(arrest_count), 0) AS BIGINT) FROM arrests WHERE %s),
	(SELECT CAST(COALESCE(AVG(detained_count), 0) AS BIGINT) FROM detentions WHERE %s),
	(SELECT CAST(COALESCE(SUM(removal_count), 0) AS BIGINT) FROM removals WHERE %s)`,
		window(), window(), window())
	return q, args
}

func aggregatePeriod(state string) string {
	if state == "" {
		return "custom"
	}
	return strings.ToUpper(state)
}
