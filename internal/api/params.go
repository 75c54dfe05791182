package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ohss-collector/internal/store"
)

const dateLayout = "2006-01-02"

// parseDate accepts YYYY-MM-DD or RFC 3339. A date-only end bound covers
// the whole day.
func parseDate(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		if endOfDay {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, eris.Errorf("api: invalid date %q, want YYYY-MM-DD", raw)
	}
	t = t.UTC()
	return &t, nil
}

// recordFilter reads state, start_date, end_date, limit and facility_id.
func recordFilter(r *http.Request) (store.RecordFilter, error) {
	q := r.URL.Query()
	f := store.RecordFilter{
		State:      strings.TrimSpace(q.Get("state")),
		FacilityID: strings.TrimSpace(q.Get("facility_id")),
	}

	var err error
	if f.Start, err = parseDate(q.Get("start_date"), false); err != nil {
		return f, err
	}
	if f.End, err = parseDate(q.Get("end_date"), true); err != nil {
		return f, err
	}
	if f.Start != nil && f.End != nil && f.End.Before(*f.Start) {
		return f, eris.New("api: end_date is before start_date")
	}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return f, eris.Errorf("api: invalid limit %q", raw)
		}
		if n > store.MaxLimit {
			n = store.MaxLimit
		}
		f.Limit = n
	}
	return f, nil
}

// window reads the aggregate date range, defaulting to the last month.
func window(r *http.Request, now time.Time) (time.Time, time.Time, error) {
	q := r.URL.Query()
	now = now.UTC()
	start := now.AddDate(0, -1, 0).Truncate(24 * time.Hour)
	end := now

	s, err := parseDate(q.Get("start_date"), false)
	if err != nil {
		return start, end, err
	}
	if s != nil {
		start = *s
	}
	e, err := parseDate(q.Get("end_date"), true)
	if err != nil {
		return start, end, err
	}
	if e != nil {
		end = *e
	}
	if end.Before(start) {
		return start, end, eris.New("api: end_date is before start_date")
	}
	return start, end, nil
}
