// Package normalize converts loosely typed cell values into canonical record fields.
package normalize

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ohss-collector/internal/model"
)

// timestampLayouts are tried in order; the first successful parse wins.
// Numeric day/month layouts accept single-digit components.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	"1/2/2006",
	"2/1/2006",
	"2006-01",
	"January 2006",
	"Jan 2006",
	"2006",
}

// ParseTimestamp parses s against the ordered layout chain.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, eris.New("normalize: empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.Errorf("normalize: unrecognized timestamp %q", s)
}

// Timestamp converts a cell to a time. Accepts String and Number cells (a
// whole number such as 2026 is read as a year). Absent or unparseable cells
// return fallback.
func Timestamp(v model.Value, fallback time.Time) time.Time {
	if v.IsAbsent() {
		return fallback
	}
	t, err := ParseTimestamp(v.Text())
	if err != nil {
		zap.L().Warn("normalize: could not parse date, using fallback",
			zap.String("value", v.Text()),
			zap.Time("fallback", fallback),
		)
		return fallback
	}
	return t
}
