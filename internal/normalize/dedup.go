package normalize

import (
	"strings"
	"time"

	"github.com/sells-group/ohss-collector/internal/model"
)

// DedupKey builds source_period_state_city_county, lower-cased with spaces
// replaced by underscores. The period is truncated to the day.
func DedupKey(source string, period time.Time, loc model.Location) string {
	parts := []string{
		source,
		period.Format("2006-01-02"),
		deref(loc.State),
		deref(loc.City),
		deref(loc.County),
	}
	return strings.ReplaceAll(strings.ToLower(strings.Join(parts, "_")), " ", "_")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
