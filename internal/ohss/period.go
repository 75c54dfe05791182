package ohss

import "regexp"

// periodPatterns are tried in order; the first pattern with any match wins.
var periodPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{4}`),
	regexp.MustCompile(`(?i)(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+\d{4}`),
	regexp.MustCompile(`\d{4}[-_]\d{2}`),
}

// ExtractPeriod returns the raw month/year token found in text, such as
// "January 2026", "Jan 2026", or "2026-01". The token is not parsed.
func ExtractPeriod(text string) (string, bool) {
	for _, re := range periodPatterns {
		if m := re.FindString(text); m != "" {
			return m, true
		}
	}
	return "", false
}
