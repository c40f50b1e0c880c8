package scrape

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// DatePattern builds a fuzzy matcher for one calendar date as it appears in
// panel titles. It tolerates an optional leading zero on day and month,
// whitespace around '.', '-' or '/' separators, an optional trailing dot, an
// optional "год."/"године" year suffix, and an optional parenthesized
// weekday, e.g. "06.10.2025.", "6 . 10 . 2025", "06-10-2025 (понедељак)".
func DatePattern(date time.Time) *regexp.Regexp {
	day, month, year := date.Day(), int(date.Month()), date.Year()
	d := fmt.Sprintf(`(?:%02d|%d)`, day, day)
	m := fmt.Sprintf(`(?:%02d|%d)`, month, month)
	sep := `(?:\s*[.\-/]\s*)`
	tail := `(?:\.)?(?:\s*(?:год\.?|године))?(?:\s*\([^)]+\))?`
	return regexp.MustCompile(`(?i)` + d + sep + m + sep + strconv.Itoa(year) + tail)
}
