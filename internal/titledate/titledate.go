// Package titledate extracts calendar dates from thread titles.
//
// The community's recurring threads carry their date in the title
// ("Daily General Discussion - August 24, 2026"), but the format drifts:
// abbreviated months, ordinal suffixes, day-first ordering, and
// occasionally ISO dates all appear in the wild. The parser accepts all
// of them; threads whose titles defeat it rely on a manual override date.
package titledate

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// monthsByName maps lowercase month names and abbreviations to months.
// "sept" appears because some title authors use the four-letter form.
var monthsByName = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sept": time.September, "sep": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

const monthAlternatives = `january|february|march|april|may|june|july|august|september|october|november|december|sept|jan|feb|mar|apr|jun|jul|aug|sep|oct|nov|dec`

// Patterns are tried in order; the first match wins. Month-first is
// tried before day-first because it is the dominant form in titles.
var (
	// "August 24, 2026", "Aug. 24th 2026"
	monthDayYear = regexp.MustCompile(`(?i)\b(` + monthAlternatives + `)\.?\s+(\d{1,2})(?:st|nd|rd|th)?\s*,?\s+(\d{4})\b`)

	// "24 August 2026", "24th of Aug, 2026"
	dayMonthYear = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?(` + monthAlternatives + `)\.?\s*,?\s+(\d{4})\b`)

	// "2026-08-24", "2026/08/24"
	isoDate = regexp.MustCompile(`\b(\d{4})[-/](\d{1,2})[-/](\d{1,2})\b`)
)

// Parse extracts the first recognizable date from title. The returned
// time is midnight UTC of that date. The second return value reports
// whether a valid date was found.
func Parse(title string) (time.Time, bool) {
	if m := monthDayYear.FindStringSubmatch(title); m != nil {
		return makeDate(m[3], m[1], m[2])
	}
	if m := dayMonthYear.FindStringSubmatch(title); m != nil {
		return makeDate(m[3], m[2], m[1])
	}
	if m := isoDate.FindStringSubmatch(title); m != nil {
		return makeNumericDate(m[1], m[2], m[3])
	}
	return time.Time{}, false
}

// Resolve extracts a date from title, falling back to the override
// date when parsing fails. A zero fallback means no override exists;
// in that case the second return value is false and the thread is
// excluded from month filtering.
func Resolve(title string, fallback time.Time) (time.Time, bool) {
	if d, ok := Parse(title); ok {
		return d, true
	}
	if !fallback.IsZero() {
		return fallback.UTC(), true
	}
	return time.Time{}, false
}

// makeDate builds a date from a year string, a month name, and a day string.
func makeDate(year, monthName, day string) (time.Time, bool) {
	month, ok := monthsByName[strings.ToLower(monthName)]
	if !ok {
		return time.Time{}, false
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return time.Time{}, false
	}
	return validate(y, month, d)
}

// makeNumericDate builds a date from numeric year/month/day strings.
func makeNumericDate(year, month, day string) (time.Time, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, false
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return time.Time{}, false
	}
	return validate(y, time.Month(m), d)
}

// validate rejects impossible day-of-month values. time.Date would
// silently normalize "February 30" into March, which would misfile the
// thread into the wrong month.
func validate(year int, month time.Month, day int) (time.Time, bool) {
	if day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}
