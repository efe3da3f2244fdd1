package model

import "time"

// Override is a manually curated (date, url) pair that forces a thread
// into discovery when automated search misses it, typically because of
// a nonstandard title. Date doubles as the fallback date used when the
// title date parser fails. Overrides are read-only input; the crawler
// never mutates them.
type Override struct {
	Date time.Time
	URL  string
}
