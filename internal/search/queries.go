package search

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/example/threadharvest/internal/model"
)

// monthAbbrev returns the three-letter month abbreviation ("Aug").
func monthAbbrev(m time.Month) string {
	return m.String()[:3]
}

// broadQueries returns the month-wide search queries: the flair filter
// combined with the full and abbreviated month names. Broad queries cast
// the widest net; backfill queries narrow to single days only when a
// broad query hits the result-page ceiling.
func broadQueries(flair string, month model.Month) []string {
	name := month.Month.String()
	queries := []string{
		fmt.Sprintf("flair:%q %q", flair, name),
		fmt.Sprintf("flair:%q %q", flair, monthAbbrev(month.Month)),
	}
	return queries
}

// dayQueries returns the backfill queries for one under-covered day:
// abbreviated and full month names crossed with zero-padded and
// unpadded day numbers, to match however the title author wrote it.
func dayQueries(flair string, month model.Month, day int) []string {
	name := month.Month.String()
	abbrev := monthAbbrev(month.Month)

	variants := []string{
		fmt.Sprintf("%s %d", abbrev, day),
		fmt.Sprintf("%s %02d", abbrev, day),
		fmt.Sprintf("%s %d", name, day),
		fmt.Sprintf("%s %02d", name, day),
	}

	queries := make([]string, 0, len(variants))
	seen := make(map[string]bool, len(variants))
	for _, v := range variants {
		q := fmt.Sprintf("flair:%q %q", flair, v)
		if seen[q] {
			// Padded and unpadded collapse for days >= 10.
			continue
		}
		seen[q] = true
		queries = append(queries, q)
	}
	return queries
}

// searchURL builds the community search endpoint URL for one query.
func searchURL(baseURL, community, query string, limit int) string {
	v := url.Values{}
	v.Set("q", query)
	v.Set("restrict_sr", "on")
	v.Set("sort", "new")
	v.Set("t", "year")
	v.Set("limit", fmt.Sprintf("%d", limit))
	return fmt.Sprintf("%s/r/%s/search.json?%s",
		strings.TrimSuffix(baseURL, "/"), community, v.Encode())
}

// threadIDPattern extracts the thread identifier from a permalink like
// /r/<community>/comments/<id>/<slug>/.
var threadIDPattern = regexp.MustCompile(`/comments/([a-z0-9]+)`)

// threadIDFromURL extracts the platform thread ID from an override URL.
// Returns an empty string when the URL does not contain one.
func threadIDFromURL(rawURL string) string {
	m := threadIDPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return ""
	}
	return m[1]
}

// threadJSONURL builds the URL for a single thread's JSON representation.
func threadJSONURL(baseURL, community, threadID string) string {
	return fmt.Sprintf("%s/r/%s/comments/%s.json?limit=1",
		strings.TrimSuffix(baseURL, "/"), community, threadID)
}
