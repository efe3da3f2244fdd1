package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/threadharvest/internal/client"
	"github.com/example/threadharvest/internal/model"
)

// testLogger returns a logger that discards output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// noSleep is a sleep function that returns immediately.
func noSleep(_ context.Context, _ time.Duration) error { return nil }

// testClient returns a client that never sleeps, pointed at nothing in
// particular; the engine supplies the URLs.
func testClient() *client.Client {
	return client.New(client.WithSleepFunc(noSleep), client.WithLogger(testLogger()))
}

// postJSON renders one search-result child for a thread.
func postJSON(id, title string) string {
	return fmt.Sprintf(`{"kind": "t3", "data": {
		"id": %q,
		"title": %q,
		"author": "mod_bot",
		"created_utc": 1736000000,
		"num_comments": 10,
		"permalink": "/r/homelab/comments/%s/daily/",
		"link_flair_text": "Daily Discussion"
	}}`, id, title, id)
}

// listingJSON wraps children in a Listing envelope.
func listingJSON(children ...string) string {
	return fmt.Sprintf(`{"kind": "Listing", "data": {"children": [%s]}}`,
		strings.Join(children, ","))
}

// searchRecorder is a test server that answers search queries from a
// routing function and records every query it receives.
type searchRecorder struct {
	mu      sync.Mutex
	queries []string
	answer  func(query string) string
	srv     *httptest.Server
}

func newSearchRecorder(answer func(query string) string) *searchRecorder {
	r := &searchRecorder{answer: answer}
	r.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query().Get("q")
		r.mu.Lock()
		r.queries = append(r.queries, q)
		r.mu.Unlock()
		w.Write([]byte(r.answer(q))) //nolint:errcheck // Test server
	}))
	return r
}

func (r *searchRecorder) close() { r.srv.Close() }

func (r *searchRecorder) queryCount(substr string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, q := range r.queries {
		if strings.Contains(q, substr) {
			n++
		}
	}
	return n
}

// january2025 pins the engine clock outside the target month so the
// coverage heuristic considers every day of it.
var january2025 = model.Month{Year: 2025, Month: time.January}

// TestDiscover tests thread discovery.
func TestDiscover(t *testing.T) {
	t.Parallel()

	t.Run("collects and deduplicates broad query results", func(t *testing.T) {
		t.Parallel()

		// Both broad queries return the same two threads.
		rec := newSearchRecorder(func(string) string {
			return listingJSON(
				postJSON("aaa", "Daily Discussion - January 2, 2025"),
				postJSON("bbb", "Daily Discussion - January 1, 2025"),
			)
		})
		defer rec.close()

		e := New(testClient(),
			WithBaseURL(rec.srv.URL),
			WithLogger(testLogger()),
			WithPageLimit(100),
		)

		threads, outcomes, err := e.Discover(context.Background(), "homelab", january2025, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(threads) != 2 {
			t.Fatalf("expected 2 threads, got %d", len(threads))
		}
		// Sorted by resolved date, not discovery order.
		if threads[0].ID != "bbb" || threads[1].ID != "aaa" {
			t.Errorf("order = [%s %s], want [bbb aaa]", threads[0].ID, threads[1].ID)
		}
		if outcomes.SucceededCount() != 2 {
			t.Errorf("succeeded outcomes = %d, want 2 broad queries", outcomes.SucceededCount())
		}
	})

	t.Run("skips backfill when broad queries stay under the page limit", func(t *testing.T) {
		t.Parallel()

		rec := newSearchRecorder(func(string) string {
			return listingJSON(postJSON("aaa", "Daily Discussion - January 2, 2025"))
		})
		defer rec.close()

		e := New(testClient(),
			WithBaseURL(rec.srv.URL),
			WithLogger(testLogger()),
			WithPageLimit(100),
		)

		if _, _, err := e.Discover(context.Background(), "homelab", january2025, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		rec.mu.Lock()
		defer rec.mu.Unlock()
		if len(rec.queries) != 2 {
			t.Errorf("expected only the 2 broad queries, got %d: %v", len(rec.queries), rec.queries)
		}
	})

	t.Run("backfills under-covered days after a full page", func(t *testing.T) {
		t.Parallel()

		// Broad queries return a full page (limit 3): two threads on
		// January 5 and one on January 3. Day 5 is the best-covered day
		// and must not be backfilled; the day-3 backfill recovers a
		// thread the ceiling squeezed out.
		broad := listingJSON(
			postJSON("d5a", "Daily Discussion - January 5, 2025"),
			postJSON("d5b", "Daily Discussion - January 5, 2025 (continued)"),
			postJSON("d3a", "Daily Discussion - January 3, 2025"),
		)
		rec := newSearchRecorder(func(q string) string {
			switch {
			case strings.Contains(q, "January 3") || strings.Contains(q, "Jan 3"):
				return listingJSON(
					postJSON("d3a", "Daily Discussion - January 3, 2025"),
					postJSON("d3b", "Daily Discussion - January 3, 2025 (overflow)"),
				)
			case strings.Contains(q, " 0") || strings.Contains(q, "Jan ") || strings.Contains(q, "January "):
				return listingJSON()
			default:
				return broad
			}
		})
		defer rec.close()

		// Clock pinned inside the month: only days 1..6 are candidates.
		now := func() time.Time { return time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC) }

		e := New(testClient(),
			WithBaseURL(rec.srv.URL),
			WithLogger(testLogger()),
			WithPageLimit(3),
			WithNow(now),
		)

		threads, _, err := e.Discover(context.Background(), "homelab", january2025, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := len(threads); got != 4 {
			t.Fatalf("expected 4 threads after backfill, got %d", got)
		}
		found := false
		for _, th := range threads {
			if th.ID == "d3b" {
				found = true
			}
		}
		if !found {
			t.Error("expected backfill to recover thread d3b")
		}

		// The best-covered day is assumed complete.
		if n := rec.queryCount(`"Jan 5"`); n != 0 {
			t.Errorf("day 5 was backfilled %d times, want 0", n)
		}
		// Under-covered days are queried.
		if n := rec.queryCount(`"Jan 3"`); n == 0 {
			t.Error("expected day 3 backfill queries")
		}
		if n := rec.queryCount(`"Jan 1"`); n == 0 {
			t.Error("expected day 1 backfill queries")
		}
		// Days past "today" are not candidates.
		if n := rec.queryCount(`"Jan 7"`); n != 0 {
			t.Errorf("day 7 is in the future but was queried %d times", n)
		}
	})

	t.Run("filters threads outside the target month", func(t *testing.T) {
		t.Parallel()

		rec := newSearchRecorder(func(string) string {
			return listingJSON(
				postJSON("jan", "Daily Discussion - January 15, 2025"),
				postJSON("dec", "Daily Discussion - December 31, 2024"),
				postJSON("feb", "Daily Discussion - February 1, 2025"),
				postJSON("und", "Daily Discussion without a date"),
			)
		})
		defer rec.close()

		e := New(testClient(),
			WithBaseURL(rec.srv.URL),
			WithLogger(testLogger()),
			WithPageLimit(100),
		)

		threads, _, err := e.Discover(context.Background(), "homelab", january2025, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(threads) != 1 || threads[0].ID != "jan" {
			t.Fatalf("expected only the January thread, got %+v", threads)
		}
	})

	t.Run("contains individual query failures as skipped outcomes", func(t *testing.T) {
		t.Parallel()

		var calls int
		var mu sync.Mutex
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			mu.Lock()
			calls++
			n := calls
			mu.Unlock()
			if n == 1 {
				// Undecodable page: the query is skipped, not fatal.
				w.Write([]byte(`{"kind": "wat"}`)) //nolint:errcheck // Test server
				return
			}
			w.Write([]byte(listingJSON(postJSON("aaa", "Daily Discussion - January 2, 2025")))) //nolint:errcheck // Test server
		}))
		defer srv.Close()

		e := New(testClient(),
			WithBaseURL(srv.URL),
			WithLogger(testLogger()),
			WithPageLimit(100),
		)

		threads, outcomes, err := e.Discover(context.Background(), "homelab", january2025, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(threads) != 1 {
			t.Errorf("expected 1 thread from the surviving query, got %d", len(threads))
		}
		if len(outcomes.Skipped()) != 1 {
			t.Errorf("expected 1 skipped outcome, got %d", len(outcomes.Skipped()))
		}
	})

	t.Run("rate limit exhaustion aborts with partial results", func(t *testing.T) {
		t.Parallel()

		var calls int
		var mu sync.Mutex
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			mu.Lock()
			calls++
			n := calls
			mu.Unlock()
			if n == 1 {
				w.Write([]byte(listingJSON(postJSON("aaa", "Daily Discussion - January 2, 2025")))) //nolint:errcheck // Test server
				return
			}
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		e := New(testClient(),
			WithBaseURL(srv.URL),
			WithLogger(testLogger()),
			WithPageLimit(100),
		)

		threads, _, err := e.Discover(context.Background(), "homelab", january2025, nil)
		if !errors.Is(err, client.ErrRateLimitExceeded) {
			t.Fatalf("expected ErrRateLimitExceeded, got %v", err)
		}
		if len(threads) != 1 {
			t.Errorf("expected the partial result to be returned, got %d threads", len(threads))
		}
	})
}

// TestDiscoverOverrides tests manual override application.
func TestDiscoverOverrides(t *testing.T) {
	t.Parallel()

	t.Run("fetches the override thread and attaches the fallback date", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.URL.Path, "/comments/ovr11") {
				// Thread endpoint: [post listing, comment listing].
				fmt.Fprintf(w, `[%s, %s]`,
					listingJSON(postJSON("ovr11", "daily chat")),
					listingJSON(),
				)
				return
			}
			w.Write([]byte(listingJSON())) //nolint:errcheck // Test server
		}))
		defer srv.Close()

		e := New(testClient(),
			WithBaseURL(srv.URL),
			WithLogger(testLogger()),
			WithPageLimit(100),
		)

		overrides := []model.Override{{
			Date: time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC),
			URL:  srv.URL + "/r/homelab/comments/ovr11/daily_chat/",
		}}

		threads, _, err := e.Discover(context.Background(), "homelab", january2025, overrides)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(threads) != 1 {
			t.Fatalf("expected 1 thread, got %d", len(threads))
		}
		// The title has no parseable date; the override date places it.
		if threads[0].ID != "ovr11" {
			t.Errorf("thread id = %q, want ovr11", threads[0].ID)
		}
		want := time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC)
		if !threads[0].OverrideDate.Equal(want) {
			t.Errorf("override date = %v, want %v", threads[0].OverrideDate, want)
		}
	})

	t.Run("ignores overrides outside the target month", func(t *testing.T) {
		t.Parallel()

		rec := newSearchRecorder(func(string) string { return listingJSON() })
		defer rec.close()

		e := New(testClient(),
			WithBaseURL(rec.srv.URL),
			WithLogger(testLogger()),
			WithPageLimit(100),
		)

		overrides := []model.Override{{
			Date: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
			URL:  rec.srv.URL + "/r/homelab/comments/febthread/daily/",
		}}

		if _, _, err := e.Discover(context.Background(), "homelab", january2025, overrides); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n := rec.queryCount(""); n != 2 {
			t.Errorf("expected only broad queries, got %d requests", n)
		}
	})

	t.Run("override URL without a thread ID is a skipped outcome", func(t *testing.T) {
		t.Parallel()

		rec := newSearchRecorder(func(string) string { return listingJSON() })
		defer rec.close()

		e := New(testClient(),
			WithBaseURL(rec.srv.URL),
			WithLogger(testLogger()),
			WithPageLimit(100),
		)

		overrides := []model.Override{{
			Date: time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC),
			URL:  "https://example.com/not-a-thread",
		}}

		_, outcomes, err := e.Discover(context.Background(), "homelab", january2025, overrides)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(outcomes.Skipped()) != 1 {
			t.Errorf("expected 1 skipped outcome, got %d", len(outcomes.Skipped()))
		}
	})
}

// TestQueries tests search query construction.
func TestQueries(t *testing.T) {
	t.Parallel()

	t.Run("broad queries cover full and abbreviated month names", func(t *testing.T) {
		t.Parallel()

		got := broadQueries("Daily Discussion", january2025)
		want := []string{
			`flair:"Daily Discussion" "January"`,
			`flair:"Daily Discussion" "Jan"`,
		}
		if len(got) != len(want) {
			t.Fatalf("expected %d queries, got %d", len(want), len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("query %d = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("day queries cross name forms with day padding", func(t *testing.T) {
		t.Parallel()

		got := dayQueries("Daily Discussion", january2025, 5)
		want := []string{
			`flair:"Daily Discussion" "Jan 5"`,
			`flair:"Daily Discussion" "Jan 05"`,
			`flair:"Daily Discussion" "January 5"`,
			`flair:"Daily Discussion" "January 05"`,
		}
		if len(got) != len(want) {
			t.Fatalf("expected %d queries, got %d: %v", len(want), len(got), got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("query %d = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("padded variants collapse for two-digit days", func(t *testing.T) {
		t.Parallel()

		got := dayQueries("Daily Discussion", january2025, 15)
		if len(got) != 2 {
			t.Fatalf("expected 2 queries for a two-digit day, got %d: %v", len(got), got)
		}
	})

	t.Run("thread ID extraction from override URLs", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			url  string
			want string
		}{
			{"https://www.reddit.com/r/homelab/comments/abc123/daily/", "abc123"},
			{"https://www.reddit.com/r/homelab/comments/xyz9", "xyz9"},
			{"https://www.reddit.com/r/homelab/", ""},
		}
		for _, tt := range tests {
			if got := threadIDFromURL(tt.url); got != tt.want {
				t.Errorf("threadIDFromURL(%q) = %q, want %q", tt.url, got, tt.want)
			}
		}
	})
}
