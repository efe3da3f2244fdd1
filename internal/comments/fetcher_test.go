package comments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
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

// testClient returns a client that never sleeps.
func testClient() *client.Client {
	return client.New(client.WithSleepFunc(noSleep), client.WithLogger(testLogger()))
}

// commentJSON renders one t1 child.
func commentJSON(id, parentID, body string) string {
	return fmt.Sprintf(`{"kind": "t1", "data": {
		"id": %q,
		"author": "user_%s",
		"body": %q,
		"created_utc": 1736000000,
		"parent_id": %q,
		"permalink": "/r/homelab/comments/abc/daily/%s/"
	}}`, id, id, body, parentID, id)
}

// moreJSON renders one continuation marker child.
func moreJSON(parentID string, children ...string) string {
	quoted := make([]string, len(children))
	for i, c := range children {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	return fmt.Sprintf(`{"kind": "more", "data": {
		"count": %d,
		"parent_id": %q,
		"children": [%s]
	}}`, len(children), parentID, strings.Join(quoted, ","))
}

// threadPageJSON renders the two-listing thread endpoint response.
func threadPageJSON(children ...string) string {
	return fmt.Sprintf(`[
		{"kind": "Listing", "data": {"children": []}},
		{"kind": "Listing", "data": {"children": [%s]}}
	]`, strings.Join(children, ","))
}

// moreChildrenJSON renders the continuation endpoint envelope.
func moreChildrenJSON(things ...string) string {
	return fmt.Sprintf(`{"json": {"errors": [], "data": {"things": [%s]}}}`,
		strings.Join(things, ","))
}

// testThread builds a thread pointed at the test server.
func testThread(srvURL, id string) model.Thread {
	return model.Thread{
		ID:        id,
		Title:     "Daily Discussion - January 15, 2025",
		URL:       srvURL + "/r/homelab/comments/" + id + "/daily",
		CreatedAt: time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC),
	}
}

// commentIDs returns the sorted IDs of a comment slice.
func commentIDs(comments []model.Comment) []string {
	ids := make([]string, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
	}
	sort.Strings(ids)
	return ids
}

// TestFetchForThread tests single-thread comment retrieval.
func TestFetchForThread(t *testing.T) {
	t.Parallel()

	t.Run("keeps only root-level comments", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(threadPageJSON( //nolint:errcheck // Test server
				commentJSON("c1", "t3_abc", "root comment"),
				commentJSON("c2", "t1_c1", "nested reply"),
				commentJSON("c3", "t3_abc", "another root"),
			)))
		}))
		defer srv.Close()

		f := New(testClient(), WithBaseURL(srv.URL), WithLogger(testLogger()))
		thread := testThread(srv.URL, "abc")

		got, err := f.FetchForThread(context.Background(), thread)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"c1", "c3"}
		gotIDs := commentIDs(got)
		if len(gotIDs) != len(want) {
			t.Fatalf("expected comments %v, got %v", want, gotIDs)
		}
		for i := range want {
			if gotIDs[i] != want[i] {
				t.Fatalf("expected comments %v, got %v", want, gotIDs)
			}
		}
	})

	t.Run("attaches thread identity to each comment", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(threadPageJSON(commentJSON("c1", "t3_abc", "hello &amp; welcome")))) //nolint:errcheck // Test server
		}))
		defer srv.Close()

		f := New(testClient(), WithBaseURL(srv.URL), WithLogger(testLogger()))
		thread := testThread(srv.URL, "abc")

		got, err := f.FetchForThread(context.Background(), thread)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected 1 comment, got %d", len(got))
		}
		if got[0].ThreadID != thread.ID {
			t.Errorf("thread id = %q, want %q", got[0].ThreadID, thread.ID)
		}
		if got[0].ThreadTitle != thread.Title {
			t.Errorf("thread title = %q, want %q", got[0].ThreadTitle, thread.Title)
		}
		if got[0].Body != "hello & welcome" {
			t.Errorf("body = %q, HTML entities should be decoded", got[0].Body)
		}
	})

	t.Run("resolves root continuation markers and drops nested ones", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.URL.Path, "morechildren") {
				w.Write([]byte(moreChildrenJSON( //nolint:errcheck // Test server
					commentJSON("c5", "t3_abc", "hidden root"),
					commentJSON("c6", "t1_c5", "hidden nested"),
				)))
				return
			}
			w.Write([]byte(threadPageJSON( //nolint:errcheck // Test server
				commentJSON("c1", "t3_abc", "visible root"),
				moreJSON("t3_abc", "c5", "c6"),
				moreJSON("t1_c1", "c7"),
			)))
		}))
		defer srv.Close()

		f := New(testClient(), WithBaseURL(srv.URL), WithLogger(testLogger()))
		thread := testThread(srv.URL, "abc")

		got, err := f.FetchForThread(context.Background(), thread)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"c1", "c5"}
		gotIDs := commentIDs(got)
		if len(gotIDs) != 2 || gotIDs[0] != want[0] || gotIDs[1] != want[1] {
			t.Fatalf("expected comments %v, got %v", want, gotIDs)
		}
	})

	t.Run("batches continuation requests at the endpoint limit", func(t *testing.T) {
		t.Parallel()

		// 150 pending children must arrive as batches of 100 and 50.
		children := make([]string, 150)
		for i := range children {
			children[i] = fmt.Sprintf("x%03d", i)
		}

		var mu sync.Mutex
		var batchSizes []int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.URL.Path, "morechildren") {
				ids := strings.Split(r.URL.Query().Get("children"), ",")
				mu.Lock()
				batchSizes = append(batchSizes, len(ids))
				mu.Unlock()
				w.Write([]byte(moreChildrenJSON(commentJSON("c_"+ids[0], "t3_abc", "batch head")))) //nolint:errcheck // Test server
				return
			}
			w.Write([]byte(threadPageJSON(moreJSON("t3_abc", children...)))) //nolint:errcheck // Test server
		}))
		defer srv.Close()

		f := New(testClient(), WithBaseURL(srv.URL), WithLogger(testLogger()))
		thread := testThread(srv.URL, "abc")

		if _, err := f.FetchForThread(context.Background(), thread); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		mu.Lock()
		defer mu.Unlock()
		if len(batchSizes) != 2 || batchSizes[0] != 100 || batchSizes[1] != 50 {
			t.Errorf("batch sizes = %v, want [100 50]", batchSizes)
		}
	})

	t.Run("re-queues markers returned by continuation responses", func(t *testing.T) {
		t.Parallel()

		var mu sync.Mutex
		var moreCalls int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.URL.Path, "morechildren") {
				mu.Lock()
				moreCalls++
				n := moreCalls
				mu.Unlock()
				if n == 1 {
					// The continuation response itself ends in a marker.
					w.Write([]byte(moreChildrenJSON( //nolint:errcheck // Test server
						commentJSON("c5", "t3_abc", "first wave"),
						moreJSON("t3_abc", "c9"),
					)))
					return
				}
				w.Write([]byte(moreChildrenJSON(commentJSON("c9", "t3_abc", "second wave")))) //nolint:errcheck // Test server
				return
			}
			w.Write([]byte(threadPageJSON(moreJSON("t3_abc", "c5")))) //nolint:errcheck // Test server
		}))
		defer srv.Close()

		f := New(testClient(), WithBaseURL(srv.URL), WithLogger(testLogger()))
		thread := testThread(srv.URL, "abc")

		got, err := f.FetchForThread(context.Background(), thread)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"c5", "c9"}
		gotIDs := commentIDs(got)
		if len(gotIDs) != 2 || gotIDs[0] != want[0] || gotIDs[1] != want[1] {
			t.Fatalf("expected comments %v, got %v", want, gotIDs)
		}
	})
}

// TestFetchForThreads tests the multi-thread fan-out.
func TestFetchForThreads(t *testing.T) {
	t.Parallel()

	// threadsServer serves distinct comments per thread and a failure for
	// thread "bad".
	threadsServer := func() *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case strings.Contains(r.URL.Path, "/comments/bad"):
				w.WriteHeader(http.StatusNotFound)
			case strings.Contains(r.URL.Path, "/comments/one"):
				w.Write([]byte(threadPageJSON(commentJSON("c1", "t3_one", "from one")))) //nolint:errcheck // Test server
			default:
				w.Write([]byte(threadPageJSON(commentJSON("c2", "t3_two", "from two")))) //nolint:errcheck // Test server
			}
		}))
	}

	t.Run("sequential mode contains per-thread failures", func(t *testing.T) {
		t.Parallel()

		srv := threadsServer()
		defer srv.Close()

		f := New(testClient(), WithBaseURL(srv.URL), WithLogger(testLogger()))
		threads := []model.Thread{
			testThread(srv.URL, "one"),
			testThread(srv.URL, "bad"),
			testThread(srv.URL, "two"),
		}

		got, outcomes, err := f.FetchForThreads(context.Background(), threads, FetchOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("expected 2 comments from surviving threads, got %d", len(got))
		}
		if outcomes.SucceededCount() != 2 {
			t.Errorf("succeeded = %d, want 2", outcomes.SucceededCount())
		}
		skipped := outcomes.Skipped()
		if len(skipped) != 1 || skipped[0].Unit != "bad" {
			t.Errorf("skipped = %+v, want thread bad", skipped)
		}
	})

	t.Run("concurrent mode collects the same comment set", func(t *testing.T) {
		t.Parallel()

		srv := threadsServer()
		defer srv.Close()

		f := New(testClient(), WithBaseURL(srv.URL), WithLogger(testLogger()))
		threads := []model.Thread{
			testThread(srv.URL, "one"),
			testThread(srv.URL, "two"),
		}

		got, outcomes, err := f.FetchForThreads(context.Background(), threads, FetchOptions{Concurrent: true, Workers: 2})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"c1", "c2"}
		gotIDs := commentIDs(got)
		if len(gotIDs) != 2 || gotIDs[0] != want[0] || gotIDs[1] != want[1] {
			t.Fatalf("expected comments %v, got %v", want, gotIDs)
		}
		if outcomes.SucceededCount() != 2 {
			t.Errorf("succeeded = %d, want 2", outcomes.SucceededCount())
		}
	})

	t.Run("rate limit exhaustion aborts the batch", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		f := New(testClient(), WithBaseURL(srv.URL), WithLogger(testLogger()))
		threads := []model.Thread{testThread(srv.URL, "one")}

		_, _, err := f.FetchForThreads(context.Background(), threads, FetchOptions{})
		if !errors.Is(err, client.ErrRateLimitExceeded) {
			t.Fatalf("expected ErrRateLimitExceeded, got %v", err)
		}
	})

	t.Run("empty thread list is a no-op", func(t *testing.T) {
		t.Parallel()

		f := New(testClient(), WithLogger(testLogger()))

		got, outcomes, err := f.FetchForThreads(context.Background(), nil, FetchOptions{Concurrent: true})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 0 || len(outcomes) != 0 {
			t.Errorf("expected empty results, got %d comments, %d outcomes", len(got), len(outcomes))
		}
	})
}
