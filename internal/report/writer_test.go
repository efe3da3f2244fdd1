package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/example/threadharvest/internal/database"
)

// testSummary builds a report with one month and one recorded run.
func testSummary() *Summary {
	threads, comments := testCollections()
	return &Summary{
		GeneratedAt: time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC),
		Months:      []MonthSummary{BuildMonthSummary(reportMonth, threads, comments)},
		Runs: []database.Run{{
			Month:        "2025-01",
			StartedAt:    time.Date(2025, 2, 1, 11, 0, 0, 0, time.UTC),
			Status:       database.RunCompleted,
			ThreadCount:  3,
			CommentCount: 4,
			NewThreads:   1,
			NewComments:  2,
		}},
	}
}

// TestJSONWriter tests the machine-readable output.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("produces valid JSON that round-trips", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewJSONWriter(&buf).Write(testSummary())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("reported %d bytes, wrote %d", n, buf.Len())
		}

		var got Summary
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got.Months) != 1 || got.Months[0].ThreadCount != 3 {
			t.Errorf("months = %+v", got.Months)
		}
		if len(got.Runs) != 1 || got.Runs[0].Status != database.RunCompleted {
			t.Errorf("runs = %+v", got.Runs)
		}
	})

	t.Run("uses the documented field names", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(testSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		for _, field := range []string{
			`"generated_at"`,
			`"months"`,
			`"thread_count"`,
			`"thread_count_with_comments"`,
			`"missing_days"`,
			`"started_at"`,
			`"skipped_units"`,
		} {
			if !strings.Contains(buf.String(), field) {
				t.Errorf("output missing field %s", field)
			}
		}
	})
}

// TestMarkdownWriter tests the Markdown output.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("renders the month table and run history", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(testSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out := buf.String()
		for _, want := range []string{
			"# Crawl Report",
			"## Months",
			"2025-01",
			"## Recent Runs",
			"completed",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q", want)
			}
		}
	})

	t.Run("lists gaps for incomplete months", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(testSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out := buf.String()
		if !strings.Contains(out, "2025-01 gaps") {
			t.Error("expected a gaps section for the incomplete month")
		}
		if !strings.Contains(out, "2025-01-04") {
			t.Error("expected the missing day to be listed")
		}
	})

	t.Run("handles an empty archive", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		summary := &Summary{GeneratedAt: time.Now()}
		if _, err := NewMarkdownWriter(&buf).Write(summary); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "No months in the archive.") {
			t.Error("expected the empty-archive notice")
		}
	})
}

// TestTextWriter tests the default terminal output.
func TestTextWriter(t *testing.T) {
	t.Parallel()

	t.Run("renders months and runs", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewTextWriter(&buf).Write(testSummary())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("reported %d bytes, wrote %d", n, buf.Len())
		}

		out := buf.String()
		for _, want := range []string{
			"Crawl Report",
			"2025-01",
			"threads:              3",
			"comments:             4",
			"missing days:         2025-01-04",
			"Recent runs:",
			"completed",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q", want)
			}
		}
	})

	t.Run("handles an empty archive", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		summary := &Summary{GeneratedAt: time.Now()}
		if _, err := NewTextWriter(&buf).Write(summary); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "No months in the archive.") {
			t.Error("expected the empty-archive notice")
		}
	})
}
