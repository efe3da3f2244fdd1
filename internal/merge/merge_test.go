package merge

import (
	"testing"
	"time"
)

// record is a minimal Record implementation for merge tests.
type record struct {
	id      string
	created time.Time
	payload string
}

func (r record) RecordID() string           { return r.id }
func (r record) RecordCreatedAt() time.Time { return r.created }

func at(day, hour int) time.Time {
	return time.Date(2025, 1, day, hour, 0, 0, 0, time.UTC)
}

func ids(records []record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.id
	}
	return out
}

// TestMerge tests newest-wins deduplication.
func TestMerge(t *testing.T) {
	t.Parallel()

	t.Run("keeps the newer version of a duplicate", func(t *testing.T) {
		t.Parallel()

		existing := []record{{id: "a", created: at(1, 0), payload: "old"}}
		incoming := []record{{id: "a", created: at(1, 5), payload: "new"}}

		got := Merge(existing, incoming)

		if len(got) != 1 {
			t.Fatalf("expected 1 record, got %d", len(got))
		}
		if got[0].payload != "new" {
			t.Errorf("expected newer payload to win, got %q", got[0].payload)
		}
	})

	t.Run("keeps existing when incoming is not strictly newer", func(t *testing.T) {
		t.Parallel()

		existing := []record{{id: "a", created: at(1, 0), payload: "existing"}}
		incoming := []record{{id: "a", created: at(1, 0), payload: "incoming"}}

		got := Merge(existing, incoming)

		if len(got) != 1 {
			t.Fatalf("expected 1 record, got %d", len(got))
		}
		if got[0].payload != "existing" {
			t.Errorf("expected existing record to survive a timestamp tie, got %q", got[0].payload)
		}
	})

	t.Run("unions disjoint collections sorted by creation time", func(t *testing.T) {
		t.Parallel()

		existing := []record{{id: "b", created: at(2, 0)}}
		incoming := []record{{id: "c", created: at(3, 0)}, {id: "a", created: at(1, 0)}}

		got := Merge(existing, incoming)

		want := []string{"a", "b", "c"}
		gotIDs := ids(got)
		for i := range want {
			if gotIDs[i] != want[i] {
				t.Fatalf("expected order %v, got %v", want, gotIDs)
			}
		}
	})

	t.Run("breaks timestamp ties by id", func(t *testing.T) {
		t.Parallel()

		got := Merge(nil, []record{
			{id: "z", created: at(1, 0)},
			{id: "a", created: at(1, 0)},
			{id: "m", created: at(1, 0)},
		})

		want := []string{"a", "m", "z"}
		gotIDs := ids(got)
		for i := range want {
			if gotIDs[i] != want[i] {
				t.Fatalf("expected order %v, got %v", want, gotIDs)
			}
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		t.Parallel()

		existing := []record{
			{id: "a", created: at(1, 0), payload: "a1"},
			{id: "b", created: at(2, 0), payload: "b1"},
		}
		incoming := []record{
			{id: "a", created: at(1, 5), payload: "a2"},
			{id: "c", created: at(3, 0), payload: "c1"},
		}

		once := Merge(existing, incoming)
		twice := Merge(once, incoming)

		if len(once) != len(twice) {
			t.Fatalf("expected identical lengths, got %d and %d", len(once), len(twice))
		}
		for i := range once {
			if once[i] != twice[i] {
				t.Errorf("record %d changed across merges: %+v vs %+v", i, once[i], twice[i])
			}
		}
	})

	t.Run("does not mutate inputs", func(t *testing.T) {
		t.Parallel()

		existing := []record{{id: "b", created: at(2, 0)}, {id: "a", created: at(1, 0)}}
		incoming := []record{{id: "a", created: at(1, 5)}}

		Merge(existing, incoming)

		if existing[0].id != "b" || existing[1].id != "a" {
			t.Error("existing slice was reordered")
		}
	})

	t.Run("handles empty inputs", func(t *testing.T) {
		t.Parallel()

		if got := Merge[record](nil, nil); len(got) != 0 {
			t.Errorf("expected empty result, got %d records", len(got))
		}
		only := []record{{id: "a", created: at(1, 0)}}
		if got := Merge(only, nil); len(got) != 1 {
			t.Errorf("expected 1 record, got %d", len(got))
		}
		if got := Merge(nil, only); len(got) != 1 {
			t.Errorf("expected 1 record, got %d", len(got))
		}
	})
}

// TestSortByCreatedAt tests the standalone sort helper.
func TestSortByCreatedAt(t *testing.T) {
	t.Parallel()

	records := []record{
		{id: "c", created: at(3, 0)},
		{id: "b", created: at(1, 0)},
		{id: "a", created: at(1, 0)},
	}

	SortByCreatedAt(records)

	want := []string{"a", "b", "c"}
	gotIDs := ids(records)
	for i := range want {
		if gotIDs[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, gotIDs)
		}
	}
}
