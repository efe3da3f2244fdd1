// Package merge implements newest-wins deduplication of record
// collections. It is the single synchronization point that makes
// repeated crawls of the same month idempotent and safe to re-run.
package merge

import (
	"sort"
	"time"
)

// Record is anything with a stable identifier and a creation timestamp.
// Both model.Thread and model.Comment satisfy it.
type Record interface {
	RecordID() string
	RecordCreatedAt() time.Time
}

// Merge combines two record collections by identifier, keeping the most
// recently created version of each. The map is seeded from existing; an
// incoming record replaces an entry only when absent or strictly newer.
// The result is sorted ascending by creation time, with ID as the
// tiebreak so output is deterministic for equal timestamps.
//
// Merge is pure and idempotent: merge(x, merge(x, y)) == merge(x, y).
func Merge[T Record](existing, incoming []T) []T {
	byID := make(map[string]T, len(existing)+len(incoming))
	for _, r := range existing {
		byID[r.RecordID()] = r
	}
	for _, r := range incoming {
		prev, ok := byID[r.RecordID()]
		if !ok || r.RecordCreatedAt().After(prev.RecordCreatedAt()) {
			byID[r.RecordID()] = r
		}
	}

	merged := make([]T, 0, len(byID))
	for _, r := range byID {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		ti, tj := merged[i].RecordCreatedAt(), merged[j].RecordCreatedAt()
		if ti.Equal(tj) {
			return merged[i].RecordID() < merged[j].RecordID()
		}
		return ti.Before(tj)
	})
	return merged
}

// SortByCreatedAt sorts records ascending by creation time in place,
// using ID as the tiebreak. Used by callers that need the collection
// sort invariant without a merge.
func SortByCreatedAt[T Record](records []T) {
	sort.Slice(records, func(i, j int) bool {
		ti, tj := records[i].RecordCreatedAt(), records[j].RecordCreatedAt()
		if ti.Equal(tj) {
			return records[i].RecordID() < records[j].RecordID()
		}
		return ti.Before(tj)
	})
}
