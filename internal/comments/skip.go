package comments

import (
	"github.com/example/threadharvest/internal/model"
)

// Previous holds the prior crawl's persisted state, indexed for the
// skip-unchanged optimization.
type Previous struct {
	threads  map[string]model.Thread
	byThread map[string][]model.Comment
}

// NewPrevious indexes previously persisted threads and comments.
func NewPrevious(threads []model.Thread, comments []model.Comment) *Previous {
	p := &Previous{
		threads:  make(map[string]model.Thread, len(threads)),
		byThread: make(map[string][]model.Comment),
	}
	for _, t := range threads {
		p.threads[t.ID] = t
	}
	for _, c := range comments {
		p.byThread[c.ThreadID] = append(p.byThread[c.ThreadID], c)
	}
	return p
}

// Partition implements the skip-unchanged optimization: threads whose
// comment count has not increased since the last crawl are not
// re-fetched; their previously persisted comments are carried forward
// with thread_id and thread_title refreshed from the current thread.
//
// The known risk: a comment deleted and replaced by a new one leaves
// the total unchanged and the replacement is missed until the count
// next grows. Callers enabling this mode must surface that tradeoff to
// the operator.
//
// A thread whose count is unchanged but which has no persisted comments
// despite a nonzero count is still fetched — skipping it would
// carry the earlier gap forward indefinitely.
func Partition(threads []model.Thread, prev *Previous) (toFetch []model.Thread, carried []model.Comment, skippedIDs []string) {
	if prev == nil {
		return threads, nil, nil
	}

	for _, t := range threads {
		old, seen := prev.threads[t.ID]
		if !seen || t.CommentCount > old.CommentCount {
			toFetch = append(toFetch, t)
			continue
		}
		existing := prev.byThread[t.ID]
		if len(existing) == 0 && t.CommentCount > 0 {
			toFetch = append(toFetch, t)
			continue
		}

		skippedIDs = append(skippedIDs, t.ID)
		for _, c := range existing {
			c.ThreadID = t.ID
			c.ThreadTitle = t.Title
			carried = append(carried, c)
		}
	}
	return toFetch, carried, skippedIDs
}
