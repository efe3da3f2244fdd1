package report

import (
	"time"

	"github.com/example/threadharvest/internal/database"
	"github.com/example/threadharvest/internal/model"
)

// MonthSummary condenses one persisted month for reporting.
type MonthSummary struct {
	// Month is the "YYYY-MM" month label.
	Month string `json:"month"`

	// ExtractedAt is when the month's archive was last written.
	ExtractedAt time.Time `json:"extracted_at"`

	// ThreadCount and CommentCount are the persisted record counts.
	ThreadCount  int `json:"thread_count"`
	CommentCount int `json:"comment_count"`

	// ThreadsWithComments is the number of threads that have at least
	// one persisted comment.
	ThreadsWithComments int `json:"thread_count_with_comments"`

	// MissingDays lists days with no discovered thread.
	MissingDays []string `json:"missing_days"`

	// ThreadsMissingComments lists thread IDs without any comments.
	ThreadsMissingComments []string `json:"threads_missing_comments"`
}

// Summary is the operator-facing crawl report: per-month archive
// condition plus recent run history.
type Summary struct {
	// GeneratedAt is when the report was produced.
	GeneratedAt time.Time `json:"generated_at"`

	// Months summarizes each requested month's archive.
	Months []MonthSummary `json:"months"`

	// Runs is the recent crawl-run history, newest first. Empty when
	// no run database is available.
	Runs []database.Run `json:"runs,omitempty"`
}

// BuildMonthSummary condenses a month's persisted collections. Either
// collection may be nil when the month has never been crawled or its
// comments were never fetched.
func BuildMonthSummary(month model.Month, threads *model.ThreadCollection, comments *model.CommentCollection) MonthSummary {
	s := MonthSummary{Month: month.String()}

	if threads != nil {
		s.ExtractedAt = threads.Metadata.ExtractedAt
		s.ThreadCount = threads.Metadata.Count
		s.MissingDays = threads.Metadata.MissingDays
	}
	if comments != nil {
		s.CommentCount = comments.Metadata.Count
		s.ThreadsMissingComments = comments.Metadata.ThreadsMissingComments

		withComments := make(map[string]bool)
		for _, c := range comments.Data {
			withComments[c.ThreadID] = true
		}
		s.ThreadsWithComments = len(withComments)
	}
	return s
}
