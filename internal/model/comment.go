package model

import "time"

// Comment represents one root-level reply to a Thread.
//
// Only comments whose parent is the thread itself are retained; nested
// replies are excluded by the fetcher. ThreadID is a non-owning
// back-reference used for grouping and lookup, and ThreadTitle is
// denormalized so downstream consumers never need to re-join against
// the thread collection.
type Comment struct {
	// ID is the platform-assigned identifier, unique per comment.
	ID string `json:"id"`

	// Author is the commenting account name, or DeletedAuthor.
	Author string `json:"author"`

	// CreatedAt is the comment time in UTC.
	CreatedAt time.Time `json:"created_at"`

	// Body is the comment text with HTML entities decoded.
	Body string `json:"body"`

	// URL is the comment permalink.
	URL string `json:"url"`

	// ThreadID identifies the thread this comment replies to.
	ThreadID string `json:"thread_id"`

	// ThreadTitle is the title of that thread at fetch time.
	ThreadTitle string `json:"thread_title"`
}

// RecordID returns the merge key for the comment.
func (c Comment) RecordID() string { return c.ID }

// RecordCreatedAt returns the creation timestamp used by newest-wins merging.
func (c Comment) RecordCreatedAt() time.Time { return c.CreatedAt }
