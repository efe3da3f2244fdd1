package model

import "time"

// DeletedAuthor is the sentinel the platform substitutes for the author
// of a thread or comment whose account has been removed.
const DeletedAuthor = "[deleted]"

// Thread represents one dated top-level forum submission.
//
// A thread belongs to exactly one calendar month, determined by parsing a
// date out of its title (see the titledate package) or, when that fails,
// by the manual override date attached during discovery.
type Thread struct {
	// ID is the platform-assigned identifier. Globally unique within a
	// month's collection; the merge key for deduplication.
	ID string `json:"id"`

	// Title is the submission title as returned by the platform.
	Title string `json:"title"`

	// URL is the canonical permalink of the thread.
	URL string `json:"url"`

	// Author is the submitting account name, or DeletedAuthor for
	// removed accounts.
	Author string `json:"author"`

	// CreatedAt is the submission time in UTC.
	CreatedAt time.Time `json:"created_at"`

	// CommentCount is the platform's total comment count for the
	// thread. Monotonically non-decreasing on the remote side, which is
	// what makes the skip-unchanged optimization sound.
	CommentCount int `json:"comment_count"`

	// Flair is the optional submission flair.
	Flair string `json:"flair,omitempty"`

	// OverrideDate is the fallback date carried by a manual override.
	// It is consulted only when title date parsing fails.
	OverrideDate time.Time `json:"_override_date,omitzero"`
}

// RecordID returns the merge key for the thread.
func (t Thread) RecordID() string { return t.ID }

// RecordCreatedAt returns the creation timestamp used by newest-wins merging.
func (t Thread) RecordCreatedAt() time.Time { return t.CreatedAt }
