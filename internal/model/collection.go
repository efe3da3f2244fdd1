package model

import "time"

// Metadata describes one persisted monthly collection.
type Metadata struct {
	// Month is the collection's month in "YYYY-MM" form.
	Month string `json:"month"`

	// ExtractedAt is when the collection was last written.
	ExtractedAt time.Time `json:"extracted_at"`

	// Count is the number of records in Data.
	Count int `json:"count"`

	// MissingDays lists the days of the month ("YYYY-MM-DD") for which
	// no thread was discovered. Informational; an empty slice means
	// full day coverage up to the write time.
	MissingDays []string `json:"missing_days"`

	// ThreadsMissingComments lists thread IDs that have no persisted
	// comments. Only populated for comment collections.
	ThreadsMissingComments []string `json:"threads_missing_comments,omitempty"`
}

// ThreadCollection is the persisted unit for one month's threads:
// metadata plus records sorted ascending by created_at.
type ThreadCollection struct {
	Metadata Metadata `json:"metadata"`
	Data     []Thread `json:"data"`
}

// CommentCollection is the persisted unit for one month's comments.
type CommentCollection struct {
	Metadata Metadata  `json:"metadata"`
	Data     []Comment `json:"data"`
}
