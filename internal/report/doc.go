// Package report renders operator-facing crawl summaries: per-month
// archive condition (counts, coverage gaps) and recent run history, in
// plain text, Markdown, or JSON behind a common Writer interface.
package report
