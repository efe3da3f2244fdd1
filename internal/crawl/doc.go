// Package crawl orchestrates one month's crawl end-to-end: thread
// discovery, newest-wins merging with the persisted month, coverage
// diagnostics, comment fetching (sequential or pooled), and atomic
// persistence, executed as a fixed sequence of pipeline stages.
//
// Months run strictly sequentially because the remote rate-limit
// budget is per-process. Re-running a month is always safe: merging is
// idempotent, and persistence happens only at the final stage.
package crawl
