// Package database provides SQLite-based storage for crawl-run
// history: one row per month crawl with counts, coverage diagnostics,
// and terminal status, queried by the report command.
package database
