// Package search implements thread discovery for a community and
// calendar month.
//
// The search endpoint caps every query at a fixed result-page size, so
// a single broad query cannot be trusted to be complete. The engine
// issues broad flair+month queries first; if any returns a full page it
// groups the in-month results by day, treats the best-covered day's
// count as the expected density, and issues targeted backfill queries
// for every day that falls short. Manually curated overrides are
// fetched directly by thread ID and merged last.
package search
