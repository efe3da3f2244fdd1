// Package main provides the entry point for the threadharvest CLI.
//
// threadharvest crawls a forum community's recurring daily threads and
// their root-level comments into monthly JSON archives, working around
// the platform's search result ceiling and rate limits.
//
// Usage:
//
//	threadharvest crawl --community <name> --month 2025-01
//	threadharvest report --month 2025-01
//
// See --help for all available options.
package main

// main is the entry point for threadharvest.
func main() {
	Execute()
}
