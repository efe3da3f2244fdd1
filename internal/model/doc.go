// Package model defines the crawler's data model: threads, root-level
// comments, monthly collections with their metadata envelope, calendar
// month arithmetic, and typed per-unit crawl outcomes.
//
// Types here are plain values with no I/O; every other package depends
// on model and model depends on nothing.
package model
