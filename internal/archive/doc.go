// Package archive persists monthly thread and comment collections as
// JSON documents with a metadata envelope, using atomic replace so a
// month file is never partially written.
package archive
