package report

import "io"

// Writer outputs a crawl summary in some format. Implementations write
// to files, stdout, or buffers with the same API.
type Writer interface {
	// Write outputs the summary, returning the number of bytes written.
	Write(summary *Summary) (int, error)
}

// baseWriter provides the shared output destination for writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
