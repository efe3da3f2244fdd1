package report

import (
	"encoding/json"
	"io"
)

// JSONWriter outputs summaries as indented JSON, for machine
// consumption and log aggregation.
type JSONWriter struct {
	baseWriter
}

// NewJSONWriter creates a JSONWriter for the given destination.
func NewJSONWriter(output io.Writer) *JSONWriter {
	return &JSONWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the summary as JSON.
func (w *JSONWriter) Write(summary *Summary) (int, error) {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}
