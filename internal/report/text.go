package report

import (
	"fmt"
	"io"
	"strings"
)

// TextWriter outputs summaries as a human-readable terminal report.
// This is the default format.
type TextWriter struct {
	baseWriter
}

// NewTextWriter creates a TextWriter for the given destination.
func NewTextWriter(output io.Writer) *TextWriter {
	return &TextWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the summary as plain text.
func (w *TextWriter) Write(summary *Summary) (int, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "Crawl Report (generated %s)\n", summary.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	if len(summary.Months) == 0 {
		b.WriteString("No months in the archive.\n")
	}
	for _, m := range summary.Months {
		fmt.Fprintf(&b, "%s\n", m.Month)
		fmt.Fprintf(&b, "  threads:              %d\n", m.ThreadCount)
		fmt.Fprintf(&b, "  comments:             %d\n", m.CommentCount)
		fmt.Fprintf(&b, "  threads w/ comments:  %d\n", m.ThreadsWithComments)
		if len(m.MissingDays) > 0 {
			fmt.Fprintf(&b, "  missing days:         %s\n", strings.Join(m.MissingDays, ", "))
		}
		if len(m.ThreadsMissingComments) > 0 {
			fmt.Fprintf(&b, "  threads w/o comments: %s\n", strings.Join(m.ThreadsMissingComments, ", "))
		}
		b.WriteString("\n")
	}

	if len(summary.Runs) > 0 {
		b.WriteString("Recent runs:\n")
		for _, r := range summary.Runs {
			fmt.Fprintf(&b, "  %s  %s  %-9s  threads=%d (+%d)  comments=%d (+%d)  skipped=%d\n",
				r.Month,
				r.StartedAt.Format("2006-01-02 15:04"),
				r.Status,
				r.ThreadCount, r.NewThreads,
				r.CommentCount, r.NewComments,
				r.SkippedUnits,
			)
		}
	}

	return io.WriteString(w.output, b.String())
}
