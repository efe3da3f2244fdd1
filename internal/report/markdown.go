package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
)

// MarkdownWriter outputs summaries as GitHub-flavored Markdown, built
// with the nao1215/markdown fluent API for type-safe tables and lists.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter for the given destination.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Crawl Report")
	md.PlainText("")
	md.PlainText("Generated " + summary.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	md.PlainText("")

	w.writeMonths(md, summary)
	w.writeRuns(md, summary)

	return len(md.String()), md.Build()
}

// writeMonths writes the per-month archive condition.
func (w *MarkdownWriter) writeMonths(md *markdown.Markdown, summary *Summary) {
	md.H2("Months")
	md.PlainText("")

	if len(summary.Months) == 0 {
		md.PlainText("No months in the archive.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(summary.Months))
	for _, m := range summary.Months {
		rows = append(rows, []string{
			m.Month,
			strconv.Itoa(m.ThreadCount),
			strconv.Itoa(m.CommentCount),
			strconv.Itoa(m.ThreadsWithComments),
			strconv.Itoa(len(m.MissingDays)),
			strconv.Itoa(len(m.ThreadsMissingComments)),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Month", "Threads", "Comments", "Threads w/ Comments", "Missing Days", "Threads w/o Comments"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, m := range summary.Months {
		if len(m.MissingDays) == 0 && len(m.ThreadsMissingComments) == 0 {
			continue
		}
		md.H3(m.Month + " gaps")
		md.PlainText("")
		if len(m.MissingDays) > 0 {
			md.PlainText("Days without any discovered thread:")
			md.PlainText("")
			md.BulletList(m.MissingDays...)
			md.PlainText("")
		}
		if len(m.ThreadsMissingComments) > 0 {
			md.PlainText("Threads without any comments: `" + strings.Join(m.ThreadsMissingComments, "`, `") + "`")
			md.PlainText("")
		}
	}
}

// writeRuns writes the recent crawl-run history.
func (w *MarkdownWriter) writeRuns(md *markdown.Markdown, summary *Summary) {
	if len(summary.Runs) == 0 {
		return
	}

	md.H2("Recent Runs")
	md.PlainText("")

	rows := make([][]string, 0, len(summary.Runs))
	for _, r := range summary.Runs {
		rows = append(rows, []string{
			r.Month,
			r.StartedAt.Format("2006-01-02 15:04"),
			string(r.Status),
			strconv.Itoa(r.ThreadCount),
			strconv.Itoa(r.CommentCount),
			strconv.Itoa(r.NewThreads),
			strconv.Itoa(r.NewComments),
			strconv.Itoa(r.SkippedUnits),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Month", "Started", "Status", "Threads", "Comments", "New Threads", "New Comments", "Skipped"},
		Rows:   rows,
	})
	md.PlainText("")
}
