package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/threadharvest/internal/archive"
	"github.com/example/threadharvest/internal/config"
	"github.com/example/threadharvest/internal/database"
	"github.com/example/threadharvest/internal/model"
	"github.com/example/threadharvest/internal/report"
)

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize the archive and recent crawl runs",
		Long: `Report reads the persisted monthly archives and the crawl-run history
and renders an operator summary: record counts, days without any
discovered thread, threads still lacking comments, and how the numbers
moved across recent runs.

Examples:
  # Summarize the current month
  threadharvest report

  # Summarize specific months as Markdown
  threadharvest report --month 2024-12 --month 2025-01 --markdown

  # Write a JSON summary to a file
  threadharvest report --month 2025-01 --json -o report.json`,
		RunE: runReportCmd,
	}

	cmd.Flags().StringSliceP("month", "m", nil, "Month to summarize (YYYY-MM, repeatable; default: current month)")
	cmd.Flags().BoolP("json", "j", false, "Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().Bool("markdown", false, "Output Markdown (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().Int("runs", 10, "Number of recent runs to include (0 disables)")
	cmd.Flags().String("data-dir", "", "Archive directory (default: XDG data directory)")

	return cmd
}

// runReportCmd executes the report command.
func runReportCmd(cmd *cobra.Command, _ []string) error {
	months, err := reportMonths(cmd)
	if err != nil {
		return err
	}

	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	asMarkdown, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if asJSON && asMarkdown {
		return config.ErrConflictingReportFormats
	}

	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	runLimit, err := cmd.Flags().GetInt("runs")
	if err != nil {
		return err
	}
	dataDir, err := cmd.Flags().GetString("data-dir")
	if err != nil {
		return err
	}

	summary, err := buildSummary(cmd, months, dataDir, runLimit)
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(outputPath)
	if err != nil {
		return err
	}
	defer closeOut()

	var w report.Writer
	switch {
	case asJSON:
		w = report.NewJSONWriter(out)
	case asMarkdown:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewTextWriter(out)
	}

	_, err = w.Write(summary)
	return err
}

// reportMonths resolves the months to summarize; the current month
// when none are given.
func reportMonths(cmd *cobra.Command) ([]model.Month, error) {
	monthFlags, err := cmd.Flags().GetStringSlice("month")
	if err != nil {
		return nil, err
	}
	if len(monthFlags) == 0 {
		return []model.Month{model.MonthOf(time.Now())}, nil
	}

	months := make([]model.Month, 0, len(monthFlags))
	for _, s := range monthFlags {
		m, err := model.ParseMonth(s)
		if err != nil {
			return nil, err
		}
		months = append(months, m)
	}
	return months, nil
}

// buildSummary loads the archives and run history into a Summary.
func buildSummary(cmd *cobra.Command, months []model.Month, dataDir string, runLimit int) (*report.Summary, error) {
	store, err := archive.NewStore(dataDir)
	if err != nil {
		return nil, err
	}

	summary := &report.Summary{GeneratedAt: time.Now().UTC()}
	for _, m := range months {
		threads, err := store.LoadThreads(m)
		if err != nil {
			return nil, err
		}
		comments, err := store.LoadComments(m)
		if err != nil {
			return nil, err
		}
		summary.Months = append(summary.Months, report.BuildMonthSummary(m, threads, comments))
	}

	if runLimit > 0 {
		// The run DB may not exist yet; the summary simply omits runs.
		db, err := database.Open(store.Dir(), database.Options{CreateIfNotExists: false})
		if err == nil {
			defer db.Close() //nolint:errcheck // Read-only use
			runs, err := db.RecentRuns(cmd.Context(), runLimit)
			if err != nil {
				return nil, err
			}
			summary.Runs = runs
		}
	}

	return summary, nil
}

// openOutput returns the report destination and a close function.
// Directories are created as needed for file output.
func openOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
