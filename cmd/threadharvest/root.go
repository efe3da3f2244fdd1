package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for threadharvest.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "threadharvest",
		Short: "Archive a forum community's recurring daily threads",
		Long: `threadharvest crawls a forum community's public JSON API to collect
dated discussion threads and their root-level comments into monthly
archives.

It paces itself from the remote's rate accounting headers, compensates
for the search endpoint's fixed result-page ceiling with day-targeted
backfill queries, and merges every run idempotently into the persisted
month, so re-running a crawl is always safe.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewReportCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}
