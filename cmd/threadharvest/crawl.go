package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/threadharvest/internal/archive"
	"github.com/example/threadharvest/internal/config"
	"github.com/example/threadharvest/internal/crawl"
	"github.com/example/threadharvest/internal/database"
	"github.com/example/threadharvest/internal/log"
	"github.com/example/threadharvest/internal/model"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl one or more months of threads and comments",
		Long: `Crawl discovers a community's dated threads for the requested months,
fetches their root-level comments, and merges the results into the
monthly JSON archives. Re-running a month is always safe: merging is
idempotent and archive writes are atomic.

The session credential is read from the THREADHARVEST_SESSION_TOKEN
environment variable, a .env file in the working directory, or a
session_token file under the XDG config directory. Without a credential
the crawler still works, at a slower pacing class.

Examples:
  # Crawl one month
  threadharvest crawl --community homelab --month 2025-01

  # Crawl a range of months with the concurrent comment fetcher
  threadharvest crawl --community homelab --from 2024-10 --to 2025-01 --concurrent

  # Re-crawl, skipping threads whose comment count is unchanged
  threadharvest crawl --community homelab --month 2025-01 --skip-unchanged

  # Discard previously persisted data for the month
  threadharvest crawl --community homelab --month 2025-01 --force`,
		RunE: runCrawlCmd,
	}

	// Target selection flags
	cmd.Flags().StringP("community", "r", "", "Community to crawl")
	cmd.Flags().StringSliceP("month", "m", nil, "Month to crawl (YYYY-MM, repeatable)")
	cmd.Flags().String("from", "", "First month of a range (YYYY-MM)")
	cmd.Flags().String("to", "", "Last month of a range (YYYY-MM, default: current month)")

	// Crawl behavior flags
	cmd.Flags().BoolP("force", "f", false, "Discard previously persisted data instead of merging")
	cmd.Flags().Bool("concurrent", false, "Fetch comments with a worker pool")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers, "Worker pool width for concurrent comment fetching")
	cmd.Flags().Bool("skip-unchanged", false, "Skip comment fetch for threads whose comment count is unchanged")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Per-request HTTP timeout")
	cmd.Flags().String("user-agent", "", "Override the User-Agent header")

	// Location flags
	cmd.Flags().StringP("config", "c", "", "Configuration file path (default: .threadharvest in current or home directory)")
	cmd.Flags().String("data-dir", "", "Archive directory (default: XDG data directory)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildCrawlConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewLogger(os.Stderr, getVerboseFlag(cmd))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// An interrupt stops new requests promptly; in-flight requests
	// finish, and no partially crawled month is persisted.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runCrawl(ctx, cfg, logger)
}

// buildCrawlConfig creates a Config from cobra flags, the config file,
// and the credential store.
func buildCrawlConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error
	if cfg.Community, err = cmd.Flags().GetString("community"); err != nil {
		return nil, err
	}
	if cfg.ForceRefresh, err = cmd.Flags().GetBool("force"); err != nil {
		return nil, err
	}
	if cfg.Concurrent, err = cmd.Flags().GetBool("concurrent"); err != nil {
		return nil, err
	}
	if cfg.Workers, err = cmd.Flags().GetInt("workers"); err != nil {
		return nil, err
	}
	if cfg.SkipUnchanged, err = cmd.Flags().GetBool("skip-unchanged"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = cmd.Flags().GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = cmd.Flags().GetString("config"); err != nil {
		return nil, err
	}
	if cfg.DataDir, err = cmd.Flags().GetString("data-dir"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	if cfg.Months, err = monthsFromFlags(cmd); err != nil {
		return nil, err
	}

	if err := loadConfigFileInto(cfg); err != nil {
		return nil, err
	}

	cfg.Credential = config.LoadCredential()
	return cfg, nil
}

// monthsFromFlags resolves the requested months from --month and
// --from/--to. The two styles combine; duplicates collapse.
func monthsFromFlags(cmd *cobra.Command) ([]model.Month, error) {
	monthFlags, err := cmd.Flags().GetStringSlice("month")
	if err != nil {
		return nil, err
	}
	from, err := cmd.Flags().GetString("from")
	if err != nil {
		return nil, err
	}
	to, err := cmd.Flags().GetString("to")
	if err != nil {
		return nil, err
	}

	seen := make(map[model.Month]bool)
	var months []model.Month
	add := func(m model.Month) {
		if !seen[m] {
			seen[m] = true
			months = append(months, m)
		}
	}

	for _, s := range monthFlags {
		m, err := model.ParseMonth(s)
		if err != nil {
			return nil, err
		}
		add(m)
	}

	if from != "" {
		fromMonth, err := model.ParseMonth(from)
		if err != nil {
			return nil, err
		}
		toMonth := model.MonthOf(time.Now())
		if to != "" {
			if toMonth, err = model.ParseMonth(to); err != nil {
				return nil, err
			}
		}
		if toMonth.Before(fromMonth) {
			return nil, config.ErrInvalidMonthRange
		}
		for _, m := range model.MonthRange(fromMonth, toMonth) {
			add(m)
		}
	} else if to != "" {
		return nil, fmt.Errorf("--to requires --from")
	}

	return months, nil
}

// loadConfigFileInto finds and applies the config file. A missing file
// is only an error when the path was explicit.
func loadConfigFileInto(cfg *config.Config) error {
	explicit := cfg.ConfigFilePath != ""
	path := config.FindConfigFile(cfg.ConfigFilePath)
	if path == "" {
		if explicit {
			return fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
		}
		return nil
	}

	cf, err := config.LoadConfigFile(path)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return cf.Apply(cfg)
}

// runCrawl executes the crawl against the validated configuration.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting crawl",
		"community", cfg.Community,
		"months", len(cfg.Months),
		"concurrent", cfg.Concurrent,
		"skip_unchanged", cfg.SkipUnchanged,
		"force", cfg.ForceRefresh,
		"authenticated", cfg.Credential.Authenticated(),
	)

	opts := []crawl.Option{crawl.WithLogger(logger)}

	// Run history shares the archive directory. A broken history DB
	// degrades to an unrecorded crawl rather than a failed one.
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = archive.DefaultDir()
	}
	if db, err := database.Open(dataDir, database.DefaultOptions()); err != nil {
		logger.Warn("run history disabled", "error", err)
	} else {
		defer db.Close() //nolint:errcheck // Best-effort close on exit
		opts = append(opts, crawl.WithRunDB(db))
	}

	orch, err := crawl.New(cfg, opts...)
	if err != nil {
		return err
	}

	runs, err := orch.Run(ctx)
	if err != nil {
		return err
	}

	logger.Info("crawl finished", "months", len(runs))
	return nil
}
