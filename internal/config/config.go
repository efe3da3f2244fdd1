package config

import (
	"time"

	"github.com/example/threadharvest/internal/model"
)

// Default configuration values.
const (
	// DefaultFlair is the submission flair the recurring threads carry.
	DefaultFlair = "Daily Discussion"

	// DefaultBaseURL is the platform root for all requests.
	DefaultBaseURL = "https://www.reddit.com"

	// DefaultWorkers is the concurrent comment-fetch pool width.
	// Kept deliberately low: each worker paces itself from its own most
	// recent rate headers, an approximation that degrades as workers
	// multiply (all of them can observe "plenty remaining" at once).
	DefaultWorkers = 5

	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// AppName is the application name used for XDG directory paths.
	AppName = "threadharvest"
)

// Config holds all options for one crawl invocation. It is populated
// from CLI flags and the optional config file and passed through the
// application by value reference, never as global state.
type Config struct {
	// Community is the forum community to crawl. Required.
	Community string

	// Flair is the flair filter for thread discovery queries.
	Flair string

	// BaseURL is the platform root URL.
	BaseURL string

	// Months are the calendar months to crawl, processed strictly
	// sequentially so rate-limit accounting stays coherent.
	Months []model.Month

	// DataDir is the archive directory for monthly JSON files and the
	// run history database. Empty selects the XDG default.
	DataDir string

	// ForceRefresh skips merging with previously persisted threads, so
	// the fresh crawl fully replaces the month.
	ForceRefresh bool

	// Concurrent enables the comment-fetch worker pool.
	Concurrent bool

	// Workers is the pool width when Concurrent is set.
	Workers int

	// SkipUnchanged enables the skip-unchanged comment optimization.
	// The tradeoff (same-count comment replacement goes unnoticed) is
	// surfaced to the operator at startup.
	SkipUnchanged bool

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// UserAgent overrides the default browser User-Agent when set.
	UserAgent string

	// Verbose enables slog.LevelDebug output.
	Verbose bool

	// ConfigFilePath is an explicit config file path. Empty triggers
	// the default search (cwd, then home).
	ConfigFilePath string

	// Overrides are the manually curated (date, url) pairs loaded from
	// the config file. Read-only input to thread discovery.
	Overrides []model.Override

	// Credential is the pre-obtained session credential. No OAuth
	// token exchange is ever performed.
	Credential Credential
}

// NewConfig returns a Config with defaults applied.
func NewConfig() *Config {
	return &Config{
		Flair:   DefaultFlair,
		BaseURL: DefaultBaseURL,
		Workers: DefaultWorkers,
		Timeout: DefaultTimeout,
	}
}

// Validate checks the configuration, returning a sentinel error for
// the first problem found. Configuration errors are fatal: no partial
// crawl is attempted.
func (c *Config) Validate() error {
	if len(c.Months) == 0 {
		return ErrNoMonths
	}
	if c.Community == "" {
		return ErrNoCommunity
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	return nil
}
