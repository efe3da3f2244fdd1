package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/threadharvest/internal/archive"
	"github.com/example/threadharvest/internal/client"
	"github.com/example/threadharvest/internal/comments"
	"github.com/example/threadharvest/internal/config"
	"github.com/example/threadharvest/internal/database"
	"github.com/example/threadharvest/internal/model"
	"github.com/example/threadharvest/internal/search"
)

// Orchestrator coordinates month crawls end-to-end. Months are
// processed strictly sequentially: the rate-limit budget is
// per-process, not per-month, so parallel months would fight over it.
type Orchestrator struct {
	// cfg is the validated crawl configuration.
	cfg *config.Config

	// client is the rate-limited HTTP client shared by discovery and
	// sequential comment fetching. Concurrent workers clone it.
	client *client.Client

	// engine discovers threads.
	engine *search.Engine

	// fetcher retrieves comments.
	fetcher *comments.Fetcher

	// store persists monthly collections.
	store *archive.Store

	// runs records crawl-run history. Nil disables recording.
	runs *database.RunDB

	// logger receives orchestration diagnostics.
	logger *slog.Logger

	// now supplies the clock; replaceable in tests.
	now func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClient replaces the rate-limited client. Tests use this to
// inject a client with no pacing delays.
func WithClient(c *client.Client) Option {
	return func(o *Orchestrator) {
		o.client = c
	}
}

// WithStore replaces the archive store.
func WithStore(s *archive.Store) Option {
	return func(o *Orchestrator) {
		o.store = s
	}
}

// WithRunDB sets the run-history database. Nil disables recording.
func WithRunDB(db *database.RunDB) Option {
	return func(o *Orchestrator) {
		o.runs = db
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithNow replaces the clock.
func WithNow(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New creates an Orchestrator from a validated configuration.
func New(cfg *config.Config, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{cfg: cfg}
	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.client == nil {
		o.client = client.New(
			client.WithSessionToken(cfg.Credential.SessionToken),
			client.WithClientID(cfg.Credential.ClientID),
			client.WithUserAgent(cfg.UserAgent),
			client.WithTimeout(cfg.Timeout),
			client.WithLogger(o.logger),
		)
	}
	if o.store == nil {
		store, err := archive.NewStore(cfg.DataDir, archive.WithLogger(o.logger))
		if err != nil {
			return nil, err
		}
		o.store = store
	}

	o.engine = search.New(o.client,
		search.WithBaseURL(cfg.BaseURL),
		search.WithFlair(cfg.Flair),
		search.WithLogger(o.logger),
		search.WithNow(o.now),
	)
	o.fetcher = comments.New(o.client,
		comments.WithBaseURL(cfg.BaseURL),
		comments.WithLogger(o.logger),
	)

	return o, nil
}

// Run crawls every configured month in order. The first unrecoverable
// error aborts the remaining months; re-invocation is safe because
// merging is idempotent.
func (o *Orchestrator) Run(ctx context.Context) ([]database.Run, error) {
	if o.cfg.SkipUnchanged {
		o.logger.Warn("skip-unchanged enabled: a comment replaced by another without growing the total will be missed until the count next increases")
	}

	var runs []database.Run
	for _, month := range o.cfg.Months {
		run, err := o.CrawlMonth(ctx, month)
		runs = append(runs, run)
		if err != nil {
			return runs, fmt.Errorf("crawl of %s failed: %w", month, err)
		}
	}
	return runs, nil
}

// CrawlMonth runs one month's pipeline and records the run. The
// returned Run summarizes the month whether it completed or failed.
func (o *Orchestrator) CrawlMonth(ctx context.Context, month model.Month) (database.Run, error) {
	st := &State{
		Month:     month,
		StartedAt: o.now().UTC(),
	}

	pipeline := NewPipeline(o.logger,
		&discoverStep{
			engine:    o.engine,
			community: o.cfg.Community,
			overrides: o.cfg.Overrides,
			logger:    o.logger,
		},
		&mergeThreadsStep{
			store:        o.store,
			forceRefresh: o.cfg.ForceRefresh,
			logger:       o.logger,
		},
		&missingDaysStep{now: o.now, logger: o.logger},
		&selectThreadsStep{
			skipUnchanged: o.cfg.SkipUnchanged,
			logger:        o.logger,
		},
		&fetchCommentsStep{
			fetcher: o.fetcher,
			opts: comments.FetchOptions{
				Concurrent: o.cfg.Concurrent,
				Workers:    o.cfg.Workers,
			},
			logger: o.logger,
		},
		&mergeCommentsStep{forceRefresh: o.cfg.ForceRefresh, logger: o.logger},
		&persistStep{store: o.store, now: o.now, logger: o.logger},
	)

	err := pipeline.Execute(ctx, st)

	run := o.buildRun(st, err)
	o.recordRun(ctx, run)

	if err != nil {
		return run, err
	}
	if st.RateLimited {
		// The partial month was persisted, but the invocation must
		// exit non-zero so the operator knows to re-run.
		return run, client.ErrRateLimitExceeded
	}

	o.logSummary(st)
	return run, nil
}

// buildRun summarizes the month's state as a run-history row.
func (o *Orchestrator) buildRun(st *State, err error) database.Run {
	run := database.Run{
		Month:                  st.Month.String(),
		StartedAt:              st.StartedAt,
		FinishedAt:             o.now().UTC(),
		Status:                 database.RunCompleted,
		ThreadCount:            len(st.Threads),
		CommentCount:           len(st.Comments),
		NewThreads:             st.NewThreads,
		NewComments:            st.NewComments,
		MissingDays:            st.MissingDays,
		ThreadsMissingComments: st.ThreadsMissingComments,
		SkippedUnits:           len(st.Outcomes.Skipped()),
	}
	if err != nil {
		run.Status = database.RunFailed
		run.Error = err.Error()
	} else if st.RateLimited {
		run.Status = database.RunFailed
		run.Error = client.ErrRateLimitExceeded.Error()
	}
	return run
}

// recordRun writes the run row, tolerating a missing or broken run DB:
// history is a diagnostic, never a reason to fail a crawl.
func (o *Orchestrator) recordRun(ctx context.Context, run database.Run) {
	if o.runs == nil {
		return
	}
	// The crawl context may already be cancelled; recording still uses
	// it so shutdown stays prompt.
	if _, err := o.runs.RecordRun(ctx, run); err != nil && !errors.Is(err, context.Canceled) {
		o.logger.Warn("failed to record crawl run", "month", run.Month, "error", err)
	}
}

// logSummary emits the operator-facing end-of-month summary, including
// every skipped unit of work so best-effort gaps are visible.
func (o *Orchestrator) logSummary(st *State) {
	for _, skipped := range st.Outcomes.Skipped() {
		o.logger.Warn("unit of work skipped",
			"month", st.Month.String(),
			"unit", skipped.Unit,
			"reason", skipped.Reason,
		)
	}
	o.logger.Info("month crawl completed",
		"month", st.Month.String(),
		"threads", len(st.Threads),
		"new_threads", st.NewThreads,
		"comments", len(st.Comments),
		"new_comments", st.NewComments,
		"missing_days", len(st.MissingDays),
		"threads_without_comments", len(st.ThreadsMissingComments),
		"elapsed", o.now().UTC().Sub(st.StartedAt),
	)
}
