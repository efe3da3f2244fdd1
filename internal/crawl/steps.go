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
	"github.com/example/threadharvest/internal/merge"
	"github.com/example/threadharvest/internal/model"
	"github.com/example/threadharvest/internal/search"
	"github.com/example/threadharvest/internal/titledate"
)

// discoverStep runs thread discovery for the month.
type discoverStep struct {
	engine    *search.Engine
	community string
	overrides []model.Override
	logger    *slog.Logger
}

func (s *discoverStep) Name() string { return "discover_threads" }

func (s *discoverStep) Do(ctx context.Context, st *State) error {
	threads, outcomes, err := s.engine.Discover(ctx, s.community, st.Month, s.overrides)
	st.Outcomes = append(st.Outcomes, outcomes...)
	st.Threads = threads

	if err != nil {
		if errors.Is(err, client.ErrRateLimitExceeded) {
			// Keep what discovery gathered; later fetch stages stand
			// down and the partial month is still merged and persisted.
			s.logger.Warn("discovery hit the rate-limit retry budget, continuing with partial results",
				"month", st.Month.String(),
				"threads", len(threads),
			)
			st.RateLimited = true
			return nil
		}
		return fmt.Errorf("thread discovery failed: %w", err)
	}

	s.logger.Info("discovered threads",
		"month", st.Month.String(),
		"threads", len(threads),
	)
	return nil
}

// mergeThreadsStep loads the previously persisted month and merges the
// fresh discovery into it, newest version of each thread winning. Under
// force-refresh no prior state is loaded and the fresh crawl fully
// replaces the month.
type mergeThreadsStep struct {
	store        *archive.Store
	forceRefresh bool
	logger       *slog.Logger
}

func (s *mergeThreadsStep) Name() string { return "merge_threads" }

func (s *mergeThreadsStep) Do(_ context.Context, st *State) error {
	if s.forceRefresh {
		merge.SortByCreatedAt(st.Threads)
		st.NewThreads = len(st.Threads)
		return nil
	}

	prevThreads, err := s.store.LoadThreads(st.Month)
	if err != nil {
		return fmt.Errorf("failed to load prior threads: %w", err)
	}
	prevComments, err := s.store.LoadComments(st.Month)
	if err != nil {
		return fmt.Errorf("failed to load prior comments: %w", err)
	}
	if prevThreads != nil {
		st.PrevThreads = prevThreads.Data
	}
	if prevComments != nil {
		st.PrevComments = prevComments.Data
	}

	prevIDs := make(map[string]bool, len(st.PrevThreads))
	for _, t := range st.PrevThreads {
		prevIDs[t.ID] = true
	}

	st.Threads = merge.Merge(st.PrevThreads, st.Threads)
	for _, t := range st.Threads {
		if !prevIDs[t.ID] {
			st.NewThreads++
		}
	}

	s.logger.Info("merged threads",
		"month", st.Month.String(),
		"total", len(st.Threads),
		"new", st.NewThreads,
	)
	return nil
}

// missingDaysStep diffs expected calendar days against days covered by
// the surviving threads. Purely informational; never blocks progress.
type missingDaysStep struct {
	now    func() time.Time
	logger *slog.Logger
}

func (s *missingDaysStep) Name() string { return "compute_missing_days" }

func (s *missingDaysStep) Do(_ context.Context, st *State) error {
	covered := make(map[int]bool)
	for _, t := range st.Threads {
		if date, ok := titledate.Resolve(t.Title, t.OverrideDate); ok && st.Month.Contains(date) {
			covered[date.Day()] = true
		}
	}

	lastDay := st.Month.Days()
	if now := s.now().UTC(); st.Month.Contains(now) {
		lastDay = now.Day()
	}

	for day := 1; day <= lastDay; day++ {
		if !covered[day] {
			st.MissingDays = append(st.MissingDays, st.Month.Day(day).Format("2006-01-02"))
		}
	}

	if len(st.MissingDays) > 0 {
		s.logger.Warn("days without any discovered thread",
			"month", st.Month.String(),
			"missing", len(st.MissingDays),
		)
	}
	return nil
}

// selectThreadsStep applies the skip-unchanged filter when enabled,
// partitioning threads into those needing a comment fetch and those
// whose persisted comments are carried forward.
type selectThreadsStep struct {
	skipUnchanged bool
	logger        *slog.Logger
}

func (s *selectThreadsStep) Name() string { return "select_threads_to_fetch" }

func (s *selectThreadsStep) Do(_ context.Context, st *State) error {
	if !s.skipUnchanged || len(st.PrevThreads) == 0 {
		st.ToFetch = st.Threads
		return nil
	}

	prev := comments.NewPrevious(st.PrevThreads, st.PrevComments)
	st.ToFetch, st.CarriedComments, st.SkippedThreadIDs = comments.Partition(st.Threads, prev)

	s.logger.Info("skip-unchanged selection",
		"month", st.Month.String(),
		"fetch", len(st.ToFetch),
		"skipped", len(st.SkippedThreadIDs),
		"carried_comments", len(st.CarriedComments),
	)
	return nil
}

// fetchCommentsStep fetches comments for the selected threads,
// sequentially or via the worker pool.
type fetchCommentsStep struct {
	fetcher *comments.Fetcher
	opts    comments.FetchOptions
	logger  *slog.Logger
}

func (s *fetchCommentsStep) Name() string { return "fetch_comments" }

func (s *fetchCommentsStep) Do(ctx context.Context, st *State) error {
	if st.RateLimited {
		s.logger.Warn("skipping comment fetch: rate-limit budget already exhausted",
			"month", st.Month.String(),
		)
		st.Comments = st.CarriedComments
		return nil
	}

	fetched, outcomes, err := s.fetcher.FetchForThreads(ctx, st.ToFetch, s.opts)
	st.Outcomes = append(st.Outcomes, outcomes...)
	st.Comments = append(fetched, st.CarriedComments...)

	if err != nil {
		if errors.Is(err, client.ErrRateLimitExceeded) {
			s.logger.Warn("comment fetch hit the rate-limit retry budget, keeping partial results",
				"month", st.Month.String(),
				"comments", len(fetched),
			)
			st.RateLimited = true
			return nil
		}
		return fmt.Errorf("comment fetch failed: %w", err)
	}

	s.logger.Info("fetched comments",
		"month", st.Month.String(),
		"comments", len(fetched),
		"threads_skipped", len(st.Outcomes.Skipped()),
	)
	return nil
}

// mergeCommentsStep merges fetched and carried comments with the
// previously persisted set.
type mergeCommentsStep struct {
	forceRefresh bool
	logger       *slog.Logger
}

func (s *mergeCommentsStep) Name() string { return "merge_comments" }

func (s *mergeCommentsStep) Do(_ context.Context, st *State) error {
	prevIDs := make(map[string]bool, len(st.PrevComments))
	for _, c := range st.PrevComments {
		prevIDs[c.ID] = true
	}

	if s.forceRefresh {
		merge.SortByCreatedAt(st.Comments)
	} else {
		st.Comments = merge.Merge(st.PrevComments, st.Comments)
	}
	for _, c := range st.Comments {
		if !prevIDs[c.ID] {
			st.NewComments++
		}
	}

	// Threads still lacking any comments, for the metadata envelope.
	hasComments := make(map[string]bool)
	for _, c := range st.Comments {
		hasComments[c.ThreadID] = true
	}
	for _, t := range st.Threads {
		if !hasComments[t.ID] {
			st.ThreadsMissingComments = append(st.ThreadsMissingComments, t.ID)
		}
	}

	s.logger.Info("merged comments",
		"month", st.Month.String(),
		"total", len(st.Comments),
		"new", st.NewComments,
		"threads_without_comments", len(st.ThreadsMissingComments),
	)
	return nil
}

// persistStep atomically writes both monthly collections with updated
// metadata. This is the only stage with write side effects; everything
// before it can be abandoned without corrupting the archive.
type persistStep struct {
	store  *archive.Store
	now    func() time.Time
	logger *slog.Logger
}

func (s *persistStep) Name() string { return "persist" }

func (s *persistStep) Do(_ context.Context, st *State) error {
	extractedAt := s.now().UTC()

	// Full coverage persists as an empty list, not null; the archive
	// format promises a JSON array.
	missingDays := st.MissingDays
	if missingDays == nil {
		missingDays = []string{}
	}

	threadCol := &model.ThreadCollection{
		Metadata: model.Metadata{
			Month:       st.Month.String(),
			ExtractedAt: extractedAt,
			Count:       len(st.Threads),
			MissingDays: missingDays,
		},
		Data: st.Threads,
	}
	if err := s.store.SaveThreads(st.Month, threadCol); err != nil {
		return fmt.Errorf("failed to persist threads: %w", err)
	}

	commentCol := &model.CommentCollection{
		Metadata: model.Metadata{
			Month:                  st.Month.String(),
			ExtractedAt:            extractedAt,
			Count:                  len(st.Comments),
			MissingDays:            missingDays,
			ThreadsMissingComments: st.ThreadsMissingComments,
		},
		Data: st.Comments,
	}
	if err := s.store.SaveComments(st.Month, commentCol); err != nil {
		return fmt.Errorf("failed to persist comments: %w", err)
	}

	s.logger.Info("persisted month",
		"month", st.Month.String(),
		"threads", len(st.Threads),
		"comments", len(st.Comments),
		"threads_path", s.store.ThreadsPath(st.Month),
		"comments_path", s.store.CommentsPath(st.Month),
	)
	return nil
}
