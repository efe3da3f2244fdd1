package comments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/example/threadharvest/internal/client"
	"github.com/example/threadharvest/internal/model"
)

const (
	// DefaultWorkers is the width of the concurrent fetch pool.
	DefaultWorkers = 5

	// DefaultPageLimit is the comment count requested on the first page.
	DefaultPageLimit = 500

	// continuationBatchSize is the maximum number of child IDs the
	// continuation endpoint accepts per request.
	continuationBatchSize = 100
)

// Fetcher retrieves root-level comments for threads, resolving the
// platform's "load more" continuation markers via batched follow-up
// requests. Nested replies are excluded: only comments whose parent is
// the thread itself are returned.
type Fetcher struct {
	// client is the session used for sequential fetching. Concurrent
	// workers each own a Clone() of it.
	client *client.Client

	// baseURL is the platform root, used for continuation requests.
	baseURL string

	// pageLimit is the comment count requested on the first page.
	pageLimit int

	// logger receives per-thread diagnostics.
	logger *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithBaseURL sets the platform root URL.
func WithBaseURL(baseURL string) Option {
	return func(f *Fetcher) {
		if baseURL != "" {
			f.baseURL = baseURL
		}
	}
}

// WithPageLimit sets the first-page comment limit.
func WithPageLimit(limit int) Option {
	return func(f *Fetcher) {
		if limit > 0 {
			f.pageLimit = limit
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New creates a Fetcher using the given rate-limited client.
func New(c *client.Client, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    c,
		baseURL:   "https://www.reddit.com",
		pageLimit: DefaultPageLimit,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// FetchOptions controls a FetchForThreads run.
type FetchOptions struct {
	// Concurrent enables the bounded worker pool. When false, threads
	// are fetched one at a time over a single HTTP session.
	Concurrent bool

	// Workers is the pool width when Concurrent is set. Zero means
	// DefaultWorkers. Each worker owns an independent HTTP session;
	// sessions are not safely shared across goroutines.
	Workers int
}

// FetchForThread retrieves the root-level comments of one thread,
// including comments hidden behind continuation markers.
func (f *Fetcher) FetchForThread(ctx context.Context, thread model.Thread) ([]model.Comment, error) {
	return f.fetchWithClient(ctx, f.client, thread)
}

// FetchForThreads fans FetchForThread out across all threads, either
// sequentially or via the worker pool. A per-thread failure is logged
// and recorded as a skipped outcome rather than aborting the batch;
// only context cancellation and rate-limit exhaustion abort. Result
// order is not guaranteed in concurrent mode — callers normalize by
// merging and sorting.
func (f *Fetcher) FetchForThreads(ctx context.Context, threads []model.Thread, opts FetchOptions) ([]model.Comment, model.Outcomes, error) {
	if opts.Concurrent {
		return f.fetchConcurrent(ctx, threads, opts.Workers)
	}
	return f.fetchSequential(ctx, threads)
}

// fetchSequential fetches one thread at a time, reusing one HTTP session.
func (f *Fetcher) fetchSequential(ctx context.Context, threads []model.Thread) ([]model.Comment, model.Outcomes, error) {
	var (
		all      []model.Comment
		outcomes model.Outcomes
	)
	for _, t := range threads {
		cs, err := f.fetchWithClient(ctx, f.client, t)
		if err != nil {
			if isFatal(err) {
				return all, outcomes, err
			}
			f.logger.Warn("comment fetch failed, skipping thread",
				"thread_id", t.ID,
				"title", t.Title,
				"error", err,
			)
			outcomes.Skip(t.ID, err.Error())
			continue
		}
		outcomes.Succeed(t.ID)
		all = append(all, cs...)
	}
	return all, outcomes, nil
}

// fetchConcurrent fetches threads via a bounded worker pool. Each
// worker owns its own cloned client, so connection pools and pacing
// state are never shared across goroutines. Workers block on their own
// pacing delays independently.
func (f *Fetcher) fetchConcurrent(ctx context.Context, threads []model.Thread, workers int) ([]model.Comment, model.Outcomes, error) {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > len(threads) {
		workers = len(threads)
	}
	if workers == 0 {
		return nil, nil, nil
	}

	f.logger.Info("fetching comments concurrently",
		"threads", len(threads),
		"workers", workers,
	)

	var (
		mu       sync.Mutex
		all      []model.Comment
		outcomes model.Outcomes
	)
	jobs := make(chan model.Thread)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for _, t := range threads {
			select {
			case jobs <- t:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < workers; i++ {
		wc := f.client.Clone()
		g.Go(func() error {
			for t := range jobs {
				cs, err := f.fetchWithClient(gctx, wc, t)
				if err != nil {
					if isFatal(err) {
						return err
					}
					f.logger.Warn("comment fetch failed, skipping thread",
						"thread_id", t.ID,
						"title", t.Title,
						"error", err,
					)
					mu.Lock()
					outcomes.Skip(t.ID, err.Error())
					mu.Unlock()
					continue
				}
				mu.Lock()
				outcomes.Succeed(t.ID)
				all = append(all, cs...)
				mu.Unlock()
			}
			return nil
		})
	}

	err := g.Wait()
	return all, outcomes, err
}

// fetchWithClient retrieves one thread's root comments using the given
// client session.
func (f *Fetcher) fetchWithClient(ctx context.Context, c *client.Client, thread model.Thread) ([]model.Comment, error) {
	raw, err := c.FetchJSON(ctx, commentsURL(thread.URL, f.pageLimit))
	if err != nil {
		return nil, err
	}

	// The thread endpoint returns [post listing, comment listing].
	things, err := client.DecodeThingArray(raw)
	if err != nil {
		return nil, err
	}
	if len(things) < 2 {
		return nil, fmt.Errorf("%w: expected post and comment listings, got %d", client.ErrMalformedResponse, len(things))
	}
	listing, err := things[1].Listing()
	if err != nil {
		return nil, err
	}

	comments, pending := f.extractRoots(listing.Children, thread)

	more, err := f.fetchContinuations(ctx, c, thread, pending)
	if err != nil {
		return nil, err
	}
	comments = append(comments, more...)

	f.logger.Debug("fetched thread comments",
		"thread_id", thread.ID,
		"comments", len(comments),
	)
	return comments, nil
}

// extractRoots converts the t1 children whose parent is the thread
// itself and collects the child IDs of root-level continuation markers.
// Nested comments and nested markers are dropped.
func (f *Fetcher) extractRoots(children []client.Thing, thread model.Thread) ([]model.Comment, []string) {
	var (
		comments []model.Comment
		pending  []string
	)
	for _, child := range children {
		switch child.Kind {
		case client.KindComment:
			wc, err := child.Comment()
			if err != nil {
				f.logger.Debug("skipping undecodable comment", "thread_id", thread.ID, "error", err)
				continue
			}
			if !wc.IsRootOf(thread.ID) {
				continue
			}
			comments = append(comments, wc.ToComment(thread, f.baseURL))
		case client.KindMore:
			m, err := child.More()
			if err != nil {
				f.logger.Debug("skipping undecodable continuation marker", "thread_id", thread.ID, "error", err)
				continue
			}
			if !m.IsRootOf(thread.ID) {
				continue
			}
			pending = append(pending, m.Children...)
		}
	}
	return comments, pending
}

// fetchContinuations resolves pending continuation child IDs in batches
// capped by the endpoint limit. Responses may themselves contain
// root-level continuation markers; their children are queued and
// resolved in turn, so arbitrarily deep continuation chains terminate
// only when the platform stops returning markers.
func (f *Fetcher) fetchContinuations(ctx context.Context, c *client.Client, thread model.Thread, pending []string) ([]model.Comment, error) {
	var comments []model.Comment
	for len(pending) > 0 {
		batch := pending
		if len(batch) > continuationBatchSize {
			batch = batch[:continuationBatchSize]
		}
		pending = pending[len(batch):]

		raw, err := c.FetchJSON(ctx, moreChildrenURL(f.baseURL, thread.ID, batch))
		if err != nil {
			return nil, err
		}
		things, err := client.DecodeMoreChildren(raw)
		if err != nil {
			return nil, err
		}

		batchComments, batchPending := f.extractRoots(things, thread)
		comments = append(comments, batchComments...)
		pending = append(pending, batchPending...)
	}
	return comments, nil
}

// commentsURL builds the depth-limited first-page URL for a thread.
// depth=1 keeps the response to root comments plus their markers.
func commentsURL(threadURL string, limit int) string {
	return fmt.Sprintf("%s.json?limit=%d&depth=1", strings.TrimSuffix(threadURL, "/"), limit)
}

// moreChildrenURL builds a continuation request for a batch of child IDs.
func moreChildrenURL(baseURL, threadID string, children []string) string {
	v := url.Values{}
	v.Set("api_type", "json")
	v.Set("link_id", client.Fullname(threadID))
	v.Set("children", strings.Join(children, ","))
	v.Set("limit_children", "false")
	return fmt.Sprintf("%s/api/morechildren.json?%s", strings.TrimSuffix(baseURL, "/"), v.Encode())
}

// isFatal reports whether an error should abort the whole batch rather
// than be contained at thread scope.
func isFatal(err error) bool {
	return errors.Is(err, client.ErrRateLimitExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
