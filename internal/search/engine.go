package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/example/threadharvest/internal/client"
	"github.com/example/threadharvest/internal/model"
	"github.com/example/threadharvest/internal/titledate"
)

// DefaultPageLimit is the search endpoint's fixed result-page ceiling.
// A broad query returning exactly this many results is treated as
// possibly truncated, which triggers the day-coverage backfill.
const DefaultPageLimit = 100

// DefaultBaseURL is the platform root used for all search requests.
const DefaultBaseURL = "https://www.reddit.com"

// DefaultFlair is the submission flair the recurring threads carry.
const DefaultFlair = "Daily Discussion"

// Engine discovers the complete set of threads for a community and
// calendar month, compensating for the search endpoint's page ceiling.
//
// Discovery is inherently sequential: broad queries must complete
// before the under-coverage heuristic can select backfill queries.
type Engine struct {
	// client issues the rate-limited search requests.
	client *client.Client

	// baseURL is the platform root.
	baseURL string

	// flair is the flair filter included in every query.
	flair string

	// pageLimit is the endpoint's result-page ceiling.
	pageLimit int

	// logger receives per-query diagnostics.
	logger *slog.Logger

	// now supplies "today" for the coverage heuristic; replaceable in
	// tests so current-month behavior can be pinned.
	now func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithBaseURL sets the platform root URL.
func WithBaseURL(baseURL string) Option {
	return func(e *Engine) {
		if baseURL != "" {
			e.baseURL = baseURL
		}
	}
}

// WithFlair sets the flair filter used in search queries.
func WithFlair(flair string) Option {
	return func(e *Engine) {
		if flair != "" {
			e.flair = flair
		}
	}
}

// WithPageLimit sets the search endpoint's page ceiling.
func WithPageLimit(limit int) Option {
	return func(e *Engine) {
		if limit > 0 {
			e.pageLimit = limit
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithNow replaces the clock used to bound the coverage heuristic at
// "today" when the target month is the current month.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an Engine using the given rate-limited client.
func New(c *client.Client, opts ...Option) *Engine {
	e := &Engine{
		client:    c,
		baseURL:   DefaultBaseURL,
		flair:     DefaultFlair,
		pageLimit: DefaultPageLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Discover returns the threads of the given community and month, sorted
// ascending by their resolved date. It issues broad queries, backfills
// under-covered days when a broad query hits the page ceiling, applies
// manual overrides, and filters to the target month.
//
// Individual query failures are contained: the query is recorded as a
// skipped outcome and discovery proceeds with partial results. Only
// context cancellation and rate-limit exhaustion abort discovery, and
// even then the threads gathered so far are returned alongside the error.
func (e *Engine) Discover(ctx context.Context, community string, month model.Month, overrides []model.Override) ([]model.Thread, model.Outcomes, error) {
	byID := make(map[string]model.Thread)
	var outcomes model.Outcomes

	hitLimit, err := e.runBroadQueries(ctx, community, month, byID, &outcomes)
	if err != nil {
		return e.finalize(byID, month), outcomes, err
	}

	if hitLimit {
		if err := e.backfill(ctx, community, month, byID, &outcomes); err != nil {
			return e.finalize(byID, month), outcomes, err
		}
	}

	if err := e.applyOverrides(ctx, community, month, overrides, byID, &outcomes); err != nil {
		return e.finalize(byID, month), outcomes, err
	}

	return e.finalize(byID, month), outcomes, nil
}

// runBroadQueries issues the month-wide queries and reports whether any
// of them returned a full page, i.e. coverage is possibly incomplete.
func (e *Engine) runBroadQueries(ctx context.Context, community string, month model.Month, byID map[string]model.Thread, outcomes *model.Outcomes) (bool, error) {
	hitLimit := false
	for _, q := range broadQueries(e.flair, month) {
		threads, full, err := e.runQuery(ctx, community, q)
		if err != nil {
			if isFatal(err) {
				return hitLimit, err
			}
			e.logger.Warn("search query failed, continuing with partial results",
				"query", q,
				"error", err,
			)
			outcomes.Skip(q, err.Error())
			continue
		}
		outcomes.Succeed(q)
		hitLimit = hitLimit || full
		for _, t := range threads {
			byID[t.ID] = t
		}
	}
	return hitLimit, nil
}

// backfill computes under-covered days and issues day-targeted queries
// for each of them.
func (e *Engine) backfill(ctx context.Context, community string, month model.Month, byID map[string]model.Thread, outcomes *model.Outcomes) error {
	days := e.underCoveredDays(byID, month)
	if len(days) == 0 {
		return nil
	}
	e.logger.Info("broad query hit page limit, backfilling under-covered days",
		"month", month.String(),
		"days", len(days),
	)

	for _, day := range days {
		for _, q := range dayQueries(e.flair, month, day) {
			threads, _, err := e.runQuery(ctx, community, q)
			if err != nil {
				if isFatal(err) {
					return err
				}
				e.logger.Warn("backfill query failed",
					"query", q,
					"day", day,
					"error", err,
				)
				outcomes.Skip(q, err.Error())
				continue
			}
			outcomes.Succeed(q)
			for _, t := range threads {
				if _, exists := byID[t.ID]; !exists {
					e.logger.Debug("backfill recovered thread",
						"id", t.ID,
						"title", t.Title,
					)
				}
				byID[t.ID] = t
			}
		}
	}
	return nil
}

// runQuery issues one search query and converts the resulting posts.
// The second return value reports whether the page ceiling was hit.
func (e *Engine) runQuery(ctx context.Context, community, query string) ([]model.Thread, bool, error) {
	raw, err := e.client.FetchJSON(ctx, searchURL(e.baseURL, community, query, e.pageLimit))
	if err != nil {
		return nil, false, err
	}

	thing, err := client.DecodeThing(raw)
	if err != nil {
		return nil, false, err
	}
	listing, err := thing.Listing()
	if err != nil {
		return nil, false, err
	}

	threads := make([]model.Thread, 0, len(listing.Children))
	for _, child := range listing.Children {
		if child.Kind != client.KindPost {
			continue
		}
		post, err := child.Post()
		if err != nil {
			// One undecodable child does not invalidate the page.
			e.logger.Debug("skipping undecodable search result", "error", err)
			continue
		}
		threads = append(threads, post.Thread(e.baseURL))
	}

	return threads, len(listing.Children) >= e.pageLimit, nil
}

// underCoveredDays groups the discovered threads by day of month and
// flags every day whose count falls below the best-covered day's count.
// For the current month only days up to today are considered; future
// days cannot be under-covered.
//
// The day with the most discovered threads is assumed fully covered.
// When the endpoint truncates every day uniformly the heuristic
// under-detects; that limitation is inherent to the approach.
func (e *Engine) underCoveredDays(byID map[string]model.Thread, month model.Month) []int {
	counts := make(map[int]int)
	maxPerDay := 0
	for _, t := range byID {
		date, ok := titledate.Resolve(t.Title, t.OverrideDate)
		if !ok || !month.Contains(date) {
			continue
		}
		counts[date.Day()]++
		if counts[date.Day()] > maxPerDay {
			maxPerDay = counts[date.Day()]
		}
	}

	lastDay := month.Days()
	if now := e.now().UTC(); month.Contains(now) {
		lastDay = now.Day()
	}

	var days []int
	for day := 1; day <= lastDay; day++ {
		if counts[day] < maxPerDay {
			e.logger.Debug("day under-covered",
				"month", month.String(),
				"day", day,
				"have", counts[day],
				"want", maxPerDay,
			)
			days = append(days, day)
		}
	}
	return days
}

// applyOverrides fetches each manual override thread for the month
// directly by its ID and merges it into the result set with the
// override's date attached as the title-parse fallback.
func (e *Engine) applyOverrides(ctx context.Context, community string, month model.Month, overrides []model.Override, byID map[string]model.Thread, outcomes *model.Outcomes) error {
	for _, o := range overrides {
		if !month.Contains(o.Date) {
			continue
		}

		thread, err := e.fetchOverride(ctx, community, o)
		if err != nil {
			if isFatal(err) {
				return err
			}
			e.logger.Warn("override fetch failed",
				"url", o.URL,
				"date", o.Date.Format("2006-01-02"),
				"error", err,
			)
			outcomes.Skip(o.URL, err.Error())
			continue
		}
		outcomes.Succeed(o.URL)
		byID[thread.ID] = thread
	}
	return nil
}

// fetchOverride retrieves one override thread's JSON representation.
func (e *Engine) fetchOverride(ctx context.Context, community string, o model.Override) (model.Thread, error) {
	id := threadIDFromURL(o.URL)
	if id == "" {
		return model.Thread{}, fmt.Errorf("no thread ID in override URL %q", o.URL)
	}

	raw, err := e.client.FetchJSON(ctx, threadJSONURL(e.baseURL, community, id))
	if err != nil {
		return model.Thread{}, err
	}

	// The thread endpoint returns [post listing, comment listing].
	things, err := client.DecodeThingArray(raw)
	if err != nil {
		return model.Thread{}, err
	}
	if len(things) == 0 {
		return model.Thread{}, fmt.Errorf("%w: empty thread response", client.ErrMalformedResponse)
	}
	listing, err := things[0].Listing()
	if err != nil {
		return model.Thread{}, err
	}
	if len(listing.Children) == 0 {
		return model.Thread{}, fmt.Errorf("%w: thread listing has no post", client.ErrMalformedResponse)
	}
	post, err := listing.Children[0].Post()
	if err != nil {
		return model.Thread{}, err
	}

	thread := post.Thread(e.baseURL)
	thread.OverrideDate = o.Date
	return thread, nil
}

// finalize filters the collected threads to the target month and sorts
// them ascending by resolved date. Threads without a resolvable date
// are excluded.
func (e *Engine) finalize(byID map[string]model.Thread, month model.Month) []model.Thread {
	type dated struct {
		thread model.Thread
		date   time.Time
	}

	kept := make([]dated, 0, len(byID))
	for _, t := range byID {
		date, ok := titledate.Resolve(t.Title, t.OverrideDate)
		if !ok {
			e.logger.Debug("excluding thread without resolvable date",
				"id", t.ID,
				"title", t.Title,
			)
			continue
		}
		if !month.Contains(date) {
			continue
		}
		kept = append(kept, dated{thread: t, date: date})
	}

	sort.Slice(kept, func(i, j int) bool {
		if !kept[i].date.Equal(kept[j].date) {
			return kept[i].date.Before(kept[j].date)
		}
		return kept[i].thread.ID < kept[j].thread.ID
	})

	threads := make([]model.Thread, len(kept))
	for i, d := range kept {
		threads[i] = d.thread
	}
	return threads
}

// isFatal reports whether an error should abort discovery rather than
// be contained at query scope.
func isFatal(err error) bool {
	return errors.Is(err, client.ErrRateLimitExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
