package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Base pacing delays by authentication class. The remote grants a larger
// request budget to authenticated callers, so the session-cookie class
// gets the smallest delay and the unauthenticated class the largest.
// These are starting points only: after every response the delay is
// recomputed from the remote's own rate accounting headers.
const (
	// DefaultSessionDelay is the base delay with a session credential.
	DefaultSessionDelay = 1 * time.Second

	// DefaultClientIDDelay is the base delay for an OAuth-style
	// client-id credential. The crawler accepts this class but never
	// performs the token exchange itself.
	DefaultClientIDDelay = 2 * time.Second

	// DefaultAnonymousDelay is the base delay without any credential.
	DefaultAnonymousDelay = 6 * time.Second

	// DefaultUserAgent is a conventional browser User-Agent. The
	// platform's bot-detection heuristics reject obviously synthetic
	// agents, so requests present as a browser.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// DefaultSessionCookie is the cookie name the session token is sent as.
	DefaultSessionCookie = "reddit_session"

	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 30 * time.Second
)

// Rate accounting thresholds and limits.
const (
	// burstThreshold: above this many remaining requests the client
	// stays at its base delay.
	burstThreshold = 20

	// pacingThreshold: at or below this many remaining requests the
	// client spreads the remaining budget evenly across the remaining
	// window instead of bursting and stalling.
	pacingThreshold = 10

	// maxPacingDelay caps the computed pacing delay.
	maxPacingDelay = 60 * time.Second

	// rateLimitRetries is how many times a 429 is retried (honoring the
	// server-specified wait) before surfacing ErrRateLimitExceeded.
	rateLimitRetries = 3

	// transientRetries is how many times connection errors and 5xx
	// responses are retried with backoff.
	transientRetries = 3

	// transientBackoff is the initial backoff for transient retries;
	// it doubles per attempt.
	transientBackoff = 2 * time.Second

	// fallback429Wait is used when a 429 carries neither a reset nor a
	// retry-after header.
	fallback429Wait = 30 * time.Second
)

// Client issues authenticated GET requests against the forum's JSON
// endpoints and keeps the crawl under the remote rate limit.
//
// After every successful response it reads the remote's rate accounting
// headers (x-ratelimit-remaining / -reset / -used) and recomputes the
// delay to sleep before the next call. Sleeping the caller is the
// mechanism that prevents exceeding the limit, not merely reporting it.
//
// A Client is safe for concurrent use, but its connection pool and
// pacing state are shared; concurrent comment-fetch workers should each
// own a Clone() instead of sharing one instance.
type Client struct {
	// httpClient performs the actual requests.
	httpClient *http.Client

	// userAgent is sent on every request.
	userAgent string

	// sessionToken is the opaque session credential, carried as a
	// cookie. Empty means unauthenticated (or client-id class).
	sessionToken string

	// sessionCookie is the cookie name the token is sent as.
	sessionCookie string

	// clientID marks the OAuth-style credential class. It only selects
	// the base pacing delay; no token exchange is performed here.
	clientID string

	// baseDelay is the floor delay for the current auth class.
	baseDelay time.Duration

	// timeout is the per-request HTTP timeout used when no custom
	// http.Client is supplied.
	timeout time.Duration

	// delay is the current pacing delay, recomputed per response.
	// Guarded by mu.
	delay time.Duration
	mu    sync.Mutex

	// sleep blocks for the given duration or until ctx is cancelled.
	// Replaceable in tests so pacing logic can be verified instantly.
	sleep func(ctx context.Context, d time.Duration) error

	// logger receives pacing and retry diagnostics.
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithSessionToken sets the session credential. The token is sent as a
// cookie on every request and selects the smallest base delay.
func WithSessionToken(token string) Option {
	return func(c *Client) {
		c.sessionToken = token
	}
}

// WithSessionCookie overrides the cookie name the session token is sent as.
func WithSessionCookie(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.sessionCookie = name
		}
	}
}

// WithClientID marks the client as using an OAuth-style client-id
// credential, which selects the intermediate base delay. Ignored when a
// session token is also present.
func WithClientID(id string) Option {
	return func(c *Client) {
		c.clientID = id
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithTimeout overrides the per-request HTTP timeout. Ignored when a
// custom http.Client is supplied via WithHTTPClient.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithBaseDelay overrides the auth-class base delay.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.baseDelay = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSleepFunc replaces the sleep implementation. Tests use this to
// observe computed delays without actually waiting.
func WithSleepFunc(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// options returns the option set that reproduces c's configuration.
// Kept next to the field list so new options are not forgotten.
func (c *Client) options() []Option {
	return []Option{
		WithUserAgent(c.userAgent),
		WithSessionToken(c.sessionToken),
		WithSessionCookie(c.sessionCookie),
		WithClientID(c.clientID),
		WithBaseDelay(c.baseDelay),
		WithTimeout(c.timeout),
		WithLogger(c.logger),
		WithSleepFunc(c.sleep),
	}
}

// New creates a Client. The base delay is selected by credential class
// unless overridden: session token < client-id < unauthenticated.
func New(opts ...Option) *Client {
	c := &Client{
		userAgent:     DefaultUserAgent,
		sessionCookie: DefaultSessionCookie,
		baseDelay:     -1, // sentinel: pick by auth class after options
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.baseDelay < 0 {
		switch {
		case c.sessionToken != "":
			c.baseDelay = DefaultSessionDelay
		case c.clientID != "":
			c.baseDelay = DefaultClientIDDelay
		default:
			c.baseDelay = DefaultAnonymousDelay
		}
	}
	c.delay = c.baseDelay

	if c.httpClient == nil {
		if c.timeout <= 0 {
			c.timeout = DefaultTimeout
		}
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.sleep == nil {
		c.sleep = sleepContext
	}

	return c
}

// Clone returns a new Client with the same configuration but a fresh
// HTTP session (connection pool) and fresh pacing state. Concurrent
// comment-fetch workers each own a clone because sessions are not
// safely shared across goroutines.
func (c *Client) Clone() *Client {
	return New(c.options()...)
}

// Delay returns the current pacing delay. Exposed for diagnostics and tests.
func (c *Client) Delay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delay
}

// Timeout returns the per-request HTTP timeout of the underlying client.
func (c *Client) Timeout() time.Duration {
	return c.httpClient.Timeout
}

// FetchJSON issues an authenticated GET against rawURL and returns the
// response body. A ".json" format hint is appended to the URL path if
// absent. On 429 the server-specified wait is honored and the request
// retried up to rateLimitRetries times before ErrRateLimitExceeded.
// After a successful response the client recomputes its pacing delay
// from the rate accounting headers and sleeps it before returning.
func (c *Client) FetchJSON(ctx context.Context, rawURL string) (json.RawMessage, error) {
	u, err := ensureJSONURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	for attempt := 0; attempt <= rateLimitRetries; attempt++ {
		resp, body, err := c.do(ctx, u)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			if attempt == rateLimitRetries {
				break
			}
			wait := c.rateLimitWait(resp.Header)
			c.logger.Warn("rate limited, honoring server wait",
				"url", u,
				"wait", wait,
				"attempt", attempt+1,
			)
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, u)
		}

		c.updateDelay(resp.Header)

		// Pace before returning so the next call, from whichever
		// component, starts outside the window we just consumed.
		if err := c.sleep(ctx, c.Delay()); err != nil {
			return nil, err
		}

		return json.RawMessage(body), nil
	}

	return nil, fmt.Errorf("%w: %s", ErrRateLimitExceeded, u)
}

// do performs one GET with bounded transient retries. Connection errors
// and 5xx responses are retried with doubling backoff; 429 is returned
// to the caller because it requires honoring a server-specified wait,
// not a fixed backoff curve.
func (c *Client) do(ctx context.Context, u string) (*http.Response, []byte, error) {
	var lastErr error
	backoff := transientBackoff

	for attempt := 0; attempt <= transientRetries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying after transient failure",
				"url", u,
				"attempt", attempt,
				"backoff", backoff,
			)
			if err := c.sleep(ctx, backoff); err != nil {
				return nil, nil, err
			}
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, nil, err
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")
		if c.sessionToken != "" {
			req.AddCookie(&http.Cookie{Name: c.sessionCookie, Value: c.sessionToken})
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error %d for %s", resp.StatusCode, u)
			continue
		}

		return resp, body, nil
	}

	return nil, nil, fmt.Errorf("transient retries exhausted for %s: %w", u, lastErr)
}

// updateDelay recomputes the pacing delay from the remote's rate
// accounting headers after a successful response.
//
// The policy spreads the remaining request budget across the remaining
// window once it runs low, instead of bursting through the budget and
// then stalling for the whole reset period:
//
//	remaining > 20            base delay (burst mode)
//	10 < remaining <= 20      max(1.5*base, reset/remaining*0.9)
//	0 < remaining <= 10       max(base, reset/remaining*0.9), capped at 60s
//	remaining == 0            full reset wait (or 10*base if unknown)
func (c *Client) updateDelay(h http.Header) {
	remaining, haveRemaining := headerFloat(h, "x-ratelimit-remaining")
	reset, haveReset := headerFloat(h, "x-ratelimit-reset")
	used, haveUsed := headerFloat(h, "x-ratelimit-used")

	if !haveRemaining {
		// No accounting from the remote; stay at base.
		c.setDelay(c.baseDelay)
		return
	}

	var next time.Duration
	switch {
	case remaining > burstThreshold:
		next = c.baseDelay

	case remaining > pacingThreshold:
		next = time.Duration(1.5 * float64(c.baseDelay))
		if haveReset {
			next = maxDuration(next, spreadDelay(reset, remaining))
		}

	case remaining > 0:
		next = c.baseDelay
		if haveReset {
			next = maxDuration(next, spreadDelay(reset, remaining))
		}
		next = minDuration(next, maxPacingDelay)

	default:
		if haveReset {
			next = secondsDuration(reset)
		} else {
			next = 10 * c.baseDelay
		}
	}

	c.setDelay(next)

	if haveUsed {
		c.logger.Debug("rate window",
			"remaining", remaining,
			"reset_s", reset,
			"used", used,
			"next_delay", next,
		)
	}
}

// rateLimitWait picks the wait for a 429: the remote's reset header is
// preferred, then the standard Retry-After, then a fixed fallback.
func (c *Client) rateLimitWait(h http.Header) time.Duration {
	if reset, ok := headerFloat(h, "x-ratelimit-reset"); ok && reset > 0 {
		return secondsDuration(reset)
	}
	if retry, ok := headerFloat(h, "Retry-After"); ok && retry > 0 {
		return secondsDuration(retry)
	}
	return fallback429Wait
}

// setDelay stores the pacing delay under the mutex.
func (c *Client) setDelay(d time.Duration) {
	c.mu.Lock()
	c.delay = d
	c.mu.Unlock()
}

// spreadDelay returns the per-request delay that spreads `remaining`
// requests evenly across `reset` seconds, with a 0.9 factor so the
// budget is consumed slightly ahead of the window.
func spreadDelay(resetSeconds, remaining float64) time.Duration {
	if remaining <= 0 {
		return 0
	}
	return secondsDuration(resetSeconds / remaining * 0.9)
}

// headerFloat reads a numeric header value. Header lookup is
// case-insensitive per net/http canonicalization.
func headerFloat(h http.Header, key string) (float64, bool) {
	v := strings.TrimSpace(h.Get(key))
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ensureJSONURL appends the ".json" format hint to the URL path when absent.
func ensureJSONURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(u.Path, ".json") {
		u.Path = strings.TrimSuffix(u.Path, "/") + ".json"
	}
	return u.String(), nil
}

// sleepContext blocks for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// secondsDuration converts fractional seconds to a Duration.
func secondsDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
