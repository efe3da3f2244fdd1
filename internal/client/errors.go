package client

import "errors"

// Sentinel errors returned by the client.
// Callers use errors.Is() to distinguish rate-limit exhaustion (fatal
// for the current fetch) from malformed responses (skippable per unit).
var (
	// ErrRateLimitExceeded is returned when the remote keeps answering
	// 429 after the full retry budget. The caller should stop issuing
	// requests rather than retry further.
	ErrRateLimitExceeded = errors.New("rate limit exceeded after retries")

	// ErrMalformedResponse is returned when a response body cannot be
	// decoded into the expected JSON shape. Treated as "no result from
	// this call" by discovery and comment fetching.
	ErrMalformedResponse = errors.New("malformed response")
)
