// Package client implements the rate-limited HTTP layer for the forum's
// public JSON endpoints, plus the typed decoding of the platform's
// kind-tagged wire objects (listings, posts, comments, continuation
// markers).
//
// The client owns per-credential pacing state: after every response it
// reads the remote's rate accounting headers and sleeps the computed
// delay before returning, so callers stay under the limit without
// hard-coded sleeps. Each concurrent worker owns its own Clone().
package client
