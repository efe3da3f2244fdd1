package model

import "fmt"

// OutcomeStatus classifies the result of one unit of crawl work
// (a search query, a thread's comment fetch, an override fetch).
type OutcomeStatus int

const (
	// OutcomeSucceeded indicates the unit completed normally.
	OutcomeSucceeded OutcomeStatus = iota

	// OutcomeSkipped indicates the unit was abandoned after a contained
	// failure and the crawl continued without its results.
	OutcomeSkipped
)

// String returns a human-readable status name.
func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Outcome records the result of one unit of crawl work. Failures at
// query or thread granularity are contained and accumulated as skipped
// outcomes rather than propagated, which makes the crawler's
// best-effort policy observable instead of implicit in log output.
type Outcome struct {
	// Unit names the piece of work, e.g. a query string or thread ID.
	Unit string

	// Status is the unit's final classification.
	Status OutcomeStatus

	// Reason explains a skip; empty on success.
	Reason string
}

// Outcomes accumulates per-unit results for one crawl stage.
type Outcomes []Outcome

// Succeed appends a succeeded outcome for unit.
func (o *Outcomes) Succeed(unit string) {
	*o = append(*o, Outcome{Unit: unit, Status: OutcomeSucceeded})
}

// Skip appends a skipped outcome for unit with the given reason.
func (o *Outcomes) Skip(unit, reason string) {
	*o = append(*o, Outcome{Unit: unit, Status: OutcomeSkipped, Reason: reason})
}

// Skipped returns only the skipped outcomes.
func (o Outcomes) Skipped() []Outcome {
	var skipped []Outcome
	for _, out := range o {
		if out.Status == OutcomeSkipped {
			skipped = append(skipped, out)
		}
	}
	return skipped
}

// SucceededCount returns the number of succeeded outcomes.
func (o Outcomes) SucceededCount() int {
	n := 0
	for _, out := range o {
		if out.Status == OutcomeSucceeded {
			n++
		}
	}
	return n
}
