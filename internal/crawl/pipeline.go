package crawl

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/threadharvest/internal/model"
)

// State carries one month's crawl through the pipeline stages. Each
// stage reads what earlier stages produced and appends its own results;
// no stage loops back.
type State struct {
	// Month is the calendar month being crawled.
	Month model.Month

	// StartedAt is when the month's pipeline began.
	StartedAt time.Time

	// Threads is the working thread set: discovery output, then the
	// merged set after MergeThreads.
	Threads []model.Thread

	// PrevThreads and PrevComments are the previously persisted
	// collections, empty on a first crawl or under force-refresh.
	PrevThreads  []model.Thread
	PrevComments []model.Comment

	// NewThreads counts threads in the merged set that were not
	// previously persisted.
	NewThreads int

	// MissingDays lists days ("2006-01-02") with no discovered thread.
	MissingDays []string

	// ToFetch is the thread subset whose comments will be fetched.
	ToFetch []model.Thread

	// CarriedComments are prior comments reused by skip-unchanged.
	CarriedComments []model.Comment

	// SkippedThreadIDs are threads whose fetch was skipped as unchanged.
	SkippedThreadIDs []string

	// Comments is the working comment set: fetch output plus carried,
	// then the merged set after MergeComments.
	Comments []model.Comment

	// NewComments counts comments in the merged set that were not
	// previously persisted.
	NewComments int

	// ThreadsMissingComments lists thread IDs with no comments in the
	// final merged set.
	ThreadsMissingComments []string

	// Outcomes accumulates per-unit results across all stages.
	Outcomes model.Outcomes

	// RateLimited records that the remote's retry budget was exhausted
	// mid-crawl. Later fetch stages stand down, but what was gathered
	// is still merged and persisted.
	RateLimited bool
}

// Step is one stage of the month pipeline.
type Step interface {
	// Do executes the stage against the accumulated state. An error
	// aborts the month; contained failures are recorded in
	// state.Outcomes instead.
	Do(ctx context.Context, st *State) error

	// Name returns the stage's name for logging.
	Name() string
}

// Pipeline executes stages in order, checking for cancellation between
// stages. Stages handle their own in-flight cancellation; the
// between-stage check is what guarantees no new stage starts after an
// interrupt, so a cancelled month is never partially persisted.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// NewPipeline creates a Pipeline with the given stages.
func NewPipeline(logger *slog.Logger, steps ...Step) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{steps: steps, logger: logger}
}

// Execute runs all stages in sequence against st. It returns the first
// stage error, or the context's error if cancelled between stages.
func (p *Pipeline) Execute(ctx context.Context, st *State) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("crawl cancelled",
				"month", st.Month.String(),
				"stage", step.Name(),
				"reason", ctx.Err(),
			)
			return ctx.Err()
		default:
		}

		p.logger.Info("executing stage",
			"stage", step.Name(),
			"month", st.Month.String(),
		)

		if err := step.Do(ctx, st); err != nil {
			p.logger.Error("stage failed",
				"stage", step.Name(),
				"month", st.Month.String(),
				"error", err,
			)
			return err
		}

		p.logger.Debug("stage completed",
			"stage", step.Name(),
			"month", st.Month.String(),
		)
	}
	return nil
}

// StepNames returns the names of all stages in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
