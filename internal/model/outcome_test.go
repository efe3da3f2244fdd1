package model

import "testing"

// TestOutcomes tests outcome accumulation and filtering.
func TestOutcomes(t *testing.T) {
	t.Parallel()

	t.Run("accumulates successes and skips", func(t *testing.T) {
		t.Parallel()

		var o Outcomes
		o.Succeed("query: daily discussion january")
		o.Skip("thread abc123", "fetch failed after retries")
		o.Succeed("thread def456")

		if len(o) != 3 {
			t.Fatalf("expected 3 outcomes, got %d", len(o))
		}
		if got := o.SucceededCount(); got != 2 {
			t.Errorf("SucceededCount() = %d, want 2", got)
		}

		skipped := o.Skipped()
		if len(skipped) != 1 {
			t.Fatalf("expected 1 skipped outcome, got %d", len(skipped))
		}
		if skipped[0].Unit != "thread abc123" {
			t.Errorf("skipped unit = %q, want %q", skipped[0].Unit, "thread abc123")
		}
		if skipped[0].Reason != "fetch failed after retries" {
			t.Errorf("skipped reason = %q, want %q", skipped[0].Reason, "fetch failed after retries")
		}
	})

	t.Run("empty outcomes", func(t *testing.T) {
		t.Parallel()

		var o Outcomes
		if o.SucceededCount() != 0 {
			t.Error("expected 0 succeeded on empty outcomes")
		}
		if len(o.Skipped()) != 0 {
			t.Error("expected no skipped on empty outcomes")
		}
	})
}

// TestOutcomeStatusString tests the status names.
func TestOutcomeStatusString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status OutcomeStatus
		want   string
	}{
		{OutcomeSucceeded, "succeeded"},
		{OutcomeSkipped, "skipped"},
		{OutcomeStatus(42), "unknown(42)"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
