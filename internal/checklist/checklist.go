// Package checklist is the pure lease-onboarding engine. It owns step
// seeding, progress math, and the required-step gate; persistence and HTTP
// stay in the leasing service.
package checklist

import (
	"errors"
	"math"
	"time"

	"github.com/parkrow-labs/parkrow-go/internal/domain"
)

// ErrStepNotFound is returned by Apply for an unknown step id.
var ErrStepNotFound = errors.New("checklist step not found")

// StepApplicationApproved is satisfied by the approval that created the
// lease, so Seed pre-completes it.
const StepApplicationApproved = "application_approved"

// Seed builds the step list for a new checklist from a template. The
// application_approved step, when present, starts completed.
func Seed(tpl Template, now time.Time) []domain.ChecklistStep {
	steps := make([]domain.ChecklistStep, len(tpl.Steps))
	for i, ts := range tpl.Steps {
		step := domain.ChecklistStep{
			ID:       ts.ID,
			Label:    ts.Label,
			Required: ts.Required,
		}
		if ts.ID == StepApplicationApproved {
			completedAt := now
			step.Completed = true
			step.CompletedAt = &completedAt
		}
		steps[i] = step
	}
	return steps
}

// Progress returns completion as a whole percentage, rounding half away
// from zero. A checklist with no steps reports 0.
func Progress(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// Apply toggles one step and returns a new slice; the input is not mutated.
// Completing sets CompletedAt to now, reopening clears it. A nil notes
// pointer leaves notes untouched.
func Apply(steps []domain.ChecklistStep, stepID string, completed bool, notes *string, now time.Time) ([]domain.ChecklistStep, error) {
	out := make([]domain.ChecklistStep, len(steps))
	copy(out, steps)

	for i := range out {
		if out[i].ID != stepID {
			continue
		}
		out[i].Completed = completed
		if completed {
			completedAt := now
			out[i].CompletedAt = &completedAt
		} else {
			out[i].CompletedAt = nil
		}
		if notes != nil {
			out[i].Notes = *notes
		}
		return out, nil
	}
	return nil, ErrStepNotFound
}

// Counts returns (completed, total) for a step list.
func Counts(steps []domain.ChecklistStep) (int, int) {
	completed := 0
	for _, step := range steps {
		if step.Completed {
			completed++
		}
	}
	return completed, len(steps)
}

// MissingRequired counts required steps that are not completed. Onboarding
// completion is gated on this reaching zero.
func MissingRequired(steps []domain.ChecklistStep) int {
	missing := 0
	for _, step := range steps {
		if step.Required && !step.Completed {
			missing++
		}
	}
	return missing
}
