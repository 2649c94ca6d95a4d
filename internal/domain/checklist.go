package domain

import (
	"errors"
	"strings"
	"time"
)

// ChecklistStep is one item of a lease onboarding checklist. Steps are stored
// as an ordered JSONB array on the checklist row.
type ChecklistStep struct {
	ID          string     `json:"id"`
	Label       string     `json:"label"`
	Required    bool       `json:"required"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// OnboardingChecklist tracks lease onboarding progress. TotalSteps and
// CompletedSteps are denormalized from Steps on every write.
type OnboardingChecklist struct {
	ID             string
	SiteID         string
	LeaseID        string
	Steps          []ChecklistStep
	TotalSteps     int
	CompletedSteps int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (c OnboardingChecklist) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("checklist id is required")
	}
	if strings.TrimSpace(c.SiteID) == "" {
		return errors.New("site id is required")
	}
	if strings.TrimSpace(c.LeaseID) == "" {
		return errors.New("lease id is required")
	}
	seen := make(map[string]struct{}, len(c.Steps))
	for _, step := range c.Steps {
		if strings.TrimSpace(step.ID) == "" {
			return errors.New("step id is required")
		}
		if _, dup := seen[step.ID]; dup {
			return errors.New("duplicate step id " + step.ID)
		}
		seen[step.ID] = struct{}{}
	}
	if c.TotalSteps != len(c.Steps) {
		return errors.New("total steps out of sync")
	}
	completed := 0
	for _, step := range c.Steps {
		if step.Completed {
			completed++
		}
	}
	if c.CompletedSteps != completed {
		return errors.New("completed steps out of sync")
	}
	return nil
}
