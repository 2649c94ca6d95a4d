package domain

import (
	"fmt"
	"strings"
)

// ValidationError marks input the caller can correct. Handlers map it to
// HTTP 400 invalid_request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IllegalTransitionError reports a lifecycle transition the state machine
// does not allow. Handlers map it to HTTP 409 invalid_transition.
type IllegalTransitionError struct {
	Domain  string
	From    string
	To      string
	Allowed []string
}

func (e *IllegalTransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("%s transition %q -> %q not allowed; %q is terminal", e.Domain, e.From, e.To, e.From)
	}
	return fmt.Sprintf("%s transition %q -> %q not allowed; allowed: %s", e.Domain, e.From, e.To, strings.Join(e.Allowed, ", "))
}

// IncompleteChecklistError blocks lease onboarding completion while required
// steps remain open. Handlers map it to HTTP 409 onboarding_incomplete.
type IncompleteChecklistError struct {
	Missing int
}

func (e *IncompleteChecklistError) Error() string {
	return fmt.Sprintf("Cannot complete onboarding: %d required step(s) incomplete", e.Missing)
}
