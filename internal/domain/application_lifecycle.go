package domain

import "sort"

var applicationTransitions = map[ApplicationStatus][]ApplicationStatus{
	ApplicationStatusNew:              {ApplicationStatusContacted, ApplicationStatusDocumentsPending, ApplicationStatusRejected, ApplicationStatusWithdrawn},
	ApplicationStatusContacted:        {ApplicationStatusDocumentsPending, ApplicationStatusRejected, ApplicationStatusWithdrawn},
	ApplicationStatusDocumentsPending: {ApplicationStatusScreening, ApplicationStatusRejected, ApplicationStatusWithdrawn},
	ApplicationStatusScreening:        {ApplicationStatusApproved, ApplicationStatusDocumentsPending, ApplicationStatusRejected, ApplicationStatusWithdrawn},
	ApplicationStatusApproved:         {ApplicationStatusRejected, ApplicationStatusWithdrawn},
	ApplicationStatusRejected:         {},
	ApplicationStatusWithdrawn:        {},
}

// CanTransitionApplication returns true when a pipeline transition is allowed.
// Same-state transitions are always allowed and treated as no-ops upstream.
func CanTransitionApplication(from, to ApplicationStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	for _, candidate := range applicationTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// ValidateTransitionApplication ensures an application pipeline transition is valid.
func ValidateTransitionApplication(from, to ApplicationStatus) error {
	if !from.Valid() {
		return NewValidationError("status", "unknown application status "+string(from))
	}
	if !to.Valid() {
		return NewValidationError("to_status", "unknown application status "+string(to))
	}
	if from == to {
		return nil
	}
	if !CanTransitionApplication(from, to) {
		return &IllegalTransitionError{
			Domain:  "application",
			From:    string(from),
			To:      string(to),
			Allowed: AllowedApplicationTransitions(from),
		}
	}
	return nil
}

// AllowedApplicationTransitions returns the target statuses reachable from a
// state, sorted for stable error messages. The returned slice is a copy.
func AllowedApplicationTransitions(from ApplicationStatus) []string {
	allowed := applicationTransitions[from]
	out := make([]string, len(allowed))
	for i, s := range allowed {
		out[i] = string(s)
	}
	sort.Strings(out)
	return out
}
