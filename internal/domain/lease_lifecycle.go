package domain

import "sort"

var leaseTransitions = map[LeaseStatus][]LeaseStatus{
	LeaseStatusDraft:            {LeaseStatusPendingSignature, LeaseStatusTerminated},
	LeaseStatusPendingSignature: {LeaseStatusSigned, LeaseStatusDraft, LeaseStatusTerminated},
	LeaseStatusSigned:           {LeaseStatusActive, LeaseStatusTerminated},
	LeaseStatusActive:           {LeaseStatusExpiringSoon, LeaseStatusTerminated},
	LeaseStatusExpiringSoon:     {LeaseStatusActive, LeaseStatusExpired, LeaseStatusTerminated},
	LeaseStatusExpired:          {LeaseStatusTerminated},
	LeaseStatusTerminated:       {},
}

// CanTransitionLease returns true when a lease status transition is allowed.
// Same-state transitions are always allowed and treated as no-ops upstream.
func CanTransitionLease(from, to LeaseStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	for _, candidate := range leaseTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// ValidateTransitionLease ensures a lease status transition is valid.
func ValidateTransitionLease(from, to LeaseStatus) error {
	if !from.Valid() {
		return NewValidationError("status", "unknown lease status "+string(from))
	}
	if !to.Valid() {
		return NewValidationError("to_status", "unknown lease status "+string(to))
	}
	if from == to {
		return nil
	}
	if !CanTransitionLease(from, to) {
		return &IllegalTransitionError{
			Domain:  "lease",
			From:    string(from),
			To:      string(to),
			Allowed: AllowedLeaseTransitions(from),
		}
	}
	return nil
}

// AllowedLeaseTransitions returns the target statuses reachable from a state,
// sorted for stable error messages. The returned slice is a copy.
func AllowedLeaseTransitions(from LeaseStatus) []string {
	allowed := leaseTransitions[from]
	out := make([]string, len(allowed))
	for i, s := range allowed {
		out[i] = string(s)
	}
	sort.Strings(out)
	return out
}
