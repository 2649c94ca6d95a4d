package postgres

import (
	"strings"
	"testing"

	"github.com/parkrow-labs/parkrow-go/internal/repo"
)

func TestBuildLeaseListQueryFiltersOnboardingPending(t *testing.T) {
	pending := true
	query, args, err := buildLeaseListQuery("site-01", repo.LeaseFilter{OnboardingPending: &pending})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(args) != 2 || args[1] != true {
		t.Fatalf("expected onboarding flag as arg, got %v", args)
	}
	if !strings.Contains(query, "onboarding_pending = $2") {
		t.Fatalf("expected onboarding predicate in query, got %s", query)
	}
}

func TestBuildLeaseListQueryNilOnboardingMeansNoPredicate(t *testing.T) {
	query, args, err := buildLeaseListQuery("site-01", repo.LeaseFilter{Status: "active"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(args))
	}
	if strings.Contains(query, "onboarding_pending") {
		t.Fatalf("did not expect onboarding predicate in query, got %s", query)
	}
}
