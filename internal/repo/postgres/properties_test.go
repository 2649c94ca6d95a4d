package postgres

import (
	"strings"
	"testing"

	"github.com/parkrow-labs/parkrow-go/internal/repo"
)

func TestBuildPropertyListQueryRequiresSiteID(t *testing.T) {
	_, _, err := buildPropertyListQuery("", repo.PropertyFilter{})
	if err == nil {
		t.Fatalf("expected error for missing site id")
	}
}

func TestBuildPropertyListQueryScopesToSite(t *testing.T) {
	query, args, err := buildPropertyListQuery("site-01", repo.PropertyFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(args) != 1 || args[0] != "site-01" {
		t.Fatalf("expected site id as only arg, got %v", args)
	}
	if !strings.Contains(query, "site_id = $1") {
		t.Fatalf("expected site_id predicate in query, got %s", query)
	}
}

func TestBuildPropertyListQueryWithKindAndLimit(t *testing.T) {
	query, args, err := buildPropertyListQuery("site-01", repo.PropertyFilter{Kind: "apartment", Limit: 25})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(args))
	}
	if !strings.Contains(query, "kind = $2") {
		t.Fatalf("expected kind predicate in query, got %s", query)
	}
	if !strings.Contains(query, "LIMIT $3") {
		t.Fatalf("expected limit in query, got %s", query)
	}
}

func TestBuildPropertyListQuerySearchMatchesNameAndAddress(t *testing.T) {
	query, args, err := buildPropertyListQuery("site-01", repo.PropertyFilter{Query: "maple"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(args) != 2 || args[1] != "%maple%" {
		t.Fatalf("expected wildcard search arg, got %v", args)
	}
	if !strings.Contains(query, "name ILIKE $2 OR address_line1 ILIKE $2") {
		t.Fatalf("expected search predicate in query, got %s", query)
	}
}
