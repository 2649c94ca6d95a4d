package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/parkrow-labs/parkrow-go/internal/repo"
)

func TestBuildAuditListQueryWithoutFilters(t *testing.T) {
	query, args := buildAuditListQuery(repo.AuditFilter{})
	if len(args) != 0 {
		t.Fatalf("expected no args, got %v", args)
	}
	if strings.Contains(query, "WHERE") {
		t.Fatalf("did not expect WHERE clause, got %s", query)
	}
	if !strings.Contains(query, "ORDER BY entry_id DESC") {
		t.Fatalf("expected newest-first ordering, got %s", query)
	}
}

func TestBuildAuditListQueryWithEntityScope(t *testing.T) {
	query, args := buildAuditListQuery(repo.AuditFilter{
		SiteID:     "site-01",
		EntityType: "lease",
		EntityID:   "lease-01",
	})
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(args))
	}
	if !strings.Contains(query, "site_id = $1") {
		t.Fatalf("expected site predicate in query, got %s", query)
	}
	if !strings.Contains(query, "entity_type = $2") || !strings.Contains(query, "entity_id = $3") {
		t.Fatalf("expected entity scoping in query, got %s", query)
	}
}

func TestBuildAuditListQueryTimeWindow(t *testing.T) {
	since := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	until := since.Add(24 * time.Hour)
	query, args := buildAuditListQuery(repo.AuditFilter{Since: since, Until: until, Limit: 50})
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(args))
	}
	if !strings.Contains(query, "occurred_at >= $1") || !strings.Contains(query, "occurred_at <= $2") {
		t.Fatalf("expected time window in query, got %s", query)
	}
	if !strings.Contains(query, "LIMIT $3") {
		t.Fatalf("expected limit in query, got %s", query)
	}
}
