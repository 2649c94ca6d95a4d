package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/parkrow-labs/parkrow-go/internal/domain"
	"github.com/parkrow-labs/parkrow-go/internal/platform/auth"
	"github.com/parkrow-labs/parkrow-go/internal/repo"
)

type fakeAuditStore struct {
	entries []domain.AuditLogEntry
}

func (s *fakeAuditStore) Get(_ context.Context, entryID int64) (domain.AuditLogEntry, error) {
	for _, entry := range s.entries {
		if entry.EntryID == entryID {
			return entry, nil
		}
	}
	return domain.AuditLogEntry{}, repo.ErrNotFound
}

func (s *fakeAuditStore) List(ctx context.Context, filter repo.AuditFilter) ([]domain.AuditLogEntry, error) {
	out := make([]domain.AuditLogEntry, 0)
	err := s.ForEach(ctx, filter, func(entry domain.AuditLogEntry) error {
		out = append(out, entry)
		return nil
	})
	return out, err
}

func (s *fakeAuditStore) ForEach(_ context.Context, filter repo.AuditFilter, fn func(domain.AuditLogEntry) error) error {
	matched := make([]domain.AuditLogEntry, 0)
	for _, entry := range s.entries {
		if filter.SiteID != "" && entry.SiteID != filter.SiteID {
			continue
		}
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		if filter.BulkActionID != "" && entry.BulkActionID != filter.BulkActionID {
			continue
		}
		if !filter.Since.IsZero() && entry.OccurredAt.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && entry.OccurredAt.After(filter.Until) {
			continue
		}
		matched = append(matched, entry)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].EntryID > matched[j].EntryID })
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	for _, entry := range matched {
		if err := fn(entry); err != nil {
			return err
		}
	}
	return nil
}

type auditFixture struct {
	api   *auditAPI
	mux   *http.ServeMux
	store *fakeAuditStore
}

func newAuditFixture(t *testing.T) *auditFixture {
	t.Helper()
	store := &fakeAuditStore{}
	api := &auditAPI{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		entries: store,
		now:     func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
	mux := http.NewServeMux()
	api.register(mux)
	return &auditFixture{api: api, mux: mux, store: store}
}

func (f *auditFixture) do(req *http.Request, roles ...string) *httptest.ResponseRecorder {
	if len(roles) == 0 {
		roles = []string{auth.RoleAdmin}
	}
	ctx := auth.ContextWithIdentity(req.Context(), auth.Identity{Subject: "auditor@parkrow.test", Roles: roles})
	ctx = auth.ContextWithSiteID(ctx, "site-1")
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

func seedEntries(f *auditFixture) {
	base := time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)
	f.store.entries = []domain.AuditLogEntry{
		{
			EntryID: 1, OccurredAt: base, SiteID: "site-1",
			Actor: "ops@parkrow.test", Action: "lease.transition",
			EntityType: "lease", EntityID: "lease-1",
			IP:      net.ParseIP("203.0.113.9"),
			Changes: domain.Metadata{"from": "draft", "to": "pending_signature"},
		},
		{
			EntryID: 2, OccurredAt: base.Add(time.Hour), SiteID: "site-1",
			Actor: "ops@parkrow.test", Action: "application.bulk_action",
			EntityType: "bulk_action", EntityID: "bulk-1", BulkActionID: "bulk-1",
		},
		{
			EntryID: 3, OccurredAt: base.Add(2 * time.Hour), SiteID: "site-2",
			Actor: "other@parkrow.test", Action: "lease.transition",
			EntityType: "lease", EntityID: "lease-9",
		},
	}
}

func TestHandleListEvents_SiteScoped(t *testing.T) {
	f := newAuditFixture(t)
	seedEntries(f)

	req := httptest.NewRequest("GET", "http://audit.test/events", nil)
	rec := f.do(req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Items []auditEntryResponse `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Items) != 2 {
		t.Fatalf("items=%d, want 2 (site-2 entry excluded)", len(envelope.Items))
	}
	if envelope.Items[0].EntryID != 2 || envelope.Items[1].EntryID != 1 {
		t.Fatalf("order=%d,%d, want newest first", envelope.Items[0].EntryID, envelope.Items[1].EntryID)
	}
}

func TestHandleListEvents_ActionFilter(t *testing.T) {
	f := newAuditFixture(t)
	seedEntries(f)

	req := httptest.NewRequest("GET", "http://audit.test/events?action=application.bulk_action", nil)
	rec := f.do(req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Items []auditEntryResponse `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Items) != 1 || envelope.Items[0].BulkActionID != "bulk-1" {
		t.Fatalf("items=%+v", envelope.Items)
	}
}

func TestHandleListEvents_RejectsBadSince(t *testing.T) {
	f := newAuditFixture(t)

	req := httptest.NewRequest("GET", "http://audit.test/events?since=yesterday", nil)
	rec := f.do(req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "RFC 3339") {
		t.Fatalf("body=%s", rec.Body.String())
	}
}

func TestHandleListEvents_RejectsInvertedRange(t *testing.T) {
	f := newAuditFixture(t)

	req := httptest.NewRequest("GET", "http://audit.test/events?since=2025-05-02T00:00:00Z&until=2025-05-01T00:00:00Z", nil)
	rec := f.do(req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "must not be before since") {
		t.Fatalf("body=%s", rec.Body.String())
	}
}

func TestHandleGetEvent(t *testing.T) {
	f := newAuditFixture(t)
	seedEntries(f)

	req := httptest.NewRequest("GET", "http://audit.test/events/1", nil)
	rec := f.do(req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var got auditEntryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.EntryID != 1 || got.Action != "lease.transition" {
		t.Fatalf("got=%+v", got)
	}
	if got.IP != "203.0.113.9" {
		t.Fatalf("ip=%q", got.IP)
	}
}

func TestHandleGetEvent_OtherSiteReadsMissing(t *testing.T) {
	f := newAuditFixture(t)
	seedEntries(f)

	req := httptest.NewRequest("GET", "http://audit.test/events/3", nil)
	rec := f.do(req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestHandleGetEvent_BadID(t *testing.T) {
	f := newAuditFixture(t)

	req := httptest.NewRequest("GET", "http://audit.test/events/abc", nil)
	rec := f.do(req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestHandleExportEvents_RequiresAdmin(t *testing.T) {
	f := newAuditFixture(t)
	seedEntries(f)

	req := httptest.NewRequest("GET", "http://audit.test/events:export?format=csv", nil)
	rec := f.do(req, auth.RoleEditor)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestHandleExportEvents_CSV(t *testing.T) {
	f := newAuditFixture(t)
	seedEntries(f)

	req := httptest.NewRequest("GET", "http://audit.test/events:export?format=csv", nil)
	rec := f.do(req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "text/csv" {
		t.Fatalf("Content-Type=%q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "audit-events-2025-06-01.csv") {
		t.Fatalf("Content-Disposition=%q", got)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines=%d, want header + 2 site-1 rows:\n%s", len(lines), rec.Body.String())
	}
	if !strings.HasPrefix(lines[0], "entry_id,occurred_at,site_id") {
		t.Fatalf("header=%q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "2,") {
		t.Fatalf("first row=%q, want entry 2 first", lines[1])
	}
}

func TestHandleExportEvents_NDJSON(t *testing.T) {
	f := newAuditFixture(t)
	seedEntries(f)

	req := httptest.NewRequest("GET", "http://audit.test/events:export", nil)
	rec := f.do(req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/x-ndjson" {
		t.Fatalf("Content-Type=%q", got)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines=%d, want 2:\n%s", len(lines), rec.Body.String())
	}
	for _, line := range lines {
		var doc auditEntryResponse
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			t.Fatalf("line %q not JSON: %v", line, err)
		}
		if doc.SiteID != "site-1" {
			t.Fatalf("exported entry for wrong site: %+v", doc)
		}
	}
}

func TestHandleExportEvents_BadFormat(t *testing.T) {
	f := newAuditFixture(t)

	req := httptest.NewRequest("GET", "http://audit.test/events:export?format=xml", nil)
	rec := f.do(req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "invalid_request") {
		t.Fatalf("body=%s", rec.Body.String())
	}
}
