package parkrow

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := New(srv.URL, "site-1")
	client.BearerToken = "tok"
	client.RequestID = "req-123"
	return client
}

func TestListApplications_BuildsRequest(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Path != "/api/leasing/sites/site-1/applications" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("status"); got != "approved" {
			t.Errorf("status query = %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("limit query = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization = %q", got)
		}
		if got := r.Header.Get("X-Site-Id"); got != "site-1" {
			t.Errorf("site header = %q", got)
		}
		if got := r.Header.Get("X-Request-Id"); got != "req-123" {
			t.Errorf("request id header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"id":"app-1","applicant_name":"Rosa Marquez","status":"approved","monthly_income":"2500"}]}`))
	})

	items, err := client.ListApplications(context.Background(), ApplicationListOptions{Status: "approved", Limit: 5})
	if err != nil {
		t.Fatalf("ListApplications: %v", err)
	}
	if len(items) != 1 || items[0].ID != "app-1" {
		t.Fatalf("items = %+v", items)
	}
	if !items[0].MonthlyIncome.Equal(decimal.NewFromInt(2500)) {
		t.Fatalf("monthly income = %s", items[0].MonthlyIncome)
	}
}

func TestTransitionLease_PostsBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/leasing/sites/site-1/leases/lease-9/transition" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["to_status"] != "active" {
			t.Errorf("to_status = %v", body["to_status"])
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"lease":{"id":"lease-9","status":"active"},"record":{"id":"tr-1","to_status":"active","bypassed":false}}`))
	})

	result, err := client.TransitionLease(context.Background(), "lease-9", TransitionInput{ToStatus: "active", ConfirmationAcknowledged: true})
	if err != nil {
		t.Fatalf("TransitionLease: %v", err)
	}
	if result.Lease.Status != "active" {
		t.Fatalf("lease status = %q", result.Lease.Status)
	}
	if result.Record == nil || result.Record.ToStatus != "active" {
		t.Fatalf("record = %+v", result.Record)
	}
}

func TestEvents_UsesAuditPath(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/audit/events" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("action"); got != "lease.transition" {
			t.Errorf("action query = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"entry_id":7,"action":"lease.transition","actor":"ops@parkrow.dev"}]}`))
	})

	events, err := client.Events(context.Background(), EventOptions{Action: "lease.transition"})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 1 || events[0].EntryID != 7 {
		t.Fatalf("events = %+v", events)
	}
}

func TestDo_WrapsErrorResponses(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"invalid_transition"}`))
	})

	_, err := client.TransitionLease(context.Background(), "lease-9", TransitionInput{ToStatus: "active"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T (%v)", err, err)
	}
	if apiErr.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d", apiErr.StatusCode)
	}
}

func TestExportApplications_StreamsBody(t *testing.T) {
	const csv = "id,applicant_name\napp-1,Rosa Marquez\n"
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body BulkRunInput
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Action != "export" {
			t.Errorf("action = %q", body.Action)
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		_, _ = w.Write([]byte(csv))
	})

	reader, err := client.ExportApplications(context.Background(), []string{"app-1"})
	if err != nil {
		t.Fatalf("ExportApplications: %v", err)
	}
	defer reader.Close()
	got, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(got) != csv {
		t.Fatalf("body = %q", got)
	}
}
