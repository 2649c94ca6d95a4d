package screening

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(Config{BaseURL: baseURL, Token: "worker-token", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return client
}

func TestEvaluateSendsAuthAndRequestID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/evaluate" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer worker-token" {
			t.Errorf("unexpected authorization header: %q", got)
		}
		if got := r.Header.Get("X-Request-Id"); got != "req-42" {
			t.Errorf("unexpected request id header: %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		if body["application_id"] != "app-1" {
			t.Errorf("unexpected application id: %v", body["application_id"])
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"score":72.5,"label":"review","flags":["income_ratio_low"],"bureau":"stub"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	result, err := client.Evaluate(context.Background(), EvaluateRequest{
		SiteID:        "site-01",
		ApplicationID: "app-1",
		ApplicantName: "Dana Whitfield",
		Email:         "dana@example.com",
		MonthlyIncome: decimal.RequireFromString("4200"),
		RequestedRent: decimal.RequireFromString("1450"),
		RequestID:     "req-42",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Score != 72.5 || result.Label != "review" {
		t.Fatalf("unexpected verdict: %+v", result)
	}
	if len(result.Flags) != 1 || result.Flags[0] != "income_ratio_low" {
		t.Fatalf("unexpected flags: %v", result.Flags)
	}
	// The raw body is kept verbatim, including fields we do not model.
	var raw map[string]any
	if err := json.Unmarshal(result.RawResponse, &raw); err != nil {
		t.Fatalf("raw response not preserved: %v", err)
	}
	if raw["bureau"] != "stub" {
		t.Fatalf("expected raw response to keep unknown fields, got %v", raw)
	}
	if result.EvaluatedAt.IsZero() {
		t.Fatalf("expected evaluated_at to be set")
	}
}

func TestEvaluateRetriesOnceOn5xx(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "worker warming up", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"score":90,"label":"pass","flags":[]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	result, err := client.Evaluate(context.Background(), EvaluateRequest{ApplicationID: "app-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
	if result.Label != "pass" {
		t.Fatalf("unexpected verdict: %+v", result)
	}
}

func TestEvaluateGivesUpAfterRetry(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Evaluate(context.Background(), EvaluateRequest{ApplicationID: "app-1"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected api error with status 500, got %v", err)
	}
}

func TestEvaluateDoesNotRetryOn4xx(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Evaluate(context.Background(), EvaluateRequest{ApplicationID: "app-1"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestEvaluateUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Evaluate(context.Background(), EvaluateRequest{ApplicationID: "app-1"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestEvaluateRequiresApplicationID(t *testing.T) {
	client := newTestClient(t, "http://localhost:8090")
	if _, err := client.Evaluate(context.Background(), EvaluateRequest{}); err == nil {
		t.Fatalf("expected error for missing application id")
	}
}
