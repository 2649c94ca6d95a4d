package main

import (
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/parkrow-labs/parkrow-go/internal/domain"
)

func TestParseDate(t *testing.T) {
	got, err := parseDate("start_date", "2026-03-01")
	if err != nil {
		t.Fatalf("parseDate() err=%v", err)
	}
	if got.Year() != 2026 || got.Month() != time.March || got.Day() != 1 {
		t.Fatalf("parseDate()=%v", got)
	}

	got, err = parseDate("start_date", "")
	if err != nil || !got.IsZero() {
		t.Fatalf("empty date: got %v err=%v", got, err)
	}

	_, err = parseDate("start_date", "03/01/2026")
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "start_date" {
		t.Fatalf("expected field start_date, got %q", verr.Field)
	}
}

func TestTransitionInput_Defaults(t *testing.T) {
	api := &leasingAPI{}
	req := httptest.NewRequest("POST", "http://example.test/sites/site-01/leases/lease-1/transition", nil)
	req.SetPathValue("site_id", "site-01")
	req.Header.Set("X-Request-Id", "req-9")
	req.Header.Set("User-Agent", "parkctl/1.0")
	req.RemoteAddr = "203.0.113.9:4411"

	in := api.transitionInput(req, "lease-1", "ops@parkrow.dev", transitionRequest{
		ToStatus:       " pending_signature ",
		BypassReason:   " ",
		BypassCategory: "",
	})

	if in.SiteID != "site-01" || in.EntityID != "lease-1" {
		t.Fatalf("unexpected ids: %+v", in)
	}
	if in.ToStatus != "pending_signature" {
		t.Fatalf("expected trimmed to_status, got %q", in.ToStatus)
	}
	if in.Type != domain.TransitionTypeManual {
		t.Fatalf("expected manual type, got %q", in.Type)
	}
	if in.BypassReason != "" || in.BypassCategory != "" {
		t.Fatalf("expected no bypass, got %+v", in)
	}
	if in.Meta.RequestID != "req-9" || in.Meta.UserAgent != "parkctl/1.0" {
		t.Fatalf("unexpected meta: %+v", in.Meta)
	}
	if in.Meta.IP == nil || in.Meta.IP.String() != "203.0.113.9" {
		t.Fatalf("unexpected ip: %v", in.Meta.IP)
	}
}

func TestRequestMeta_MissingHeaders(t *testing.T) {
	req := httptest.NewRequest("POST", "http://example.test/", nil)
	req.RemoteAddr = "bad"
	meta := requestMeta(req)
	if meta.RequestID != "" || meta.IP != nil || meta.UserAgent != "" {
		t.Fatalf("expected empty meta, got %+v", meta)
	}
}

func TestDecodeJSON_TransitionRequest(t *testing.T) {
	req := httptest.NewRequest("POST", "http://example.test/", strings.NewReader("{\"to_status\":\"signed\",\"surprise\":1}"))
	var dst transitionRequest
	if err := decodeJSON(req, &dst); err == nil {
		t.Fatalf("expected unknown-field error")
	}
}

func TestToChecklistResponse_CarriesProgress(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	view := checklistView(domain.OnboardingChecklist{
		ID:      "cl-1",
		SiteID:  "site-01",
		LeaseID: "lease-1",
		Steps: []domain.ChecklistStep{
			{ID: "application_approved", Label: "Application approved", Required: true, Completed: true, CompletedAt: &now},
			{ID: "lease_signed", Label: "Lease signed", Required: true},
			{ID: "welcome_basket", Label: "Welcome basket", Required: false},
		},
		TotalSteps:     3,
		CompletedSteps: 1,
	})

	resp := toChecklistResponse(view)
	if resp.Progress != 33 {
		t.Fatalf("progress=%d, want 33", resp.Progress)
	}
	if resp.MissingRequired != 1 {
		t.Fatalf("missing_required=%d, want 1", resp.MissingRequired)
	}
	if len(resp.Steps) != 3 || resp.Steps[0].ID != "application_approved" {
		t.Fatalf("unexpected steps: %+v", resp.Steps)
	}
	if resp.Steps[0].CompletedAt == nil {
		t.Fatalf("expected completed_at on finished step")
	}
}

func TestToApplicationResponse_Formats(t *testing.T) {
	evaluated := time.Date(2026, 1, 20, 15, 0, 0, 0, time.UTC)
	app := domain.Application{
		ID:            "app-1",
		SiteID:        "site-01",
		ApplicantName: "Jordan Velez",
		Email:         "jordan@example.com",
		Status:        domain.ApplicationStatusScreening,
		DesiredMoveIn: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		MonthlyIncome: decimal.RequireFromString("5400.50"),
		Screening: &domain.ScreeningResult{
			Score:       82.5,
			Label:       "approved_with_conditions",
			Flags:       []string{"income_ratio"},
			EvaluatedAt: evaluated,
		},
	}

	resp := toApplicationResponse(app)
	if resp.DesiredMoveIn != "2026-04-01" {
		t.Fatalf("desired_move_in=%q", resp.DesiredMoveIn)
	}
	if resp.Screening == nil || resp.Screening.Score != 82.5 {
		t.Fatalf("screening not carried: %+v", resp.Screening)
	}
	if !resp.MonthlyIncome.Equal(decimal.RequireFromString("5400.50")) {
		t.Fatalf("monthly_income=%s", resp.MonthlyIncome)
	}

	bare := toApplicationResponse(domain.Application{ID: "app-2"})
	if bare.DesiredMoveIn != "" || bare.Screening != nil {
		t.Fatalf("zero fields leaked: %+v", bare)
	}
}

func TestWriteDomainError_OnboardingIncomplete(t *testing.T) {
	api := &leasingAPI{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	req := httptest.NewRequest("POST", "/sites/site-01/leases/lease-1/complete-onboarding", nil)
	req.Header.Set("X-Request-Id", "req-2")
	rec := httptest.NewRecorder()

	api.writeDomainError(rec, req, &domain.IncompleteChecklistError{Missing: 2})

	if rec.Code != 409 {
		t.Fatalf("status=%d, want 409", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "onboarding_incomplete") {
		t.Fatalf("body=%s", body)
	}
	if !strings.Contains(body, "2 required step(s) incomplete") {
		t.Fatalf("expected message in details, body=%s", body)
	}
}
