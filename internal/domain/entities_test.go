package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validLease() Lease {
	return Lease{
		ID:         "lease-1",
		SiteID:     "site-1",
		PropertyID: "prop-1",
		UnitID:     "unit-1",
		TenantID:   "tenant-1",
		Status:     LeaseStatusDraft,
		Rent:       decimal.NewFromInt(1500),
		Deposit:    decimal.NewFromInt(1500),
		StartDate:  time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2027, 8, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestLeaseValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Lease)
		wantErr string
	}{
		{name: "valid", mutate: func(*Lease) {}},
		{name: "missing id", mutate: func(l *Lease) { l.ID = "" }, wantErr: "lease id is required"},
		{name: "missing site", mutate: func(l *Lease) { l.SiteID = " " }, wantErr: "site id is required"},
		{name: "missing tenant", mutate: func(l *Lease) { l.TenantID = "" }, wantErr: "tenant id is required"},
		{name: "bad status", mutate: func(l *Lease) { l.Status = "finished" }, wantErr: "invalid lease status"},
		{name: "negative rent", mutate: func(l *Lease) { l.Rent = decimal.NewFromInt(-1) }, wantErr: "rent must not be negative"},
		{name: "end before start", mutate: func(l *Lease) { l.EndDate = l.StartDate.AddDate(0, 0, -1) }, wantErr: "end date before start date"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			lease := validLease()
			tc.mutate(&lease)
			checkValidate(t, lease.Validate(), tc.wantErr)
		})
	}
}

func TestApplicationValidate(t *testing.T) {
	valid := Application{
		ID:            "app-1",
		SiteID:        "site-1",
		ApplicantName: "Jordan Reyes",
		Email:         "jordan@example.com",
		Status:        ApplicationStatusNew,
		MonthlyIncome: decimal.NewFromInt(5200),
	}

	tests := []struct {
		name    string
		mutate  func(*Application)
		wantErr string
	}{
		{name: "valid", mutate: func(*Application) {}},
		{name: "missing applicant", mutate: func(a *Application) { a.ApplicantName = "" }, wantErr: "applicant name is required"},
		{name: "missing email", mutate: func(a *Application) { a.Email = "" }, wantErr: "email is required"},
		{name: "bad email", mutate: func(a *Application) { a.Email = "not-an-email" }, wantErr: "invalid email"},
		{name: "bad status", mutate: func(a *Application) { a.Status = "maybe" }, wantErr: "invalid application status"},
		{name: "negative income", mutate: func(a *Application) { a.MonthlyIncome = decimal.NewFromInt(-10) }, wantErr: "monthly income must not be negative"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			app := valid
			tc.mutate(&app)
			checkValidate(t, app.Validate(), tc.wantErr)
		})
	}
}

func TestTransitionRecordValidate(t *testing.T) {
	valid := TransitionRecord{
		ID:         "tr-1",
		SiteID:     "site-1",
		Domain:     TransitionDomainLease,
		EntityID:   "lease-1",
		FromStatus: "draft",
		ToStatus:   "pending_signature",
		Type:       TransitionTypeManual,
		Actor:      "ops@example.com",
		CreatedAt:  time.Now().UTC(),
	}

	tests := []struct {
		name    string
		mutate  func(*TransitionRecord)
		wantErr string
	}{
		{name: "valid", mutate: func(*TransitionRecord) {}},
		{
			name: "valid with bypass",
			mutate: func(r *TransitionRecord) {
				r.BypassReason = "backfilling paper lease"
				r.BypassCategory = BypassCategoryRetroActive
			},
		},
		{name: "bad domain", mutate: func(r *TransitionRecord) { r.Domain = "unit" }, wantErr: "invalid transition domain"},
		{name: "missing actor", mutate: func(r *TransitionRecord) { r.Actor = "" }, wantErr: "actor is required"},
		{
			name:    "bypass category without reason",
			mutate:  func(r *TransitionRecord) { r.BypassCategory = BypassCategoryOther },
			wantErr: "bypass reason is required",
		},
		{
			name:    "bypass reason without category",
			mutate:  func(r *TransitionRecord) { r.BypassReason = "fixing import" },
			wantErr: "invalid bypass category",
		},
		{
			name: "bypass with unknown category",
			mutate: func(r *TransitionRecord) {
				r.BypassReason = "fixing import"
				r.BypassCategory = "because"
			},
			wantErr: "invalid bypass category",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := valid
			tc.mutate(&rec)
			checkValidate(t, rec.Validate(), tc.wantErr)
		})
	}
}

func TestBulkActionValidate(t *testing.T) {
	valid := BulkAction{
		ID:               "bulk-1",
		SiteID:           "site-1",
		Type:             BulkActionApprove,
		PerformedBy:      "ops@example.com",
		ApplicationCount: 3,
	}

	tests := []struct {
		name    string
		mutate  func(*BulkAction)
		wantErr string
	}{
		{name: "valid", mutate: func(*BulkAction) {}},
		{name: "zero count", mutate: func(b *BulkAction) { b.ApplicationCount = 0 }, wantErr: "application count must be positive"},
		{name: "bad type", mutate: func(b *BulkAction) { b.Type = "archive" }, wantErr: "invalid bulk action type"},
		{
			name: "counts overflow",
			mutate: func(b *BulkAction) {
				b.SuccessCount = 2
				b.FailureCount = 2
			},
			wantErr: "counts exceed application count",
		},
		{name: "negative failures", mutate: func(b *BulkAction) { b.FailureCount = -1 }, wantErr: "counts must not be negative"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			action := valid
			tc.mutate(&action)
			checkValidate(t, action.Validate(), tc.wantErr)
		})
	}
}

func TestChecklistValidateCounts(t *testing.T) {
	now := time.Now().UTC()
	checklist := OnboardingChecklist{
		ID:      "chk-1",
		SiteID:  "site-1",
		LeaseID: "lease-1",
		Steps: []ChecklistStep{
			{ID: "a", Label: "A", Required: true, Completed: true, CompletedAt: &now},
			{ID: "b", Label: "B", Required: true},
		},
		TotalSteps:     2,
		CompletedSteps: 1,
	}
	if err := checklist.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	checklist.CompletedSteps = 2
	checkValidate(t, checklist.Validate(), "completed steps out of sync")

	checklist.CompletedSteps = 1
	checklist.Steps = append(checklist.Steps, ChecklistStep{ID: "a", Label: "dup"})
	checkValidate(t, checklist.Validate(), "duplicate step id")
}

func checkValidate(t *testing.T, err error, want string) {
	t.Helper()
	if want == "" {
		if err != nil {
			t.Fatalf("Validate() = %v, want nil", err)
		}
		return
	}
	if err == nil {
		t.Fatalf("Validate() = nil, want error containing %q", want)
	}
	if !strings.Contains(err.Error(), want) {
		t.Fatalf("Validate() = %v, want error containing %q", err, want)
	}
}
