package transition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/parkrow-labs/parkrow-go/internal/domain"
	"github.com/parkrow-labs/parkrow-go/internal/platform/auditlog"
	"github.com/parkrow-labs/parkrow-go/internal/repo"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeRunner executes the transaction body against fixed stores and records
// whether the transaction would have committed.
type fakeRunner struct {
	stores    Stores
	committed bool
}

func (r *fakeRunner) InTx(ctx context.Context, fn func(context.Context, Stores) error) error {
	err := fn(ctx, r.stores)
	if err == nil {
		r.committed = true
	}
	return err
}

type leaseStatusUpdate struct {
	from    domain.LeaseStatus
	to      domain.LeaseStatus
	version int
}

type fakeLeaseStore struct {
	lease     domain.Lease
	getErr    error
	updates   []leaseStatusUpdate
	updateErr error
}

func (f *fakeLeaseStore) Create(ctx context.Context, lease domain.Lease) error {
	return errors.New("not implemented")
}

func (f *fakeLeaseStore) Get(ctx context.Context, siteID, id string) (domain.Lease, error) {
	return f.lease, f.getErr
}

func (f *fakeLeaseStore) GetForUpdate(ctx context.Context, siteID, id string) (domain.Lease, error) {
	return f.lease, f.getErr
}

func (f *fakeLeaseStore) List(ctx context.Context, siteID string, filter repo.LeaseFilter) ([]domain.Lease, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeLeaseStore) Update(ctx context.Context, siteID, id string, patch map[string]any) error {
	return errors.New("not implemented")
}

func (f *fakeLeaseStore) UpdateStatus(ctx context.Context, siteID, id string, from, to domain.LeaseStatus, version int) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, leaseStatusUpdate{from: from, to: to, version: version})
	return nil
}

func (f *fakeLeaseStore) SetOnboardingPending(ctx context.Context, siteID, id string, pending bool) error {
	return errors.New("not implemented")
}

type applicationStatusUpdate struct {
	from domain.ApplicationStatus
	to   domain.ApplicationStatus
}

type fakeApplicationStore struct {
	application domain.Application
	getErr      error
	updates     []applicationStatusUpdate
	updateErr   error
}

func (f *fakeApplicationStore) Create(ctx context.Context, application domain.Application) error {
	return errors.New("not implemented")
}

func (f *fakeApplicationStore) Get(ctx context.Context, siteID, id string) (domain.Application, error) {
	return f.application, f.getErr
}

func (f *fakeApplicationStore) GetForUpdate(ctx context.Context, siteID, id string) (domain.Application, error) {
	return f.application, f.getErr
}

func (f *fakeApplicationStore) List(ctx context.Context, siteID string, filter repo.ApplicationFilter) ([]domain.Application, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeApplicationStore) Update(ctx context.Context, siteID, id string, patch map[string]any) error {
	return errors.New("not implemented")
}

func (f *fakeApplicationStore) UpdateStatus(ctx context.Context, siteID, id string, from, to domain.ApplicationStatus) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, applicationStatusUpdate{from: from, to: to})
	return nil
}

func (f *fakeApplicationStore) SetScreening(ctx context.Context, siteID, id string, result domain.ScreeningResult) error {
	return errors.New("not implemented")
}

func (f *fakeApplicationStore) SetLease(ctx context.Context, siteID, id, leaseID string) error {
	return errors.New("not implemented")
}

type fakeChecklistStore struct {
	checklist domain.OnboardingChecklist
	found     bool
}

func (f *fakeChecklistStore) Create(ctx context.Context, checklist domain.OnboardingChecklist) error {
	return errors.New("not implemented")
}

func (f *fakeChecklistStore) GetByLease(ctx context.Context, siteID, leaseID string) (domain.OnboardingChecklist, error) {
	if !f.found {
		return domain.OnboardingChecklist{}, repo.ErrNotFound
	}
	return f.checklist, nil
}

func (f *fakeChecklistStore) GetByLeaseForUpdate(ctx context.Context, siteID, leaseID string) (domain.OnboardingChecklist, error) {
	return f.GetByLease(ctx, siteID, leaseID)
}

func (f *fakeChecklistStore) UpdateSteps(ctx context.Context, siteID, leaseID string, steps []domain.ChecklistStep) error {
	return errors.New("not implemented")
}

type fakeTransitionStore struct {
	records   []domain.TransitionRecord
	insertErr error
}

func (f *fakeTransitionStore) Insert(ctx context.Context, record domain.TransitionRecord) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.records = append(f.records, record)
	return nil
}

func (f *fakeTransitionStore) List(ctx context.Context, siteID string, entityDomain domain.TransitionDomain, entityID string, filter repo.TransitionFilter) ([]domain.TransitionRecord, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeTransitionStore) Latest(ctx context.Context, siteID string, entityDomain domain.TransitionDomain, entityID string) (domain.TransitionRecord, error) {
	return domain.TransitionRecord{}, errors.New("not implemented")
}

func (f *fakeTransitionStore) Stats(ctx context.Context, siteID string, entityDomain domain.TransitionDomain, entityID string) (repo.TransitionStats, error) {
	return repo.TransitionStats{}, errors.New("not implemented")
}

type fakeAppender struct {
	events []auditlog.Event
	err    error
}

func (f *fakeAppender) Append(ctx context.Context, event auditlog.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type fixture struct {
	svc         *Service
	runner      *fakeRunner
	leases      *fakeLeaseStore
	apps        *fakeApplicationStore
	checklists  *fakeChecklistStore
	transitions *fakeTransitionStore
	audit       *fakeAppender
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		leases:      &fakeLeaseStore{},
		apps:        &fakeApplicationStore{},
		checklists:  &fakeChecklistStore{},
		transitions: &fakeTransitionStore{},
		audit:       &fakeAppender{},
	}
	f.runner = &fakeRunner{stores: Stores{
		Leases:       f.leases,
		Applications: f.apps,
		Checklists:   f.checklists,
		Transitions:  f.transitions,
		Audit:        f.audit,
	}}
	svc := newService(f.runner, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return testNow }
	seq := 0
	svc.newID = func() string { seq++; return fmt.Sprintf("tr-%d", seq) }
	f.svc = svc
	return f
}

func draftLease() domain.Lease {
	return domain.Lease{
		ID:                "lease-1",
		SiteID:            "site-01",
		PropertyID:        "prop-1",
		UnitID:            "unit-1",
		TenantID:          "tenant-1",
		Status:            domain.LeaseStatusDraft,
		OnboardingPending: true,
		Version:           3,
	}
}

func leaseInput(to string) Input {
	return Input{
		SiteID:   "site-01",
		EntityID: "lease-1",
		ToStatus: to,
		Actor:    "manager@parkrow.dev",
	}
}

func TestTransitionLeaseHappyPath(t *testing.T) {
	f := newFixture(t)
	f.leases.lease = draftLease()

	result, err := f.svc.TransitionLease(context.Background(), leaseInput("pending_signature"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.runner.committed {
		t.Fatalf("expected transaction to commit")
	}
	if len(f.leases.updates) != 1 {
		t.Fatalf("expected 1 status update, got %d", len(f.leases.updates))
	}
	update := f.leases.updates[0]
	if update.from != domain.LeaseStatusDraft || update.to != domain.LeaseStatusPendingSignature || update.version != 3 {
		t.Fatalf("unexpected status update: %+v", update)
	}
	if len(f.transitions.records) != 1 {
		t.Fatalf("expected 1 transition record, got %d", len(f.transitions.records))
	}
	record := f.transitions.records[0]
	if record.ID != "tr-1" || record.Domain != domain.TransitionDomainLease {
		t.Fatalf("unexpected record: %+v", record)
	}
	if record.FromStatus != "draft" || record.ToStatus != "pending_signature" {
		t.Fatalf("unexpected record statuses: %+v", record)
	}
	if record.Type != domain.TransitionTypeManual {
		t.Fatalf("expected default manual type, got %q", record.Type)
	}
	if record.Bypassed() {
		t.Fatalf("did not expect a bypass: %+v", record)
	}
	if len(f.audit.events) != 1 {
		t.Fatalf("expected 1 audit event, got %d", len(f.audit.events))
	}
	event := f.audit.events[0]
	if event.Action != "lease.transition" || event.EntityType != "lease" || event.EntityID != "lease-1" {
		t.Fatalf("unexpected audit event: %+v", event)
	}
	if result.Lease.Status != domain.LeaseStatusPendingSignature || result.Lease.Version != 4 {
		t.Fatalf("unexpected result lease: %+v", result.Lease)
	}
	if result.Record == nil || result.Record.ID != "tr-1" {
		t.Fatalf("expected record in result, got %+v", result.Record)
	}
}

func TestTransitionLeaseSameStatusIsNoOp(t *testing.T) {
	f := newFixture(t)
	f.leases.lease = draftLease()

	result, err := f.svc.TransitionLease(context.Background(), leaseInput("draft"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Record != nil {
		t.Fatalf("expected no record for same-status request")
	}
	if len(f.leases.updates) != 0 || len(f.transitions.records) != 0 || len(f.audit.events) != 0 {
		t.Fatalf("expected nothing written for no-op")
	}
	if result.Lease.Status != domain.LeaseStatusDraft || result.Lease.Version != 3 {
		t.Fatalf("unexpected result lease: %+v", result.Lease)
	}
}

func TestTransitionLeaseIllegalWithoutBypass(t *testing.T) {
	f := newFixture(t)
	f.leases.lease = draftLease()

	_, err := f.svc.TransitionLease(context.Background(), leaseInput("active"))
	var terr *domain.IllegalTransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("expected IllegalTransitionError, got %v", err)
	}
	want := []string{"pending_signature", "terminated"}
	if len(terr.Allowed) != len(want) {
		t.Fatalf("unexpected allowed list: %v", terr.Allowed)
	}
	for i, status := range want {
		if terr.Allowed[i] != status {
			t.Fatalf("unexpected allowed list: %v", terr.Allowed)
		}
	}
	if f.runner.committed {
		t.Fatalf("expected rollback")
	}
	if len(f.leases.updates) != 0 || len(f.transitions.records) != 0 || len(f.audit.events) != 0 {
		t.Fatalf("expected nothing written for rejected transition")
	}
}

func TestTransitionLeaseBypassOverridesAdjacency(t *testing.T) {
	f := newFixture(t)
	f.leases.lease = draftLease()

	in := leaseInput("active")
	in.ConfirmationAcknowledged = true
	in.BypassReason = "status imported from legacy system"
	in.BypassCategory = domain.BypassCategoryDataCorrection

	result, err := f.svc.TransitionLease(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	record := result.Record
	if record == nil || !record.Bypassed() {
		t.Fatalf("expected bypassed record, got %+v", record)
	}
	if record.BypassReason != "status imported from legacy system" || record.BypassCategory != domain.BypassCategoryDataCorrection {
		t.Fatalf("unexpected bypass fields: %+v", record)
	}
	if !record.ConfirmationAck {
		t.Fatalf("expected confirmation ack recorded")
	}
	event := f.audit.events[0]
	changes, ok := event.Changes.(map[string]any)
	if !ok {
		t.Fatalf("expected changes map, got %T", event.Changes)
	}
	if changes["bypassed"] != true {
		t.Fatalf("expected bypassed flag in audit changes, got %v", changes)
	}
	if changes["bypass_reason"] != "status imported from legacy system" {
		t.Fatalf("expected bypass reason in audit changes, got %v", changes)
	}
}

func TestTransitionLeaseBypassRequiresReasonAndCategory(t *testing.T) {
	f := newFixture(t)
	f.leases.lease = draftLease()

	in := leaseInput("active")
	in.BypassReason = "fixing import"
	_, err := f.svc.TransitionLease(context.Background(), in)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "bypass_category" {
		t.Fatalf("expected bypass_category validation error, got %v", err)
	}

	f = newFixture(t)
	f.leases.lease = draftLease()
	in = leaseInput("active")
	in.BypassCategory = domain.BypassCategoryOther
	_, err = f.svc.TransitionLease(context.Background(), in)
	if !errors.As(err, &verr) || verr.Field != "bypass_reason" {
		t.Fatalf("expected bypass_reason validation error, got %v", err)
	}
	if len(f.transitions.records) != 0 {
		t.Fatalf("expected nothing written")
	}
}

func TestTransitionLeaseBypassCannotInventStatus(t *testing.T) {
	f := newFixture(t)
	f.leases.lease = draftLease()

	in := leaseInput("suspended")
	in.BypassReason = "trying to force an unknown status"
	in.BypassCategory = domain.BypassCategoryOther

	_, err := f.svc.TransitionLease(context.Background(), in)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
	if len(f.leases.updates) != 0 || len(f.transitions.records) != 0 {
		t.Fatalf("expected nothing written")
	}
}

func TestTransitionLeaseBypassIgnoredWhenLegal(t *testing.T) {
	f := newFixture(t)
	f.leases.lease = draftLease()

	in := leaseInput("pending_signature")
	in.BypassReason = "not needed"
	in.BypassCategory = domain.BypassCategoryOther

	result, err := f.svc.TransitionLease(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Record.Bypassed() {
		t.Fatalf("legal transition must not be recorded as bypassed: %+v", result.Record)
	}
}

func TestTransitionLeaseAuditFailureAbortsTransition(t *testing.T) {
	f := newFixture(t)
	f.leases.lease = draftLease()
	f.audit.err = errors.New("audit log unavailable")

	_, err := f.svc.TransitionLease(context.Background(), leaseInput("pending_signature"))
	if err == nil || !strings.Contains(err.Error(), "append audit entry") {
		t.Fatalf("expected audit append error, got %v", err)
	}
	if f.runner.committed {
		t.Fatalf("audit failure must abort the transition")
	}
}

func TestTransitionLeaseSnapshotsChecklist(t *testing.T) {
	f := newFixture(t)
	f.leases.lease = draftLease()
	f.checklists.found = true
	f.checklists.checklist = domain.OnboardingChecklist{
		ID:      "cl-1",
		SiteID:  "site-01",
		LeaseID: "lease-1",
		Steps: []domain.ChecklistStep{
			{ID: "application_approved", Label: "Application approved", Required: true, Completed: true},
			{ID: "lease_signed", Label: "Lease signed", Required: true},
		},
		TotalSteps:     2,
		CompletedSteps: 1,
	}

	result, err := f.svc.TransitionLease(context.Background(), leaseInput("pending_signature"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snapshot := string(result.Record.ChecklistSnapshot)
	if !strings.Contains(snapshot, `"total_steps":2`) || !strings.Contains(snapshot, `"application_approved"`) {
		t.Fatalf("unexpected checklist snapshot: %s", snapshot)
	}
}

func TestTransitionLeaseNotFound(t *testing.T) {
	f := newFixture(t)
	f.leases.getErr = repo.ErrNotFound

	_, err := f.svc.TransitionLease(context.Background(), leaseInput("pending_signature"))
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTransitionLeaseInputValidation(t *testing.T) {
	f := newFixture(t)
	in := leaseInput("pending_signature")
	in.Actor = ""
	_, err := f.svc.TransitionLease(context.Background(), in)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "actor" {
		t.Fatalf("expected actor validation error, got %v", err)
	}
}

func TestTransitionApplicationAutomaticScreening(t *testing.T) {
	f := newFixture(t)
	f.apps.application = domain.Application{
		ID:            "app-1",
		SiteID:        "site-01",
		ApplicantName: "Dana Whitfield",
		Email:         "dana@example.com",
		Status:        domain.ApplicationStatusDocumentsPending,
	}

	in := Input{
		SiteID:   "site-01",
		EntityID: "app-1",
		ToStatus: "screening",
		Type:     domain.TransitionTypeAutomatic,
		Actor:    "system:screening",
	}
	result, err := f.svc.TransitionApplication(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.apps.updates) != 1 {
		t.Fatalf("expected 1 status update, got %d", len(f.apps.updates))
	}
	if result.Record.Type != domain.TransitionTypeAutomatic {
		t.Fatalf("expected automatic record, got %q", result.Record.Type)
	}
	if result.Application.Status != domain.ApplicationStatusScreening {
		t.Fatalf("unexpected application status: %q", result.Application.Status)
	}
	event := f.audit.events[0]
	if event.Action != "application.transition" || event.EntityType != "application" {
		t.Fatalf("unexpected audit event: %+v", event)
	}
}

func TestTransitionApplicationTerminalStatus(t *testing.T) {
	f := newFixture(t)
	f.apps.application = domain.Application{
		ID:            "app-1",
		SiteID:        "site-01",
		ApplicantName: "Dana Whitfield",
		Email:         "dana@example.com",
		Status:        domain.ApplicationStatusRejected,
	}

	in := Input{SiteID: "site-01", EntityID: "app-1", ToStatus: "approved", Actor: "manager@parkrow.dev"}
	_, err := f.svc.TransitionApplication(context.Background(), in)
	var terr *domain.IllegalTransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("expected IllegalTransitionError, got %v", err)
	}
	if len(terr.Allowed) != 0 {
		t.Fatalf("terminal status should have no allowed transitions, got %v", terr.Allowed)
	}
	if !strings.Contains(terr.Error(), "terminal") {
		t.Fatalf("expected terminal message, got %q", terr.Error())
	}
}

func TestTransitionAuditCarriesRequestMeta(t *testing.T) {
	f := newFixture(t)
	f.leases.lease = draftLease()

	in := leaseInput("pending_signature")
	in.Meta = RequestMeta{
		RequestID:    "req-9",
		BulkActionID: "bulk-3",
		UserAgent:    "parkctl/1.0",
	}
	if _, err := f.svc.TransitionLease(context.Background(), in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	event := f.audit.events[0]
	if event.RequestID != "req-9" || event.BulkActionID != "bulk-3" || event.UserAgent != "parkctl/1.0" {
		t.Fatalf("expected request meta on audit event, got %+v", event)
	}
}
