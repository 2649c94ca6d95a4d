package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/parkrow-labs/parkrow-go/internal/checklist"
	"github.com/parkrow-labs/parkrow-go/internal/domain"
	"github.com/parkrow-labs/parkrow-go/internal/repo"
	"github.com/parkrow-labs/parkrow-go/internal/service/onboarding"
)

type checklistStepTemplateRequest struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

type createLeaseRequest struct {
	PropertyID  string                         `json:"property_id"`
	UnitID      string                         `json:"unit_id"`
	TenantID    string                         `json:"tenant_id"`
	Rent        decimal.Decimal                `json:"rent"`
	Deposit     decimal.Decimal                `json:"deposit"`
	StartDate   string                         `json:"start_date"`
	EndDate     string                         `json:"end_date"`
	CustomSteps []checklistStepTemplateRequest `json:"custom_steps,omitempty"`
	Metadata    map[string]any                 `json:"metadata"`
}

type leaseResponse struct {
	ID                string          `json:"id"`
	SiteID            string          `json:"site_id"`
	PropertyID        string          `json:"property_id"`
	UnitID            string          `json:"unit_id"`
	TenantID          string          `json:"tenant_id"`
	Status            string          `json:"status"`
	Rent              decimal.Decimal `json:"rent"`
	Deposit           decimal.Decimal `json:"deposit"`
	StartDate         string          `json:"start_date,omitempty"`
	EndDate           string          `json:"end_date,omitempty"`
	OnboardingPending bool            `json:"onboarding_pending"`
	Version           int             `json:"version"`
	Metadata          json.RawMessage `json:"metadata"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	CreatedBy         string          `json:"created_by"`
}

func toLeaseResponse(l domain.Lease) leaseResponse {
	resp := leaseResponse{
		ID:                l.ID,
		SiteID:            l.SiteID,
		PropertyID:        l.PropertyID,
		UnitID:            l.UnitID,
		TenantID:          l.TenantID,
		Status:            string(l.Status),
		Rent:              l.Rent,
		Deposit:           l.Deposit,
		OnboardingPending: l.OnboardingPending,
		Version:           l.Version,
		Metadata:          metadataJSON(l.Metadata),
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
		CreatedBy:         l.CreatedBy,
	}
	if !l.StartDate.IsZero() {
		resp.StartDate = l.StartDate.Format("2006-01-02")
	}
	if !l.EndDate.IsZero() {
		resp.EndDate = l.EndDate.Format("2006-01-02")
	}
	return resp
}

type checklistStepResponse struct {
	ID          string     `json:"id"`
	Label       string     `json:"label"`
	Required    bool       `json:"required"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

type checklistResponse struct {
	ID              string                  `json:"id"`
	SiteID          string                  `json:"site_id"`
	LeaseID         string                  `json:"lease_id"`
	Steps           []checklistStepResponse `json:"steps"`
	TotalSteps      int                     `json:"total_steps"`
	CompletedSteps  int                     `json:"completed_steps"`
	Progress        int                     `json:"progress"`
	MissingRequired int                     `json:"missing_required"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

func toChecklistResponse(view onboarding.View) checklistResponse {
	cl := view.Checklist
	steps := make([]checklistStepResponse, 0, len(cl.Steps))
	for _, step := range cl.Steps {
		steps = append(steps, checklistStepResponse{
			ID:          step.ID,
			Label:       step.Label,
			Required:    step.Required,
			Completed:   step.Completed,
			CompletedAt: step.CompletedAt,
			Notes:       step.Notes,
		})
	}
	return checklistResponse{
		ID:              cl.ID,
		SiteID:          cl.SiteID,
		LeaseID:         cl.LeaseID,
		Steps:           steps,
		TotalSteps:      cl.TotalSteps,
		CompletedSteps:  cl.CompletedSteps,
		Progress:        view.Progress,
		MissingRequired: view.MissingRequired,
		CreatedAt:       cl.CreatedAt,
		UpdatedAt:       cl.UpdatedAt,
	}
}

type createLeaseResponse struct {
	Lease     leaseResponse     `json:"lease"`
	Checklist checklistResponse `json:"checklist"`
}

func checklistView(cl domain.OnboardingChecklist) onboarding.View {
	return onboarding.View{
		Checklist:       cl,
		Progress:        checklist.Progress(cl.CompletedSteps, cl.TotalSteps),
		MissingRequired: checklist.MissingRequired(cl.Steps),
	}
}

func (api *leasingAPI) handleCreateLease(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireIdentity(w, r)
	if !ok {
		return
	}
	var req createLeaseRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_request")
		return
	}
	for field, value := range map[string]string{
		"property_id": req.PropertyID,
		"unit_id":     req.UnitID,
		"tenant_id":   req.TenantID,
	} {
		if strings.TrimSpace(value) == "" {
			api.writeDomainError(w, r, domain.NewValidationError(field, "is required"))
			return
		}
	}
	if req.Rent.IsNegative() {
		api.writeDomainError(w, r, domain.NewValidationError("rent", "must not be negative"))
		return
	}
	if req.Deposit.IsNegative() {
		api.writeDomainError(w, r, domain.NewValidationError("deposit", "must not be negative"))
		return
	}
	startDate, err := parseDate("start_date", req.StartDate)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	endDate, err := parseDate("end_date", req.EndDate)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	if !startDate.IsZero() && !endDate.IsZero() && endDate.Before(startDate) {
		api.writeDomainError(w, r, domain.NewValidationError("end_date", "must not precede start_date"))
		return
	}
	customSteps := make([]checklist.TemplateStep, 0, len(req.CustomSteps))
	for _, step := range req.CustomSteps {
		customSteps = append(customSteps, checklist.TemplateStep{
			ID:       strings.TrimSpace(step.ID),
			Label:    strings.TrimSpace(step.Label),
			Required: step.Required,
		})
	}

	result, err := api.onboardings.CreateForLease(r.Context(), onboarding.CreateInput{
		Lease: domain.Lease{
			SiteID:     strings.TrimSpace(r.PathValue("site_id")),
			PropertyID: strings.TrimSpace(req.PropertyID),
			UnitID:     strings.TrimSpace(req.UnitID),
			TenantID:   strings.TrimSpace(req.TenantID),
			Rent:       req.Rent,
			Deposit:    req.Deposit,
			StartDate:  startDate,
			EndDate:    endDate,
			Metadata:   domain.Metadata(req.Metadata),
			CreatedBy:  identity.Subject,
		},
		CustomSteps: customSteps,
		Meta:        requestMeta(r),
	})
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/sites/%s/leases/%s", result.Lease.SiteID, result.Lease.ID))
	api.writeJSON(w, http.StatusCreated, createLeaseResponse{
		Lease:     toLeaseResponse(result.Lease),
		Checklist: toChecklistResponse(checklistView(result.Checklist)),
	})
}

func (api *leasingAPI) handleListLeases(w http.ResponseWriter, r *http.Request) {
	filter := repo.LeaseFilter{
		PropertyID: strings.TrimSpace(r.URL.Query().Get("property_id")),
		UnitID:     strings.TrimSpace(r.URL.Query().Get("unit_id")),
		TenantID:   strings.TrimSpace(r.URL.Query().Get("tenant_id")),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status := domain.LeaseStatus(raw)
		if !status.Valid() {
			api.writeDomainError(w, r, domain.NewValidationError("status", fmt.Sprintf("unknown lease status %q", raw)))
			return
		}
		filter.Status = status
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("onboarding_pending")); raw != "" {
		pending := strings.EqualFold(raw, "true")
		filter.OnboardingPending = &pending
	}
	filter.Limit, filter.Offset = listWindow(r)
	leases, err := api.leases.List(r.Context(), strings.TrimSpace(r.PathValue("site_id")), filter)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	items := make([]leaseResponse, 0, len(leases))
	for _, l := range leases {
		items = append(items, toLeaseResponse(l))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (api *leasingAPI) handleGetLease(w http.ResponseWriter, r *http.Request) {
	lease, err := api.leases.Get(r.Context(), strings.TrimSpace(r.PathValue("site_id")), strings.TrimSpace(r.PathValue("lease_id")))
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, toLeaseResponse(lease))
}

func (api *leasingAPI) handlePatchLease(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireIdentity(w, r)
	if !ok {
		return
	}
	patch, err := decodeJSONPatch(r)
	if err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_request")
		return
	}
	if _, ok := patch["status"]; ok {
		api.writeDomainError(w, r, domain.NewValidationError("status", "use the transition endpoint to change status"))
		return
	}
	for _, field := range []string{"start_date", "end_date"} {
		raw, ok := patch[field]
		if !ok {
			continue
		}
		value, _ := raw.(string)
		parsed, err := parseDate(field, value)
		if err != nil {
			api.writeDomainError(w, r, err)
			return
		}
		patch[field] = parsed
	}
	siteID := strings.TrimSpace(r.PathValue("site_id"))
	leaseID := strings.TrimSpace(r.PathValue("lease_id"))
	if err := api.leases.Update(r.Context(), siteID, leaseID, patch); err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	lease, err := api.leases.Get(r.Context(), siteID, leaseID)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.appendAudit(r, identity.Subject, "lease.updated", "lease", leaseID, map[string]any{
		"fields": patchedFields(patch),
	})
	api.writeJSON(w, http.StatusOK, toLeaseResponse(lease))
}

type transitionLeaseResponse struct {
	Lease  leaseResponse             `json:"lease"`
	Record *transitionRecordResponse `json:"record,omitempty"`
}

func (api *leasingAPI) handleTransitionLease(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireIdentity(w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_request")
		return
	}
	leaseID := strings.TrimSpace(r.PathValue("lease_id"))
	result, err := api.transitions.TransitionLease(r.Context(), api.transitionInput(r, leaseID, identity.Subject, req))
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	resp := transitionLeaseResponse{Lease: toLeaseResponse(result.Lease)}
	if result.Record != nil {
		rec := toTransitionRecordResponse(*result.Record)
		resp.Record = &rec
	}
	api.writeJSON(w, http.StatusOK, resp)
}

func (api *leasingAPI) handleGetChecklist(w http.ResponseWriter, r *http.Request) {
	view, err := api.onboardings.Get(r.Context(), strings.TrimSpace(r.PathValue("site_id")), strings.TrimSpace(r.PathValue("lease_id")))
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, toChecklistResponse(view))
}

type updateChecklistStepRequest struct {
	Completed bool    `json:"completed"`
	Notes     *string `json:"notes,omitempty"`
}

func (api *leasingAPI) handleUpdateChecklistStep(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireIdentity(w, r)
	if !ok {
		return
	}
	var req updateChecklistStepRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_request")
		return
	}
	view, err := api.onboardings.UpdateStep(
		r.Context(),
		strings.TrimSpace(r.PathValue("site_id")),
		strings.TrimSpace(r.PathValue("lease_id")),
		onboarding.StepInput{
			StepID:    strings.TrimSpace(r.PathValue("step_id")),
			Completed: req.Completed,
			Notes:     req.Notes,
			Actor:     identity.Subject,
			Meta:      requestMeta(r),
		},
	)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, toChecklistResponse(view))
}

type completeOnboardingRequest struct {
	SetActiveStatus bool `json:"set_active_status"`
}

type completeOnboardingResponse struct {
	Lease     leaseResponse             `json:"lease"`
	Checklist checklistResponse         `json:"checklist"`
	Record    *transitionRecordResponse `json:"record,omitempty"`
}

func (api *leasingAPI) handleCompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireIdentity(w, r)
	if !ok {
		return
	}
	var req completeOnboardingRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_request")
		return
	}
	result, err := api.onboardings.Complete(
		r.Context(),
		strings.TrimSpace(r.PathValue("site_id")),
		strings.TrimSpace(r.PathValue("lease_id")),
		onboarding.CompleteInput{
			SetActiveStatus: req.SetActiveStatus,
			Actor:           identity.Subject,
			Meta:            requestMeta(r),
		},
	)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	resp := completeOnboardingResponse{
		Lease:     toLeaseResponse(result.Lease),
		Checklist: toChecklistResponse(checklistView(result.Checklist)),
	}
	if result.Record != nil {
		rec := toTransitionRecordResponse(*result.Record)
		resp.Record = &rec
	}
	api.writeJSON(w, http.StatusOK, resp)
}

func (api *leasingAPI) handleListLeaseTransitions(w http.ResponseWriter, r *http.Request) {
	api.listTransitions(w, r, domain.TransitionDomainLease, strings.TrimSpace(r.PathValue("lease_id")))
}

func (api *leasingAPI) handleLeaseTransitionStats(w http.ResponseWriter, r *http.Request) {
	api.transitionStats(w, r, domain.TransitionDomainLease, strings.TrimSpace(r.PathValue("lease_id")))
}
