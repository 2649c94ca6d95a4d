package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/parkrow-labs/parkrow-go/internal/domain"
	"github.com/parkrow-labs/parkrow-go/internal/repo"
	"github.com/parkrow-labs/parkrow-go/internal/screening"
	"github.com/parkrow-labs/parkrow-go/internal/service/transition"
)

type createApplicationRequest struct {
	ApplicantName string          `json:"applicant_name"`
	Email         string          `json:"email"`
	Phone         string          `json:"phone"`
	PropertyID    string          `json:"property_id"`
	UnitID        string          `json:"unit_id"`
	DesiredMoveIn string          `json:"desired_move_in"`
	MonthlyIncome decimal.Decimal `json:"monthly_income"`
	Metadata      map[string]any  `json:"metadata"`
}

type screeningResponse struct {
	Score       float64         `json:"score"`
	Label       string          `json:"label"`
	Flags       []string        `json:"flags,omitempty"`
	RawResponse json.RawMessage `json:"raw_response,omitempty"`
	EvaluatedAt time.Time       `json:"evaluated_at"`
}

type applicationResponse struct {
	ID            string             `json:"id"`
	SiteID        string             `json:"site_id"`
	ApplicantName string             `json:"applicant_name"`
	Email         string             `json:"email"`
	Phone         string             `json:"phone,omitempty"`
	PropertyID    string             `json:"property_id,omitempty"`
	UnitID        string             `json:"unit_id,omitempty"`
	Status        string             `json:"status"`
	DesiredMoveIn string             `json:"desired_move_in,omitempty"`
	MonthlyIncome decimal.Decimal    `json:"monthly_income"`
	Screening     *screeningResponse `json:"screening,omitempty"`
	LeaseID       string             `json:"lease_id,omitempty"`
	Metadata      json.RawMessage    `json:"metadata"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	CreatedBy     string             `json:"created_by"`
}

func toApplicationResponse(a domain.Application) applicationResponse {
	resp := applicationResponse{
		ID:            a.ID,
		SiteID:        a.SiteID,
		ApplicantName: a.ApplicantName,
		Email:         a.Email,
		Phone:         a.Phone,
		PropertyID:    a.PropertyID,
		UnitID:        a.UnitID,
		Status:        string(a.Status),
		MonthlyIncome: a.MonthlyIncome,
		LeaseID:       a.LeaseID,
		Metadata:      metadataJSON(a.Metadata),
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
		CreatedBy:     a.CreatedBy,
	}
	if !a.DesiredMoveIn.IsZero() {
		resp.DesiredMoveIn = a.DesiredMoveIn.Format("2006-01-02")
	}
	if a.Screening != nil {
		resp.Screening = &screeningResponse{
			Score:       a.Screening.Score,
			Label:       a.Screening.Label,
			Flags:       a.Screening.Flags,
			RawResponse: a.Screening.RawResponse,
			EvaluatedAt: a.Screening.EvaluatedAt,
		}
	}
	return resp
}

func (api *leasingAPI) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireIdentity(w, r)
	if !ok {
		return
	}
	var req createApplicationRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(req.ApplicantName) == "" {
		api.writeDomainError(w, r, domain.NewValidationError("applicant_name", "applicant name is required"))
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		api.writeDomainError(w, r, domain.NewValidationError("email", "email is required"))
		return
	}
	if !strings.Contains(email, "@") {
		api.writeDomainError(w, r, domain.NewValidationError("email", "invalid email"))
		return
	}
	if req.MonthlyIncome.IsNegative() {
		api.writeDomainError(w, r, domain.NewValidationError("monthly_income", "must not be negative"))
		return
	}
	moveIn, err := parseDate("desired_move_in", req.DesiredMoveIn)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	now := api.now()
	application := domain.Application{
		ID:            api.newID(),
		SiteID:        strings.TrimSpace(r.PathValue("site_id")),
		ApplicantName: strings.TrimSpace(req.ApplicantName),
		Email:         email,
		Phone:         strings.TrimSpace(req.Phone),
		PropertyID:    strings.TrimSpace(req.PropertyID),
		UnitID:        strings.TrimSpace(req.UnitID),
		Status:        domain.ApplicationStatusNew,
		DesiredMoveIn: moveIn,
		MonthlyIncome: req.MonthlyIncome,
		Metadata:      domain.Metadata(req.Metadata),
		CreatedAt:     now,
		UpdatedAt:     now,
		CreatedBy:     identity.Subject,
	}
	if err := api.applications.Create(r.Context(), application); err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.appendAudit(r, identity.Subject, "application.created", "application", application.ID, map[string]any{
		"applicant_name": application.ApplicantName,
		"property_id":    application.PropertyID,
	})
	w.Header().Set("Location", fmt.Sprintf("/sites/%s/applications/%s", application.SiteID, application.ID))
	api.writeJSON(w, http.StatusCreated, toApplicationResponse(application))
}

func (api *leasingAPI) handleListApplications(w http.ResponseWriter, r *http.Request) {
	filter := repo.ApplicationFilter{
		PropertyID: strings.TrimSpace(r.URL.Query().Get("property_id")),
		Query:      strings.TrimSpace(r.URL.Query().Get("q")),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status := domain.ApplicationStatus(raw)
		if !status.Valid() {
			api.writeDomainError(w, r, domain.NewValidationError("status", fmt.Sprintf("unknown application status %q", raw)))
			return
		}
		filter.Status = status
	}
	filter.Limit, filter.Offset = listWindow(r)
	applications, err := api.applications.List(r.Context(), strings.TrimSpace(r.PathValue("site_id")), filter)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	items := make([]applicationResponse, 0, len(applications))
	for _, a := range applications {
		items = append(items, toApplicationResponse(a))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (api *leasingAPI) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	application, err := api.applications.Get(r.Context(), strings.TrimSpace(r.PathValue("site_id")), strings.TrimSpace(r.PathValue("application_id")))
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, toApplicationResponse(application))
}

func (api *leasingAPI) handlePatchApplication(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireIdentity(w, r)
	if !ok {
		return
	}
	patch, err := decodeJSONPatch(r)
	if err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_request")
		return
	}
	// Status moves only through the transition endpoint.
	if _, ok := patch["status"]; ok {
		api.writeDomainError(w, r, domain.NewValidationError("status", "use the transition endpoint to change status"))
		return
	}
	if raw, ok := patch["desired_move_in"]; ok {
		value, _ := raw.(string)
		parsed, err := parseDate("desired_move_in", value)
		if err != nil {
			api.writeDomainError(w, r, err)
			return
		}
		patch["desired_move_in"] = parsed
	}
	siteID := strings.TrimSpace(r.PathValue("site_id"))
	applicationID := strings.TrimSpace(r.PathValue("application_id"))
	if err := api.applications.Update(r.Context(), siteID, applicationID, patch); err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	application, err := api.applications.Get(r.Context(), siteID, applicationID)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.appendAudit(r, identity.Subject, "application.updated", "application", applicationID, map[string]any{
		"fields": patchedFields(patch),
	})
	api.writeJSON(w, http.StatusOK, toApplicationResponse(application))
}

type transitionApplicationResponse struct {
	Application applicationResponse       `json:"application"`
	Record      *transitionRecordResponse `json:"record,omitempty"`
}

func (api *leasingAPI) handleTransitionApplication(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireIdentity(w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_request")
		return
	}
	applicationID := strings.TrimSpace(r.PathValue("application_id"))
	result, err := api.transitions.TransitionApplication(r.Context(), api.transitionInput(r, applicationID, identity.Subject, req))
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	resp := transitionApplicationResponse{Application: toApplicationResponse(result.Application)}
	if result.Record != nil {
		rec := toTransitionRecordResponse(*result.Record)
		resp.Record = &rec
	}
	api.writeJSON(w, http.StatusOK, resp)
}

// handleScreenApplication submits the applicant to the screening worker and
// stores the verdict verbatim. When the application sits in documents_pending,
// a successful screen also advances it to screening as an automatic
// transition.
func (api *leasingAPI) handleScreenApplication(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireIdentity(w, r)
	if !ok {
		return
	}
	siteID := strings.TrimSpace(r.PathValue("site_id"))
	applicationID := strings.TrimSpace(r.PathValue("application_id"))
	application, err := api.applications.Get(r.Context(), siteID, applicationID)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	if application.Status.Terminal() {
		api.writeDomainError(w, r, domain.NewValidationError("status", fmt.Sprintf("cannot screen a %s application", application.Status)))
		return
	}

	evaluateReq := screening.EvaluateRequest{
		SiteID:        siteID,
		ApplicationID: applicationID,
		ApplicantName: application.ApplicantName,
		Email:         application.Email,
		MonthlyIncome: application.MonthlyIncome,
		RequestID:     requestMeta(r).RequestID,
	}
	if application.UnitID != "" {
		if unit, err := api.units.Get(r.Context(), siteID, application.UnitID); err == nil {
			evaluateReq.RequestedRent = unit.MarketRent
		}
	}
	result, err := api.screener.Evaluate(r.Context(), evaluateReq)
	if err != nil {
		api.logger.Error("screening call failed", "application_id", applicationID, "error", err)
		api.writeError(w, r, http.StatusBadGateway, "screening_failed")
		return
	}
	if err := api.applications.SetScreening(r.Context(), siteID, applicationID, result); err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	application.Screening = &result
	api.appendAudit(r, identity.Subject, "application.screened", "application", applicationID, map[string]any{
		"score": result.Score,
		"label": result.Label,
	})

	if application.Status == domain.ApplicationStatusDocumentsPending {
		transitioned, err := api.transitions.TransitionApplication(r.Context(), transition.Input{
			SiteID:   siteID,
			EntityID: applicationID,
			ToStatus: string(domain.ApplicationStatusScreening),
			Type:     domain.TransitionTypeAutomatic,
			Actor:    identity.Subject,
			Meta:     requestMeta(r),
		})
		if err != nil {
			api.writeDomainError(w, r, err)
			return
		}
		transitioned.Application.Screening = application.Screening
		application = transitioned.Application
	}
	api.writeJSON(w, http.StatusOK, toApplicationResponse(application))
}

func (api *leasingAPI) handleListApplicationTransitions(w http.ResponseWriter, r *http.Request) {
	api.listTransitions(w, r, domain.TransitionDomainApplication, strings.TrimSpace(r.PathValue("application_id")))
}

func (api *leasingAPI) handleApplicationTransitionStats(w http.ResponseWriter, r *http.Request) {
	api.transitionStats(w, r, domain.TransitionDomainApplication, strings.TrimSpace(r.PathValue("application_id")))
}

func patchedFields(patch map[string]any) []string {
	fields := make([]string, 0, len(patch))
	for field := range patch {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}
