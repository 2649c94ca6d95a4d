package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/parkrow-labs/parkrow-go/internal/domain"
	"github.com/parkrow-labs/parkrow-go/internal/repo"
)

type createTenantRequest struct {
	FirstName        string         `json:"first_name"`
	LastName         string         `json:"last_name"`
	Email            string         `json:"email"`
	Phone            string         `json:"phone"`
	EmergencyContact string         `json:"emergency_contact"`
	Metadata         map[string]any `json:"metadata"`
}

type tenantResponse struct {
	ID               string          `json:"id"`
	SiteID           string          `json:"site_id"`
	FirstName        string          `json:"first_name"`
	LastName         string          `json:"last_name"`
	Email            string          `json:"email,omitempty"`
	Phone            string          `json:"phone,omitempty"`
	EmergencyContact string          `json:"emergency_contact,omitempty"`
	Metadata         json.RawMessage `json:"metadata"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	CreatedBy        string          `json:"created_by"`
}

func toTenantResponse(t domain.Tenant) tenantResponse {
	return tenantResponse{
		ID:               t.ID,
		SiteID:           t.SiteID,
		FirstName:        t.FirstName,
		LastName:         t.LastName,
		Email:            t.Email,
		Phone:            t.Phone,
		EmergencyContact: t.EmergencyContact,
		Metadata:         metadataJSON(t.Metadata),
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
		CreatedBy:        t.CreatedBy,
	}
}

func (api *portfolioAPI) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireIdentity(w, r)
	if !ok {
		return
	}
	var req createTenantRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(req.FirstName) == "" {
		api.writeDomainError(w, r, domain.NewValidationError("first_name", "first name is required"))
		return
	}
	if strings.TrimSpace(req.LastName) == "" {
		api.writeDomainError(w, r, domain.NewValidationError("last_name", "last name is required"))
		return
	}
	if email := strings.TrimSpace(req.Email); email != "" && !strings.Contains(email, "@") {
		api.writeDomainError(w, r, domain.NewValidationError("email", "invalid email"))
		return
	}
	now := api.now()
	tenant := domain.Tenant{
		ID:               api.newID(),
		SiteID:           strings.TrimSpace(r.PathValue("site_id")),
		FirstName:        strings.TrimSpace(req.FirstName),
		LastName:         strings.TrimSpace(req.LastName),
		Email:            strings.TrimSpace(req.Email),
		Phone:            strings.TrimSpace(req.Phone),
		EmergencyContact: strings.TrimSpace(req.EmergencyContact),
		Metadata:         domain.Metadata(req.Metadata),
		CreatedAt:        now,
		UpdatedAt:        now,
		CreatedBy:        identity.Subject,
	}
	if err := api.tenants.Create(r.Context(), tenant); err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.appendAudit(r, identity.Subject, "tenant.created", "tenant", tenant.ID, map[string]any{
		"name": tenant.FullName(),
	})
	w.Header().Set("Location", fmt.Sprintf("/sites/%s/tenants/%s", tenant.SiteID, tenant.ID))
	api.writeJSON(w, http.StatusCreated, toTenantResponse(tenant))
}

func (api *portfolioAPI) handleListTenants(w http.ResponseWriter, r *http.Request) {
	filter := repo.TenantFilter{
		Query: strings.TrimSpace(r.URL.Query().Get("q")),
	}
	filter.Limit, filter.Offset = listWindow(r)
	tenants, err := api.tenants.List(r.Context(), strings.TrimSpace(r.PathValue("site_id")), filter)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	items := make([]tenantResponse, 0, len(tenants))
	for _, t := range tenants {
		items = append(items, toTenantResponse(t))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (api *portfolioAPI) handleGetTenant(w http.ResponseWriter, r *http.Request) {
	tenant, err := api.tenants.Get(r.Context(), strings.TrimSpace(r.PathValue("site_id")), strings.TrimSpace(r.PathValue("tenant_id")))
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, toTenantResponse(tenant))
}

func (api *portfolioAPI) handlePatchTenant(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireIdentity(w, r)
	if !ok {
		return
	}
	patch, err := decodeJSONPatch(r)
	if err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_request")
		return
	}
	if raw, ok := patch["email"]; ok {
		email, _ := raw.(string)
		if email != "" && !strings.Contains(email, "@") {
			api.writeDomainError(w, r, domain.NewValidationError("email", "invalid email"))
			return
		}
	}
	siteID := strings.TrimSpace(r.PathValue("site_id"))
	tenantID := strings.TrimSpace(r.PathValue("tenant_id"))
	if err := api.tenants.Update(r.Context(), siteID, tenantID, patch); err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	tenant, err := api.tenants.Get(r.Context(), siteID, tenantID)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.appendAudit(r, identity.Subject, "tenant.updated", "tenant", tenantID, map[string]any{
		"fields": patchedFields(patch),
	})
	api.writeJSON(w, http.StatusOK, toTenantResponse(tenant))
}
