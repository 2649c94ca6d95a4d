package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/parkrow-labs/parkrow-go/internal/domain"
	"github.com/parkrow-labs/parkrow-go/internal/repo"
)

type createPropertyRequest struct {
	Name         string         `json:"name"`
	AddressLine1 string         `json:"address_line1"`
	AddressLine2 string         `json:"address_line2"`
	City         string         `json:"city"`
	State        string         `json:"state"`
	PostalCode   string         `json:"postal_code"`
	Kind         string         `json:"kind"`
	YearBuilt    int            `json:"year_built"`
	Notes        string         `json:"notes"`
	Metadata     map[string]any `json:"metadata"`
}

type propertyResponse struct {
	ID           string          `json:"id"`
	SiteID       string          `json:"site_id"`
	Name         string          `json:"name"`
	AddressLine1 string          `json:"address_line1"`
	AddressLine2 string          `json:"address_line2,omitempty"`
	City         string          `json:"city"`
	State        string          `json:"state"`
	PostalCode   string          `json:"postal_code"`
	Kind         string          `json:"kind"`
	YearBuilt    int             `json:"year_built,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	Metadata     json.RawMessage `json:"metadata"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	CreatedBy    string          `json:"created_by"`
}

func toPropertyResponse(p domain.Property) propertyResponse {
	return propertyResponse{
		ID:           p.ID,
		SiteID:       p.SiteID,
		Name:         p.Name,
		AddressLine1: p.AddressLine1,
		AddressLine2: p.AddressLine2,
		City:         p.City,
		State:        p.State,
		PostalCode:   p.PostalCode,
		Kind:         string(p.Kind),
		YearBuilt:    p.YearBuilt,
		Notes:        p.Notes,
		Metadata:     metadataJSON(p.Metadata),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
		CreatedBy:    p.CreatedBy,
	}
}

func (api *portfolioAPI) handleCreateProperty(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireIdentity(w, r)
	if !ok {
		return
	}
	var req createPropertyRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		api.writeDomainError(w, r, domain.NewValidationError("name", "name is required"))
		return
	}
	kind := domain.PropertyKind(strings.TrimSpace(req.Kind))
	if !kind.Valid() {
		api.writeDomainError(w, r, domain.NewValidationError("kind", fmt.Sprintf("unknown property kind %q", req.Kind)))
		return
	}
	now := api.now()
	property := domain.Property{
		ID:           api.newID(),
		SiteID:       strings.TrimSpace(r.PathValue("site_id")),
		Name:         strings.TrimSpace(req.Name),
		AddressLine1: strings.TrimSpace(req.AddressLine1),
		AddressLine2: strings.TrimSpace(req.AddressLine2),
		City:         strings.TrimSpace(req.City),
		State:        strings.TrimSpace(req.State),
		PostalCode:   strings.TrimSpace(req.PostalCode),
		Kind:         kind,
		YearBuilt:    req.YearBuilt,
		Notes:        req.Notes,
		Metadata:     domain.Metadata(req.Metadata),
		CreatedAt:    now,
		UpdatedAt:    now,
		CreatedBy:    identity.Subject,
	}
	if err := api.properties.Create(r.Context(), property); err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.appendAudit(r, identity.Subject, "property.created", "property", property.ID, map[string]any{
		"name": property.Name,
		"kind": string(property.Kind),
	})
	w.Header().Set("Location", fmt.Sprintf("/sites/%s/properties/%s", property.SiteID, property.ID))
	api.writeJSON(w, http.StatusCreated, toPropertyResponse(property))
}

func (api *portfolioAPI) handleListProperties(w http.ResponseWriter, r *http.Request) {
	filter := repo.PropertyFilter{
		City:  strings.TrimSpace(r.URL.Query().Get("city")),
		Query: strings.TrimSpace(r.URL.Query().Get("q")),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("kind")); raw != "" {
		kind := domain.PropertyKind(raw)
		if !kind.Valid() {
			api.writeDomainError(w, r, domain.NewValidationError("kind", fmt.Sprintf("unknown property kind %q", raw)))
			return
		}
		filter.Kind = kind
	}
	filter.Limit, filter.Offset = listWindow(r)
	properties, err := api.properties.List(r.Context(), strings.TrimSpace(r.PathValue("site_id")), filter)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	items := make([]propertyResponse, 0, len(properties))
	for _, p := range properties {
		items = append(items, toPropertyResponse(p))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (api *portfolioAPI) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	property, err := api.properties.Get(r.Context(), strings.TrimSpace(r.PathValue("site_id")), strings.TrimSpace(r.PathValue("property_id")))
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, toPropertyResponse(property))
}

func (api *portfolioAPI) handlePatchProperty(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireIdentity(w, r)
	if !ok {
		return
	}
	patch, err := decodeJSONPatch(r)
	if err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_request")
		return
	}
	if raw, ok := patch["kind"]; ok {
		kind, _ := raw.(string)
		if !domain.PropertyKind(kind).Valid() {
			api.writeDomainError(w, r, domain.NewValidationError("kind", fmt.Sprintf("unknown property kind %q", kind)))
			return
		}
	}
	siteID := strings.TrimSpace(r.PathValue("site_id"))
	propertyID := strings.TrimSpace(r.PathValue("property_id"))
	if err := api.properties.Update(r.Context(), siteID, propertyID, patch); err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	property, err := api.properties.Get(r.Context(), siteID, propertyID)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.appendAudit(r, identity.Subject, "property.updated", "property", propertyID, map[string]any{
		"fields": patchedFields(patch),
	})
	api.writeJSON(w, http.StatusOK, toPropertyResponse(property))
}

func (api *portfolioAPI) handleDeleteProperty(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireIdentity(w, r)
	if !ok {
		return
	}
	siteID := strings.TrimSpace(r.PathValue("site_id"))
	propertyID := strings.TrimSpace(r.PathValue("property_id"))
	if err := api.properties.Delete(r.Context(), siteID, propertyID); err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.appendAudit(r, identity.Subject, "property.deleted", "property", propertyID, nil)
	w.WriteHeader(http.StatusNoContent)
}

func patchedFields(patch map[string]any) []string {
	fields := make([]string, 0, len(patch))
	for field := range patch {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}
