package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/parkrow-labs/parkrow-go/internal/domain"
	"github.com/parkrow-labs/parkrow-go/internal/repo"
)

type createUnitRequest struct {
	UnitNumber string          `json:"unit_number"`
	Bedrooms   int             `json:"bedrooms"`
	Bathrooms  float64         `json:"bathrooms"`
	SquareFeet int             `json:"square_feet"`
	MarketRent decimal.Decimal `json:"market_rent"`
	Occupancy  string          `json:"occupancy"`
	Metadata   map[string]any  `json:"metadata"`
}

type unitResponse struct {
	ID         string          `json:"id"`
	SiteID     string          `json:"site_id"`
	PropertyID string          `json:"property_id"`
	UnitNumber string          `json:"unit_number"`
	Bedrooms   int             `json:"bedrooms"`
	Bathrooms  float64         `json:"bathrooms"`
	SquareFeet int             `json:"square_feet,omitempty"`
	MarketRent decimal.Decimal `json:"market_rent"`
	Occupancy  string          `json:"occupancy"`
	Metadata   json.RawMessage `json:"metadata"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	CreatedBy  string          `json:"created_by"`
}

func toUnitResponse(u domain.Unit) unitResponse {
	return unitResponse{
		ID:         u.ID,
		SiteID:     u.SiteID,
		PropertyID: u.PropertyID,
		UnitNumber: u.UnitNumber,
		Bedrooms:   u.Bedrooms,
		Bathrooms:  u.Bathrooms,
		SquareFeet: u.SquareFeet,
		MarketRent: u.MarketRent,
		Occupancy:  string(u.Occupancy),
		Metadata:   metadataJSON(u.Metadata),
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
		CreatedBy:  u.CreatedBy,
	}
}

func (api *portfolioAPI) handleCreateUnit(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireIdentity(w, r)
	if !ok {
		return
	}
	var req createUnitRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(req.UnitNumber) == "" {
		api.writeDomainError(w, r, domain.NewValidationError("unit_number", "unit number is required"))
		return
	}
	if req.MarketRent.IsNegative() {
		api.writeDomainError(w, r, domain.NewValidationError("market_rent", "must not be negative"))
		return
	}
	occupancy := domain.OccupancyVacant
	if raw := strings.TrimSpace(req.Occupancy); raw != "" {
		occupancy = domain.Occupancy(raw)
		if !occupancy.Valid() {
			api.writeDomainError(w, r, domain.NewValidationError("occupancy", fmt.Sprintf("unknown occupancy %q", raw)))
			return
		}
	}
	now := api.now()
	unit := domain.Unit{
		ID:         api.newID(),
		SiteID:     strings.TrimSpace(r.PathValue("site_id")),
		PropertyID: strings.TrimSpace(r.PathValue("property_id")),
		UnitNumber: strings.TrimSpace(req.UnitNumber),
		Bedrooms:   req.Bedrooms,
		Bathrooms:  req.Bathrooms,
		SquareFeet: req.SquareFeet,
		MarketRent: req.MarketRent,
		Occupancy:  occupancy,
		Metadata:   domain.Metadata(req.Metadata),
		CreatedAt:  now,
		UpdatedAt:  now,
		CreatedBy:  identity.Subject,
	}
	if err := unit.Validate(); err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	if err := api.units.Create(r.Context(), unit); err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.appendAudit(r, identity.Subject, "unit.created", "unit", unit.ID, map[string]any{
		"property_id": unit.PropertyID,
		"unit_number": unit.UnitNumber,
	})
	w.Header().Set("Location", fmt.Sprintf("/sites/%s/units/%s", unit.SiteID, unit.ID))
	api.writeJSON(w, http.StatusCreated, toUnitResponse(unit))
}

func (api *portfolioAPI) handleListUnits(w http.ResponseWriter, r *http.Request) {
	filter := repo.UnitFilter{
		PropertyID: strings.TrimSpace(r.PathValue("property_id")),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("occupancy")); raw != "" {
		occupancy := domain.Occupancy(raw)
		if !occupancy.Valid() {
			api.writeDomainError(w, r, domain.NewValidationError("occupancy", fmt.Sprintf("unknown occupancy %q", raw)))
			return
		}
		filter.Occupancy = occupancy
	}
	filter.Limit, filter.Offset = listWindow(r)
	units, err := api.units.List(r.Context(), strings.TrimSpace(r.PathValue("site_id")), filter)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	items := make([]unitResponse, 0, len(units))
	for _, u := range units {
		items = append(items, toUnitResponse(u))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (api *portfolioAPI) handleGetUnit(w http.ResponseWriter, r *http.Request) {
	unit, err := api.units.Get(r.Context(), strings.TrimSpace(r.PathValue("site_id")), strings.TrimSpace(r.PathValue("unit_id")))
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, toUnitResponse(unit))
}

func (api *portfolioAPI) handlePatchUnit(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireIdentity(w, r)
	if !ok {
		return
	}
	patch, err := decodeJSONPatch(r)
	if err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_request")
		return
	}
	if raw, ok := patch["occupancy"]; ok {
		occupancy, _ := raw.(string)
		if !domain.Occupancy(occupancy).Valid() {
			api.writeDomainError(w, r, domain.NewValidationError("occupancy", fmt.Sprintf("unknown occupancy %q", occupancy)))
			return
		}
	}
	siteID := strings.TrimSpace(r.PathValue("site_id"))
	unitID := strings.TrimSpace(r.PathValue("unit_id"))
	if err := api.units.Update(r.Context(), siteID, unitID, patch); err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	unit, err := api.units.Get(r.Context(), siteID, unitID)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.appendAudit(r, identity.Subject, "unit.updated", "unit", unitID, map[string]any{
		"fields": patchedFields(patch),
	})
	api.writeJSON(w, http.StatusOK, toUnitResponse(unit))
}
