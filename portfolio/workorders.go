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

type createWorkOrderRequest struct {
	PropertyID  string         `json:"property_id"`
	UnitID      string         `json:"unit_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Priority    string         `json:"priority"`
	AssignedTo  string         `json:"assigned_to"`
	Metadata    map[string]any `json:"metadata"`
}

type workOrderResponse struct {
	ID          string          `json:"id"`
	SiteID      string          `json:"site_id"`
	PropertyID  string          `json:"property_id"`
	UnitID      string          `json:"unit_id,omitempty"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Priority    string          `json:"priority"`
	Status      string          `json:"status"`
	AssignedTo  string          `json:"assigned_to,omitempty"`
	Metadata    json.RawMessage `json:"metadata"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CreatedBy   string          `json:"created_by"`
}

func toWorkOrderResponse(o domain.WorkOrder) workOrderResponse {
	return workOrderResponse{
		ID:          o.ID,
		SiteID:      o.SiteID,
		PropertyID:  o.PropertyID,
		UnitID:      o.UnitID,
		Title:       o.Title,
		Description: o.Description,
		Priority:    string(o.Priority),
		Status:      string(o.Status),
		AssignedTo:  o.AssignedTo,
		Metadata:    metadataJSON(o.Metadata),
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
		CreatedBy:   o.CreatedBy,
	}
}

func (api *portfolioAPI) handleCreateWorkOrder(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireIdentity(w, r)
	if !ok {
		return
	}
	var req createWorkOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(req.PropertyID) == "" {
		api.writeDomainError(w, r, domain.NewValidationError("property_id", "property id is required"))
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		api.writeDomainError(w, r, domain.NewValidationError("title", "title is required"))
		return
	}
	priority := domain.WorkOrderPriorityMedium
	if raw := strings.TrimSpace(req.Priority); raw != "" {
		priority = domain.WorkOrderPriority(raw)
		if !priority.Valid() {
			api.writeDomainError(w, r, domain.NewValidationError("priority", fmt.Sprintf("unknown priority %q", raw)))
			return
		}
	}
	now := api.now()
	order := domain.WorkOrder{
		ID:          api.newID(),
		SiteID:      strings.TrimSpace(r.PathValue("site_id")),
		PropertyID:  strings.TrimSpace(req.PropertyID),
		UnitID:      strings.TrimSpace(req.UnitID),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Priority:    priority,
		Status:      domain.WorkOrderStatusOpen,
		AssignedTo:  strings.TrimSpace(req.AssignedTo),
		Metadata:    domain.Metadata(req.Metadata),
		CreatedAt:   now,
		UpdatedAt:   now,
		CreatedBy:   identity.Subject,
	}
	if err := api.workOrders.Create(r.Context(), order); err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.appendAudit(r, identity.Subject, "work_order.created", "work_order", order.ID, map[string]any{
		"property_id": order.PropertyID,
		"title":       order.Title,
		"priority":    string(order.Priority),
	})
	w.Header().Set("Location", fmt.Sprintf("/sites/%s/work-orders/%s", order.SiteID, order.ID))
	api.writeJSON(w, http.StatusCreated, toWorkOrderResponse(order))
}

func (api *portfolioAPI) handleListWorkOrders(w http.ResponseWriter, r *http.Request) {
	filter := repo.WorkOrderFilter{
		PropertyID: strings.TrimSpace(r.URL.Query().Get("property_id")),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status := domain.WorkOrderStatus(raw)
		if !status.Valid() {
			api.writeDomainError(w, r, domain.NewValidationError("status", fmt.Sprintf("unknown work order status %q", raw)))
			return
		}
		filter.Status = status
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("priority")); raw != "" {
		priority := domain.WorkOrderPriority(raw)
		if !priority.Valid() {
			api.writeDomainError(w, r, domain.NewValidationError("priority", fmt.Sprintf("unknown priority %q", raw)))
			return
		}
		filter.Priority = priority
	}
	filter.Limit, filter.Offset = listWindow(r)
	orders, err := api.workOrders.List(r.Context(), strings.TrimSpace(r.PathValue("site_id")), filter)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	items := make([]workOrderResponse, 0, len(orders))
	for _, o := range orders {
		items = append(items, toWorkOrderResponse(o))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (api *portfolioAPI) handleGetWorkOrder(w http.ResponseWriter, r *http.Request) {
	order, err := api.workOrders.Get(r.Context(), strings.TrimSpace(r.PathValue("site_id")), strings.TrimSpace(r.PathValue("work_order_id")))
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, toWorkOrderResponse(order))
}

func (api *portfolioAPI) handlePatchWorkOrder(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireIdentity(w, r)
	if !ok {
		return
	}
	patch, err := decodeJSONPatch(r)
	if err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_request")
		return
	}
	// Status moves through the dedicated status endpoint so every change is
	// audited with its from/to pair.
	if _, ok := patch["status"]; ok {
		api.writeDomainError(w, r, domain.NewValidationError("status", "use the status endpoint to change status"))
		return
	}
	if raw, ok := patch["priority"]; ok {
		priority, _ := raw.(string)
		if !domain.WorkOrderPriority(priority).Valid() {
			api.writeDomainError(w, r, domain.NewValidationError("priority", fmt.Sprintf("unknown priority %q", priority)))
			return
		}
	}
	siteID := strings.TrimSpace(r.PathValue("site_id"))
	orderID := strings.TrimSpace(r.PathValue("work_order_id"))
	if err := api.workOrders.Update(r.Context(), siteID, orderID, patch); err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	order, err := api.workOrders.Get(r.Context(), siteID, orderID)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.appendAudit(r, identity.Subject, "work_order.updated", "work_order", orderID, map[string]any{
		"fields": patchedFields(patch),
	})
	api.writeJSON(w, http.StatusOK, toWorkOrderResponse(order))
}

type workOrderStatusRequest struct {
	Status string `json:"status"`
}

func (api *portfolioAPI) handleWorkOrderStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireIdentity(w, r)
	if !ok {
		return
	}
	var req workOrderStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_request")
		return
	}
	status := domain.WorkOrderStatus(strings.TrimSpace(req.Status))
	if !status.Valid() {
		api.writeDomainError(w, r, domain.NewValidationError("status", fmt.Sprintf("unknown work order status %q", req.Status)))
		return
	}
	siteID := strings.TrimSpace(r.PathValue("site_id"))
	orderID := strings.TrimSpace(r.PathValue("work_order_id"))
	order, err := api.workOrders.Get(r.Context(), siteID, orderID)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	if err := api.workOrders.UpdateStatus(r.Context(), siteID, orderID, status); err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.appendAudit(r, identity.Subject, "work_order.status_changed", "work_order", orderID, map[string]any{
		"from": string(order.Status),
		"to":   string(status),
	})
	order.Status = status
	order.UpdatedAt = api.now()
	api.writeJSON(w, http.StatusOK, toWorkOrderResponse(order))
}
