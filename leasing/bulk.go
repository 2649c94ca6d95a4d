package main

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/parkrow-labs/parkrow-go/internal/domain"
	"github.com/parkrow-labs/parkrow-go/internal/repo"
	"github.com/parkrow-labs/parkrow-go/internal/service/bulkops"
)

type bulkApplicationsRequest struct {
	Action         string         `json:"action"`
	ApplicationIDs []string       `json:"application_ids"`
	Params         map[string]any `json:"params,omitempty"`
}

type bulkActionResponse struct {
	ID               string         `json:"id"`
	SiteID           string         `json:"site_id"`
	Type             string         `json:"type"`
	PerformedBy      string         `json:"performed_by"`
	ApplicationCount int            `json:"application_count"`
	SuccessCount     int            `json:"success_count"`
	FailureCount     int            `json:"failure_count"`
	Params           map[string]any `json:"params,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	FinalizedAt      *time.Time     `json:"finalized_at,omitempty"`
}

func toBulkActionResponse(a domain.BulkAction) bulkActionResponse {
	return bulkActionResponse{
		ID:               a.ID,
		SiteID:           a.SiteID,
		Type:             string(a.Type),
		PerformedBy:      a.PerformedBy,
		ApplicationCount: a.ApplicationCount,
		SuccessCount:     a.SuccessCount,
		FailureCount:     a.FailureCount,
		Params:           a.Params,
		CreatedAt:        a.CreatedAt,
		FinalizedAt:      a.FinalizedAt,
	}
}

type bulkRunResponse struct {
	Action       bulkActionResponse   `json:"action"`
	Results      []bulkops.ItemResult `json:"results"`
	SuccessCount int                  `json:"success_count"`
	FailureCount int                  `json:"failure_count"`
}

func (api *leasingAPI) handleBulkApplications(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireIdentity(w, r)
	if !ok {
		return
	}
	var req bulkApplicationsRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_request")
		return
	}
	in := bulkops.RunInput{
		SiteID:         strings.TrimSpace(r.PathValue("site_id")),
		Action:         domain.BulkActionType(strings.TrimSpace(req.Action)),
		ApplicationIDs: req.ApplicationIDs,
		Params:         domain.Metadata(req.Params),
		Actor:          identity.Subject,
		Meta:           requestMeta(r),
	}

	if in.Action == domain.BulkActionExport {
		// Buffered so a failure mid-export can still return a JSON error.
		// Batches cap at bulkops.MaxBatch rows, which keeps this small.
		var buf bytes.Buffer
		if _, err := api.bulk.Export(r.Context(), in, &buf); err != nil {
			api.writeDomainError(w, r, err)
			return
		}
		filename := fmt.Sprintf("applications-%s.csv", api.now().Format("2006-01-02"))
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
		return
	}

	result, err := api.bulk.Run(r.Context(), in)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, bulkRunResponse{
		Action:       toBulkActionResponse(result.Action),
		Results:      result.Results,
		SuccessCount: result.SuccessCount,
		FailureCount: result.FailureCount,
	})
}

func (api *leasingAPI) handleListBulkActions(w http.ResponseWriter, r *http.Request) {
	filter := repo.BulkActionFilter{}
	if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
		actionType := domain.BulkActionType(raw)
		if !actionType.Valid() {
			api.writeDomainError(w, r, domain.NewValidationError("type", fmt.Sprintf("unknown bulk action type %q", raw)))
			return
		}
		filter.Type = actionType
	}
	filter.Limit, filter.Offset = listWindow(r)
	actions, err := api.bulk.List(r.Context(), strings.TrimSpace(r.PathValue("site_id")), filter)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	items := make([]bulkActionResponse, 0, len(actions))
	for _, a := range actions {
		items = append(items, toBulkActionResponse(a))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type auditEntryResponse struct {
	EntryID         int64          `json:"entry_id"`
	OccurredAt      time.Time      `json:"occurred_at"`
	SiteID          string         `json:"site_id"`
	Actor           string         `json:"actor"`
	Action          string         `json:"action"`
	EntityType      string         `json:"entity_type"`
	EntityID        string         `json:"entity_id"`
	RequestID       string         `json:"request_id,omitempty"`
	BulkActionID    string         `json:"bulk_action_id,omitempty"`
	IP              string         `json:"ip,omitempty"`
	UserAgent       string         `json:"user_agent,omitempty"`
	Changes         map[string]any `json:"changes,omitempty"`
	IntegritySHA256 string         `json:"integrity_sha256,omitempty"`
}

func toAuditEntryResponse(e domain.AuditLogEntry) auditEntryResponse {
	resp := auditEntryResponse{
		EntryID:         e.EntryID,
		OccurredAt:      e.OccurredAt,
		SiteID:          e.SiteID,
		Actor:           e.Actor,
		Action:          e.Action,
		EntityType:      e.EntityType,
		EntityID:        e.EntityID,
		RequestID:       e.RequestID,
		BulkActionID:    e.BulkActionID,
		UserAgent:       e.UserAgent,
		Changes:         e.Changes,
		IntegritySHA256: e.IntegritySHA256,
	}
	if e.IP != nil {
		resp.IP = e.IP.String()
	}
	return resp
}

// handleGetBulkAction returns the action record with its per-item audit
// trail, so a finalized batch can be replayed item by item.
func (api *leasingAPI) handleGetBulkAction(w http.ResponseWriter, r *http.Request) {
	siteID := strings.TrimSpace(r.PathValue("site_id"))
	actionID := strings.TrimSpace(r.PathValue("bulk_action_id"))
	action, err := api.bulk.Get(r.Context(), siteID, actionID)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	entries, err := api.auditRead.List(r.Context(), repo.AuditFilter{
		SiteID:       siteID,
		BulkActionID: actionID,
		Limit:        2 * bulkops.MaxBatch,
	})
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	items := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, toAuditEntryResponse(e))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"action":        toBulkActionResponse(action),
		"audit_entries": items,
	})
}
