package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/parkrow-labs/parkrow-go/internal/domain"
	"github.com/parkrow-labs/parkrow-go/internal/export"
	"github.com/parkrow-labs/parkrow-go/internal/platform/auth"
	"github.com/parkrow-labs/parkrow-go/internal/platform/requestid"
	"github.com/parkrow-labs/parkrow-go/internal/repo"
	"github.com/parkrow-labs/parkrow-go/internal/repo/postgres"
)

const maxListLimit = 500

// auditAPI serves the read side of the audit log. Nothing here writes; every
// entry arrives through the shared auditlog insert path in the other services.
type auditAPI struct {
	logger  *slog.Logger
	db      *sql.DB
	entries repo.AuditStore

	now func() time.Time
}

func newAuditAPI(logger *slog.Logger, db *sql.DB) *auditAPI {
	return &auditAPI{
		logger:  logger,
		db:      db,
		entries: postgres.NewAuditStore(db),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (api *auditAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /events", api.handleListEvents)
	mux.HandleFunc("GET /events/{event_id}", api.handleGetEvent)
	mux.HandleFunc("GET /events:export", api.handleExportEvents)
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

func (api *auditAPI) handleListEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := api.filterFromRequest(r)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	filter.Limit, filter.Offset = listWindow(r)

	entries, err := api.entries.List(r.Context(), filter)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	items := make([]auditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, toAuditEntryResponse(entry))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (api *auditAPI) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	rawID := strings.TrimSpace(r.PathValue("event_id"))
	eventID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || eventID <= 0 {
		api.writeDomainError(w, r, domain.NewValidationError("event_id", "must be a positive integer"))
		return
	}

	entry, err := api.entries.Get(r.Context(), eventID)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	// Entries belonging to another site read as missing.
	if siteID, ok := auth.SiteIDFromContext(r.Context()); ok && entry.SiteID != "" && entry.SiteID != siteID {
		api.writeError(w, r, http.StatusNotFound, "not_found")
		return
	}
	api.writeJSON(w, http.StatusOK, toAuditEntryResponse(entry))
}

var auditExportHeader = []string{
	"entry_id", "occurred_at", "site_id", "actor", "action",
	"entity_type", "entity_id", "request_id", "bulk_action_id",
	"ip", "user_agent", "changes",
}

func auditExportFields(e domain.AuditLogEntry) []string {
	ip := ""
	if e.IP != nil {
		ip = e.IP.String()
	}
	changes := "{}"
	if len(e.Changes) > 0 {
		if raw, err := json.Marshal(e.Changes); err == nil {
			changes = string(raw)
		}
	}
	return []string{
		strconv.FormatInt(e.EntryID, 10),
		e.OccurredAt.Format(time.RFC3339),
		e.SiteID,
		e.Actor,
		e.Action,
		e.EntityType,
		e.EntityID,
		e.RequestID,
		e.BulkActionID,
		ip,
		e.UserAgent,
		changes,
	}
}

// handleExportEvents streams the matching trail as NDJSON or CSV. The whole
// log leaves the building here, so the route needs admin even though it is a
// read.
func (api *auditAPI) handleExportEvents(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireIdentity(w, r)
	if !ok {
		return
	}
	if !auth.HasAtLeast(identity.Roles, auth.RoleAdmin) {
		api.writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		api.writeDomainError(w, r, domain.NewValidationError("format", "must be ndjson or csv"))
		return
	}
	filter, err := api.filterFromRequest(r)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	if limit := parseIntQuery(r, "limit", 0); limit > 0 {
		filter.Limit = limit
	}

	filename := fmt.Sprintf("audit-events-%s.%s", api.now().Format("2006-01-02"), format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)

	exporter := export.New(format, w)
	if err := exporter.Begin(auditExportHeader); err != nil {
		api.logger.Warn("audit export aborted", "error", err)
		return
	}
	err = api.entries.ForEach(r.Context(), filter, func(entry domain.AuditLogEntry) error {
		return exporter.Write(export.Row{
			Fields: auditExportFields(entry),
			Doc:    toAuditEntryResponse(entry),
		})
	})
	if err != nil {
		// Headers are gone; the best we can do is truncate the stream.
		api.logger.Warn("audit export aborted", "error", err)
		return
	}
	if err := exporter.Close(); err != nil {
		api.logger.Warn("audit export aborted", "error", err)
	}
}

// filterFromRequest builds the shared filter for list and export. The site
// scope always comes from the middleware, never from client input.
func (api *auditAPI) filterFromRequest(r *http.Request) (repo.AuditFilter, error) {
	siteID, _ := auth.SiteIDFromContext(r.Context())
	filter := repo.AuditFilter{
		SiteID:       siteID,
		Actor:        strings.TrimSpace(r.URL.Query().Get("actor")),
		Action:       strings.TrimSpace(r.URL.Query().Get("action")),
		EntityType:   strings.TrimSpace(r.URL.Query().Get("entity_type")),
		EntityID:     strings.TrimSpace(r.URL.Query().Get("entity_id")),
		BulkActionID: strings.TrimSpace(r.URL.Query().Get("bulk_action_id")),
		RequestID:    strings.TrimSpace(r.URL.Query().Get("request_id")),
	}
	var err error
	if filter.Since, err = parseTimeQuery(r, "since"); err != nil {
		return repo.AuditFilter{}, err
	}
	if filter.Until, err = parseTimeQuery(r, "until"); err != nil {
		return repo.AuditFilter{}, err
	}
	if !filter.Since.IsZero() && !filter.Until.IsZero() && filter.Until.Before(filter.Since) {
		return repo.AuditFilter{}, domain.NewValidationError("until", "must not be before since")
	}
	return filter, nil
}

func parseTimeQuery(r *http.Request, key string) (time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, domain.NewValidationError(key, "must be an RFC 3339 timestamp")
	}
	return t.UTC(), nil
}

func (api *auditAPI) requireIdentity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.Subject) == "" {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return auth.Identity{}, false
	}
	return identity, true
}

func (api *auditAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func (api *auditAPI) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": requestid.FromRequest(r),
	})
}

func (api *auditAPI) writeErrorWithDetails(w http.ResponseWriter, r *http.Request, status int, code string, details any) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": requestid.FromRequest(r),
		"details":    details,
	})
}

func (api *auditAPI) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		api.writeErrorWithDetails(w, r, http.StatusBadRequest, "invalid_request", map[string]any{
			"field":  verr.Field,
			"reason": verr.Reason,
		})
	case errors.Is(err, repo.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		api.writeError(w, r, http.StatusNotFound, "not_found")
	default:
		api.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
	}
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return parsed
}

func clampInt(v int, min int, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func listWindow(r *http.Request) (int, int) {
	limit := clampInt(parseIntQuery(r, "limit", 100), 1, maxListLimit)
	offset := parseIntQuery(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
