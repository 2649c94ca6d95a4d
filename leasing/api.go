package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parkrow-labs/parkrow-go/internal/domain"
	"github.com/parkrow-labs/parkrow-go/internal/platform/auditlog"
	"github.com/parkrow-labs/parkrow-go/internal/platform/auth"
	"github.com/parkrow-labs/parkrow-go/internal/platform/requestid"
	"github.com/parkrow-labs/parkrow-go/internal/repo"
	"github.com/parkrow-labs/parkrow-go/internal/repo/postgres"
	"github.com/parkrow-labs/parkrow-go/internal/screening"
	"github.com/parkrow-labs/parkrow-go/internal/service/bulkops"
	"github.com/parkrow-labs/parkrow-go/internal/service/onboarding"
	"github.com/parkrow-labs/parkrow-go/internal/service/transition"
)

const maxListLimit = 500

type leasingAPI struct {
	logger       *slog.Logger
	db           *sql.DB
	transitions  *transition.Service
	onboardings  *onboarding.Service
	bulk         *bulkops.Service
	screener     *screening.Client
	applications repo.ApplicationStore
	leases       repo.LeaseStore
	units        repo.UnitStore
	audit        auditlog.Appender
	auditRead    repo.AuditStore

	now   func() time.Time
	newID func() string
}

func newLeasingAPI(
	logger *slog.Logger,
	db *sql.DB,
	transitions *transition.Service,
	onboardings *onboarding.Service,
	bulk *bulkops.Service,
	screener *screening.Client,
) *leasingAPI {
	return &leasingAPI{
		logger:       logger,
		db:           db,
		transitions:  transitions,
		onboardings:  onboardings,
		bulk:         bulk,
		screener:     screener,
		applications: postgres.NewApplicationStore(db),
		leases:       postgres.NewLeaseStore(db),
		units:        postgres.NewUnitStore(db),
		audit:        auditlog.TxAppender{Q: db},
		auditRead:    postgres.NewAuditStore(db),
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
	}
}

func (api *leasingAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /sites/{site_id}/applications", api.handleCreateApplication)
	mux.HandleFunc("GET /sites/{site_id}/applications", api.handleListApplications)
	mux.HandleFunc("GET /sites/{site_id}/applications/{application_id}", api.handleGetApplication)
	mux.HandleFunc("PATCH /sites/{site_id}/applications/{application_id}", api.handlePatchApplication)
	mux.HandleFunc("POST /sites/{site_id}/applications/{application_id}/transition", api.handleTransitionApplication)
	mux.HandleFunc("POST /sites/{site_id}/applications/{application_id}/screen", api.handleScreenApplication)
	mux.HandleFunc("GET /sites/{site_id}/applications/{application_id}/transitions", api.handleListApplicationTransitions)
	mux.HandleFunc("GET /sites/{site_id}/applications/{application_id}/transitions/stats", api.handleApplicationTransitionStats)

	mux.HandleFunc("POST /sites/{site_id}/applications:bulk", api.handleBulkApplications)
	mux.HandleFunc("GET /sites/{site_id}/bulk-actions", api.handleListBulkActions)
	mux.HandleFunc("GET /sites/{site_id}/bulk-actions/{bulk_action_id}", api.handleGetBulkAction)

	mux.HandleFunc("POST /sites/{site_id}/leases", api.handleCreateLease)
	mux.HandleFunc("GET /sites/{site_id}/leases", api.handleListLeases)
	mux.HandleFunc("GET /sites/{site_id}/leases/{lease_id}", api.handleGetLease)
	mux.HandleFunc("PATCH /sites/{site_id}/leases/{lease_id}", api.handlePatchLease)
	mux.HandleFunc("POST /sites/{site_id}/leases/{lease_id}/transition", api.handleTransitionLease)
	mux.HandleFunc("GET /sites/{site_id}/leases/{lease_id}/checklist", api.handleGetChecklist)
	mux.HandleFunc("POST /sites/{site_id}/leases/{lease_id}/checklist/steps/{step_id}", api.handleUpdateChecklistStep)
	mux.HandleFunc("POST /sites/{site_id}/leases/{lease_id}/complete-onboarding", api.handleCompleteOnboarding)
	mux.HandleFunc("GET /sites/{site_id}/leases/{lease_id}/transitions", api.handleListLeaseTransitions)
	mux.HandleFunc("GET /sites/{site_id}/leases/{lease_id}/transitions/stats", api.handleLeaseTransitionStats)
}

func (api *leasingAPI) requireIdentity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.Subject) == "" {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return auth.Identity{}, false
	}
	return identity, true
}

// requestMeta collects per-request correlation fields for transition records
// and audit entries.
func requestMeta(r *http.Request) transition.RequestMeta {
	return transition.RequestMeta{
		RequestID: requestid.FromRequest(r),
		IP:        requestIP(r.RemoteAddr),
		UserAgent: r.UserAgent(),
	}
}

func (api *leasingAPI) appendAudit(r *http.Request, actor, action, entityType, entityID string, changes map[string]any) {
	ctx, cancel := context.WithTimeout(r.Context(), 750*time.Millisecond)
	defer cancel()
	err := api.audit.Append(ctx, auditlog.Event{
		OccurredAt: api.now(),
		SiteID:     strings.TrimSpace(r.PathValue("site_id")),
		Actor:      actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		RequestID:  requestid.FromRequest(r),
		IP:         requestIP(r.RemoteAddr),
		UserAgent:  r.UserAgent(),
		Changes:    changes,
	})
	if err != nil {
		api.logger.Warn("audit append failed", "action", action, "entity_id", entityID, "error", err)
	}
}

func (api *leasingAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func (api *leasingAPI) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": requestid.FromRequest(r),
	})
}

func (api *leasingAPI) writeErrorWithDetails(w http.ResponseWriter, r *http.Request, status int, code string, details any) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": requestid.FromRequest(r),
		"details":    details,
	})
}

func (api *leasingAPI) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	var terr *domain.IllegalTransitionError
	var cerr *domain.IncompleteChecklistError
	switch {
	case errors.As(err, &verr):
		api.writeErrorWithDetails(w, r, http.StatusBadRequest, "invalid_request", map[string]any{
			"field":  verr.Field,
			"reason": verr.Reason,
		})
	case errors.As(err, &terr):
		api.writeErrorWithDetails(w, r, http.StatusConflict, "invalid_transition", map[string]any{
			"message": terr.Error(),
			"allowed": terr.Allowed,
		})
	case errors.As(err, &cerr):
		api.writeErrorWithDetails(w, r, http.StatusConflict, "onboarding_incomplete", map[string]any{
			"message":          cerr.Error(),
			"missing_required": cerr.Missing,
		})
	case errors.Is(err, repo.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		api.writeError(w, r, http.StatusNotFound, "not_found")
	case errors.Is(err, repo.ErrConflict):
		api.writeError(w, r, http.StatusConflict, "conflict")
	default:
		api.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("multiple JSON values")
	}
	return nil
}

func decodeJSONPatch(r *http.Request) (map[string]any, error) {
	var patch map[string]any
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(&patch); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, errors.New("multiple JSON values")
	}
	return patch, nil
}

func requestIP(remoteAddr string) net.IP {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return nil
	}
	return net.ParseIP(host)
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

func metadataJSON(m domain.Metadata) json.RawMessage {
	if len(m) == 0 {
		return json.RawMessage("{}")
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return json.RawMessage("{}")
	}
	return raw
}

// parseDate accepts calendar dates in 2006-01-02 form.
func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, domain.NewValidationError(field, "must be a date in YYYY-MM-DD form")
	}
	return t, nil
}

type transitionRecordResponse struct {
	ID                string          `json:"id"`
	SiteID            string          `json:"site_id"`
	Domain            string          `json:"domain"`
	EntityID          string          `json:"entity_id"`
	FromStatus        string          `json:"from_status"`
	ToStatus          string          `json:"to_status"`
	Type              string          `json:"type"`
	ConfirmationAck   bool            `json:"confirmation_acknowledged"`
	Bypassed          bool            `json:"bypassed"`
	BypassReason      string          `json:"bypass_reason,omitempty"`
	BypassCategory    string          `json:"bypass_category,omitempty"`
	ChecklistSnapshot json.RawMessage `json:"checklist_snapshot,omitempty"`
	Actor             string          `json:"actor"`
	CreatedAt         time.Time       `json:"created_at"`
}

func toTransitionRecordResponse(rec domain.TransitionRecord) transitionRecordResponse {
	return transitionRecordResponse{
		ID:                rec.ID,
		SiteID:            rec.SiteID,
		Domain:            string(rec.Domain),
		EntityID:          rec.EntityID,
		FromStatus:        rec.FromStatus,
		ToStatus:          rec.ToStatus,
		Type:              string(rec.Type),
		ConfirmationAck:   rec.ConfirmationAck,
		Bypassed:          rec.Bypassed(),
		BypassReason:      rec.BypassReason,
		BypassCategory:    string(rec.BypassCategory),
		ChecklistSnapshot: rec.ChecklistSnapshot,
		Actor:             rec.Actor,
		CreatedAt:         rec.CreatedAt,
	}
}

type transitionStatsResponse struct {
	Total     int `json:"total"`
	Manual    int `json:"manual"`
	Automatic int `json:"automatic"`
	Bypassed  int `json:"bypassed"`
}

// transitionRequest is shared by lease and application transition endpoints.
type transitionRequest struct {
	ToStatus                 string `json:"to_status"`
	ConfirmationAcknowledged bool   `json:"confirmation_acknowledged"`
	BypassReason             string `json:"bypass_reason,omitempty"`
	BypassCategory           string `json:"bypass_category,omitempty"`
}

func (api *leasingAPI) transitionInput(r *http.Request, entityID, actor string, req transitionRequest) transition.Input {
	return transition.Input{
		SiteID:                   strings.TrimSpace(r.PathValue("site_id")),
		EntityID:                 entityID,
		ToStatus:                 strings.TrimSpace(req.ToStatus),
		Type:                     domain.TransitionTypeManual,
		ConfirmationAcknowledged: req.ConfirmationAcknowledged,
		BypassReason:             strings.TrimSpace(req.BypassReason),
		BypassCategory:           domain.BypassCategory(strings.TrimSpace(req.BypassCategory)),
		Actor:                    actor,
		Meta:                     requestMeta(r),
	}
}

func (api *leasingAPI) listTransitions(w http.ResponseWriter, r *http.Request, entityDomain domain.TransitionDomain, entityID string) {
	filter := repo.TransitionFilter{
		BypassedOnly: strings.EqualFold(r.URL.Query().Get("bypassed"), "true"),
	}
	filter.Limit, filter.Offset = listWindow(r)
	records, err := api.transitions.ListTransitions(r.Context(), strings.TrimSpace(r.PathValue("site_id")), entityDomain, entityID, filter)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	items := make([]transitionRecordResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, toTransitionRecordResponse(rec))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (api *leasingAPI) transitionStats(w http.ResponseWriter, r *http.Request, entityDomain domain.TransitionDomain, entityID string) {
	stats, err := api.transitions.TransitionStats(r.Context(), strings.TrimSpace(r.PathValue("site_id")), entityDomain, entityID)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, transitionStatsResponse{
		Total:     stats.Total,
		Manual:    stats.Manual,
		Automatic: stats.Automatic,
		Bypassed:  stats.Bypassed,
	})
}
