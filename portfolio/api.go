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
)

const maxListLimit = 500

type portfolioAPI struct {
	logger     *slog.Logger
	db         *sql.DB
	properties repo.PropertyStore
	units      repo.UnitStore
	tenants    repo.TenantStore
	workOrders repo.WorkOrderStore
	audit      auditlog.Appender

	now   func() time.Time
	newID func() string
}

func newPortfolioAPI(logger *slog.Logger, db *sql.DB) *portfolioAPI {
	return &portfolioAPI{
		logger:     logger,
		db:         db,
		properties: postgres.NewPropertyStore(db),
		units:      postgres.NewUnitStore(db),
		tenants:    postgres.NewTenantStore(db),
		workOrders: postgres.NewWorkOrderStore(db),
		audit:      auditlog.TxAppender{Q: db},
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

func (api *portfolioAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /sites/{site_id}/properties", api.handleCreateProperty)
	mux.HandleFunc("GET /sites/{site_id}/properties", api.handleListProperties)
	mux.HandleFunc("GET /sites/{site_id}/properties/{property_id}", api.handleGetProperty)
	mux.HandleFunc("PATCH /sites/{site_id}/properties/{property_id}", api.handlePatchProperty)
	mux.HandleFunc("DELETE /sites/{site_id}/properties/{property_id}", api.handleDeleteProperty)

	mux.HandleFunc("POST /sites/{site_id}/properties/{property_id}/units", api.handleCreateUnit)
	mux.HandleFunc("GET /sites/{site_id}/properties/{property_id}/units", api.handleListUnits)
	mux.HandleFunc("GET /sites/{site_id}/units/{unit_id}", api.handleGetUnit)
	mux.HandleFunc("PATCH /sites/{site_id}/units/{unit_id}", api.handlePatchUnit)

	mux.HandleFunc("POST /sites/{site_id}/tenants", api.handleCreateTenant)
	mux.HandleFunc("GET /sites/{site_id}/tenants", api.handleListTenants)
	mux.HandleFunc("GET /sites/{site_id}/tenants/{tenant_id}", api.handleGetTenant)
	mux.HandleFunc("PATCH /sites/{site_id}/tenants/{tenant_id}", api.handlePatchTenant)

	mux.HandleFunc("POST /sites/{site_id}/work-orders", api.handleCreateWorkOrder)
	mux.HandleFunc("GET /sites/{site_id}/work-orders", api.handleListWorkOrders)
	mux.HandleFunc("GET /sites/{site_id}/work-orders/{work_order_id}", api.handleGetWorkOrder)
	mux.HandleFunc("PATCH /sites/{site_id}/work-orders/{work_order_id}", api.handlePatchWorkOrder)
	mux.HandleFunc("POST /sites/{site_id}/work-orders/{work_order_id}/status", api.handleWorkOrderStatus)
}

// requireIdentity returns the authenticated caller. The auth middleware
// rejects unauthenticated requests before handlers run, so a missing
// identity here is a wiring bug, not a client error.
func (api *portfolioAPI) requireIdentity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.Subject) == "" {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return auth.Identity{}, false
	}
	return identity, true
}

// appendAudit writes a best-effort CRUD audit entry. Failures are logged
// and never fail the request.
func (api *portfolioAPI) appendAudit(r *http.Request, actor, action, entityType, entityID string, changes map[string]any) {
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

func (api *portfolioAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func (api *portfolioAPI) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": requestid.FromRequest(r),
	})
}

func (api *portfolioAPI) writeErrorWithDetails(w http.ResponseWriter, r *http.Request, status int, code string, details any) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": requestid.FromRequest(r),
		"details":    details,
	})
}

// writeDomainError maps domain and repo errors onto the wire taxonomy.
func (api *portfolioAPI) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
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

// decodeJSONPatch reads a PATCH body as a raw field map. Unknown fields are
// rejected later by the store's allow list, not here.
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

// listWindow reads limit/offset query parameters with clamped bounds.
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
