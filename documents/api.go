package main

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parkrow-labs/parkrow-go/internal/domain"
	"github.com/parkrow-labs/parkrow-go/internal/platform/auditlog"
	"github.com/parkrow-labs/parkrow-go/internal/platform/auth"
	"github.com/parkrow-labs/parkrow-go/internal/platform/objectstore"
	"github.com/parkrow-labs/parkrow-go/internal/platform/requestid"
	"github.com/parkrow-labs/parkrow-go/internal/repo"
	"github.com/parkrow-labs/parkrow-go/internal/repo/postgres"
)

const maxListLimit = 500

type documentsAPI struct {
	logger    *slog.Logger
	db        *sql.DB
	documents repo.DocumentStore
	store     objectstore.Store
	audit     auditlog.Appender

	now            func() time.Time
	newID          func() string
	uploadMaxBytes int64
	presignExpiry  time.Duration
}

func newDocumentsAPI(logger *slog.Logger, db *sql.DB, store objectstore.Store) *documentsAPI {
	return &documentsAPI{
		logger:         logger,
		db:             db,
		documents:      postgres.NewDocumentStore(db),
		store:          store,
		audit:          auditlog.TxAppender{Q: db},
		now:            func() time.Time { return time.Now().UTC() },
		newID:          uuid.NewString,
		uploadMaxBytes: 250 << 20, // 250 MiB
		presignExpiry:  15 * time.Minute,
	}
}

func (api *documentsAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /sites/{site_id}/documents", api.handleUploadDocument)
	mux.HandleFunc("GET /sites/{site_id}/documents", api.handleListDocuments)
	mux.HandleFunc("POST /sites/{site_id}/documents:presign", api.handlePresignDocument)

	mux.HandleFunc("GET /sites/{site_id}/documents/{document_id}", api.handleGetDocument)
	mux.HandleFunc("DELETE /sites/{site_id}/documents/{document_id}", api.handleDeleteDocument)
	mux.HandleFunc("GET /sites/{site_id}/documents/{document_id}/download", api.handleDownloadDocument)
	mux.HandleFunc("POST /sites/{site_id}/documents/{document_id}/finalize", api.handleFinalizeDocument)
}

type documentResponse struct {
	ID          string          `json:"id"`
	SiteID      string          `json:"site_id"`
	EntityType  string          `json:"entity_type"`
	EntityID    string          `json:"entity_id"`
	Kind        string          `json:"kind"`
	Filename    string          `json:"filename"`
	ContentType string          `json:"content_type"`
	SizeBytes   int64           `json:"size_bytes"`
	ObjectKey   string          `json:"object_key"`
	SHA256      string          `json:"sha256,omitempty"`
	UploadedBy  string          `json:"uploaded_by"`
	Metadata    json.RawMessage `json:"metadata"`
	CreatedAt   time.Time       `json:"created_at"`
}

func toDocumentResponse(d domain.Document) documentResponse {
	return documentResponse{
		ID:          d.ID,
		SiteID:      d.SiteID,
		EntityType:  string(d.EntityType),
		EntityID:    d.EntityID,
		Kind:        string(d.Kind),
		Filename:    d.Filename,
		ContentType: d.ContentType,
		SizeBytes:   d.SizeBytes,
		ObjectKey:   d.ObjectKey,
		SHA256:      d.SHA256,
		UploadedBy:  d.UploadedBy,
		Metadata:    metadataJSON(d.Metadata),
		CreatedAt:   d.CreatedAt,
	}
}

// handleUploadDocument streams a multipart upload into the object store while
// hashing it, then records the metadata row. The object is removed again on
// every failure after the put so storage never holds rows-less payloads.
func (api *documentsAPI) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireIdentity(w, r)
	if !ok {
		return
	}
	siteID := strings.TrimSpace(r.PathValue("site_id"))

	now := api.now()
	docID := api.newID()

	r.Body = http.MaxBytesReader(w, r.Body, api.uploadMaxBytes)
	mr, err := r.MultipartReader()
	if err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_multipart")
		return
	}

	metadataMap := domain.Metadata{}
	var (
		entityType  string
		entityID    string
		kind        string
		filename    string
		contentType string
		objectKey   string
		contentSHA  string
		sizeBytes   int64
	)

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if objectKey != "" {
				_ = api.store.Delete(r.Context(), objectKey)
			}
			api.writeError(w, r, http.StatusBadRequest, "invalid_multipart")
			return
		}
		switch part.FormName() {
		case "entity_type":
			entityType, err = readFormValue(part)
		case "entity_id":
			entityID, err = readFormValue(part)
		case "kind":
			kind, err = readFormValue(part)
		case "metadata":
			raw, readErr := io.ReadAll(io.LimitReader(part, 1<<20))
			_ = part.Close()
			raw = []byte(strings.TrimSpace(string(raw)))
			if readErr == nil && len(raw) > 0 {
				readErr = json.Unmarshal(raw, &metadataMap)
			}
			if readErr != nil {
				if objectKey != "" {
					_ = api.store.Delete(r.Context(), objectKey)
				}
				api.writeError(w, r, http.StatusBadRequest, "invalid_metadata")
				return
			}
		case "file":
			if objectKey != "" {
				_ = part.Close()
				_ = api.store.Delete(r.Context(), objectKey)
				api.writeError(w, r, http.StatusBadRequest, "multiple_files_not_supported")
				return
			}

			filename = sanitizeFilename(part.FileName())
			contentType = strings.TrimSpace(part.Header.Get("Content-Type"))
			if contentType == "" {
				contentType = "application/octet-stream"
			}

			objectKey = documentObjectKey(siteID, docID, filename)
			hasher := sha256.New()
			counter := &countingWriter{}
			reader := io.TeeReader(part, io.MultiWriter(hasher, counter))

			uploadCtx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
			_, putErr := api.store.Put(uploadCtx, objectKey, reader, -1, contentType)
			cancel()
			_ = part.Close()
			if putErr != nil {
				api.writeError(w, r, http.StatusBadRequest, "upload_failed")
				return
			}
			contentSHA = hex.EncodeToString(hasher.Sum(nil))
			sizeBytes = counter.n
		default:
			_ = part.Close()
		}
		if err != nil {
			if objectKey != "" {
				_ = api.store.Delete(r.Context(), objectKey)
			}
			api.writeError(w, r, http.StatusBadRequest, "invalid_multipart")
			return
		}
	}

	if objectKey == "" {
		api.writeError(w, r, http.StatusBadRequest, "file_required")
		return
	}

	if kind == "" {
		kind = inferKind(contentType)
	}
	if err := validateDocumentFields(entityType, entityID, kind); err != nil {
		_ = api.store.Delete(r.Context(), objectKey)
		api.writeDomainError(w, r, err)
		return
	}

	doc := domain.Document{
		ID:          docID,
		SiteID:      siteID,
		EntityType:  domain.DocumentEntityType(entityType),
		EntityID:    entityID,
		Kind:        domain.DocumentKind(kind),
		Filename:    filename,
		ContentType: contentType,
		SizeBytes:   sizeBytes,
		ObjectKey:   objectKey,
		SHA256:      contentSHA,
		UploadedBy:  identity.Subject,
		Metadata:    metadataMap,
		CreatedAt:   now,
	}
	if err := api.documents.Insert(r.Context(), doc); err != nil {
		_ = api.store.Delete(r.Context(), objectKey)
		api.writeDomainError(w, r, err)
		return
	}

	api.appendAudit(r, identity.Subject, "document.uploaded", "document", doc.ID, map[string]any{
		"entity_type": entityType,
		"entity_id":   entityID,
		"kind":        kind,
		"filename":    filename,
		"size_bytes":  sizeBytes,
		"sha256":      contentSHA,
	})

	w.Header().Set("Location", fmt.Sprintf("/sites/%s/documents/%s", siteID, doc.ID))
	api.writeJSON(w, http.StatusCreated, toDocumentResponse(doc))
}

func (api *documentsAPI) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := api.documents.Get(r.Context(), strings.TrimSpace(r.PathValue("site_id")), strings.TrimSpace(r.PathValue("document_id")))
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (api *documentsAPI) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	filter := repo.DocumentFilter{
		EntityType: domain.DocumentEntityType(strings.TrimSpace(r.URL.Query().Get("entity_type"))),
		EntityID:   strings.TrimSpace(r.URL.Query().Get("entity_id")),
		Kind:       domain.DocumentKind(strings.TrimSpace(r.URL.Query().Get("kind"))),
	}
	if filter.EntityType != "" && !filter.EntityType.Valid() {
		api.writeDomainError(w, r, domain.NewValidationError("entity_type", "unknown entity type"))
		return
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		api.writeDomainError(w, r, domain.NewValidationError("kind", "unknown document kind"))
		return
	}
	filter.Limit, filter.Offset = listWindow(r)

	documents, err := api.documents.List(r.Context(), strings.TrimSpace(r.PathValue("site_id")), filter)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	items := make([]documentResponse, 0, len(documents))
	for _, doc := range documents {
		items = append(items, toDocumentResponse(doc))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// handleDeleteDocument removes the object first and the row second. A failed
// object delete keeps the row so the delete stays retryable.
func (api *documentsAPI) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireIdentity(w, r)
	if !ok {
		return
	}
	siteID := strings.TrimSpace(r.PathValue("site_id"))
	docID := strings.TrimSpace(r.PathValue("document_id"))

	doc, err := api.documents.Get(r.Context(), siteID, docID)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	if err := api.store.Delete(r.Context(), doc.ObjectKey); err != nil && !errors.Is(err, objectstore.ErrObjectNotFound) {
		api.writeError(w, r, http.StatusBadGateway, "object_store_error")
		return
	}
	if err := api.documents.Delete(r.Context(), siteID, docID); err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	api.appendAudit(r, identity.Subject, "document.deleted", "document", docID, map[string]any{
		"filename":   doc.Filename,
		"object_key": doc.ObjectKey,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (api *documentsAPI) handleDownloadDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := api.documents.Get(r.Context(), strings.TrimSpace(r.PathValue("site_id")), strings.TrimSpace(r.PathValue("document_id")))
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	obj, info, err := api.store.Get(r.Context(), doc.ObjectKey)
	if err != nil {
		if errors.Is(err, objectstore.ErrObjectNotFound) {
			api.writeError(w, r, http.StatusNotFound, "not_found")
			return
		}
		api.writeError(w, r, http.StatusBadGateway, "object_store_error")
		return
	}
	defer obj.Close()

	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	filename := doc.Filename
	if filename == "" {
		filename = "document.bin"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, obj)
}

type presignDocumentRequest struct {
	EntityType  string         `json:"entity_type"`
	EntityID    string         `json:"entity_id"`
	Kind        string         `json:"kind"`
	Filename    string         `json:"filename"`
	ContentType string         `json:"content_type,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type presignDocumentResponse struct {
	Document  documentResponse `json:"document"`
	UploadURL string           `json:"upload_url"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// handlePresignDocument records a pending metadata row and hands back a
// presigned PUT URL so large payloads bypass this service. The row stays at
// size zero until finalize confirms the object landed.
func (api *documentsAPI) handlePresignDocument(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireIdentity(w, r)
	if !ok {
		return
	}
	siteID := strings.TrimSpace(r.PathValue("site_id"))

	var req presignDocumentRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_request")
		return
	}

	filename := sanitizeFilename(req.Filename)
	contentType := strings.TrimSpace(req.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	kind := strings.TrimSpace(req.Kind)
	if kind == "" {
		kind = inferKind(contentType)
	}
	if err := validateDocumentFields(strings.TrimSpace(req.EntityType), strings.TrimSpace(req.EntityID), kind); err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	now := api.now()
	docID := api.newID()
	doc := domain.Document{
		ID:          docID,
		SiteID:      siteID,
		EntityType:  domain.DocumentEntityType(strings.TrimSpace(req.EntityType)),
		EntityID:    strings.TrimSpace(req.EntityID),
		Kind:        domain.DocumentKind(kind),
		Filename:    filename,
		ContentType: contentType,
		ObjectKey:   documentObjectKey(siteID, docID, filename),
		UploadedBy:  identity.Subject,
		Metadata:    domain.Metadata(req.Metadata),
		CreatedAt:   now,
	}

	uploadURL, err := api.store.PresignPut(r.Context(), doc.ObjectKey, api.presignExpiry)
	if err != nil {
		api.writeError(w, r, http.StatusBadGateway, "object_store_error")
		return
	}
	if err := api.documents.Insert(r.Context(), doc); err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	api.appendAudit(r, identity.Subject, "document.presigned", "document", doc.ID, map[string]any{
		"entity_type": string(doc.EntityType),
		"entity_id":   doc.EntityID,
		"kind":        kind,
		"filename":    filename,
	})

	w.Header().Set("Location", fmt.Sprintf("/sites/%s/documents/%s", siteID, doc.ID))
	api.writeJSON(w, http.StatusCreated, presignDocumentResponse{
		Document:  toDocumentResponse(doc),
		UploadURL: uploadURL,
		ExpiresAt: now.Add(api.presignExpiry),
	})
}

// handleFinalizeDocument stats the object a presigned upload was supposed to
// put and records the observed size and etag on the metadata row.
func (api *documentsAPI) handleFinalizeDocument(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.requireIdentity(w, r)
	if !ok {
		return
	}
	siteID := strings.TrimSpace(r.PathValue("site_id"))
	docID := strings.TrimSpace(r.PathValue("document_id"))

	doc, err := api.documents.Get(r.Context(), siteID, docID)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	info, err := api.store.Stat(r.Context(), doc.ObjectKey)
	if err != nil {
		if errors.Is(err, objectstore.ErrObjectNotFound) {
			api.writeError(w, r, http.StatusConflict, "object_missing")
			return
		}
		api.writeError(w, r, http.StatusBadGateway, "object_store_error")
		return
	}

	meta := doc.Metadata.Clone()
	meta["etag"] = info.ETag
	if err := api.documents.UpdateObjectInfo(r.Context(), siteID, docID, info.Size, meta); err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	doc.SizeBytes = info.Size
	doc.Metadata = meta

	api.appendAudit(r, identity.Subject, "document.finalized", "document", docID, map[string]any{
		"size_bytes": info.Size,
		"etag":       info.ETag,
	})
	api.writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (api *documentsAPI) requireIdentity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.Subject) == "" {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return auth.Identity{}, false
	}
	return identity, true
}

func (api *documentsAPI) appendAudit(r *http.Request, actor, action, entityType, entityID string, changes map[string]any) {
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

func (api *documentsAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func (api *documentsAPI) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": requestid.FromRequest(r),
	})
}

func (api *documentsAPI) writeErrorWithDetails(w http.ResponseWriter, r *http.Request, status int, code string, details any) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": requestid.FromRequest(r),
		"details":    details,
	})
}

func (api *documentsAPI) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		api.writeErrorWithDetails(w, r, http.StatusBadRequest, "invalid_request", map[string]any{
			"field":  verr.Field,
			"reason": verr.Reason,
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

func validateDocumentFields(entityType, entityID, kind string) error {
	if entityType == "" {
		return domain.NewValidationError("entity_type", "entity_type is required")
	}
	if !domain.DocumentEntityType(entityType).Valid() {
		return domain.NewValidationError("entity_type", "unknown entity type")
	}
	if entityID == "" {
		return domain.NewValidationError("entity_id", "entity_id is required")
	}
	if !domain.DocumentKind(kind).Valid() {
		return domain.NewValidationError("kind", "unknown document kind")
	}
	return nil
}

// inferKind classifies a payload by content type when the client does not say.
func inferKind(contentType string) string {
	if strings.HasPrefix(contentType, "image/") {
		return string(domain.DocumentKindImage)
	}
	return string(domain.DocumentKindDocument)
}

func documentObjectKey(siteID, docID, filename string) string {
	return fmt.Sprintf("sites/%s/documents/%s/%s", siteID, docID, filename)
}

func sanitizeFilename(name string) string {
	base := path.Base(strings.TrimSpace(name))
	if base == "" || base == "." || base == "/" {
		return "document.bin"
	}
	return base
}

func readFormValue(part *multipart.Part) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(part, 4096))
	_ = part.Close()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
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
