package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/parkrow-labs/parkrow-go/internal/domain"
	"github.com/parkrow-labs/parkrow-go/internal/repo"
)

const documentColumns = `document_id, site_id, entity_type, entity_id, kind, filename, content_type, size_bytes, object_key, sha256, uploaded_by, metadata, created_at`

func scanDocument(row rowScanner) (domain.Document, error) {
	var (
		d            domain.Document
		sha256       sql.NullString
		metadataJSON []byte
	)
	err := row.Scan(
		&d.ID, &d.SiteID, &d.EntityType, &d.EntityID, &d.Kind, &d.Filename,
		&d.ContentType, &d.SizeBytes, &d.ObjectKey, &sha256, &d.UploadedBy,
		&metadataJSON, &d.CreatedAt,
	)
	if err != nil {
		return domain.Document{}, err
	}
	d.SHA256 = sha256.String
	meta, err := decodeMetadata(metadataJSON)
	if err != nil {
		return domain.Document{}, fmt.Errorf("decode metadata: %w", err)
	}
	d.Metadata = meta
	return d, nil
}

type DocumentStore struct {
	db DB
}

func NewDocumentStore(db DB) *DocumentStore {
	if db == nil {
		return nil
	}
	return &DocumentStore{db: db}
}

func (s *DocumentStore) Insert(ctx context.Context, document domain.Document) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("document store not initialized")
	}
	if err := document.Validate(); err != nil {
		return err
	}
	metadataJSON, err := encodeMetadata(document.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	createdAt := normalizeTime(document.CreatedAt)
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO documents (
			document_id,
			site_id,
			entity_type,
			entity_id,
			kind,
			filename,
			content_type,
			size_bytes,
			object_key,
			sha256,
			uploaded_by,
			metadata,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		strings.TrimSpace(document.ID),
		strings.TrimSpace(document.SiteID),
		string(document.EntityType),
		strings.TrimSpace(document.EntityID),
		string(document.Kind),
		strings.TrimSpace(document.Filename),
		strings.TrimSpace(document.ContentType),
		document.SizeBytes,
		strings.TrimSpace(document.ObjectKey),
		nullIfEmpty(document.SHA256),
		strings.TrimSpace(document.UploadedBy),
		metadataJSON,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", mapConstraintErr(err))
	}
	return nil
}

func (s *DocumentStore) Get(ctx context.Context, siteID, id string) (domain.Document, error) {
	if s == nil || s.db == nil {
		return domain.Document{}, fmt.Errorf("document store not initialized")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+documentColumns+` FROM documents WHERE site_id = $1 AND document_id = $2`,
		strings.TrimSpace(siteID),
		strings.TrimSpace(id),
	)
	document, err := scanDocument(row)
	if err != nil {
		return domain.Document{}, handleNotFound(err)
	}
	return document, nil
}

func buildDocumentListQuery(siteID string, filter repo.DocumentFilter) (string, []any, error) {
	siteID = strings.TrimSpace(siteID)
	if siteID == "" {
		return "", nil, fmt.Errorf("site id is required")
	}
	args := []any{siteID}
	clauses := []string{"site_id = $1"}

	if strings.TrimSpace(string(filter.EntityType)) != "" {
		args = append(args, string(filter.EntityType))
		clauses = append(clauses, fmt.Sprintf("entity_type = $%d", len(args)))
	}
	if strings.TrimSpace(filter.EntityID) != "" {
		args = append(args, strings.TrimSpace(filter.EntityID))
		clauses = append(clauses, fmt.Sprintf("entity_id = $%d", len(args)))
	}
	if strings.TrimSpace(string(filter.Kind)) != "" {
		args = append(args, string(filter.Kind))
		clauses = append(clauses, fmt.Sprintf("kind = $%d", len(args)))
	}

	query := `SELECT ` + documentColumns + ` FROM documents WHERE ` + strings.Join(clauses, " AND ")
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args, nil
}

func (s *DocumentStore) List(ctx context.Context, siteID string, filter repo.DocumentFilter) ([]domain.Document, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("document store not initialized")
	}
	query, args, err := buildDocumentListQuery(siteID, filter)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	documents := make([]domain.Document, 0)
	for rows.Next() {
		document, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		documents = append(documents, document)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return documents, nil
}

// UpdateObjectInfo is the finalize step for presigned uploads: it records the
// observed object size and replaces the metadata payload.
func (s *DocumentStore) UpdateObjectInfo(ctx context.Context, siteID, id string, sizeBytes int64, metadata domain.Metadata) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("document store not initialized")
	}
	metadataJSON, err := encodeMetadata(metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE documents SET size_bytes = $3, metadata = $4 WHERE site_id = $1 AND document_id = $2`,
		strings.TrimSpace(siteID),
		strings.TrimSpace(id),
		sizeBytes,
		metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("update document object info: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document object info: %w", err)
	}
	if rows == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *DocumentStore) Delete(ctx context.Context, siteID, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("document store not initialized")
	}
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM documents WHERE site_id = $1 AND document_id = $2`,
		strings.TrimSpace(siteID),
		strings.TrimSpace(id),
	)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if rows == 0 {
		return repo.ErrNotFound
	}
	return nil
}
