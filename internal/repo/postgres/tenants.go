package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/parkrow-labs/parkrow-go/internal/domain"
	"github.com/parkrow-labs/parkrow-go/internal/repo"
)

const tenantColumns = `tenant_id, site_id, first_name, last_name, email, phone, emergency_contact, metadata, created_at, updated_at, created_by`

var tenantPatchColumns = map[string]string{
	"first_name":        "first_name",
	"last_name":         "last_name",
	"email":             "email",
	"phone":             "phone",
	"emergency_contact": "emergency_contact",
	"metadata":          "metadata",
}

func scanTenant(row rowScanner) (domain.Tenant, error) {
	var (
		t                       domain.Tenant
		email, phone, emergency sql.NullString
		metadataJSON            []byte
	)
	err := row.Scan(
		&t.ID, &t.SiteID, &t.FirstName, &t.LastName, &email, &phone, &emergency,
		&metadataJSON, &t.CreatedAt, &t.UpdatedAt, &t.CreatedBy,
	)
	if err != nil {
		return domain.Tenant{}, err
	}
	t.Email = email.String
	t.Phone = phone.String
	t.EmergencyContact = emergency.String
	meta, err := decodeMetadata(metadataJSON)
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("decode metadata: %w", err)
	}
	t.Metadata = meta
	return t, nil
}

type TenantStore struct {
	db DB
}

func NewTenantStore(db DB) *TenantStore {
	if db == nil {
		return nil
	}
	return &TenantStore{db: db}
}

func (s *TenantStore) Create(ctx context.Context, tenant domain.Tenant) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("tenant store not initialized")
	}
	if err := tenant.Validate(); err != nil {
		return err
	}
	metadataJSON, err := encodeMetadata(tenant.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	createdAt := normalizeTime(tenant.CreatedAt)
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO tenants (
			tenant_id,
			site_id,
			first_name,
			last_name,
			email,
			phone,
			emergency_contact,
			metadata,
			created_at,
			updated_at,
			created_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9,$10)`,
		strings.TrimSpace(tenant.ID),
		strings.TrimSpace(tenant.SiteID),
		strings.TrimSpace(tenant.FirstName),
		strings.TrimSpace(tenant.LastName),
		nullIfEmpty(tenant.Email),
		nullIfEmpty(tenant.Phone),
		nullIfEmpty(tenant.EmergencyContact),
		metadataJSON,
		createdAt,
		strings.TrimSpace(tenant.CreatedBy),
	)
	if err != nil {
		return fmt.Errorf("insert tenant: %w", mapConstraintErr(err))
	}
	return nil
}

func (s *TenantStore) Get(ctx context.Context, siteID, id string) (domain.Tenant, error) {
	if s == nil || s.db == nil {
		return domain.Tenant{}, fmt.Errorf("tenant store not initialized")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE site_id = $1 AND tenant_id = $2`,
		strings.TrimSpace(siteID),
		strings.TrimSpace(id),
	)
	tenant, err := scanTenant(row)
	if err != nil {
		return domain.Tenant{}, handleNotFound(err)
	}
	return tenant, nil
}

func buildTenantListQuery(siteID string, filter repo.TenantFilter) (string, []any, error) {
	siteID = strings.TrimSpace(siteID)
	if siteID == "" {
		return "", nil, fmt.Errorf("site id is required")
	}
	args := []any{siteID}
	clauses := []string{"site_id = $1"}

	if strings.TrimSpace(filter.Query) != "" {
		args = append(args, "%"+strings.TrimSpace(filter.Query)+"%")
		clauses = append(clauses, fmt.Sprintf("(first_name ILIKE $%d OR last_name ILIKE $%d OR email ILIKE $%d)", len(args), len(args), len(args)))
	}

	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE ` + strings.Join(clauses, " AND ")
	query += " ORDER BY last_name ASC, first_name ASC"
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

func (s *TenantStore) List(ctx context.Context, siteID string, filter repo.TenantFilter) ([]domain.Tenant, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("tenant store not initialized")
	}
	query, args, err := buildTenantListQuery(siteID, filter)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	tenants := make([]domain.Tenant, 0)
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, tenant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return tenants, nil
}

func (s *TenantStore) Update(ctx context.Context, siteID, id string, patch map[string]any) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("tenant store not initialized")
	}
	set, args, err := buildPatch(patch, tenantPatchColumns, 2)
	if err != nil {
		return err
	}
	allArgs := append([]any{strings.TrimSpace(siteID), strings.TrimSpace(id)}, args...)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE tenants SET `+set+`, updated_at = NOW() WHERE site_id = $1 AND tenant_id = $2`,
		allArgs...,
	)
	if err != nil {
		return fmt.Errorf("update tenant: %w", mapConstraintErr(err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	if rows == 0 {
		return repo.ErrNotFound
	}
	return nil
}
