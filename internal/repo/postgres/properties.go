package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/parkrow-labs/parkrow-go/internal/domain"
	"github.com/parkrow-labs/parkrow-go/internal/repo"
)

// propertyColumns is the single source for property SELECTs; scanProperty
// mirrors it. Adding a column means touching these two only.
const propertyColumns = `property_id, site_id, name, address_line1, address_line2, city, state, postal_code, kind, year_built, notes, metadata, created_at, updated_at, created_by`

var propertyPatchColumns = map[string]string{
	"name":          "name",
	"address_line1": "address_line1",
	"address_line2": "address_line2",
	"city":          "city",
	"state":         "state",
	"postal_code":   "postal_code",
	"kind":          "kind",
	"year_built":    "year_built",
	"notes":         "notes",
	"metadata":      "metadata",
}

func scanProperty(row rowScanner) (domain.Property, error) {
	var (
		p            domain.Property
		line2, notes sql.NullString
		yearBuilt    sql.NullInt64
		metadataJSON []byte
	)
	err := row.Scan(
		&p.ID, &p.SiteID, &p.Name, &p.AddressLine1, &line2, &p.City, &p.State,
		&p.PostalCode, &p.Kind, &yearBuilt, &notes, &metadataJSON,
		&p.CreatedAt, &p.UpdatedAt, &p.CreatedBy,
	)
	if err != nil {
		return domain.Property{}, err
	}
	p.AddressLine2 = line2.String
	p.Notes = notes.String
	p.YearBuilt = int(yearBuilt.Int64)
	meta, err := decodeMetadata(metadataJSON)
	if err != nil {
		return domain.Property{}, fmt.Errorf("decode metadata: %w", err)
	}
	p.Metadata = meta
	return p, nil
}

type PropertyStore struct {
	db DB
}

func NewPropertyStore(db DB) *PropertyStore {
	if db == nil {
		return nil
	}
	return &PropertyStore{db: db}
}

func (s *PropertyStore) Create(ctx context.Context, property domain.Property) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("property store not initialized")
	}
	if err := property.Validate(); err != nil {
		return err
	}
	metadataJSON, err := encodeMetadata(property.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	createdAt := normalizeTime(property.CreatedAt)
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO properties (
			property_id,
			site_id,
			name,
			address_line1,
			address_line2,
			city,
			state,
			postal_code,
			kind,
			year_built,
			notes,
			metadata,
			created_at,
			updated_at,
			created_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13,$14)`,
		strings.TrimSpace(property.ID),
		strings.TrimSpace(property.SiteID),
		strings.TrimSpace(property.Name),
		strings.TrimSpace(property.AddressLine1),
		nullIfEmpty(property.AddressLine2),
		strings.TrimSpace(property.City),
		strings.TrimSpace(property.State),
		strings.TrimSpace(property.PostalCode),
		string(property.Kind),
		property.YearBuilt,
		nullIfEmpty(property.Notes),
		metadataJSON,
		createdAt,
		strings.TrimSpace(property.CreatedBy),
	)
	if err != nil {
		return fmt.Errorf("insert property: %w", mapConstraintErr(err))
	}
	return nil
}

func (s *PropertyStore) Get(ctx context.Context, siteID, id string) (domain.Property, error) {
	if s == nil || s.db == nil {
		return domain.Property{}, fmt.Errorf("property store not initialized")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+propertyColumns+` FROM properties WHERE site_id = $1 AND property_id = $2`,
		strings.TrimSpace(siteID),
		strings.TrimSpace(id),
	)
	property, err := scanProperty(row)
	if err != nil {
		return domain.Property{}, handleNotFound(err)
	}
	return property, nil
}

func buildPropertyListQuery(siteID string, filter repo.PropertyFilter) (string, []any, error) {
	siteID = strings.TrimSpace(siteID)
	if siteID == "" {
		return "", nil, fmt.Errorf("site id is required")
	}
	args := []any{siteID}
	clauses := []string{"site_id = $1"}

	if strings.TrimSpace(string(filter.Kind)) != "" {
		args = append(args, string(filter.Kind))
		clauses = append(clauses, fmt.Sprintf("kind = $%d", len(args)))
	}
	if strings.TrimSpace(filter.City) != "" {
		args = append(args, strings.TrimSpace(filter.City))
		clauses = append(clauses, fmt.Sprintf("city = $%d", len(args)))
	}
	if strings.TrimSpace(filter.Query) != "" {
		args = append(args, "%"+strings.TrimSpace(filter.Query)+"%")
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR address_line1 ILIKE $%d)", len(args), len(args)))
	}

	query := `SELECT ` + propertyColumns + ` FROM properties WHERE ` + strings.Join(clauses, " AND ")
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

func (s *PropertyStore) List(ctx context.Context, siteID string, filter repo.PropertyFilter) ([]domain.Property, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("property store not initialized")
	}
	query, args, err := buildPropertyListQuery(siteID, filter)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	defer rows.Close()

	properties := make([]domain.Property, 0)
	for rows.Next() {
		property, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		properties = append(properties, property)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	return properties, nil
}

func (s *PropertyStore) Update(ctx context.Context, siteID, id string, patch map[string]any) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("property store not initialized")
	}
	set, args, err := buildPatch(patch, propertyPatchColumns, 2)
	if err != nil {
		return err
	}
	allArgs := append([]any{strings.TrimSpace(siteID), strings.TrimSpace(id)}, args...)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE properties SET `+set+`, updated_at = NOW() WHERE site_id = $1 AND property_id = $2`,
		allArgs...,
	)
	if err != nil {
		return fmt.Errorf("update property: %w", mapConstraintErr(err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update property: %w", err)
	}
	if rows == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *PropertyStore) Delete(ctx context.Context, siteID, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("property store not initialized")
	}
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM properties WHERE site_id = $1 AND property_id = $2`,
		strings.TrimSpace(siteID),
		strings.TrimSpace(id),
	)
	if err != nil {
		return fmt.Errorf("delete property: %w", mapDeleteConstraintErr(err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete property: %w", err)
	}
	if rows == 0 {
		return repo.ErrNotFound
	}
	return nil
}
