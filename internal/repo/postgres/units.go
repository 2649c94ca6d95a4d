package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/parkrow-labs/parkrow-go/internal/domain"
	"github.com/parkrow-labs/parkrow-go/internal/repo"
)

const unitColumns = `unit_id, site_id, property_id, unit_number, bedrooms, bathrooms, square_feet, market_rent, occupancy, metadata, created_at, updated_at, created_by`

var unitPatchColumns = map[string]string{
	"unit_number": "unit_number",
	"bedrooms":    "bedrooms",
	"bathrooms":   "bathrooms",
	"square_feet": "square_feet",
	"market_rent": "market_rent",
	"occupancy":   "occupancy",
	"metadata":    "metadata",
}

func scanUnit(row rowScanner) (domain.Unit, error) {
	var (
		u            domain.Unit
		metadataJSON []byte
	)
	err := row.Scan(
		&u.ID, &u.SiteID, &u.PropertyID, &u.UnitNumber, &u.Bedrooms, &u.Bathrooms,
		&u.SquareFeet, &u.MarketRent, &u.Occupancy, &metadataJSON,
		&u.CreatedAt, &u.UpdatedAt, &u.CreatedBy,
	)
	if err != nil {
		return domain.Unit{}, err
	}
	meta, err := decodeMetadata(metadataJSON)
	if err != nil {
		return domain.Unit{}, fmt.Errorf("decode metadata: %w", err)
	}
	u.Metadata = meta
	return u, nil
}

type UnitStore struct {
	db DB
}

func NewUnitStore(db DB) *UnitStore {
	if db == nil {
		return nil
	}
	return &UnitStore{db: db}
}

func (s *UnitStore) Create(ctx context.Context, unit domain.Unit) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("unit store not initialized")
	}
	if err := unit.Validate(); err != nil {
		return err
	}
	metadataJSON, err := encodeMetadata(unit.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	createdAt := normalizeTime(unit.CreatedAt)
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO units (
			unit_id,
			site_id,
			property_id,
			unit_number,
			bedrooms,
			bathrooms,
			square_feet,
			market_rent,
			occupancy,
			metadata,
			created_at,
			updated_at,
			created_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11,$12)`,
		strings.TrimSpace(unit.ID),
		strings.TrimSpace(unit.SiteID),
		strings.TrimSpace(unit.PropertyID),
		strings.TrimSpace(unit.UnitNumber),
		unit.Bedrooms,
		unit.Bathrooms,
		unit.SquareFeet,
		unit.MarketRent,
		string(unit.Occupancy),
		metadataJSON,
		createdAt,
		strings.TrimSpace(unit.CreatedBy),
	)
	if err != nil {
		return fmt.Errorf("insert unit: %w", mapConstraintErr(err))
	}
	return nil
}

func (s *UnitStore) Get(ctx context.Context, siteID, id string) (domain.Unit, error) {
	if s == nil || s.db == nil {
		return domain.Unit{}, fmt.Errorf("unit store not initialized")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+unitColumns+` FROM units WHERE site_id = $1 AND unit_id = $2`,
		strings.TrimSpace(siteID),
		strings.TrimSpace(id),
	)
	unit, err := scanUnit(row)
	if err != nil {
		return domain.Unit{}, handleNotFound(err)
	}
	return unit, nil
}

func buildUnitListQuery(siteID string, filter repo.UnitFilter) (string, []any, error) {
	siteID = strings.TrimSpace(siteID)
	if siteID == "" {
		return "", nil, fmt.Errorf("site id is required")
	}
	args := []any{siteID}
	clauses := []string{"site_id = $1"}

	if strings.TrimSpace(filter.PropertyID) != "" {
		args = append(args, strings.TrimSpace(filter.PropertyID))
		clauses = append(clauses, fmt.Sprintf("property_id = $%d", len(args)))
	}
	if strings.TrimSpace(string(filter.Occupancy)) != "" {
		args = append(args, string(filter.Occupancy))
		clauses = append(clauses, fmt.Sprintf("occupancy = $%d", len(args)))
	}

	query := `SELECT ` + unitColumns + ` FROM units WHERE ` + strings.Join(clauses, " AND ")
	query += " ORDER BY unit_number ASC"
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

func (s *UnitStore) List(ctx context.Context, siteID string, filter repo.UnitFilter) ([]domain.Unit, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("unit store not initialized")
	}
	query, args, err := buildUnitListQuery(siteID, filter)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	defer rows.Close()

	units := make([]domain.Unit, 0)
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		units = append(units, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	return units, nil
}

func (s *UnitStore) Update(ctx context.Context, siteID, id string, patch map[string]any) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("unit store not initialized")
	}
	set, args, err := buildPatch(patch, unitPatchColumns, 2)
	if err != nil {
		return err
	}
	allArgs := append([]any{strings.TrimSpace(siteID), strings.TrimSpace(id)}, args...)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE units SET `+set+`, updated_at = NOW() WHERE site_id = $1 AND unit_id = $2`,
		allArgs...,
	)
	if err != nil {
		return fmt.Errorf("update unit: %w", mapConstraintErr(err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update unit: %w", err)
	}
	if rows == 0 {
		return repo.ErrNotFound
	}
	return nil
}
