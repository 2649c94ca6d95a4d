package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/parkrow-labs/parkrow-go/internal/domain"
	"github.com/parkrow-labs/parkrow-go/internal/repo"
)

const leaseColumns = `lease_id, site_id, property_id, unit_id, tenant_id, status, rent, deposit, start_date, end_date, onboarding_pending, version, metadata, created_at, updated_at, created_by`

var leasePatchColumns = map[string]string{
	"rent":       "rent",
	"deposit":    "deposit",
	"start_date": "start_date",
	"end_date":   "end_date",
	"metadata":   "metadata",
}

func scanLease(row rowScanner) (domain.Lease, error) {
	var (
		l                  domain.Lease
		startDate, endDate sql.NullTime
		metadataJSON       []byte
	)
	err := row.Scan(
		&l.ID, &l.SiteID, &l.PropertyID, &l.UnitID, &l.TenantID, &l.Status,
		&l.Rent, &l.Deposit, &startDate, &endDate, &l.OnboardingPending,
		&l.Version, &metadataJSON, &l.CreatedAt, &l.UpdatedAt, &l.CreatedBy,
	)
	if err != nil {
		return domain.Lease{}, err
	}
	l.StartDate = startDate.Time
	l.EndDate = endDate.Time
	meta, err := decodeMetadata(metadataJSON)
	if err != nil {
		return domain.Lease{}, fmt.Errorf("decode metadata: %w", err)
	}
	l.Metadata = meta
	return l, nil
}

type LeaseStore struct {
	db DB
}

func NewLeaseStore(db DB) *LeaseStore {
	if db == nil {
		return nil
	}
	return &LeaseStore{db: db}
}

func (s *LeaseStore) Create(ctx context.Context, lease domain.Lease) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("lease store not initialized")
	}
	if err := lease.Validate(); err != nil {
		return err
	}
	metadataJSON, err := encodeMetadata(lease.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	createdAt := normalizeTime(lease.CreatedAt)
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO leases (
			lease_id,
			site_id,
			property_id,
			unit_id,
			tenant_id,
			status,
			rent,
			deposit,
			start_date,
			end_date,
			onboarding_pending,
			version,
			metadata,
			created_at,
			updated_at,
			created_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14,$15)`,
		strings.TrimSpace(lease.ID),
		strings.TrimSpace(lease.SiteID),
		strings.TrimSpace(lease.PropertyID),
		strings.TrimSpace(lease.UnitID),
		strings.TrimSpace(lease.TenantID),
		string(lease.Status),
		lease.Rent,
		lease.Deposit,
		nullIfZeroTime(lease.StartDate),
		nullIfZeroTime(lease.EndDate),
		lease.OnboardingPending,
		lease.Version,
		metadataJSON,
		createdAt,
		strings.TrimSpace(lease.CreatedBy),
	)
	if err != nil {
		return fmt.Errorf("insert lease: %w", mapConstraintErr(err))
	}
	return nil
}

func (s *LeaseStore) Get(ctx context.Context, siteID, id string) (domain.Lease, error) {
	return s.get(ctx, siteID, id, false)
}

// GetForUpdate locks the lease row until the surrounding transaction ends.
// Callers must be running on a *sql.Tx.
func (s *LeaseStore) GetForUpdate(ctx context.Context, siteID, id string) (domain.Lease, error) {
	return s.get(ctx, siteID, id, true)
}

func (s *LeaseStore) get(ctx context.Context, siteID, id string, forUpdate bool) (domain.Lease, error) {
	if s == nil || s.db == nil {
		return domain.Lease{}, fmt.Errorf("lease store not initialized")
	}
	query := `SELECT ` + leaseColumns + ` FROM leases WHERE site_id = $1 AND lease_id = $2`
	if forUpdate {
		query += " FOR UPDATE"
	}
	row := s.db.QueryRowContext(ctx, query, strings.TrimSpace(siteID), strings.TrimSpace(id))
	lease, err := scanLease(row)
	if err != nil {
		return domain.Lease{}, handleNotFound(err)
	}
	return lease, nil
}

func buildLeaseListQuery(siteID string, filter repo.LeaseFilter) (string, []any, error) {
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
	if strings.TrimSpace(filter.UnitID) != "" {
		args = append(args, strings.TrimSpace(filter.UnitID))
		clauses = append(clauses, fmt.Sprintf("unit_id = $%d", len(args)))
	}
	if strings.TrimSpace(filter.TenantID) != "" {
		args = append(args, strings.TrimSpace(filter.TenantID))
		clauses = append(clauses, fmt.Sprintf("tenant_id = $%d", len(args)))
	}
	if strings.TrimSpace(string(filter.Status)) != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.OnboardingPending != nil {
		args = append(args, *filter.OnboardingPending)
		clauses = append(clauses, fmt.Sprintf("onboarding_pending = $%d", len(args)))
	}

	query := `SELECT ` + leaseColumns + ` FROM leases WHERE ` + strings.Join(clauses, " AND ")
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

func (s *LeaseStore) List(ctx context.Context, siteID string, filter repo.LeaseFilter) ([]domain.Lease, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("lease store not initialized")
	}
	query, args, err := buildLeaseListQuery(siteID, filter)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list leases: %w", err)
	}
	defer rows.Close()

	leases := make([]domain.Lease, 0)
	for rows.Next() {
		lease, err := scanLease(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lease: %w", err)
		}
		leases = append(leases, lease)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list leases: %w", err)
	}
	return leases, nil
}

func (s *LeaseStore) Update(ctx context.Context, siteID, id string, patch map[string]any) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("lease store not initialized")
	}
	set, args, err := buildPatch(patch, leasePatchColumns, 2)
	if err != nil {
		return err
	}
	allArgs := append([]any{strings.TrimSpace(siteID), strings.TrimSpace(id)}, args...)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE leases SET `+set+`, updated_at = NOW() WHERE site_id = $1 AND lease_id = $2`,
		allArgs...,
	)
	if err != nil {
		return fmt.Errorf("update lease: %w", mapConstraintErr(err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update lease: %w", err)
	}
	if rows == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// UpdateStatus writes the new status guarded on the expected current status
// and version, and bumps the version. Zero rows means the row changed under
// us (or vanished), which the FOR UPDATE path makes a can't-happen.
func (s *LeaseStore) UpdateStatus(ctx context.Context, siteID, id string, from, to domain.LeaseStatus, version int) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("lease store not initialized")
	}
	if !to.Valid() {
		return domain.NewValidationError("status", "invalid lease status")
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE leases
		 SET status = $1, version = version + 1, updated_at = NOW()
		 WHERE site_id = $2 AND lease_id = $3 AND status = $4 AND version = $5`,
		string(to),
		strings.TrimSpace(siteID),
		strings.TrimSpace(id),
		string(from),
		version,
	)
	if err != nil {
		return fmt.Errorf("update lease status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update lease status: %w", err)
	}
	if rows == 0 {
		return repo.ErrConflict
	}
	return nil
}

func (s *LeaseStore) SetOnboardingPending(ctx context.Context, siteID, id string, pending bool) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("lease store not initialized")
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE leases SET onboarding_pending = $3, updated_at = NOW() WHERE site_id = $1 AND lease_id = $2`,
		strings.TrimSpace(siteID),
		strings.TrimSpace(id),
		pending,
	)
	if err != nil {
		return fmt.Errorf("update lease onboarding flag: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update lease onboarding flag: %w", err)
	}
	if rows == 0 {
		return repo.ErrNotFound
	}
	return nil
}
