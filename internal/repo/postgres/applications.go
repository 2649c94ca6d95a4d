package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/parkrow-labs/parkrow-go/internal/domain"
	"github.com/parkrow-labs/parkrow-go/internal/repo"
)

const applicationColumns = `application_id, site_id, applicant_name, email, phone, property_id, unit_id, status, desired_move_in, monthly_income, screening, lease_id, metadata, created_at, updated_at, created_by`

var applicationPatchColumns = map[string]string{
	"applicant_name":  "applicant_name",
	"email":           "email",
	"phone":           "phone",
	"property_id":     "property_id",
	"unit_id":         "unit_id",
	"desired_move_in": "desired_move_in",
	"monthly_income":  "monthly_income",
	"metadata":        "metadata",
}

func scanApplication(row rowScanner) (domain.Application, error) {
	var (
		a                           domain.Application
		phone, propertyID           sql.NullString
		unitID, leaseID             sql.NullString
		desiredMoveIn               sql.NullTime
		screeningJSON, metadataJSON []byte
	)
	err := row.Scan(
		&a.ID, &a.SiteID, &a.ApplicantName, &a.Email, &phone, &propertyID,
		&unitID, &a.Status, &desiredMoveIn, &a.MonthlyIncome, &screeningJSON,
		&leaseID, &metadataJSON, &a.CreatedAt, &a.UpdatedAt, &a.CreatedBy,
	)
	if err != nil {
		return domain.Application{}, err
	}
	a.Phone = phone.String
	a.PropertyID = propertyID.String
	a.UnitID = unitID.String
	a.LeaseID = leaseID.String
	a.DesiredMoveIn = desiredMoveIn.Time
	if len(screeningJSON) > 0 {
		var result domain.ScreeningResult
		if err := json.Unmarshal(screeningJSON, &result); err != nil {
			return domain.Application{}, fmt.Errorf("decode screening: %w", err)
		}
		a.Screening = &result
	}
	meta, err := decodeMetadata(metadataJSON)
	if err != nil {
		return domain.Application{}, fmt.Errorf("decode metadata: %w", err)
	}
	a.Metadata = meta
	return a, nil
}

type ApplicationStore struct {
	db DB
}

func NewApplicationStore(db DB) *ApplicationStore {
	if db == nil {
		return nil
	}
	return &ApplicationStore{db: db}
}

func (s *ApplicationStore) Create(ctx context.Context, application domain.Application) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("application store not initialized")
	}
	if err := application.Validate(); err != nil {
		return err
	}
	var screeningJSON []byte
	if application.Screening != nil {
		encoded, err := json.Marshal(application.Screening)
		if err != nil {
			return fmt.Errorf("encode screening: %w", err)
		}
		screeningJSON = encoded
	}
	metadataJSON, err := encodeMetadata(application.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	createdAt := normalizeTime(application.CreatedAt)
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO applications (
			application_id,
			site_id,
			applicant_name,
			email,
			phone,
			property_id,
			unit_id,
			status,
			desired_move_in,
			monthly_income,
			screening,
			lease_id,
			metadata,
			created_at,
			updated_at,
			created_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14,$15)`,
		strings.TrimSpace(application.ID),
		strings.TrimSpace(application.SiteID),
		strings.TrimSpace(application.ApplicantName),
		strings.TrimSpace(application.Email),
		nullIfEmpty(application.Phone),
		nullIfEmpty(application.PropertyID),
		nullIfEmpty(application.UnitID),
		string(application.Status),
		nullIfZeroTime(application.DesiredMoveIn),
		application.MonthlyIncome,
		screeningJSON,
		nullIfEmpty(application.LeaseID),
		metadataJSON,
		createdAt,
		strings.TrimSpace(application.CreatedBy),
	)
	if err != nil {
		return fmt.Errorf("insert application: %w", mapConstraintErr(err))
	}
	return nil
}

func (s *ApplicationStore) Get(ctx context.Context, siteID, id string) (domain.Application, error) {
	return s.get(ctx, siteID, id, false)
}

// GetForUpdate locks the application row until the surrounding transaction
// ends. Callers must be running on a *sql.Tx.
func (s *ApplicationStore) GetForUpdate(ctx context.Context, siteID, id string) (domain.Application, error) {
	return s.get(ctx, siteID, id, true)
}

func (s *ApplicationStore) get(ctx context.Context, siteID, id string, forUpdate bool) (domain.Application, error) {
	if s == nil || s.db == nil {
		return domain.Application{}, fmt.Errorf("application store not initialized")
	}
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE site_id = $1 AND application_id = $2`
	if forUpdate {
		query += " FOR UPDATE"
	}
	row := s.db.QueryRowContext(ctx, query, strings.TrimSpace(siteID), strings.TrimSpace(id))
	application, err := scanApplication(row)
	if err != nil {
		return domain.Application{}, handleNotFound(err)
	}
	return application, nil
}

func buildApplicationListQuery(siteID string, filter repo.ApplicationFilter) (string, []any, error) {
	siteID = strings.TrimSpace(siteID)
	if siteID == "" {
		return "", nil, fmt.Errorf("site id is required")
	}
	args := []any{siteID}
	clauses := []string{"site_id = $1"}

	if strings.TrimSpace(string(filter.Status)) != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if strings.TrimSpace(filter.PropertyID) != "" {
		args = append(args, strings.TrimSpace(filter.PropertyID))
		clauses = append(clauses, fmt.Sprintf("property_id = $%d", len(args)))
	}
	if strings.TrimSpace(filter.Query) != "" {
		args = append(args, "%"+strings.TrimSpace(filter.Query)+"%")
		clauses = append(clauses, fmt.Sprintf("(applicant_name ILIKE $%d OR email ILIKE $%d)", len(args), len(args)))
	}

	query := `SELECT ` + applicationColumns + ` FROM applications WHERE ` + strings.Join(clauses, " AND ")
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

func (s *ApplicationStore) List(ctx context.Context, siteID string, filter repo.ApplicationFilter) ([]domain.Application, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("application store not initialized")
	}
	query, args, err := buildApplicationListQuery(siteID, filter)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	applications := make([]domain.Application, 0)
	for rows.Next() {
		application, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		applications = append(applications, application)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return applications, nil
}

func (s *ApplicationStore) Update(ctx context.Context, siteID, id string, patch map[string]any) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("application store not initialized")
	}
	set, args, err := buildPatch(patch, applicationPatchColumns, 2)
	if err != nil {
		return err
	}
	allArgs := append([]any{strings.TrimSpace(siteID), strings.TrimSpace(id)}, args...)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE applications SET `+set+`, updated_at = NOW() WHERE site_id = $1 AND application_id = $2`,
		allArgs...,
	)
	if err != nil {
		return fmt.Errorf("update application: %w", mapConstraintErr(err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	if rows == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// UpdateStatus writes the new status guarded on the expected current status.
func (s *ApplicationStore) UpdateStatus(ctx context.Context, siteID, id string, from, to domain.ApplicationStatus) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("application store not initialized")
	}
	if !to.Valid() {
		return domain.NewValidationError("status", "invalid application status")
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE applications
		 SET status = $1, updated_at = NOW()
		 WHERE site_id = $2 AND application_id = $3 AND status = $4`,
		string(to),
		strings.TrimSpace(siteID),
		strings.TrimSpace(id),
		string(from),
	)
	if err != nil {
		return fmt.Errorf("update application status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update application status: %w", err)
	}
	if rows == 0 {
		return repo.ErrConflict
	}
	return nil
}

func (s *ApplicationStore) SetScreening(ctx context.Context, siteID, id string, result domain.ScreeningResult) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("application store not initialized")
	}
	screeningJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode screening: %w", err)
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE applications SET screening = $3, updated_at = NOW() WHERE site_id = $1 AND application_id = $2`,
		strings.TrimSpace(siteID),
		strings.TrimSpace(id),
		screeningJSON,
	)
	if err != nil {
		return fmt.Errorf("update application screening: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update application screening: %w", err)
	}
	if rows == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *ApplicationStore) SetLease(ctx context.Context, siteID, id, leaseID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("application store not initialized")
	}
	leaseID = strings.TrimSpace(leaseID)
	if leaseID == "" {
		return domain.NewValidationError("lease_id", "is required")
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE applications SET lease_id = $3, updated_at = NOW() WHERE site_id = $1 AND application_id = $2`,
		strings.TrimSpace(siteID),
		strings.TrimSpace(id),
		leaseID,
	)
	if err != nil {
		return fmt.Errorf("link application lease: %w", mapConstraintErr(err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("link application lease: %w", err)
	}
	if rows == 0 {
		return repo.ErrNotFound
	}
	return nil
}
