package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/parkrow-labs/parkrow-go/internal/domain"
	"github.com/parkrow-labs/parkrow-go/internal/repo"
)

const checklistColumns = `checklist_id, site_id, lease_id, steps, total_steps, completed_steps, created_at, updated_at`

func scanChecklist(row rowScanner) (domain.OnboardingChecklist, error) {
	var (
		c         domain.OnboardingChecklist
		stepsJSON []byte
	)
	err := row.Scan(
		&c.ID, &c.SiteID, &c.LeaseID, &stepsJSON, &c.TotalSteps,
		&c.CompletedSteps, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return domain.OnboardingChecklist{}, err
	}
	if len(stepsJSON) > 0 {
		if err := json.Unmarshal(stepsJSON, &c.Steps); err != nil {
			return domain.OnboardingChecklist{}, fmt.Errorf("decode steps: %w", err)
		}
	}
	return c, nil
}

type ChecklistStore struct {
	db DB
}

func NewChecklistStore(db DB) *ChecklistStore {
	if db == nil {
		return nil
	}
	return &ChecklistStore{db: db}
}

// Create inserts the checklist. A second checklist for the same lease trips
// the unique index and surfaces as repo.ErrConflict.
func (s *ChecklistStore) Create(ctx context.Context, checklist domain.OnboardingChecklist) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("checklist store not initialized")
	}
	if err := checklist.Validate(); err != nil {
		return err
	}
	stepsJSON, err := json.Marshal(checklist.Steps)
	if err != nil {
		return fmt.Errorf("encode steps: %w", err)
	}
	createdAt := normalizeTime(checklist.CreatedAt)
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO onboarding_checklists (
			checklist_id,
			site_id,
			lease_id,
			steps,
			total_steps,
			completed_steps,
			created_at,
			updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$7)`,
		strings.TrimSpace(checklist.ID),
		strings.TrimSpace(checklist.SiteID),
		strings.TrimSpace(checklist.LeaseID),
		stepsJSON,
		checklist.TotalSteps,
		checklist.CompletedSteps,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert checklist: %w", mapConstraintErr(err))
	}
	return nil
}

func (s *ChecklistStore) GetByLease(ctx context.Context, siteID, leaseID string) (domain.OnboardingChecklist, error) {
	return s.getByLease(ctx, siteID, leaseID, false)
}

// GetByLeaseForUpdate locks the checklist row until the surrounding
// transaction ends. Callers must be running on a *sql.Tx.
func (s *ChecklistStore) GetByLeaseForUpdate(ctx context.Context, siteID, leaseID string) (domain.OnboardingChecklist, error) {
	return s.getByLease(ctx, siteID, leaseID, true)
}

func (s *ChecklistStore) getByLease(ctx context.Context, siteID, leaseID string, forUpdate bool) (domain.OnboardingChecklist, error) {
	if s == nil || s.db == nil {
		return domain.OnboardingChecklist{}, fmt.Errorf("checklist store not initialized")
	}
	query := `SELECT ` + checklistColumns + ` FROM onboarding_checklists WHERE site_id = $1 AND lease_id = $2`
	if forUpdate {
		query += " FOR UPDATE"
	}
	row := s.db.QueryRowContext(ctx, query, strings.TrimSpace(siteID), strings.TrimSpace(leaseID))
	checklist, err := scanChecklist(row)
	if err != nil {
		return domain.OnboardingChecklist{}, handleNotFound(err)
	}
	return checklist, nil
}

// UpdateSteps persists the step list and recomputes the denormalized counts
// from it, keeping the row and the JSONB in lockstep.
func (s *ChecklistStore) UpdateSteps(ctx context.Context, siteID, leaseID string, steps []domain.ChecklistStep) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("checklist store not initialized")
	}
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("encode steps: %w", err)
	}
	completed := 0
	for _, step := range steps {
		if step.Completed {
			completed++
		}
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE onboarding_checklists
		 SET steps = $3, total_steps = $4, completed_steps = $5, updated_at = NOW()
		 WHERE site_id = $1 AND lease_id = $2`,
		strings.TrimSpace(siteID),
		strings.TrimSpace(leaseID),
		stepsJSON,
		len(steps),
		completed,
	)
	if err != nil {
		return fmt.Errorf("update checklist steps: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update checklist steps: %w", err)
	}
	if rows == 0 {
		return repo.ErrNotFound
	}
	return nil
}
