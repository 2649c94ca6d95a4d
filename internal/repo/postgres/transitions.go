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

const transitionColumns = `transition_id, site_id, domain, entity_id, from_status, to_status, transition_type, confirmation_ack, bypass_reason, bypass_category, checklist_snapshot, actor, created_at`

func scanTransition(row rowScanner) (domain.TransitionRecord, error) {
	var (
		r                domain.TransitionRecord
		reason, category sql.NullString
		snapshot         []byte
	)
	err := row.Scan(
		&r.ID, &r.SiteID, &r.Domain, &r.EntityID, &r.FromStatus, &r.ToStatus,
		&r.Type, &r.ConfirmationAck, &reason, &category, &snapshot,
		&r.Actor, &r.CreatedAt,
	)
	if err != nil {
		return domain.TransitionRecord{}, err
	}
	r.BypassReason = reason.String
	r.BypassCategory = domain.BypassCategory(category.String)
	if len(snapshot) > 0 {
		r.ChecklistSnapshot = json.RawMessage(snapshot)
	}
	return r, nil
}

// TransitionStore appends immutable transition records. There is no update
// statement in this file on purpose.
type TransitionStore struct {
	db DB
}

func NewTransitionStore(db DB) *TransitionStore {
	if db == nil {
		return nil
	}
	return &TransitionStore{db: db}
}

func (s *TransitionStore) Insert(ctx context.Context, record domain.TransitionRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("transition store not initialized")
	}
	if err := record.Validate(); err != nil {
		return err
	}
	createdAt := normalizeTime(record.CreatedAt)
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO transition_records (
			transition_id,
			site_id,
			domain,
			entity_id,
			from_status,
			to_status,
			transition_type,
			confirmation_ack,
			bypass_reason,
			bypass_category,
			checklist_snapshot,
			actor,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		strings.TrimSpace(record.ID),
		strings.TrimSpace(record.SiteID),
		string(record.Domain),
		strings.TrimSpace(record.EntityID),
		strings.TrimSpace(record.FromStatus),
		strings.TrimSpace(record.ToStatus),
		string(record.Type),
		record.ConfirmationAck,
		nullIfEmpty(record.BypassReason),
		nullIfEmpty(string(record.BypassCategory)),
		[]byte(record.ChecklistSnapshot),
		strings.TrimSpace(record.Actor),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert transition record: %w", mapConstraintErr(err))
	}
	return nil
}

func buildTransitionListQuery(siteID string, entityDomain domain.TransitionDomain, entityID string, filter repo.TransitionFilter) (string, []any, error) {
	siteID = strings.TrimSpace(siteID)
	if siteID == "" {
		return "", nil, fmt.Errorf("site id is required")
	}
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return "", nil, fmt.Errorf("entity id is required")
	}
	if !entityDomain.Valid() {
		return "", nil, fmt.Errorf("invalid transition domain")
	}

	args := []any{siteID, string(entityDomain), entityID}
	clauses := []string{"site_id = $1", "domain = $2", "entity_id = $3"}
	if filter.BypassedOnly {
		clauses = append(clauses, "bypass_reason IS NOT NULL")
	}

	query := `SELECT ` + transitionColumns + ` FROM transition_records WHERE ` + strings.Join(clauses, " AND ")
	query += " ORDER BY created_at DESC, transition_id DESC"
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

func (s *TransitionStore) List(ctx context.Context, siteID string, entityDomain domain.TransitionDomain, entityID string, filter repo.TransitionFilter) ([]domain.TransitionRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("transition store not initialized")
	}
	query, args, err := buildTransitionListQuery(siteID, entityDomain, entityID, filter)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	records := make([]domain.TransitionRecord, 0)
	for rows.Next() {
		record, err := scanTransition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	return records, nil
}

func (s *TransitionStore) Latest(ctx context.Context, siteID string, entityDomain domain.TransitionDomain, entityID string) (domain.TransitionRecord, error) {
	if s == nil || s.db == nil {
		return domain.TransitionRecord{}, fmt.Errorf("transition store not initialized")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+transitionColumns+`
		 FROM transition_records
		 WHERE site_id = $1 AND domain = $2 AND entity_id = $3
		 ORDER BY created_at DESC, transition_id DESC
		 LIMIT 1`,
		strings.TrimSpace(siteID),
		string(entityDomain),
		strings.TrimSpace(entityID),
	)
	record, err := scanTransition(row)
	if err != nil {
		return domain.TransitionRecord{}, handleNotFound(err)
	}
	return record, nil
}

func (s *TransitionStore) Stats(ctx context.Context, siteID string, entityDomain domain.TransitionDomain, entityID string) (repo.TransitionStats, error) {
	if s == nil || s.db == nil {
		return repo.TransitionStats{}, fmt.Errorf("transition store not initialized")
	}
	var stats repo.TransitionStats
	row := s.db.QueryRowContext(
		ctx,
		`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE transition_type = 'manual'),
			COUNT(*) FILTER (WHERE transition_type = 'automatic'),
			COUNT(*) FILTER (WHERE bypass_reason IS NOT NULL)
		 FROM transition_records
		 WHERE site_id = $1 AND domain = $2 AND entity_id = $3`,
		strings.TrimSpace(siteID),
		string(entityDomain),
		strings.TrimSpace(entityID),
	)
	if err := row.Scan(&stats.Total, &stats.Manual, &stats.Automatic, &stats.Bypassed); err != nil {
		return repo.TransitionStats{}, fmt.Errorf("transition stats: %w", err)
	}
	return stats, nil
}
