package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/parkrow-labs/parkrow-go/internal/domain"
	"github.com/parkrow-labs/parkrow-go/internal/repo"
)

const bulkActionColumns = `bulk_action_id, site_id, action_type, performed_by, application_count, success_count, failure_count, params, created_at, finalized_at`

func scanBulkAction(row rowScanner) (domain.BulkAction, error) {
	var (
		b           domain.BulkAction
		paramsJSON  []byte
		finalizedAt sql.NullTime
	)
	err := row.Scan(
		&b.ID, &b.SiteID, &b.Type, &b.PerformedBy, &b.ApplicationCount,
		&b.SuccessCount, &b.FailureCount, &paramsJSON, &b.CreatedAt, &finalizedAt,
	)
	if err != nil {
		return domain.BulkAction{}, err
	}
	if finalizedAt.Valid {
		t := finalizedAt.Time
		b.FinalizedAt = &t
	}
	params, err := decodeMetadata(paramsJSON)
	if err != nil {
		return domain.BulkAction{}, fmt.Errorf("decode params: %w", err)
	}
	b.Params = params
	return b, nil
}

type BulkActionStore struct {
	db DB
}

func NewBulkActionStore(db DB) *BulkActionStore {
	if db == nil {
		return nil
	}
	return &BulkActionStore{db: db}
}

func (s *BulkActionStore) Insert(ctx context.Context, action domain.BulkAction) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("bulk action store not initialized")
	}
	if err := action.Validate(); err != nil {
		return err
	}
	paramsJSON, err := encodeMetadata(action.Params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	createdAt := normalizeTime(action.CreatedAt)
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO bulk_actions (
			bulk_action_id,
			site_id,
			action_type,
			performed_by,
			application_count,
			success_count,
			failure_count,
			params,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		strings.TrimSpace(action.ID),
		strings.TrimSpace(action.SiteID),
		string(action.Type),
		strings.TrimSpace(action.PerformedBy),
		action.ApplicationCount,
		action.SuccessCount,
		action.FailureCount,
		paramsJSON,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert bulk action: %w", mapConstraintErr(err))
	}
	return nil
}

// Finalize records the final counts exactly once; a second call finds no
// unfinalized row and reports conflict.
func (s *BulkActionStore) Finalize(ctx context.Context, siteID, id string, successCount, failureCount int, finalizedAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("bulk action store not initialized")
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE bulk_actions
		 SET success_count = $1, failure_count = $2, finalized_at = $3
		 WHERE site_id = $4 AND bulk_action_id = $5 AND finalized_at IS NULL`,
		successCount,
		failureCount,
		finalizedAt.UTC(),
		strings.TrimSpace(siteID),
		strings.TrimSpace(id),
	)
	if err != nil {
		return fmt.Errorf("finalize bulk action: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finalize bulk action: %w", err)
	}
	if rows == 0 {
		return repo.ErrConflict
	}
	return nil
}

func (s *BulkActionStore) Get(ctx context.Context, siteID, id string) (domain.BulkAction, error) {
	if s == nil || s.db == nil {
		return domain.BulkAction{}, fmt.Errorf("bulk action store not initialized")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+bulkActionColumns+` FROM bulk_actions WHERE site_id = $1 AND bulk_action_id = $2`,
		strings.TrimSpace(siteID),
		strings.TrimSpace(id),
	)
	action, err := scanBulkAction(row)
	if err != nil {
		return domain.BulkAction{}, handleNotFound(err)
	}
	return action, nil
}

func buildBulkActionListQuery(siteID string, filter repo.BulkActionFilter) (string, []any, error) {
	siteID = strings.TrimSpace(siteID)
	if siteID == "" {
		return "", nil, fmt.Errorf("site id is required")
	}
	args := []any{siteID}
	clauses := []string{"site_id = $1"}

	if strings.TrimSpace(string(filter.Type)) != "" {
		args = append(args, string(filter.Type))
		clauses = append(clauses, fmt.Sprintf("action_type = $%d", len(args)))
	}

	query := `SELECT ` + bulkActionColumns + ` FROM bulk_actions WHERE ` + strings.Join(clauses, " AND ")
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

func (s *BulkActionStore) List(ctx context.Context, siteID string, filter repo.BulkActionFilter) ([]domain.BulkAction, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("bulk action store not initialized")
	}
	query, args, err := buildBulkActionListQuery(siteID, filter)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bulk actions: %w", err)
	}
	defer rows.Close()

	actions := make([]domain.BulkAction, 0)
	for rows.Next() {
		action, err := scanBulkAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bulk action: %w", err)
		}
		actions = append(actions, action)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list bulk actions: %w", err)
	}
	return actions, nil
}
