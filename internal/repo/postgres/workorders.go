package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/parkrow-labs/parkrow-go/internal/domain"
	"github.com/parkrow-labs/parkrow-go/internal/repo"
)

const workOrderColumns = `work_order_id, site_id, property_id, unit_id, title, description, priority, status, assigned_to, metadata, created_at, updated_at, created_by`

var workOrderPatchColumns = map[string]string{
	"title":       "title",
	"description": "description",
	"priority":    "priority",
	"assigned_to": "assigned_to",
	"metadata":    "metadata",
}

func scanWorkOrder(row rowScanner) (domain.WorkOrder, error) {
	var (
		w                               domain.WorkOrder
		unitID, description, assignedTo sql.NullString
		metadataJSON                    []byte
	)
	err := row.Scan(
		&w.ID, &w.SiteID, &w.PropertyID, &unitID, &w.Title, &description,
		&w.Priority, &w.Status, &assignedTo, &metadataJSON,
		&w.CreatedAt, &w.UpdatedAt, &w.CreatedBy,
	)
	if err != nil {
		return domain.WorkOrder{}, err
	}
	w.UnitID = unitID.String
	w.Description = description.String
	w.AssignedTo = assignedTo.String
	meta, err := decodeMetadata(metadataJSON)
	if err != nil {
		return domain.WorkOrder{}, fmt.Errorf("decode metadata: %w", err)
	}
	w.Metadata = meta
	return w, nil
}

type WorkOrderStore struct {
	db DB
}

func NewWorkOrderStore(db DB) *WorkOrderStore {
	if db == nil {
		return nil
	}
	return &WorkOrderStore{db: db}
}

func (s *WorkOrderStore) Create(ctx context.Context, order domain.WorkOrder) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("work order store not initialized")
	}
	if err := order.Validate(); err != nil {
		return err
	}
	metadataJSON, err := encodeMetadata(order.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	createdAt := normalizeTime(order.CreatedAt)
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO work_orders (
			work_order_id,
			site_id,
			property_id,
			unit_id,
			title,
			description,
			priority,
			status,
			assigned_to,
			metadata,
			created_at,
			updated_at,
			created_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11,$12)`,
		strings.TrimSpace(order.ID),
		strings.TrimSpace(order.SiteID),
		strings.TrimSpace(order.PropertyID),
		nullIfEmpty(order.UnitID),
		strings.TrimSpace(order.Title),
		nullIfEmpty(order.Description),
		string(order.Priority),
		string(order.Status),
		nullIfEmpty(order.AssignedTo),
		metadataJSON,
		createdAt,
		strings.TrimSpace(order.CreatedBy),
	)
	if err != nil {
		return fmt.Errorf("insert work order: %w", mapConstraintErr(err))
	}
	return nil
}

func (s *WorkOrderStore) Get(ctx context.Context, siteID, id string) (domain.WorkOrder, error) {
	if s == nil || s.db == nil {
		return domain.WorkOrder{}, fmt.Errorf("work order store not initialized")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+workOrderColumns+` FROM work_orders WHERE site_id = $1 AND work_order_id = $2`,
		strings.TrimSpace(siteID),
		strings.TrimSpace(id),
	)
	order, err := scanWorkOrder(row)
	if err != nil {
		return domain.WorkOrder{}, handleNotFound(err)
	}
	return order, nil
}

func buildWorkOrderListQuery(siteID string, filter repo.WorkOrderFilter) (string, []any, error) {
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
	if strings.TrimSpace(string(filter.Status)) != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if strings.TrimSpace(string(filter.Priority)) != "" {
		args = append(args, string(filter.Priority))
		clauses = append(clauses, fmt.Sprintf("priority = $%d", len(args)))
	}

	query := `SELECT ` + workOrderColumns + ` FROM work_orders WHERE ` + strings.Join(clauses, " AND ")
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

func (s *WorkOrderStore) List(ctx context.Context, siteID string, filter repo.WorkOrderFilter) ([]domain.WorkOrder, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("work order store not initialized")
	}
	query, args, err := buildWorkOrderListQuery(siteID, filter)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list work orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.WorkOrder, 0)
	for rows.Next() {
		order, err := scanWorkOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan work order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list work orders: %w", err)
	}
	return orders, nil
}

func (s *WorkOrderStore) Update(ctx context.Context, siteID, id string, patch map[string]any) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("work order store not initialized")
	}
	set, args, err := buildPatch(patch, workOrderPatchColumns, 2)
	if err != nil {
		return err
	}
	allArgs := append([]any{strings.TrimSpace(siteID), strings.TrimSpace(id)}, args...)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE work_orders SET `+set+`, updated_at = NOW() WHERE site_id = $1 AND work_order_id = $2`,
		allArgs...,
	)
	if err != nil {
		return fmt.Errorf("update work order: %w", mapConstraintErr(err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update work order: %w", err)
	}
	if rows == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *WorkOrderStore) UpdateStatus(ctx context.Context, siteID, id string, status domain.WorkOrderStatus) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("work order store not initialized")
	}
	if !status.Valid() {
		return domain.NewValidationError("status", "invalid work order status")
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE work_orders SET status = $3, updated_at = NOW() WHERE site_id = $1 AND work_order_id = $2`,
		strings.TrimSpace(siteID),
		strings.TrimSpace(id),
		string(status),
	)
	if err != nil {
		return fmt.Errorf("update work order status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update work order status: %w", err)
	}
	if rows == 0 {
		return repo.ErrNotFound
	}
	return nil
}
