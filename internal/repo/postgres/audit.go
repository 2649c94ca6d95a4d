package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strings"

	"github.com/parkrow-labs/parkrow-go/internal/domain"
	"github.com/parkrow-labs/parkrow-go/internal/repo"
)

const auditColumns = `entry_id, occurred_at, site_id, actor, action, entity_type, entity_id, request_id, bulk_action_id, ip, user_agent, changes, integrity_sha256`

func scanAuditEntry(row rowScanner) (domain.AuditLogEntry, error) {
	var (
		e                       domain.AuditLogEntry
		siteID, requestID       sql.NullString
		bulkActionID, userAgent sql.NullString
		ip                      sql.NullString
		changesJSON             []byte
	)
	err := row.Scan(
		&e.EntryID, &e.OccurredAt, &siteID, &e.Actor, &e.Action, &e.EntityType,
		&e.EntityID, &requestID, &bulkActionID, &ip, &userAgent, &changesJSON,
		&e.IntegritySHA256,
	)
	if err != nil {
		return domain.AuditLogEntry{}, err
	}
	e.SiteID = siteID.String
	e.RequestID = requestID.String
	e.BulkActionID = bulkActionID.String
	e.UserAgent = userAgent.String
	if ip.Valid && ip.String != "" {
		e.IP = net.ParseIP(ip.String)
	}
	changes, err := decodeMetadata(changesJSON)
	if err != nil {
		return domain.AuditLogEntry{}, fmt.Errorf("decode changes: %w", err)
	}
	e.Changes = changes
	return e, nil
}

// AuditStore reads the append-only audit log. There is no insert here; writes
// go through the platform auditlog package so every service shares one path.
type AuditStore struct {
	db DB
}

func NewAuditStore(db DB) *AuditStore {
	if db == nil {
		return nil
	}
	return &AuditStore{db: db}
}

func (s *AuditStore) Get(ctx context.Context, entryID int64) (domain.AuditLogEntry, error) {
	if s == nil || s.db == nil {
		return domain.AuditLogEntry{}, fmt.Errorf("audit store not initialized")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+auditColumns+` FROM audit_log_entries WHERE entry_id = $1`,
		entryID,
	)
	entry, err := scanAuditEntry(row)
	if err != nil {
		return domain.AuditLogEntry{}, handleNotFound(err)
	}
	return entry, nil
}

func buildAuditListQuery(filter repo.AuditFilter) (string, []any) {
	args := make([]any, 0, 8)
	clauses := make([]string, 0, 8)

	add := func(column, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		args = append(args, strings.TrimSpace(value))
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("site_id", filter.SiteID)
	add("actor", filter.Actor)
	add("action", filter.Action)
	add("entity_type", filter.EntityType)
	add("entity_id", filter.EntityID)
	add("bulk_action_id", filter.BulkActionID)
	add("request_id", filter.RequestID)

	if !filter.Since.IsZero() {
		args = append(args, filter.Since.UTC())
		clauses = append(clauses, fmt.Sprintf("occurred_at >= $%d", len(args)))
	}
	if !filter.Until.IsZero() {
		args = append(args, filter.Until.UTC())
		clauses = append(clauses, fmt.Sprintf("occurred_at <= $%d", len(args)))
	}

	query := `SELECT ` + auditColumns + ` FROM audit_log_entries`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY entry_id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}

func (s *AuditStore) List(ctx context.Context, filter repo.AuditFilter) ([]domain.AuditLogEntry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("audit store not initialized")
	}
	entries := make([]domain.AuditLogEntry, 0)
	err := s.ForEach(ctx, filter, func(entry domain.AuditLogEntry) error {
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ForEach streams matching entries to fn in entry_id order, newest first.
func (s *AuditStore) ForEach(ctx context.Context, filter repo.AuditFilter, fn func(domain.AuditLogEntry) error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("audit store not initialized")
	}
	query, args := buildAuditListQuery(filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return fmt.Errorf("scan audit entry: %w", err)
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list audit entries: %w", err)
	}
	return nil
}
