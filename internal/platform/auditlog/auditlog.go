package auditlog

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Event is one append-only audit log entry. Entries are never updated or
// deleted after insert.
type Event struct {
	OccurredAt   time.Time
	SiteID       string
	Actor        string
	Action       string
	EntityType   string
	EntityID     string
	RequestID    string
	BulkActionID string
	IP           net.IP
	UserAgent    string
	Changes      any
}

type QueryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Appender abstracts audit insertion so workflow services can run against a
// transaction in production and an in-memory fake in tests.
type Appender interface {
	Append(ctx context.Context, event Event) error
}

// TxAppender appends through an open transaction or plain connection.
type TxAppender struct {
	Q QueryRower
}

func (a TxAppender) Append(ctx context.Context, event Event) error {
	_, err := Insert(ctx, a.Q, event)
	return err
}

func (e Event) Validate() error {
	if e.OccurredAt.IsZero() {
		return errors.New("OccurredAt is required")
	}
	if strings.TrimSpace(e.Actor) == "" {
		return errors.New("Actor is required")
	}
	if strings.TrimSpace(e.Action) == "" {
		return errors.New("Action is required")
	}
	if strings.TrimSpace(e.EntityType) == "" {
		return errors.New("EntityType is required")
	}
	if strings.TrimSpace(e.EntityID) == "" {
		return errors.New("EntityID is required")
	}
	return nil
}

func Insert(ctx context.Context, q QueryRower, event Event) (int64, error) {
	if q == nil {
		return 0, errors.New("queryer is required")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := event.Validate(); err != nil {
		return 0, err
	}

	changes := event.Changes
	if changes == nil {
		changes = map[string]any{}
	}
	changesJSON, err := json.Marshal(changes)
	if err != nil {
		return 0, fmt.Errorf("marshal changes: %w", err)
	}

	ipStr := strings.TrimSpace(event.IP.String())
	integrity, err := ComputeIntegritySHA256(event, changesJSON)
	if err != nil {
		return 0, err
	}

	var siteID sql.NullString
	if strings.TrimSpace(event.SiteID) != "" {
		siteID = sql.NullString{String: strings.TrimSpace(event.SiteID), Valid: true}
	}
	var requestID sql.NullString
	if strings.TrimSpace(event.RequestID) != "" {
		requestID = sql.NullString{String: strings.TrimSpace(event.RequestID), Valid: true}
	}
	var bulkActionID sql.NullString
	if strings.TrimSpace(event.BulkActionID) != "" {
		bulkActionID = sql.NullString{String: strings.TrimSpace(event.BulkActionID), Valid: true}
	}
	var ip sql.NullString
	if ipStr != "" && ipStr != "<nil>" {
		ip = sql.NullString{String: ipStr, Valid: true}
	}
	var userAgent sql.NullString
	if strings.TrimSpace(event.UserAgent) != "" {
		userAgent = sql.NullString{String: strings.TrimSpace(event.UserAgent), Valid: true}
	}

	var id int64
	err = q.QueryRowContext(
		ctx,
		`INSERT INTO audit_log_entries (
			occurred_at,
			site_id,
			actor,
			action,
			entity_type,
			entity_id,
			request_id,
			bulk_action_id,
			ip,
			user_agent,
			changes,
			integrity_sha256
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING entry_id`,
		event.OccurredAt.UTC(),
		siteID,
		strings.TrimSpace(event.Actor),
		strings.TrimSpace(event.Action),
		strings.TrimSpace(event.EntityType),
		strings.TrimSpace(event.EntityID),
		requestID,
		bulkActionID,
		ip,
		userAgent,
		changesJSON,
		integrity,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert audit entry: %w", err)
	}
	return id, nil
}

func ComputeIntegritySHA256(event Event, changesJSON []byte) (string, error) {
	type integrityInput struct {
		OccurredAt   time.Time       `json:"occurred_at"`
		SiteID       string          `json:"site_id,omitempty"`
		Actor        string          `json:"actor"`
		Action       string          `json:"action"`
		EntityType   string          `json:"entity_type"`
		EntityID     string          `json:"entity_id"`
		RequestID    string          `json:"request_id,omitempty"`
		BulkActionID string          `json:"bulk_action_id,omitempty"`
		IP           string          `json:"ip,omitempty"`
		UserAgent    string          `json:"user_agent,omitempty"`
		Changes      json.RawMessage `json:"changes"`
	}

	ipStr := strings.TrimSpace(event.IP.String())
	if ipStr == "<nil>" {
		ipStr = ""
	}

	in := integrityInput{
		OccurredAt:   event.OccurredAt.UTC(),
		SiteID:       strings.TrimSpace(event.SiteID),
		Actor:        strings.TrimSpace(event.Actor),
		Action:       strings.TrimSpace(event.Action),
		EntityType:   strings.TrimSpace(event.EntityType),
		EntityID:     strings.TrimSpace(event.EntityID),
		RequestID:    strings.TrimSpace(event.RequestID),
		BulkActionID: strings.TrimSpace(event.BulkActionID),
		IP:           ipStr,
		UserAgent:    strings.TrimSpace(event.UserAgent),
		Changes:      changesJSON,
	}

	blob, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("marshal integrity: %w", err)
	}
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:]), nil
}
