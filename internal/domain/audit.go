package domain

import (
	"errors"
	"net"
	"strings"
	"time"
)

// AuditLogEntry is an immutable audit record as read back from storage.
// Writes go through the platform auditlog package.
type AuditLogEntry struct {
	EntryID         int64
	OccurredAt      time.Time
	SiteID          string
	Actor           string
	Action          string
	EntityType      string
	EntityID        string
	RequestID       string
	BulkActionID    string
	IP              net.IP
	UserAgent       string
	Changes         Metadata
	IntegritySHA256 string
}

func (e AuditLogEntry) Validate() error {
	if e.OccurredAt.IsZero() {
		return errors.New("occurred_at is required")
	}
	if strings.TrimSpace(e.Actor) == "" {
		return errors.New("actor is required")
	}
	if strings.TrimSpace(e.Action) == "" {
		return errors.New("action is required")
	}
	if strings.TrimSpace(e.EntityType) == "" {
		return errors.New("entity_type is required")
	}
	if strings.TrimSpace(e.EntityID) == "" {
		return errors.New("entity_id is required")
	}
	return nil
}
