package auditlog

import (
	"context"
	"database/sql"
	"net"
	"strings"

	"github.com/parkrow-labs/parkrow-go/internal/platform/auth"
)

// InsertAuthDeny records a rejected request in the audit trail. Denials use
// the synthetic entity type "http" with the method and path as the entity
// id, so they filter cleanly alongside the domain events.
func InsertAuthDeny(ctx context.Context, db *sql.DB, service string, event auth.DenyEvent) error {
	actor := strings.TrimSpace(event.Subject)
	if actor == "" {
		actor = "anonymous"
	}

	_, err := Insert(ctx, db, Event{
		OccurredAt: event.Time,
		Actor:      actor,
		Action:     "auth." + strings.TrimSpace(event.Reason),
		EntityType: "http",
		EntityID:   event.Method + " " + event.Path,
		RequestID:  event.RequestID,
		IP:         remoteIP(event.RemoteAddr),
		UserAgent:  event.UserAgent,
		Changes: map[string]any{
			"service": service,
			"status":  event.Status,
			"reason":  event.Reason,
			"error":   event.Error,
			"subject": event.Subject,
			"email":   event.Email,
			"roles":   event.Roles,
		},
	})
	return err
}

// remoteIP strips the port from an http RemoteAddr. It returns nil when the
// address does not parse; the audit row then stores a null ip.
func remoteIP(remoteAddr string) net.IP {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return nil
	}
	return net.ParseIP(host)
}
