package domain

import (
	"bytes"
	"errors"
	"fmt"
)

// EnsureTransitionRecordImmutable enforces immutability for transition records.
func EnsureTransitionRecordImmutable(before, after TransitionRecord) error {
	if before.ID == "" || after.ID == "" {
		return errors.New("transition record ids are required")
	}
	if before.ID != after.ID {
		return fmt.Errorf("transition record id changed from %q to %q", before.ID, after.ID)
	}
	if before.SiteID != after.SiteID {
		return errors.New("site id is immutable")
	}
	if before.Domain != after.Domain {
		return errors.New("domain is immutable")
	}
	if before.EntityID != after.EntityID {
		return errors.New("entity id is immutable")
	}
	if before.FromStatus != after.FromStatus {
		return errors.New("from status is immutable")
	}
	if before.ToStatus != after.ToStatus {
		return errors.New("to status is immutable")
	}
	if before.Type != after.Type {
		return errors.New("transition type is immutable")
	}
	if before.ConfirmationAck != after.ConfirmationAck {
		return errors.New("confirmation ack is immutable")
	}
	if before.BypassReason != after.BypassReason {
		return errors.New("bypass reason is immutable")
	}
	if before.BypassCategory != after.BypassCategory {
		return errors.New("bypass category is immutable")
	}
	if !bytes.Equal(before.ChecklistSnapshot, after.ChecklistSnapshot) {
		return errors.New("checklist snapshot is immutable")
	}
	if before.Actor != after.Actor {
		return errors.New("actor is immutable")
	}
	if !before.CreatedAt.Equal(after.CreatedAt) {
		return errors.New("created at is immutable")
	}
	return nil
}
