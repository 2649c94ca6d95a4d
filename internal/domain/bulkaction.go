package domain

import (
	"errors"
	"strings"
	"time"
)

// BulkActionType names an operation applied to many applications at once.
type BulkActionType string

const (
	BulkActionApprove           BulkActionType = "approve"
	BulkActionReject            BulkActionType = "reject"
	BulkActionSetStatus         BulkActionType = "set_status"
	BulkActionSendEmail         BulkActionType = "send_email"
	BulkActionGenerateDocuments BulkActionType = "generate_documents"
	BulkActionExport            BulkActionType = "export"
)

// BulkAction records one bulk operation over applications. The record is
// inserted before any item runs and finalized exactly once with the counts.
type BulkAction struct {
	ID               string
	SiteID           string
	Type             BulkActionType
	PerformedBy      string
	ApplicationCount int
	SuccessCount     int
	FailureCount     int
	Params           Metadata
	CreatedAt        time.Time
	FinalizedAt      *time.Time
}

func (b BulkAction) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return errors.New("bulk action id is required")
	}
	if strings.TrimSpace(b.SiteID) == "" {
		return errors.New("site id is required")
	}
	if !b.Type.Valid() {
		return errors.New("invalid bulk action type")
	}
	if strings.TrimSpace(b.PerformedBy) == "" {
		return errors.New("performed by is required")
	}
	if b.ApplicationCount <= 0 {
		return errors.New("application count must be positive")
	}
	if b.SuccessCount < 0 || b.FailureCount < 0 {
		return errors.New("counts must not be negative")
	}
	if b.SuccessCount+b.FailureCount > b.ApplicationCount {
		return errors.New("counts exceed application count")
	}
	return nil
}

// Finalized reports whether the action has recorded its final counts.
func (b BulkAction) Finalized() bool {
	return b.FinalizedAt != nil
}

func (t BulkActionType) Valid() bool {
	switch t {
	case BulkActionApprove, BulkActionReject, BulkActionSetStatus,
		BulkActionSendEmail, BulkActionGenerateDocuments, BulkActionExport:
		return true
	default:
		return false
	}
}

func BulkActionTypes() []BulkActionType {
	return []BulkActionType{
		BulkActionApprove,
		BulkActionReject,
		BulkActionSetStatus,
		BulkActionSendEmail,
		BulkActionGenerateDocuments,
		BulkActionExport,
	}
}
