package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LeaseStatus represents the lifecycle state of a lease.
type LeaseStatus string

const (
	LeaseStatusDraft            LeaseStatus = "draft"
	LeaseStatusPendingSignature LeaseStatus = "pending_signature"
	LeaseStatusSigned           LeaseStatus = "signed"
	LeaseStatusActive           LeaseStatus = "active"
	LeaseStatusExpiringSoon     LeaseStatus = "expiring_soon"
	LeaseStatusExpired          LeaseStatus = "expired"
	LeaseStatusTerminated       LeaseStatus = "terminated"
)

// Lease binds a tenant to a unit for a term. Version increments on every
// status transition for optimistic concurrency.
type Lease struct {
	ID                string
	SiteID            string
	PropertyID        string
	UnitID            string
	TenantID          string
	Status            LeaseStatus
	Rent              decimal.Decimal
	Deposit           decimal.Decimal
	StartDate         time.Time
	EndDate           time.Time
	OnboardingPending bool
	Version           int
	Metadata          Metadata
	CreatedAt         time.Time
	UpdatedAt         time.Time
	CreatedBy         string
}

func (l Lease) Validate() error {
	if strings.TrimSpace(l.ID) == "" {
		return errors.New("lease id is required")
	}
	if strings.TrimSpace(l.SiteID) == "" {
		return errors.New("site id is required")
	}
	if strings.TrimSpace(l.PropertyID) == "" {
		return errors.New("property id is required")
	}
	if strings.TrimSpace(l.UnitID) == "" {
		return errors.New("unit id is required")
	}
	if strings.TrimSpace(l.TenantID) == "" {
		return errors.New("tenant id is required")
	}
	if !l.Status.Valid() {
		return errors.New("invalid lease status")
	}
	if l.Rent.IsNegative() {
		return errors.New("rent must not be negative")
	}
	if l.Deposit.IsNegative() {
		return errors.New("deposit must not be negative")
	}
	if !l.StartDate.IsZero() && !l.EndDate.IsZero() && l.EndDate.Before(l.StartDate) {
		return errors.New("end date before start date")
	}
	return nil
}

func (s LeaseStatus) Valid() bool {
	switch s {
	case LeaseStatusDraft, LeaseStatusPendingSignature, LeaseStatusSigned,
		LeaseStatusActive, LeaseStatusExpiringSoon, LeaseStatusExpired, LeaseStatusTerminated:
		return true
	default:
		return false
	}
}

func LeaseStatuses() []LeaseStatus {
	return []LeaseStatus{
		LeaseStatusDraft,
		LeaseStatusPendingSignature,
		LeaseStatusSigned,
		LeaseStatusActive,
		LeaseStatusExpiringSoon,
		LeaseStatusExpired,
		LeaseStatusTerminated,
	}
}
