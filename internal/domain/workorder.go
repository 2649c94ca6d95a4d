package domain

import (
	"errors"
	"strings"
	"time"
)

// WorkOrderPriority ranks maintenance urgency.
type WorkOrderPriority string

const (
	WorkOrderPriorityLow       WorkOrderPriority = "low"
	WorkOrderPriorityMedium    WorkOrderPriority = "medium"
	WorkOrderPriorityHigh      WorkOrderPriority = "high"
	WorkOrderPriorityEmergency WorkOrderPriority = "emergency"
)

// WorkOrderStatus is a plain validated enum. Work orders move freely between
// statuses; only leases and applications carry transition tables.
type WorkOrderStatus string

const (
	WorkOrderStatusOpen       WorkOrderStatus = "open"
	WorkOrderStatusAssigned   WorkOrderStatus = "assigned"
	WorkOrderStatusInProgress WorkOrderStatus = "in_progress"
	WorkOrderStatusOnHold     WorkOrderStatus = "on_hold"
	WorkOrderStatusCompleted  WorkOrderStatus = "completed"
	WorkOrderStatusCanceled   WorkOrderStatus = "canceled"
)

// WorkOrder is a maintenance request against a property or unit.
type WorkOrder struct {
	ID          string
	SiteID      string
	PropertyID  string
	UnitID      string
	Title       string
	Description string
	Priority    WorkOrderPriority
	Status      WorkOrderStatus
	AssignedTo  string
	Metadata    Metadata
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CreatedBy   string
}

func (w WorkOrder) Validate() error {
	if strings.TrimSpace(w.ID) == "" {
		return errors.New("work order id is required")
	}
	if strings.TrimSpace(w.SiteID) == "" {
		return errors.New("site id is required")
	}
	if strings.TrimSpace(w.PropertyID) == "" {
		return errors.New("property id is required")
	}
	if strings.TrimSpace(w.Title) == "" {
		return errors.New("title is required")
	}
	if !w.Priority.Valid() {
		return errors.New("invalid priority")
	}
	if !w.Status.Valid() {
		return errors.New("invalid work order status")
	}
	return nil
}

func (p WorkOrderPriority) Valid() bool {
	switch p {
	case WorkOrderPriorityLow, WorkOrderPriorityMedium, WorkOrderPriorityHigh, WorkOrderPriorityEmergency:
		return true
	default:
		return false
	}
}

func (s WorkOrderStatus) Valid() bool {
	switch s {
	case WorkOrderStatusOpen, WorkOrderStatusAssigned, WorkOrderStatusInProgress,
		WorkOrderStatusOnHold, WorkOrderStatusCompleted, WorkOrderStatusCanceled:
		return true
	default:
		return false
	}
}

func WorkOrderStatuses() []WorkOrderStatus {
	return []WorkOrderStatus{
		WorkOrderStatusOpen,
		WorkOrderStatusAssigned,
		WorkOrderStatusInProgress,
		WorkOrderStatusOnHold,
		WorkOrderStatusCompleted,
		WorkOrderStatusCanceled,
	}
}
