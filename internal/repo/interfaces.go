package repo

import (
	"context"
	"time"

	"github.com/parkrow-labs/parkrow-go/internal/domain"
)

type PropertyFilter struct {
	Kind   domain.PropertyKind
	City   string
	Query  string
	Limit  int
	Offset int
}

type UnitFilter struct {
	PropertyID string
	Occupancy  domain.Occupancy
	Limit      int
	Offset     int
}

type TenantFilter struct {
	Query  string
	Limit  int
	Offset int
}

type LeaseFilter struct {
	PropertyID        string
	UnitID            string
	TenantID          string
	Status            domain.LeaseStatus
	OnboardingPending *bool
	Limit             int
	Offset            int
}

type ApplicationFilter struct {
	Status     domain.ApplicationStatus
	PropertyID string
	Query      string
	Limit      int
	Offset     int
}

type WorkOrderFilter struct {
	PropertyID string
	Status     domain.WorkOrderStatus
	Priority   domain.WorkOrderPriority
	Limit      int
	Offset     int
}

type TransitionFilter struct {
	BypassedOnly bool
	Limit        int
	Offset       int
}

type BulkActionFilter struct {
	Type   domain.BulkActionType
	Limit  int
	Offset int
}

type DocumentFilter struct {
	EntityType domain.DocumentEntityType
	EntityID   string
	Kind       domain.DocumentKind
	Limit      int
	Offset     int
}

type AuditFilter struct {
	SiteID       string
	Actor        string
	Action       string
	EntityType   string
	EntityID     string
	BulkActionID string
	RequestID    string
	Since        time.Time
	Until        time.Time
	Limit        int
	Offset       int
}

// TransitionStats summarizes the transition history of one entity.
type TransitionStats struct {
	Total     int
	Manual    int
	Automatic int
	Bypassed  int
}

// PropertyStore manages properties.
type PropertyStore interface {
	Create(ctx context.Context, property domain.Property) error
	Get(ctx context.Context, siteID, id string) (domain.Property, error)
	List(ctx context.Context, siteID string, filter PropertyFilter) ([]domain.Property, error)
	Update(ctx context.Context, siteID, id string, patch map[string]any) error
	Delete(ctx context.Context, siteID, id string) error
}

// UnitStore manages units within properties.
type UnitStore interface {
	Create(ctx context.Context, unit domain.Unit) error
	Get(ctx context.Context, siteID, id string) (domain.Unit, error)
	List(ctx context.Context, siteID string, filter UnitFilter) ([]domain.Unit, error)
	Update(ctx context.Context, siteID, id string, patch map[string]any) error
}

// TenantStore manages renters.
type TenantStore interface {
	Create(ctx context.Context, tenant domain.Tenant) error
	Get(ctx context.Context, siteID, id string) (domain.Tenant, error)
	List(ctx context.Context, siteID string, filter TenantFilter) ([]domain.Tenant, error)
	Update(ctx context.Context, siteID, id string, patch map[string]any) error
}

// WorkOrderStore manages maintenance work orders.
type WorkOrderStore interface {
	Create(ctx context.Context, order domain.WorkOrder) error
	Get(ctx context.Context, siteID, id string) (domain.WorkOrder, error)
	List(ctx context.Context, siteID string, filter WorkOrderFilter) ([]domain.WorkOrder, error)
	Update(ctx context.Context, siteID, id string, patch map[string]any) error
	UpdateStatus(ctx context.Context, siteID, id string, status domain.WorkOrderStatus) error
}

// LeaseStore manages leases. GetForUpdate locks the row for the transaction;
// UpdateStatus guards on the expected status and version.
type LeaseStore interface {
	Create(ctx context.Context, lease domain.Lease) error
	Get(ctx context.Context, siteID, id string) (domain.Lease, error)
	GetForUpdate(ctx context.Context, siteID, id string) (domain.Lease, error)
	List(ctx context.Context, siteID string, filter LeaseFilter) ([]domain.Lease, error)
	Update(ctx context.Context, siteID, id string, patch map[string]any) error
	UpdateStatus(ctx context.Context, siteID, id string, from, to domain.LeaseStatus, version int) error
	SetOnboardingPending(ctx context.Context, siteID, id string, pending bool) error
}

// ApplicationStore manages rental applications.
type ApplicationStore interface {
	Create(ctx context.Context, application domain.Application) error
	Get(ctx context.Context, siteID, id string) (domain.Application, error)
	GetForUpdate(ctx context.Context, siteID, id string) (domain.Application, error)
	List(ctx context.Context, siteID string, filter ApplicationFilter) ([]domain.Application, error)
	Update(ctx context.Context, siteID, id string, patch map[string]any) error
	UpdateStatus(ctx context.Context, siteID, id string, from, to domain.ApplicationStatus) error
	SetScreening(ctx context.Context, siteID, id string, result domain.ScreeningResult) error
	SetLease(ctx context.Context, siteID, id, leaseID string) error
}

// ChecklistStore manages lease onboarding checklists, one per lease.
type ChecklistStore interface {
	Create(ctx context.Context, checklist domain.OnboardingChecklist) error
	GetByLease(ctx context.Context, siteID, leaseID string) (domain.OnboardingChecklist, error)
	GetByLeaseForUpdate(ctx context.Context, siteID, leaseID string) (domain.OnboardingChecklist, error)
	UpdateSteps(ctx context.Context, siteID, leaseID string, steps []domain.ChecklistStep) error
}

// TransitionStore appends and reads immutable transition records.
type TransitionStore interface {
	Insert(ctx context.Context, record domain.TransitionRecord) error
	List(ctx context.Context, siteID string, entityDomain domain.TransitionDomain, entityID string, filter TransitionFilter) ([]domain.TransitionRecord, error)
	Latest(ctx context.Context, siteID string, entityDomain domain.TransitionDomain, entityID string) (domain.TransitionRecord, error)
	Stats(ctx context.Context, siteID string, entityDomain domain.TransitionDomain, entityID string) (TransitionStats, error)
}

// BulkActionStore records bulk operations. Insert happens before any item
// runs; Finalize sets the counts exactly once.
type BulkActionStore interface {
	Insert(ctx context.Context, action domain.BulkAction) error
	Finalize(ctx context.Context, siteID, id string, successCount, failureCount int, finalizedAt time.Time) error
	Get(ctx context.Context, siteID, id string) (domain.BulkAction, error)
	List(ctx context.Context, siteID string, filter BulkActionFilter) ([]domain.BulkAction, error)
}

// DocumentStore manages document metadata; payloads live in the object store.
type DocumentStore interface {
	Insert(ctx context.Context, document domain.Document) error
	Get(ctx context.Context, siteID, id string) (domain.Document, error)
	List(ctx context.Context, siteID string, filter DocumentFilter) ([]domain.Document, error)
	UpdateObjectInfo(ctx context.Context, siteID, id string, sizeBytes int64, metadata domain.Metadata) error
	Delete(ctx context.Context, siteID, id string) error
}

// AuditStore reads the append-only audit log. Writes go through the platform
// auditlog package.
type AuditStore interface {
	Get(ctx context.Context, entryID int64) (domain.AuditLogEntry, error)
	List(ctx context.Context, filter AuditFilter) ([]domain.AuditLogEntry, error)
	// ForEach visits matching entries one row at a time so exports never
	// materialize the whole result set. A fn error stops the scan.
	ForEach(ctx context.Context, filter AuditFilter, fn func(domain.AuditLogEntry) error) error
}
