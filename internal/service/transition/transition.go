// Package transition orchestrates lease and application status changes. Every
// change runs in one transaction: status write, immutable transition record,
// and audit entry commit together or not at all. The Apply* methods take the
// caller's transaction-bound Stores so other workflows (onboarding completion,
// bulk actions) can fold a validated transition into their own transaction.
package transition

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/parkrow-labs/parkrow-go/internal/domain"
	"github.com/parkrow-labs/parkrow-go/internal/platform/auditlog"
	"github.com/parkrow-labs/parkrow-go/internal/repo"
	"github.com/parkrow-labs/parkrow-go/internal/repo/postgres"
)

// RequestMeta carries caller context into transition records and audit entries.
type RequestMeta struct {
	RequestID    string
	BulkActionID string
	IP           net.IP
	UserAgent    string
}

type Input struct {
	SiteID                   string
	EntityID                 string
	ToStatus                 string
	Type                     domain.TransitionType
	ConfirmationAcknowledged bool
	BypassReason             string
	BypassCategory           domain.BypassCategory
	Actor                    string
	Meta                     RequestMeta
}

func (in Input) validate() error {
	if strings.TrimSpace(in.SiteID) == "" {
		return domain.NewValidationError("site_id", "is required")
	}
	if strings.TrimSpace(in.EntityID) == "" {
		return domain.NewValidationError("entity_id", "is required")
	}
	if strings.TrimSpace(in.ToStatus) == "" {
		return domain.NewValidationError("to_status", "is required")
	}
	if strings.TrimSpace(in.Actor) == "" {
		return domain.NewValidationError("actor", "is required")
	}
	if !in.transitionType().Valid() {
		return domain.NewValidationError("type", "must be manual or automatic")
	}
	return nil
}

func (in Input) transitionType() domain.TransitionType {
	if in.Type == "" {
		return domain.TransitionTypeManual
	}
	return in.Type
}

func (in Input) bypassRequested() bool {
	return strings.TrimSpace(in.BypassReason) != "" || in.BypassCategory != ""
}

func (in Input) validateBypass() error {
	if strings.TrimSpace(in.BypassReason) == "" {
		return domain.NewValidationError("bypass_reason", "is required")
	}
	if !in.BypassCategory.Valid() {
		return domain.NewValidationError("bypass_category", "must be one of data_correction, retro_active, administrative, other")
	}
	return nil
}

// LeaseResult carries the post-transition lease. Record is nil when the
// request was a same-status no-op.
type LeaseResult struct {
	Lease  domain.Lease
	Record *domain.TransitionRecord
}

type ApplicationResult struct {
	Application domain.Application
	Record      *domain.TransitionRecord
}

type Service struct {
	runner      Runner
	transitions repo.TransitionStore
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string
}

func NewService(db *sql.DB, logger *slog.Logger) *Service {
	return newService(SQLRunner{DB: db}, postgres.NewTransitionStore(db), logger)
}

func newService(runner Runner, transitions repo.TransitionStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		runner:      runner,
		transitions: transitions,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

func (s *Service) TransitionLease(ctx context.Context, in Input) (LeaseResult, error) {
	if s == nil || s.runner == nil {
		return LeaseResult{}, errors.New("transition service not initialized")
	}
	var result LeaseResult
	err := s.runner.InTx(ctx, func(ctx context.Context, st Stores) error {
		var err error
		result, err = s.ApplyLease(ctx, st, in)
		return err
	})
	if err != nil {
		return LeaseResult{}, err
	}
	return result, nil
}

// ApplyLease runs the lease transition flow against the caller's
// transaction-bound stores. The caller owns commit and rollback.
func (s *Service) ApplyLease(ctx context.Context, st Stores, in Input) (LeaseResult, error) {
	if err := in.validate(); err != nil {
		return LeaseResult{}, err
	}

	lease, err := st.Leases.GetForUpdate(ctx, in.SiteID, in.EntityID)
	if err != nil {
		return LeaseResult{}, err
	}
	to := domain.LeaseStatus(strings.TrimSpace(in.ToStatus))
	if to == lease.Status {
		return LeaseResult{Lease: lease}, nil
	}

	bypassed, err := checkTransition(in, domain.CanTransitionLease(lease.Status, to), func() error {
		return domain.ValidateTransitionLease(lease.Status, to)
	})
	if err != nil {
		return LeaseResult{}, err
	}

	now := s.now()
	if err := st.Leases.UpdateStatus(ctx, in.SiteID, lease.ID, lease.Status, to, lease.Version); err != nil {
		return LeaseResult{}, err
	}

	snapshot, err := checklistSnapshot(ctx, st.Checklists, in.SiteID, lease.ID)
	if err != nil {
		return LeaseResult{}, err
	}

	record := domain.TransitionRecord{
		ID:                s.newID(),
		SiteID:            strings.TrimSpace(in.SiteID),
		Domain:            domain.TransitionDomainLease,
		EntityID:          lease.ID,
		FromStatus:        string(lease.Status),
		ToStatus:          string(to),
		Type:              in.transitionType(),
		ConfirmationAck:   in.ConfirmationAcknowledged,
		ChecklistSnapshot: snapshot,
		Actor:             strings.TrimSpace(in.Actor),
		CreatedAt:         now,
	}
	if bypassed {
		record.BypassReason = strings.TrimSpace(in.BypassReason)
		record.BypassCategory = in.BypassCategory
	}
	if err := record.Validate(); err != nil {
		return LeaseResult{}, err
	}
	if err := st.Transitions.Insert(ctx, record); err != nil {
		return LeaseResult{}, err
	}

	// Transition audit is must-succeed: a failed insert aborts the whole
	// transition when the caller rolls back.
	if err := st.Audit.Append(ctx, transitionEvent(in, record, now)); err != nil {
		return LeaseResult{}, fmt.Errorf("append audit entry: %w", err)
	}

	lease.Status = to
	lease.Version++
	lease.UpdatedAt = now
	return LeaseResult{Lease: lease, Record: &record}, nil
}

func (s *Service) TransitionApplication(ctx context.Context, in Input) (ApplicationResult, error) {
	if s == nil || s.runner == nil {
		return ApplicationResult{}, errors.New("transition service not initialized")
	}
	var result ApplicationResult
	err := s.runner.InTx(ctx, func(ctx context.Context, st Stores) error {
		var err error
		result, err = s.ApplyApplication(ctx, st, in)
		return err
	})
	if err != nil {
		return ApplicationResult{}, err
	}
	return result, nil
}

// ApplyApplication is the application counterpart of ApplyLease.
func (s *Service) ApplyApplication(ctx context.Context, st Stores, in Input) (ApplicationResult, error) {
	if err := in.validate(); err != nil {
		return ApplicationResult{}, err
	}

	application, err := st.Applications.GetForUpdate(ctx, in.SiteID, in.EntityID)
	if err != nil {
		return ApplicationResult{}, err
	}
	to := domain.ApplicationStatus(strings.TrimSpace(in.ToStatus))
	if to == application.Status {
		return ApplicationResult{Application: application}, nil
	}

	bypassed, err := checkTransition(in, domain.CanTransitionApplication(application.Status, to), func() error {
		return domain.ValidateTransitionApplication(application.Status, to)
	})
	if err != nil {
		return ApplicationResult{}, err
	}

	now := s.now()
	if err := st.Applications.UpdateStatus(ctx, in.SiteID, application.ID, application.Status, to); err != nil {
		return ApplicationResult{}, err
	}

	record := domain.TransitionRecord{
		ID:              s.newID(),
		SiteID:          strings.TrimSpace(in.SiteID),
		Domain:          domain.TransitionDomainApplication,
		EntityID:        application.ID,
		FromStatus:      string(application.Status),
		ToStatus:        string(to),
		Type:            in.transitionType(),
		ConfirmationAck: in.ConfirmationAcknowledged,
		Actor:           strings.TrimSpace(in.Actor),
		CreatedAt:       now,
	}
	if bypassed {
		record.BypassReason = strings.TrimSpace(in.BypassReason)
		record.BypassCategory = in.BypassCategory
	}
	if err := record.Validate(); err != nil {
		return ApplicationResult{}, err
	}
	if err := st.Transitions.Insert(ctx, record); err != nil {
		return ApplicationResult{}, err
	}

	if err := st.Audit.Append(ctx, transitionEvent(in, record, now)); err != nil {
		return ApplicationResult{}, fmt.Errorf("append audit entry: %w", err)
	}

	application.Status = to
	application.UpdatedAt = now
	return ApplicationResult{Application: application, Record: &record}, nil
}

// checkTransition decides whether the change may proceed. A bypass overrides
// the adjacency table, never the status enum; bypass fields on an already
// legal transition are ignored so bypassed stats only count real overrides.
func checkTransition(in Input, legal bool, validate func() error) (bool, error) {
	if legal {
		return false, nil
	}
	verr := validate()
	if !in.bypassRequested() {
		return false, verr
	}
	var vErr *domain.ValidationError
	if errors.As(verr, &vErr) {
		return false, verr
	}
	if err := in.validateBypass(); err != nil {
		return false, err
	}
	return true, nil
}

func checklistSnapshot(ctx context.Context, checklists repo.ChecklistStore, siteID, leaseID string) (json.RawMessage, error) {
	checklist, err := checklists.GetByLease(ctx, siteID, leaseID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checklist snapshot: %w", err)
	}
	snapshot, err := json.Marshal(struct {
		Steps          []domain.ChecklistStep `json:"steps"`
		TotalSteps     int                    `json:"total_steps"`
		CompletedSteps int                    `json:"completed_steps"`
	}{
		Steps:          checklist.Steps,
		TotalSteps:     checklist.TotalSteps,
		CompletedSteps: checklist.CompletedSteps,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal checklist snapshot: %w", err)
	}
	return snapshot, nil
}

func transitionEvent(in Input, record domain.TransitionRecord, now time.Time) auditlog.Event {
	changes := map[string]any{
		"from":          record.FromStatus,
		"to":            record.ToStatus,
		"type":          string(record.Type),
		"bypassed":      record.Bypassed(),
		"transition_id": record.ID,
	}
	if record.Bypassed() {
		changes["bypass_reason"] = record.BypassReason
		changes["bypass_category"] = string(record.BypassCategory)
	}
	return auditlog.Event{
		OccurredAt:   now,
		SiteID:       record.SiteID,
		Actor:        record.Actor,
		Action:       string(record.Domain) + ".transition",
		EntityType:   string(record.Domain),
		EntityID:     record.EntityID,
		RequestID:    in.Meta.RequestID,
		BulkActionID: in.Meta.BulkActionID,
		IP:           in.Meta.IP,
		UserAgent:    in.Meta.UserAgent,
		Changes:      changes,
	}
}

func (s *Service) ListTransitions(ctx context.Context, siteID string, entityDomain domain.TransitionDomain, entityID string, filter repo.TransitionFilter) ([]domain.TransitionRecord, error) {
	if s == nil || s.transitions == nil {
		return nil, errors.New("transition service not initialized")
	}
	return s.transitions.List(ctx, siteID, entityDomain, entityID, filter)
}

func (s *Service) LatestTransition(ctx context.Context, siteID string, entityDomain domain.TransitionDomain, entityID string) (domain.TransitionRecord, error) {
	if s == nil || s.transitions == nil {
		return domain.TransitionRecord{}, errors.New("transition service not initialized")
	}
	return s.transitions.Latest(ctx, siteID, entityDomain, entityID)
}

func (s *Service) TransitionStats(ctx context.Context, siteID string, entityDomain domain.TransitionDomain, entityID string) (repo.TransitionStats, error) {
	if s == nil || s.transitions == nil {
		return repo.TransitionStats{}, errors.New("transition service not initialized")
	}
	return s.transitions.Stats(ctx, siteID, entityDomain, entityID)
}
