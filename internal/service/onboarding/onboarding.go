// Package onboarding manages the lease onboarding checklist lifecycle:
// seeding a checklist when a lease is created, step updates, and the
// completion gate that lets a lease go active.
//
// Completion is the one path that may move a lease to active from any
// pre-active status. It rides the transition service inside its own
// transaction, so the status change is still validated against the enum,
// recorded, and audited like every other transition.
package onboarding

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parkrow-labs/parkrow-go/internal/checklist"
	"github.com/parkrow-labs/parkrow-go/internal/domain"
	"github.com/parkrow-labs/parkrow-go/internal/platform/auditlog"
	"github.com/parkrow-labs/parkrow-go/internal/repo"
	"github.com/parkrow-labs/parkrow-go/internal/repo/postgres"
	"github.com/parkrow-labs/parkrow-go/internal/service/transition"
)

// completionBypassReason marks the automatic activation performed by
// Complete. From signed the move is legal and the reason is ignored; from
// draft or pending_signature it is recorded as a bypass.
const completionBypassReason = "onboarding completed"

// Service orchestrates checklist reads and writes. Workflow writes run
// through the shared transition runner; audit entries for plain CRUD-style
// changes are best-effort and appended after commit.
type Service struct {
	runner      transition.Runner
	transitions *transition.Service
	checklists  repo.ChecklistStore
	audit       auditlog.Appender
	template    checklist.Template
	logger      *slog.Logger

	now   func() time.Time
	newID func() string
}

func NewService(db *sql.DB, transitions *transition.Service, tpl checklist.Template, logger *slog.Logger) *Service {
	return newService(
		transition.SQLRunner{DB: db},
		transitions,
		postgres.NewChecklistStore(db),
		auditlog.TxAppender{Q: db},
		tpl,
		logger,
	)
}

func newService(runner transition.Runner, transitions *transition.Service, checklists repo.ChecklistStore, audit auditlog.Appender, tpl checklist.Template, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		runner:      runner,
		transitions: transitions,
		checklists:  checklists,
		audit:       audit,
		template:    tpl,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

// View is a checklist with its derived numbers, the shape handlers return.
type View struct {
	Checklist       domain.OnboardingChecklist
	Progress        int
	MissingRequired int
}

func newView(cl domain.OnboardingChecklist) View {
	return View{
		Checklist:       cl,
		Progress:        checklist.Progress(cl.CompletedSteps, cl.TotalSteps),
		MissingRequired: checklist.MissingRequired(cl.Steps),
	}
}

type CreateInput struct {
	Lease       domain.Lease
	CustomSteps []checklist.TemplateStep
	Meta        transition.RequestMeta
}

type CreateResult struct {
	Lease     domain.Lease
	Checklist domain.OnboardingChecklist
}

// CreateForLease inserts a draft lease and its seeded checklist in one
// transaction. One checklist per lease; a second create for the same lease
// surfaces the unique-index conflict from the store.
func (s *Service) CreateForLease(ctx context.Context, in CreateInput) (CreateResult, error) {
	now := s.now()

	lease := in.Lease
	if strings.TrimSpace(lease.ID) == "" {
		lease.ID = s.newID()
	}
	if lease.Status == "" {
		lease.Status = domain.LeaseStatusDraft
	}
	if lease.Status != domain.LeaseStatusDraft {
		return CreateResult{}, domain.NewValidationError("status", "new leases start as draft")
	}
	lease.OnboardingPending = true
	if lease.Version == 0 {
		lease.Version = 1
	}
	lease.CreatedAt = now
	lease.UpdatedAt = now
	if err := lease.Validate(); err != nil {
		return CreateResult{}, err
	}

	tpl := s.template
	if len(in.CustomSteps) > 0 {
		tpl = checklist.Template{Schema: checklist.TemplateSchemaV1, Steps: in.CustomSteps}
		if err := tpl.Validate(); err != nil {
			return CreateResult{}, err
		}
	}
	steps := checklist.Seed(tpl, now)
	completed, total := checklist.Counts(steps)
	cl := domain.OnboardingChecklist{
		ID:             s.newID(),
		SiteID:         lease.SiteID,
		LeaseID:        lease.ID,
		Steps:          steps,
		TotalSteps:     total,
		CompletedSteps: completed,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := cl.Validate(); err != nil {
		return CreateResult{}, err
	}

	err := s.runner.InTx(ctx, func(ctx context.Context, st transition.Stores) error {
		if err := st.Leases.Create(ctx, lease); err != nil {
			return fmt.Errorf("create lease: %w", err)
		}
		if err := st.Checklists.Create(ctx, cl); err != nil {
			return fmt.Errorf("create checklist: %w", err)
		}
		return nil
	})
	if err != nil {
		return CreateResult{}, err
	}

	s.appendBestEffort(ctx, auditlog.Event{
		OccurredAt: now,
		SiteID:     lease.SiteID,
		Actor:      lease.CreatedBy,
		Action:     "lease.created",
		EntityType: "lease",
		EntityID:   lease.ID,
		RequestID:  in.Meta.RequestID,
		IP:         in.Meta.IP,
		UserAgent:  in.Meta.UserAgent,
		Changes: map[string]any{
			"unit_id":      lease.UnitID,
			"tenant_id":    lease.TenantID,
			"status":       string(lease.Status),
			"checklist_id": cl.ID,
		},
	})

	return CreateResult{Lease: lease, Checklist: cl}, nil
}

// Get returns the checklist for a lease with computed progress.
func (s *Service) Get(ctx context.Context, siteID, leaseID string) (View, error) {
	if s == nil || s.checklists == nil {
		return View{}, fmt.Errorf("onboarding service not initialized")
	}
	cl, err := s.checklists.GetByLease(ctx, siteID, leaseID)
	if err != nil {
		return View{}, err
	}
	return newView(cl), nil
}

type StepInput struct {
	StepID    string
	Completed bool
	Notes     *string
	Actor     string
	Meta      transition.RequestMeta
}

func (in StepInput) validate() error {
	if strings.TrimSpace(in.StepID) == "" {
		return domain.NewValidationError("step_id", "is required")
	}
	if strings.TrimSpace(in.Actor) == "" {
		return domain.NewValidationError("actor", "is required")
	}
	return nil
}

// UpdateStep toggles one checklist step. The audit entry is best-effort: a
// failed append is logged and the step update stands.
func (s *Service) UpdateStep(ctx context.Context, siteID, leaseID string, in StepInput) (View, error) {
	if err := in.validate(); err != nil {
		return View{}, err
	}
	now := s.now()

	var updated domain.OnboardingChecklist
	err := s.runner.InTx(ctx, func(ctx context.Context, st transition.Stores) error {
		cl, err := st.Checklists.GetByLeaseForUpdate(ctx, siteID, leaseID)
		if err != nil {
			return err
		}
		steps, err := checklist.Apply(cl.Steps, strings.TrimSpace(in.StepID), in.Completed, in.Notes, now)
		if err != nil {
			return domain.NewValidationError("step_id", fmt.Sprintf("unknown step %q", strings.TrimSpace(in.StepID)))
		}
		if err := st.Checklists.UpdateSteps(ctx, siteID, leaseID, steps); err != nil {
			return err
		}
		cl.Steps = steps
		cl.CompletedSteps, cl.TotalSteps = checklist.Counts(steps)
		cl.UpdatedAt = now
		updated = cl
		return nil
	})
	if err != nil {
		return View{}, err
	}

	changes := map[string]any{
		"step_id":   strings.TrimSpace(in.StepID),
		"completed": in.Completed,
	}
	if in.Notes != nil {
		changes["notes"] = *in.Notes
	}
	s.appendBestEffort(ctx, auditlog.Event{
		OccurredAt: now,
		SiteID:     siteID,
		Actor:      in.Actor,
		Action:     "lease.checklist_step_updated",
		EntityType: "lease",
		EntityID:   leaseID,
		RequestID:  in.Meta.RequestID,
		IP:         in.Meta.IP,
		UserAgent:  in.Meta.UserAgent,
		Changes:    changes,
	})

	return newView(updated), nil
}

type CompleteInput struct {
	SetActiveStatus bool
	Actor           string
	Meta            transition.RequestMeta
}

type CompleteResult struct {
	Lease     domain.Lease
	Checklist domain.OnboardingChecklist
	// Record is nil when no status change happened (set_active_status false,
	// or the lease was already active).
	Record *domain.TransitionRecord
}

// Complete closes out onboarding for a lease. Every required step must be
// done or the call fails with IncompleteChecklistError and nothing changes.
// On success, in one transaction: the onboarding flag is cleared, the lease
// is optionally moved to active through the transition service, and a
// must-succeed audit entry is written.
func (s *Service) Complete(ctx context.Context, siteID, leaseID string, in CompleteInput) (CompleteResult, error) {
	if strings.TrimSpace(in.Actor) == "" {
		return CompleteResult{}, domain.NewValidationError("actor", "is required")
	}
	now := s.now()

	var result CompleteResult
	err := s.runner.InTx(ctx, func(ctx context.Context, st transition.Stores) error {
		lease, err := st.Leases.GetForUpdate(ctx, siteID, leaseID)
		if err != nil {
			return err
		}
		switch lease.Status {
		case domain.LeaseStatusDraft, domain.LeaseStatusPendingSignature, domain.LeaseStatusSigned, domain.LeaseStatusActive:
		default:
			return domain.NewValidationError("status", fmt.Sprintf("cannot complete onboarding for a %s lease", lease.Status))
		}

		cl, err := st.Checklists.GetByLeaseForUpdate(ctx, siteID, leaseID)
		if err != nil {
			return err
		}
		if missing := checklist.MissingRequired(cl.Steps); missing > 0 {
			return &domain.IncompleteChecklistError{Missing: missing}
		}

		if err := st.Leases.SetOnboardingPending(ctx, siteID, leaseID, false); err != nil {
			return err
		}
		lease.OnboardingPending = false
		lease.UpdatedAt = now

		fromStatus := lease.Status
		if in.SetActiveStatus {
			res, err := s.transitions.ApplyLease(ctx, st, transition.Input{
				SiteID:                   siteID,
				EntityID:                 leaseID,
				ToStatus:                 string(domain.LeaseStatusActive),
				Type:                     domain.TransitionTypeAutomatic,
				ConfirmationAcknowledged: true,
				BypassReason:             completionBypassReason,
				BypassCategory:           domain.BypassCategoryAdministrative,
				Actor:                    in.Actor,
				Meta:                     in.Meta,
			})
			if err != nil {
				return err
			}
			lease = res.Lease
			lease.OnboardingPending = false
			result.Record = res.Record
		}

		// Stamp the checklist so updated_at reflects completion.
		if err := st.Checklists.UpdateSteps(ctx, siteID, leaseID, cl.Steps); err != nil {
			return err
		}
		cl.UpdatedAt = now

		event := auditlog.Event{
			OccurredAt: now,
			SiteID:     siteID,
			Actor:      in.Actor,
			Action:     "lease.onboarding_completed",
			EntityType: "lease",
			EntityID:   leaseID,
			RequestID:  in.Meta.RequestID,
			IP:         in.Meta.IP,
			UserAgent:  in.Meta.UserAgent,
			Changes: map[string]any{
				"set_active_status": in.SetActiveStatus,
				"from_status":       string(fromStatus),
				"to_status":         string(lease.Status),
			},
		}
		if err := st.Audit.Append(ctx, event); err != nil {
			return fmt.Errorf("append audit entry: %w", err)
		}

		result.Lease = lease
		result.Checklist = cl
		return nil
	})
	if err != nil {
		return CompleteResult{}, err
	}
	return result, nil
}

func (s *Service) appendBestEffort(ctx context.Context, event auditlog.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Append(ctx, event); err != nil {
		s.logger.Warn("audit append failed",
			"action", event.Action,
			"entity_id", event.EntityID,
			"error", err)
	}
}
