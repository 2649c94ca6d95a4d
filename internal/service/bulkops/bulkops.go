// Package bulkops runs one action across many applications. The bulk record
// is inserted before any item runs so every per-item audit entry can link
// back to it, items execute sequentially in isolated transactions, and the
// record is finalized exactly once with the counts.
package bulkops

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parkrow-labs/parkrow-go/internal/domain"
	"github.com/parkrow-labs/parkrow-go/internal/export"
	"github.com/parkrow-labs/parkrow-go/internal/platform/auditlog"
	"github.com/parkrow-labs/parkrow-go/internal/repo"
	"github.com/parkrow-labs/parkrow-go/internal/repo/postgres"
	"github.com/parkrow-labs/parkrow-go/internal/service/transition"
)

// MaxBatch caps the number of applications one bulk action may touch.
const MaxBatch = 100

// transitioner is the slice of the transition service bulk actions use.
type transitioner interface {
	TransitionApplication(ctx context.Context, in transition.Input) (transition.ApplicationResult, error)
}

type Service struct {
	transitions transitioner
	bulk        repo.BulkActionStore
	apps        repo.ApplicationStore
	audit       auditlog.Appender
	logger      *slog.Logger

	now   func() time.Time
	newID func() string
}

func NewService(db *sql.DB, transitions *transition.Service, logger *slog.Logger) *Service {
	return newService(
		transitions,
		postgres.NewBulkActionStore(db),
		postgres.NewApplicationStore(db),
		auditlog.TxAppender{Q: db},
		logger,
	)
}

func newService(transitions transitioner, bulk repo.BulkActionStore, apps repo.ApplicationStore, audit auditlog.Appender, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		transitions: transitions,
		bulk:        bulk,
		apps:        apps,
		audit:       audit,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

type RunInput struct {
	SiteID         string
	Action         domain.BulkActionType
	ApplicationIDs []string
	Params         domain.Metadata
	Actor          string
	Meta           transition.RequestMeta
}

type ItemResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type RunResult struct {
	Action       domain.BulkAction
	Results      []ItemResult
	SuccessCount int
	FailureCount int
}

func (in RunInput) validate() error {
	if strings.TrimSpace(in.SiteID) == "" {
		return domain.NewValidationError("site_id", "is required")
	}
	if strings.TrimSpace(in.Actor) == "" {
		return domain.NewValidationError("actor", "is required")
	}
	if !in.Action.Valid() {
		return domain.NewValidationError("action", "must be one of approve, reject, set_status, send_email, generate_documents, export")
	}
	if len(in.ApplicationIDs) == 0 {
		return domain.NewValidationError("application_ids", "must contain at least one id")
	}
	if len(in.ApplicationIDs) > MaxBatch {
		return domain.NewValidationError("application_ids", fmt.Sprintf("must not exceed %d ids", MaxBatch))
	}
	seen := make(map[string]struct{}, len(in.ApplicationIDs))
	for _, id := range in.ApplicationIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			return domain.NewValidationError("application_ids", "must not contain empty ids")
		}
		if _, dup := seen[id]; dup {
			return domain.NewValidationError("application_ids", fmt.Sprintf("duplicate id %q", id))
		}
		seen[id] = struct{}{}
	}
	if in.Action == domain.BulkActionSetStatus {
		if in.targetStatus() == "" {
			return domain.NewValidationError("params.to_status", "is required for set_status")
		}
	}
	return nil
}

func (in RunInput) targetStatus() string {
	raw, ok := in.Params["to_status"]
	if !ok {
		return ""
	}
	status, ok := raw.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(status)
}

// Run executes a mutating or stub bulk action. Items run in order; one
// failed item never aborts the rest, and there is no cross-item
// transaction to roll back.
func (s *Service) Run(ctx context.Context, in RunInput) (RunResult, error) {
	if err := in.validate(); err != nil {
		return RunResult{}, err
	}
	if in.Action == domain.BulkActionExport {
		return RunResult{}, domain.NewValidationError("action", "export streams a file; send it to the export endpoint")
	}

	action, err := s.insertRecord(ctx, in)
	if err != nil {
		return RunResult{}, err
	}

	results := make([]ItemResult, 0, len(in.ApplicationIDs))
	success, failure := 0, 0
	for _, raw := range in.ApplicationIDs {
		id := strings.TrimSpace(raw)
		if err := s.runItem(ctx, in, action.ID, id); err != nil {
			failure++
			results = append(results, ItemResult{ID: id, Status: "failed", Error: err.Error()})
			continue
		}
		success++
		results = append(results, ItemResult{ID: id, Status: "success"})
	}

	finalized, err := s.finalize(ctx, in, action, success, failure)
	if err != nil {
		return RunResult{}, err
	}
	return RunResult{
		Action:       finalized,
		Results:      results,
		SuccessCount: success,
		FailureCount: failure,
	}, nil
}

func (s *Service) runItem(ctx context.Context, in RunInput, bulkID, applicationID string) error {
	meta := transition.RequestMeta{
		RequestID:    in.Meta.RequestID,
		BulkActionID: bulkID,
		IP:           in.Meta.IP,
		UserAgent:    in.Meta.UserAgent,
	}

	var toStatus string
	switch in.Action {
	case domain.BulkActionApprove:
		toStatus = string(domain.ApplicationStatusApproved)
	case domain.BulkActionReject:
		toStatus = string(domain.ApplicationStatusRejected)
	case domain.BulkActionSetStatus:
		toStatus = in.targetStatus()
	case domain.BulkActionSendEmail, domain.BulkActionGenerateDocuments:
		// Honest stub: the action type is accepted, the capability is not
		// wired, and the item records exactly that.
		err := fmt.Errorf("%s capability not wired", in.Action)
		s.appendBestEffort(ctx, auditlog.Event{
			OccurredAt:   s.now(),
			SiteID:       in.SiteID,
			Actor:        in.Actor,
			Action:       "application.bulk_item_failed",
			EntityType:   "application",
			EntityID:     applicationID,
			RequestID:    in.Meta.RequestID,
			BulkActionID: bulkID,
			IP:           in.Meta.IP,
			UserAgent:    in.Meta.UserAgent,
			Changes:      map[string]any{"action": string(in.Action), "error": err.Error()},
		})
		return err
	default:
		return fmt.Errorf("unsupported bulk action %q", in.Action)
	}

	_, err := s.transitions.TransitionApplication(ctx, transition.Input{
		SiteID:   in.SiteID,
		EntityID: applicationID,
		ToStatus: toStatus,
		Type:     domain.TransitionTypeManual,
		Actor:    in.Actor,
		Meta:     meta,
	})
	return err
}

func (s *Service) insertRecord(ctx context.Context, in RunInput) (domain.BulkAction, error) {
	action := domain.BulkAction{
		ID:               s.newID(),
		SiteID:           strings.TrimSpace(in.SiteID),
		Type:             in.Action,
		PerformedBy:      strings.TrimSpace(in.Actor),
		ApplicationCount: len(in.ApplicationIDs),
		Params:           in.Params,
		CreatedAt:        s.now(),
	}
	if err := action.Validate(); err != nil {
		return domain.BulkAction{}, err
	}
	if err := s.bulk.Insert(ctx, action); err != nil {
		return domain.BulkAction{}, fmt.Errorf("insert bulk action: %w", err)
	}
	return action, nil
}

func (s *Service) finalize(ctx context.Context, in RunInput, action domain.BulkAction, success, failure int) (domain.BulkAction, error) {
	finalizedAt := s.now()
	if err := s.bulk.Finalize(ctx, action.SiteID, action.ID, success, failure, finalizedAt); err != nil {
		return domain.BulkAction{}, fmt.Errorf("finalize bulk action %s: %w", action.ID, err)
	}
	action.SuccessCount = success
	action.FailureCount = failure
	action.FinalizedAt = &finalizedAt

	s.appendBestEffort(ctx, auditlog.Event{
		OccurredAt:   finalizedAt,
		SiteID:       action.SiteID,
		Actor:        action.PerformedBy,
		Action:       "application.bulk_action",
		EntityType:   "bulk_action",
		EntityID:     action.ID,
		RequestID:    in.Meta.RequestID,
		BulkActionID: action.ID,
		IP:           in.Meta.IP,
		UserAgent:    in.Meta.UserAgent,
		Changes: map[string]any{
			"action":    string(action.Type),
			"requested": action.ApplicationCount,
			"success":   success,
			"failure":   failure,
		},
	})
	return action, nil
}

// exportHeader is the column order for application CSV exports.
var exportHeader = []string{
	"id", "applicant_name", "email", "phone", "status",
	"property_id", "unit_id", "desired_move_in", "monthly_income",
	"screening_score", "screening_label", "lease_id", "created_at",
}

// Export streams the selected applications as CSV. It never mutates the
// applications; the whole selection is loaded and validated before the
// first byte is written, so a missing id fails the export instead of
// truncating it.
func (s *Service) Export(ctx context.Context, in RunInput, w io.Writer) (RunResult, error) {
	if err := in.validate(); err != nil {
		return RunResult{}, err
	}
	if in.Action != domain.BulkActionExport {
		return RunResult{}, domain.NewValidationError("action", "must be export")
	}

	applications := make([]domain.Application, 0, len(in.ApplicationIDs))
	for _, raw := range in.ApplicationIDs {
		id := strings.TrimSpace(raw)
		application, err := s.apps.Get(ctx, in.SiteID, id)
		if err != nil {
			return RunResult{}, fmt.Errorf("load application %s: %w", id, err)
		}
		applications = append(applications, application)
	}

	action, err := s.insertRecord(ctx, in)
	if err != nil {
		return RunResult{}, err
	}

	exporter, err := export.New(export.FormatCSV, w)
	if err != nil {
		return RunResult{}, err
	}
	if err := exporter.Begin(exportHeader); err != nil {
		return RunResult{}, err
	}
	results := make([]ItemResult, 0, len(applications))
	for _, application := range applications {
		if err := exporter.Write(exportRow(application)); err != nil {
			return RunResult{}, fmt.Errorf("write export row: %w", err)
		}
		results = append(results, ItemResult{ID: application.ID, Status: "success"})
	}
	if err := exporter.Close(); err != nil {
		return RunResult{}, err
	}

	finalized, err := s.finalize(ctx, in, action, len(applications), 0)
	if err != nil {
		return RunResult{}, err
	}
	return RunResult{
		Action:       finalized,
		Results:      results,
		SuccessCount: len(applications),
	}, nil
}

func exportRow(a domain.Application) export.Row {
	moveIn := ""
	if !a.DesiredMoveIn.IsZero() {
		moveIn = a.DesiredMoveIn.UTC().Format("2006-01-02")
	}
	score, label := "", ""
	if a.Screening != nil {
		score = fmt.Sprintf("%.1f", a.Screening.Score)
		label = a.Screening.Label
	}
	return export.Row{Fields: []string{
		a.ID,
		a.ApplicantName,
		a.Email,
		a.Phone,
		string(a.Status),
		a.PropertyID,
		a.UnitID,
		moveIn,
		a.MonthlyIncome.String(),
		score,
		label,
		a.LeaseID,
		a.CreatedAt.UTC().Format(time.RFC3339),
	}}
}

func (s *Service) Get(ctx context.Context, siteID, id string) (domain.BulkAction, error) {
	if s == nil || s.bulk == nil {
		return domain.BulkAction{}, fmt.Errorf("bulk service not initialized")
	}
	return s.bulk.Get(ctx, siteID, id)
}

func (s *Service) List(ctx context.Context, siteID string, filter repo.BulkActionFilter) ([]domain.BulkAction, error) {
	if s == nil || s.bulk == nil {
		return nil, fmt.Errorf("bulk service not initialized")
	}
	return s.bulk.List(ctx, siteID, filter)
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
