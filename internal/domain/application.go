package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ApplicationStatus represents the pipeline state of a rental application.
type ApplicationStatus string

const (
	ApplicationStatusNew              ApplicationStatus = "new"
	ApplicationStatusContacted        ApplicationStatus = "contacted"
	ApplicationStatusDocumentsPending ApplicationStatus = "documents_pending"
	ApplicationStatusScreening        ApplicationStatus = "screening"
	ApplicationStatusApproved         ApplicationStatus = "approved"
	ApplicationStatusRejected         ApplicationStatus = "rejected"
	ApplicationStatusWithdrawn        ApplicationStatus = "withdrawn"
)

// ScreeningResult is the provider verdict, stored verbatim. RawResponse keeps
// the provider payload untouched so later disputes can replay it.
type ScreeningResult struct {
	Score       float64         `json:"score"`
	Label       string          `json:"label"`
	Flags       []string        `json:"flags,omitempty"`
	RawResponse json.RawMessage `json:"raw_response,omitempty"`
	EvaluatedAt time.Time       `json:"evaluated_at"`
}

// Application is a lead moving through the applicant pipeline toward a lease.
type Application struct {
	ID            string
	SiteID        string
	ApplicantName string
	Email         string
	Phone         string
	PropertyID    string
	UnitID        string
	Status        ApplicationStatus
	DesiredMoveIn time.Time
	MonthlyIncome decimal.Decimal
	Screening     *ScreeningResult
	LeaseID       string
	Metadata      Metadata
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CreatedBy     string
}

func (a Application) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return errors.New("application id is required")
	}
	if strings.TrimSpace(a.SiteID) == "" {
		return errors.New("site id is required")
	}
	if strings.TrimSpace(a.ApplicantName) == "" {
		return errors.New("applicant name is required")
	}
	if email := strings.TrimSpace(a.Email); email == "" {
		return errors.New("email is required")
	} else if !strings.Contains(email, "@") {
		return errors.New("invalid email")
	}
	if !a.Status.Valid() {
		return errors.New("invalid application status")
	}
	if a.MonthlyIncome.IsNegative() {
		return errors.New("monthly income must not be negative")
	}
	return nil
}

// Terminal reports whether the status is absorbing.
func (s ApplicationStatus) Terminal() bool {
	return s == ApplicationStatusRejected || s == ApplicationStatusWithdrawn
}

func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationStatusNew, ApplicationStatusContacted, ApplicationStatusDocumentsPending,
		ApplicationStatusScreening, ApplicationStatusApproved, ApplicationStatusRejected,
		ApplicationStatusWithdrawn:
		return true
	default:
		return false
	}
}

func ApplicationStatuses() []ApplicationStatus {
	return []ApplicationStatus{
		ApplicationStatusNew,
		ApplicationStatusContacted,
		ApplicationStatusDocumentsPending,
		ApplicationStatusScreening,
		ApplicationStatusApproved,
		ApplicationStatusRejected,
		ApplicationStatusWithdrawn,
	}
}
